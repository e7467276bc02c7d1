package analytics

import (
	"time"

	"github.com/trezcool/edusense/core/announcement"
	"github.com/trezcool/edusense/core/assignment"
	"github.com/trezcool/edusense/core/attendance"
	"github.com/trezcool/edusense/core/subject"
	"github.com/trezcool/edusense/core/user"
)

// Urgency labels for pending assignments, from time left until due.
const (
	UrgencyOverdue  = "Overdue"
	UrgencyCritical = "Critical" // < 24h
	UrgencyHigh     = "High"     // < 48h
	UrgencyMedium   = "Medium"   // < 1 week
	UrgencyLow      = "Low"
)

// UrgencyFor labels the time remaining until due.
func UrgencyFor(due, now time.Time) string {
	left := due.Sub(now)
	switch {
	case left < 0:
		return UrgencyOverdue
	case left < 24*time.Hour:
		return UrgencyCritical
	case left < 48*time.Hour:
		return UrgencyHigh
	case left < 7*24*time.Hour:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}

type (
	// AssignmentCounts summarizes one student's assignment workload.
	AssignmentCounts struct {
		Total     int `json:"total"`
		Submitted int `json:"submitted"`
		Pending   int `json:"pending"`
		Late      int `json:"late"`
	}

	// StudentDashboard is the student landing view.
	StudentDashboard struct {
		Student       user.User                   `json:"student"`
		Attendance    attendance.Stats            `json:"attendance"`
		Band          string                      `json:"band"`
		SubjectWise   []attendance.SubjectStats   `json:"subject_wise"`
		Assignments   AssignmentCounts            `json:"assignments"`
		Announcements []announcement.Announcement `json:"announcements"`
	}

	// AssignmentBreakdown is the per-assignment submission tally for admins.
	// Pending may go negative when students enrolled after submitting ones
	// left; it is reported as-is.
	AssignmentBreakdown struct {
		Assignment assignment.Assignment `json:"assignment"`
		Submitted  int                   `json:"submitted"`
		Pending    int                   `json:"pending"`
	}

	// AdminDashboard is the institution-wide overview.
	AdminDashboard struct {
		TotalStudents         int                       `json:"total_students"`
		TotalSubjects         int                       `json:"total_subjects"`
		TotalAssignments      int                       `json:"total_assignments"`
		TotalSubmissions      int                       `json:"total_submissions"`
		LowAttendanceStudents int                       `json:"low_attendance_students"`
		RecentSubmissions     []assignment.Submission   `json:"recent_submissions"`
		AssignmentBreakdown   []AssignmentBreakdown     `json:"assignment_breakdown"`
		LowAttendance         []attendance.StudentStats `json:"low_attendance"`
	}

	// StudentAnalytics is the per-student performance report for admins.
	StudentAnalytics struct {
		Student      user.User                 `json:"student"`
		Attendance   attendance.Stats          `json:"attendance"`
		Band         string                    `json:"band"`
		SubjectWise  []attendance.SubjectStats `json:"subject_wise"`
		Assignments  AssignmentCounts          `json:"assignments"`
		GradedCount  int                       `json:"graded_count"`
		AverageMarks float64                   `json:"average_marks"`
	}

	// ContextAssignment is an assignment annotated for the student context
	// feed: submission state plus due-date urgency.
	ContextAssignment struct {
		assignment.Assignment
		SubmissionStatus string `json:"submission_status"`
		HasSubmitted     bool   `json:"has_submitted"`
		Urgency          string `json:"urgency"`
	}

	// ContextSubject pairs a subject with the student's attendance in it.
	ContextSubject struct {
		Subject subject.Subject  `json:"subject"`
		Stats   attendance.Stats `json:"stats"`
		Band    string           `json:"band"`
	}

	// StudentContext assembles everything about one student into a single
	// payload, shaped for downstream consumption (advisor tooling, AI
	// assistants). Pure data assembly; no inference happens here.
	StudentContext struct {
		Student       user.User                   `json:"student"`
		Overall       attendance.Stats            `json:"overall_attendance"`
		Band          string                      `json:"band"`
		Subjects      []ContextSubject            `json:"subjects"`
		Assignments   []ContextAssignment         `json:"assignments"`
		Announcements []announcement.Announcement `json:"announcements"`
		GeneratedAt   time.Time                   `json:"generated_at"`
	}
)
