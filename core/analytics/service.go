package analytics

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/announcement"
	"github.com/trezcool/edusense/core/assignment"
	"github.com/trezcool/edusense/core/attendance"
	"github.com/trezcool/edusense/core/subject"
	"github.com/trezcool/edusense/core/user"
)

const recentAnnouncementsLimit = 10

type (
	ServiceInterface interface {
		StudentDashboard(ctx context.Context, studentID string) (StudentDashboard, error)
		AdminDashboard(ctx context.Context) (AdminDashboard, error)
		StudentAnalytics(ctx context.Context, studentID string) (StudentAnalytics, error)
		StudentContext(ctx context.Context, studentID string) (StudentContext, error)
	}

	// Service composes the domain repositories into read-only views. It never
	// writes; all mutation stays in the owning domain services.
	Service struct {
		users         user.Repository
		subjects      subject.Repository
		attendance    attendance.Repository
		assignments   assignment.Repository
		announcements announcement.Repository
		logger        core.Logger
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	users user.Repository,
	subjects subject.Repository,
	att attendance.Repository,
	assignments assignment.Repository,
	announcements announcement.Repository,
	logger core.Logger,
) *Service {
	return &Service{
		users:         users,
		subjects:      subjects,
		attendance:    att,
		assignments:   assignments,
		announcements: announcements,
		logger:        logger,
	}
}

// StudentDashboard assembles one student's landing view: overall and
// per-subject attendance, assignment workload and recent announcements.
func (svc *Service) StudentDashboard(ctx context.Context, studentID string) (StudentDashboard, error) {
	usr, err := svc.users.GetUserByID(ctx, studentID)
	if err != nil {
		return StudentDashboard{}, err
	}

	overall, subjectWise, err := svc.attendanceStats(ctx, studentID)
	if err != nil {
		return StudentDashboard{}, err
	}

	counts, _, err := svc.assignmentCounts(ctx, studentID)
	if err != nil {
		return StudentDashboard{}, err
	}

	anns, err := svc.announcements.QueryActiveAnnouncements(ctx, announcement.Filter{
		SubjectIDs: usr.Subjects,
		Limit:      recentAnnouncementsLimit,
	})
	if err != nil {
		return StudentDashboard{}, errors.Wrap(err, "querying announcements")
	}

	return StudentDashboard{
		Student:       usr,
		Attendance:    overall,
		Band:          overall.Band(),
		SubjectWise:   subjectWise,
		Assignments:   counts,
		Announcements: anns,
	}, nil
}

// AdminDashboard assembles the institution-wide overview. Low-attendance
// students come from one grouped attendance query, not per-student scans.
func (svc *Service) AdminDashboard(ctx context.Context) (AdminDashboard, error) {
	var dash AdminDashboard
	var err error

	if dash.TotalStudents, err = svc.users.CountUsersByRole(ctx, user.RoleStudent); err != nil {
		return AdminDashboard{}, errors.Wrap(err, "counting students")
	}
	if dash.TotalSubjects, err = svc.subjects.CountActiveSubjects(ctx); err != nil {
		return AdminDashboard{}, errors.Wrap(err, "counting subjects")
	}
	if dash.TotalAssignments, err = svc.assignments.CountActiveAssignments(ctx); err != nil {
		return AdminDashboard{}, errors.Wrap(err, "counting assignments")
	}
	if dash.TotalSubmissions, err = svc.assignments.CountSubmissions(ctx); err != nil {
		return AdminDashboard{}, errors.Wrap(err, "counting submissions")
	}

	if dash.LowAttendance, err = svc.lowAttendance(ctx); err != nil {
		return AdminDashboard{}, err
	}
	dash.LowAttendanceStudents = len(dash.LowAttendance)

	if dash.RecentSubmissions, err = svc.assignments.RecentSubmissions(ctx, 10); err != nil {
		return AdminDashboard{}, errors.Wrap(err, "querying recent submissions")
	}

	if dash.AssignmentBreakdown, err = svc.assignmentBreakdown(ctx, dash.TotalStudents); err != nil {
		return AdminDashboard{}, err
	}

	return dash, nil
}

// StudentAnalytics reports one student's attendance and assignment
// performance. Average marks covers graded submissions only; it is 0 when
// nothing has been graded yet.
func (svc *Service) StudentAnalytics(ctx context.Context, studentID string) (StudentAnalytics, error) {
	usr, err := svc.users.GetUserByID(ctx, studentID)
	if err != nil {
		return StudentAnalytics{}, err
	}

	overall, subjectWise, err := svc.attendanceStats(ctx, studentID)
	if err != nil {
		return StudentAnalytics{}, err
	}

	counts, submissions, err := svc.assignmentCounts(ctx, studentID)
	if err != nil {
		return StudentAnalytics{}, err
	}

	var gradedCount int
	var marksSum float64
	for _, s := range submissions {
		if s.IsGraded() && s.Marks != nil {
			gradedCount++
			marksSum += *s.Marks
		}
	}
	var avg float64
	if gradedCount > 0 {
		avg = attendance.Round2(marksSum / float64(gradedCount))
	}

	return StudentAnalytics{
		Student:      usr,
		Attendance:   overall,
		Band:         overall.Band(),
		SubjectWise:  subjectWise,
		Assignments:  counts,
		GradedCount:  gradedCount,
		AverageMarks: avg,
	}, nil
}

// StudentContext packs one student's profile, subjects, assignments with
// urgency, attendance and recent announcements into a single payload.
func (svc *Service) StudentContext(ctx context.Context, studentID string) (StudentContext, error) {
	usr, err := svc.users.GetUserByID(ctx, studentID)
	if err != nil {
		return StudentContext{}, err
	}

	overall, subjectWise, err := svc.attendanceStats(ctx, studentID)
	if err != nil {
		return StudentContext{}, err
	}
	ctxSubjects := make([]ContextSubject, 0, len(subjectWise))
	for _, ss := range subjectWise {
		ctxSubjects = append(ctxSubjects, ContextSubject{
			Subject: ss.Subject,
			Stats:   ss.Stats,
			Band:    ss.Band,
		})
	}

	assignments, err := svc.assignments.QueryActiveAssignments(ctx, "")
	if err != nil {
		return StudentContext{}, errors.Wrap(err, "querying assignments")
	}
	submissions, err := svc.assignments.FilterSubmissions(ctx, assignment.SubmissionFilter{StudentID: studentID})
	if err != nil {
		return StudentContext{}, errors.Wrap(err, "querying submissions")
	}
	byAssignment := make(map[string]assignment.Submission, len(submissions))
	for _, s := range submissions {
		byAssignment[s.AssignmentID] = s
	}

	now := time.Now().UTC()
	ctxAssignments := make([]ContextAssignment, 0, len(assignments))
	for _, a := range assignments {
		ca := ContextAssignment{
			Assignment:       a,
			SubmissionStatus: "pending",
			Urgency:          UrgencyFor(a.DueDate, now),
		}
		if s, ok := byAssignment[a.ID]; ok {
			ca.SubmissionStatus = s.Status
			ca.HasSubmitted = true
		}
		ctxAssignments = append(ctxAssignments, ca)
	}

	anns, err := svc.announcements.QueryActiveAnnouncements(ctx, announcement.Filter{
		SubjectIDs: usr.Subjects,
		Limit:      recentAnnouncementsLimit,
	})
	if err != nil {
		return StudentContext{}, errors.Wrap(err, "querying announcements")
	}

	return StudentContext{
		Student:       usr,
		Overall:       overall,
		Band:          overall.Band(),
		Subjects:      ctxSubjects,
		Assignments:   ctxAssignments,
		Announcements: anns,
		GeneratedAt:   now,
	}, nil
}

func (svc *Service) attendanceStats(ctx context.Context, studentID string) (attendance.Stats, []attendance.SubjectStats, error) {
	events, err := svc.attendance.FilterEvents(ctx, attendance.Filter{StudentID: studentID})
	if err != nil {
		return attendance.Stats{}, nil, errors.Wrap(err, "querying attendance records")
	}

	overall, err := attendance.Overall(events)
	if err != nil {
		return attendance.Stats{}, nil, err
	}
	bySubject, err := attendance.Aggregate(events, attendance.GroupBySubject)
	if err != nil {
		return attendance.Stats{}, nil, err
	}

	subs, err := svc.subjects.QueryActiveSubjects(ctx)
	if err != nil {
		return attendance.Stats{}, nil, errors.Wrap(err, "querying subjects")
	}
	byID := make(map[string]subject.Subject, len(subs))
	for _, sub := range subs {
		byID[sub.ID] = sub
	}

	subjectWise := make([]attendance.SubjectStats, 0, len(bySubject))
	for subID, stats := range bySubject {
		subjectWise = append(subjectWise, attendance.SubjectStats{
			Subject: byID[subID],
			Stats:   stats,
			Band:    stats.Band(),
		})
	}
	return overall, subjectWise, nil
}

// assignmentCounts tallies one student's workload over the active
// assignments. Pending is clamped at 0: a student can hold submissions for
// since-deactivated assignments, which would otherwise drive it negative.
func (svc *Service) assignmentCounts(ctx context.Context, studentID string) (AssignmentCounts, []assignment.Submission, error) {
	assignments, err := svc.assignments.QueryActiveAssignments(ctx, "")
	if err != nil {
		return AssignmentCounts{}, nil, errors.Wrap(err, "querying assignments")
	}
	submissions, err := svc.assignments.FilterSubmissions(ctx, assignment.SubmissionFilter{StudentID: studentID})
	if err != nil {
		return AssignmentCounts{}, nil, errors.Wrap(err, "querying submissions")
	}

	counts := AssignmentCounts{Total: len(assignments)}
	for _, s := range submissions {
		counts.Submitted++
		if s.Status == assignment.StatusLate {
			counts.Late++
		}
	}
	counts.Pending = counts.Total - counts.Submitted
	if counts.Pending < 0 {
		svc.logger.Warn("assignment counts: more submissions than active assignments",
			"student", studentID, "total", counts.Total, "submitted", counts.Submitted)
		counts.Pending = 0
	}
	return counts, submissions, nil
}

func (svc *Service) lowAttendance(ctx context.Context) ([]attendance.StudentStats, error) {
	counts, err := svc.attendance.CountsByStudent(ctx, attendance.Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "grouping attendance counts")
	}

	students, err := svc.users.QueryUsers(ctx, &user.QueryFilter{Roles: user.StudentRoles})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	byID := make(map[string]user.User, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}

	low := make([]attendance.StudentStats, 0)
	for studentID, c := range counts {
		s := c.Stats()
		if s.Total > 0 && s.Percentage < attendance.MinRequiredPercent {
			low = append(low, attendance.StudentStats{
				Student: byID[studentID],
				Stats:   s,
				Band:    s.Band(),
			})
		}
	}
	return low, nil
}

func (svc *Service) assignmentBreakdown(ctx context.Context, totalStudents int) ([]AssignmentBreakdown, error) {
	assignments, err := svc.assignments.QueryActiveAssignments(ctx, "")
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	perAssignment, err := svc.assignments.CountSubmissionsByAssignment(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "grouping submission counts")
	}

	breakdown := make([]AssignmentBreakdown, 0, len(assignments))
	for _, a := range assignments {
		submitted := perAssignment[a.ID]
		breakdown = append(breakdown, AssignmentBreakdown{
			Assignment: a,
			Submitted:  submitted,
			Pending:    totalStudents - submitted,
		})
	}
	return breakdown, nil
}
