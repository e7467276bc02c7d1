package attendance

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/subject"
	"github.com/trezcool/edusense/core/user"
)

var ErrNotFound = errors.New("attendance record not found")

type (
	Repository interface {
		FilterEvents(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Event, error)
		// UpsertEventBatch writes one cell per entry, keyed by
		// (student, subject, day): all cells or none.
		UpsertEventBatch(ctx context.Context, subjectID string, date time.Time, entries []MarkEntry, markedBy string, exec ...core.DBExecutor) ([]Event, error)
		HasEventsOn(ctx context.Context, subjectID string, date time.Time, exec ...core.DBExecutor) (bool, error)
		GetEventByID(ctx context.Context, id string, exec ...core.DBExecutor) (Event, error)
		UpdateEvent(ctx context.Context, ev Event, exec ...core.DBExecutor) (Event, error)
		// CountsByStudent tallies matching events per student store-side,
		// in one grouped query.
		CountsByStudent(ctx context.Context, filter Filter, exec ...core.DBExecutor) (map[string]Counts, error)
	}

	ServiceInterface interface {
		MarkBatch(ctx context.Context, nb NewBatch, markedBy string) ([]Event, error)
		EditOne(ctx context.Context, id string, ee EditEvent, editedBy string) (Event, error)
		StudentOverview(ctx context.Context, studentID string) (StudentOverview, error)
		Roster(ctx context.Context, subjectID string, date time.Time) ([]Event, error)
		Report(ctx context.Context, filter Filter) (Report, error)
		LowAttendance(ctx context.Context, threshold float64) ([]StudentStats, error)
	}

	Service struct {
		repo     Repository
		subjects subject.Repository
		users    user.Repository
		notifier core.Notifier
		mailSvc  core.EmailService
		logger   core.Logger
		conf     *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	repo Repository,
	subjects subject.Repository,
	users user.Repository,
	notifier core.Notifier,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		repo:     repo,
		subjects: subjects,
		users:    users,
		notifier: notifier,
		mailSvc:  mailSvc,
		logger:   logger,
		conf:     conf,
	}
}

// MarkBatch applies one marking call for a subject on one calendar day.
// Per-cell writes are idempotent (upsert by student+subject+day) and atomic
// as a batch. Subject.TotalLectures goes up by 1 per call, also on re-marks
// of an already-marked day, unless DedupeLectureCount is set. Each affected
// student gets a targeted "attendance-updated" push; delivery never blocks
// nor fails the write.
func (svc *Service) MarkBatch(ctx context.Context, nb NewBatch, markedBy string) ([]Event, error) {
	sub, err := svc.subjects.GetSubjectByID(ctx, nb.SubjectID)
	if err != nil {
		if errors.Cause(err) == subject.ErrNotFound {
			return nil, core.NewValidationError(err, core.FieldError{Field: "subject_id", Error: err.Error()})
		}
		return nil, errors.Wrap(err, "resolving subject")
	}

	date := Day(nb.Date)

	var alreadyMarked bool
	if svc.conf.Attendance.DedupeLectureCount {
		if alreadyMarked, err = svc.repo.HasEventsOn(ctx, sub.ID, date); err != nil {
			return nil, errors.Wrap(err, "checking existing marks")
		}
	}

	events, err := svc.repo.UpsertEventBatch(ctx, sub.ID, date, nb.Entries, markedBy)
	if err != nil {
		return nil, errors.Wrap(err, "upserting attendance batch")
	}

	if !alreadyMarked {
		if err = svc.subjects.IncrementLectureCount(ctx, sub.ID); err != nil {
			return nil, errors.Wrap(err, "incrementing lecture count")
		}
	}

	for _, ev := range events {
		svc.notifier.Notify(ev.StudentID, core.EventAttendanceUpdated, UpdatedPayload{
			SubjectID: ev.SubjectID,
			Date:      ev.Date,
			Status:    ev.Status,
		})
	}

	svc.sendLowAttendanceAlerts(ctx, sub, events)

	return events, nil
}

// EditOne corrects a single attendance record, appending to its edit history.
func (svc *Service) EditOne(ctx context.Context, id string, ee EditEvent, editedBy string) (Event, error) {
	ev, err := svc.repo.GetEventByID(ctx, id)
	if err != nil {
		return Event{}, err
	}

	ev.EditHistory = append(ev.EditHistory, EditEntry{
		PreviousStatus: ev.Status,
		NewStatus:      ee.Status,
		EditedBy:       editedBy,
		Reason:         ee.Reason,
		Timestamp:      time.Now().UTC(),
	})
	ev.Status = ee.Status
	ev.Remarks = ee.Remarks
	ev.UpdatedAt = time.Now().UTC()

	ev, err = svc.repo.UpdateEvent(ctx, ev)
	if err != nil {
		return Event{}, errors.Wrap(err, "updating attendance record")
	}

	svc.notifier.Notify(ev.StudentID, core.EventAttendanceUpdated, UpdatedPayload{
		SubjectID: ev.SubjectID,
		Date:      ev.Date,
		Status:    ev.Status,
	})
	return ev, nil
}

type (
	// SubjectStats pairs one subject with a student's stats in it.
	SubjectStats struct {
		Subject subject.Subject `json:"subject"`
		Stats   Stats           `json:"stats"`
		Band    string          `json:"band"`
	}

	// StudentOverview is one student's full attendance picture.
	StudentOverview struct {
		Overall     Stats          `json:"overall"`
		Band        string         `json:"band"`
		SubjectWise []SubjectStats `json:"subject_wise"`
		Records     []Event        `json:"records"`
	}

	// StudentStats pairs one student with their aggregate stats.
	StudentStats struct {
		Student user.User `json:"student"`
		Stats   Stats     `json:"stats"`
		Band    string    `json:"band"`
	}

	// Report summarizes attendance per student over an event filter.
	Report struct {
		StudentStats  []StudentStats `json:"student_stats"`
		LowAttendance []StudentStats `json:"low_attendance_students"`
		TotalRecords  int            `json:"total_records"`
	}
)

// StudentOverview aggregates all of one student's events, overall and per subject.
func (svc *Service) StudentOverview(ctx context.Context, studentID string) (StudentOverview, error) {
	if _, err := svc.users.GetUserByID(ctx, studentID); err != nil {
		return StudentOverview{}, err
	}

	events, err := svc.repo.FilterEvents(ctx, Filter{StudentID: studentID})
	if err != nil {
		return StudentOverview{}, errors.Wrap(err, "querying attendance records")
	}

	overall, err := Overall(events)
	if err != nil {
		return StudentOverview{}, err
	}
	bySubject, err := Aggregate(events, GroupBySubject)
	if err != nil {
		return StudentOverview{}, err
	}

	subjectWise, err := svc.resolveSubjects(ctx, bySubject)
	if err != nil {
		return StudentOverview{}, err
	}

	return StudentOverview{
		Overall:     overall,
		Band:        overall.Band(),
		SubjectWise: subjectWise,
		Records:     events,
	}, nil
}

// Roster returns the marked cells for one subject, optionally on one day.
func (svc *Service) Roster(ctx context.Context, subjectID string, date time.Time) ([]Event, error) {
	filter := Filter{SubjectID: subjectID}
	if !date.IsZero() {
		day := Day(date)
		filter.DateFrom = day
		filter.DateTo = day
	}
	return svc.repo.FilterEvents(ctx, filter)
}

// Report groups matching events per student and extracts those under the
// institutional minimum.
func (svc *Service) Report(ctx context.Context, filter Filter) (Report, error) {
	counts, err := svc.repo.CountsByStudent(ctx, filter)
	if err != nil {
		return Report{}, errors.Wrap(err, "grouping attendance counts")
	}

	stats, err := svc.resolveStudents(ctx, counts)
	if err != nil {
		return Report{}, err
	}

	rep := Report{StudentStats: stats}
	for _, st := range stats {
		rep.TotalRecords += st.Stats.Total
		if st.Stats.Percentage < MinRequiredPercent {
			rep.LowAttendance = append(rep.LowAttendance, st)
		}
	}
	return rep, nil
}

// LowAttendance lists students whose overall percentage is under threshold.
// One grouped store query; no per-student scans.
func (svc *Service) LowAttendance(ctx context.Context, threshold float64) ([]StudentStats, error) {
	if threshold <= 0 {
		threshold = MinRequiredPercent
	}

	counts, err := svc.repo.CountsByStudent(ctx, Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "grouping attendance counts")
	}

	stats, err := svc.resolveStudents(ctx, counts)
	if err != nil {
		return nil, err
	}

	low := make([]StudentStats, 0, len(stats))
	for _, st := range stats {
		if st.Stats.Total > 0 && st.Stats.Percentage < threshold {
			low = append(low, st)
		}
	}
	return low, nil
}

func (svc *Service) resolveSubjects(ctx context.Context, bySubject map[string]Stats) ([]SubjectStats, error) {
	subs, err := svc.subjects.QueryActiveSubjects(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	byID := make(map[string]subject.Subject, len(subs))
	for _, sub := range subs {
		byID[sub.ID] = sub
	}

	subjectWise := make([]SubjectStats, 0, len(bySubject))
	for subID, stats := range bySubject {
		subjectWise = append(subjectWise, SubjectStats{
			Subject: byID[subID],
			Stats:   stats,
			Band:    stats.Band(),
		})
	}
	return subjectWise, nil
}

func (svc *Service) resolveStudents(ctx context.Context, counts map[string]Counts) ([]StudentStats, error) {
	students, err := svc.users.QueryUsers(ctx, &user.QueryFilter{Roles: user.StudentRoles})
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	byID := make(map[string]user.User, len(students))
	for _, st := range students {
		byID[st.ID] = st
	}

	stats := make([]StudentStats, 0, len(counts))
	for studentID, c := range counts {
		s := c.Stats()
		stats = append(stats, StudentStats{
			Student: byID[studentID],
			Stats:   s,
			Band:    s.Band(),
		})
	}
	return stats, nil
}

// sendLowAttendanceAlerts warns students marked absent or late in this batch
// whose percentage in the subject fell under the alert threshold. Best-effort:
// failures are logged, never surfaced to the marking caller.
func (svc *Service) sendLowAttendanceAlerts(ctx context.Context, sub subject.Subject, events []Event) {
	if svc.conf.Attendance.DisableAlerts {
		return
	}

	for _, ev := range events {
		if ev.Status == StatusPresent {
			continue
		}

		subjEvents, err := svc.repo.FilterEvents(ctx, Filter{StudentID: ev.StudentID, SubjectID: sub.ID})
		if err != nil {
			svc.logger.Warn("attendance alert: querying events", errors.Wrap(err, "querying events"))
			continue
		}
		stats, err := Overall(subjEvents)
		if err != nil || stats.Total == 0 || stats.Percentage >= svc.conf.Attendance.AlertThreshold {
			continue
		}

		usr, err := svc.users.GetUserByID(ctx, ev.StudentID)
		if err != nil {
			svc.logger.Warn("attendance alert: resolving student", errors.Wrap(err, "resolving student"))
			continue
		}

		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
			Subject:      fmt.Sprintf("Low attendance in %s", sub.Name),
			TemplateName: "attendance_alert",
			TemplateData: map[string]interface{}{
				"Name":        usr.Name,
				"SubjectName": sub.Name,
				"SubjectCode": sub.Code,
				"Percentage":  stats.Percentage,
				"Threshold":   svc.conf.Attendance.AlertThreshold,
				"Present":     stats.Present,
				"Late":        stats.Late,
				"Total":       stats.Total,
			},
		})
	}
}
