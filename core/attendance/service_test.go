package attendance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/attendance"
	"github.com/trezcool/edusense/core/subject"
	"github.com/trezcool/edusense/core/user"
	emailsvc "github.com/trezcool/edusense/services/email"
	dummydb "github.com/trezcool/edusense/storage/database/dummy"
)

type recordedEvent struct {
	identityID string // empty for broadcasts
	event      string
	payload    interface{}
}

// recordingNotifier captures pushes for assertions.
type recordingNotifier struct {
	sync.Mutex
	events []recordedEvent
}

func (n *recordingNotifier) Broadcast(event string, payload interface{}) {
	n.Lock()
	defer n.Unlock()
	n.events = append(n.events, recordedEvent{event: event, payload: payload})
}

func (n *recordingNotifier) Notify(identityID, event string, payload interface{}) {
	n.Lock()
	defer n.Unlock()
	n.events = append(n.events, recordedEvent{identityID: identityID, event: event, payload: payload})
}

func (n *recordingNotifier) recorded() []recordedEvent {
	n.Lock()
	defer n.Unlock()
	return append([]recordedEvent(nil), n.events...)
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}

type testEnv struct {
	svc      *attendance.Service
	repo     attendance.Repository
	subRepo  subject.Repository
	usrRepo  user.Repository
	notifier *recordingNotifier
	conf     *core.Config
}

func setup(t *testing.T, confMod ...func(*core.Config)) *testEnv {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}

	conf := &core.Config{
		Attendance: core.AttendanceConfig{
			AlertThreshold: attendance.MinRequiredPercent,
			DisableAlerts:  true,
		},
	}
	for _, mod := range confMod {
		mod(conf)
	}

	env := &testEnv{
		repo:     dummydb.NewAttendanceRepository(db),
		subRepo:  dummydb.NewSubjectRepository(db),
		usrRepo:  dummydb.NewUserRepository(db),
		notifier: &recordingNotifier{},
		conf:     conf,
	}
	env.svc = attendance.NewService(
		env.repo, env.subRepo, env.usrRepo, env.notifier, emailsvc.NewConsoleServiceMock(), nopLogger{}, conf)
	return env
}

func createSubject(t *testing.T, repo subject.Repository, name, code string) subject.Subject {
	t.Helper()

	active := true
	sub, err := repo.CreateSubject(context.Background(), subject.Subject{
		Name: name, Code: code, Description: name, Credits: 4, Semester: 1, IsActive: &active,
	})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return sub
}

func createStudent(t *testing.T, repo user.Repository, name, email string) user.User {
	t.Helper()

	active := true
	usr, err := repo.CreateUser(context.Background(), user.User{
		Name: name, Email: email, Roles: user.StudentRoles, IsActive: &active,
	})
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func Test_Service_MarkBatch(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	sub := createSubject(t, env.subRepo, "Mathematics", "MATH101")
	st1 := createStudent(t, env.usrRepo, "Awe", "awe@test.cd")
	st2 := createStudent(t, env.usrRepo, "King", "king@test.cd")

	date := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	batch := attendance.NewBatch{
		SubjectID: sub.ID,
		Date:      date,
		Entries: []attendance.MarkEntry{
			{StudentID: st1.ID, Status: attendance.StatusPresent},
			{StudentID: st2.ID, Status: attendance.StatusAbsent},
		},
	}

	events, err := env.svc.MarkBatch(ctx, batch, "admin-1")
	if err != nil {
		t.Fatalf("MarkBatch() failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	for _, ev := range events {
		if !ev.Date.Equal(attendance.Day(date)) {
			t.Errorf("event date = %v, want truncated %v", ev.Date, attendance.Day(date))
		}
		if ev.MarkedBy != "admin-1" {
			t.Errorf("MarkedBy = %s, want admin-1", ev.MarkedBy)
		}
	}

	refreshed, err := env.subRepo.GetSubjectByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubjectByID() failed: %v", err)
	}
	if refreshed.TotalLectures != 1 {
		t.Errorf("TotalLectures = %d, want 1", refreshed.TotalLectures)
	}

	t.Run("re-marking the same day is idempotent per cell", func(t *testing.T) {
		batch.Entries[1].Status = attendance.StatusPresent // correct st2
		events2, err := env.svc.MarkBatch(ctx, batch, "admin-1")
		if err != nil {
			t.Fatalf("MarkBatch() failed: %v", err)
		}
		if len(events2) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events2))
		}

		all, err := env.repo.FilterEvents(ctx, attendance.Filter{SubjectID: sub.ID})
		if err != nil {
			t.Fatalf("FilterEvents() failed: %v", err)
		}
		if len(all) != 2 {
			t.Errorf("expected 2 stored events after re-mark, got %d", len(all))
		}
		for _, ev := range all {
			if ev.StudentID == st2.ID && ev.Status != attendance.StatusPresent {
				t.Errorf("st2 status = %s, want present", ev.Status)
			}
		}
	})

	t.Run("lecture counter rises on every call by default", func(t *testing.T) {
		refreshed, err := env.subRepo.GetSubjectByID(ctx, sub.ID)
		if err != nil {
			t.Fatalf("GetSubjectByID() failed: %v", err)
		}
		if refreshed.TotalLectures != 2 {
			t.Errorf("TotalLectures = %d, want 2", refreshed.TotalLectures)
		}
	})

	t.Run("each student gets a targeted push", func(t *testing.T) {
		var st1Pushes, st2Pushes int
		for _, rec := range env.notifier.recorded() {
			if rec.event != core.EventAttendanceUpdated {
				t.Errorf("unexpected event %q", rec.event)
			}
			switch rec.identityID {
			case st1.ID:
				st1Pushes++
			case st2.ID:
				st2Pushes++
			default:
				t.Errorf("push to unexpected identity %q", rec.identityID)
			}
		}
		if st1Pushes != 2 || st2Pushes != 2 {
			t.Errorf("pushes = (%d, %d), want (2, 2)", st1Pushes, st2Pushes)
		}
	})

	t.Run("unknown subject", func(t *testing.T) {
		batch := attendance.NewBatch{
			SubjectID: "nope",
			Date:      date,
			Entries:   []attendance.MarkEntry{{StudentID: st1.ID, Status: attendance.StatusPresent}},
		}
		_, err := env.svc.MarkBatch(ctx, batch, "admin-1")
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("MarkBatch() error = %v, want ValidationError", err)
		}
	})
}

func Test_Service_MarkBatch_dedupeLectureCount(t *testing.T) {
	env := setup(t, func(conf *core.Config) { conf.Attendance.DedupeLectureCount = true })
	ctx := context.Background()

	sub := createSubject(t, env.subRepo, "Physics", "PHY101")
	st := createStudent(t, env.usrRepo, "Awe", "awe@test.cd")

	batch := attendance.NewBatch{
		SubjectID: sub.ID,
		Date:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Entries:   []attendance.MarkEntry{{StudentID: st.ID, Status: attendance.StatusPresent}},
	}

	for i := 0; i < 3; i++ {
		if _, err := env.svc.MarkBatch(ctx, batch, "admin-1"); err != nil {
			t.Fatalf("MarkBatch() failed: %v", err)
		}
	}

	refreshed, err := env.subRepo.GetSubjectByID(ctx, sub.ID)
	if err != nil {
		t.Fatalf("GetSubjectByID() failed: %v", err)
	}
	if refreshed.TotalLectures != 1 {
		t.Errorf("TotalLectures = %d, want 1 with dedupe on", refreshed.TotalLectures)
	}
}

func Test_Service_MarkBatch_lowAttendanceAlerts(t *testing.T) {
	env := setup(t, func(conf *core.Config) {
		conf.Attendance.DisableAlerts = false
		conf.Attendance.AlertThreshold = 75
	})
	ctx := context.Background()

	sub := createSubject(t, env.subRepo, "Chemistry", "CHEM101")
	st := createStudent(t, env.usrRepo, "Awe", "awe@test.cd")

	emailsvc.SentMessages = emailsvc.SentMessages[:0]

	// 1 absence out of 1 record: 0%, well under threshold
	batch := attendance.NewBatch{
		SubjectID: sub.ID,
		Date:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Entries:   []attendance.MarkEntry{{StudentID: st.ID, Status: attendance.StatusAbsent}},
	}
	if _, err := env.svc.MarkBatch(ctx, batch, "admin-1"); err != nil {
		t.Fatalf("MarkBatch() failed: %v", err)
	}

	if len(emailsvc.SentMessages) != 1 {
		t.Fatalf("expected 1 alert email, got %d", len(emailsvc.SentMessages))
	}
	msg := emailsvc.SentMessages[0]
	if len(msg.To) != 1 || msg.To[0].Address != st.Email {
		t.Errorf("alert recipient = %v, want %s", msg.To, st.Email)
	}
}

func Test_Service_EditOne(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	sub := createSubject(t, env.subRepo, "Mathematics", "MATH101")
	st := createStudent(t, env.usrRepo, "Awe", "awe@test.cd")

	events, err := env.svc.MarkBatch(ctx, attendance.NewBatch{
		SubjectID: sub.ID,
		Date:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Entries:   []attendance.MarkEntry{{StudentID: st.ID, Status: attendance.StatusAbsent}},
	}, "admin-1")
	if err != nil {
		t.Fatalf("MarkBatch() failed: %v", err)
	}
	ev := events[0]

	edited, err := env.svc.EditOne(ctx, ev.ID, attendance.EditEvent{
		Status: attendance.StatusPresent,
		Reason: "biometric glitch",
	}, "admin-2")
	if err != nil {
		t.Fatalf("EditOne() failed: %v", err)
	}
	if edited.Status != attendance.StatusPresent {
		t.Errorf("status = %s, want present", edited.Status)
	}
	if len(edited.EditHistory) != 1 {
		t.Fatalf("expected 1 history entry, got %d", len(edited.EditHistory))
	}
	entry := edited.EditHistory[0]
	if entry.PreviousStatus != attendance.StatusAbsent || entry.NewStatus != attendance.StatusPresent {
		t.Errorf("history entry = %+v", entry)
	}
	if entry.EditedBy != "admin-2" || entry.Reason != "biometric glitch" {
		t.Errorf("history entry = %+v", entry)
	}

	t.Run("history is append-only", func(t *testing.T) {
		edited, err := env.svc.EditOne(ctx, ev.ID, attendance.EditEvent{
			Status: attendance.StatusLate,
			Reason: "second look",
		}, "admin-2")
		if err != nil {
			t.Fatalf("EditOne() failed: %v", err)
		}
		if len(edited.EditHistory) != 2 {
			t.Fatalf("expected 2 history entries, got %d", len(edited.EditHistory))
		}
		if edited.EditHistory[0].Reason != "biometric glitch" {
			t.Errorf("first entry overwritten: %+v", edited.EditHistory[0])
		}
	})

	t.Run("unknown record", func(t *testing.T) {
		_, err := env.svc.EditOne(ctx, "nope", attendance.EditEvent{Status: attendance.StatusLate, Reason: "x"}, "admin-2")
		if errors.Cause(err) != attendance.ErrNotFound {
			t.Errorf("EditOne() error = %v, want ErrNotFound", err)
		}
	})
}

func Test_Service_StudentOverview(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	math := createSubject(t, env.subRepo, "Mathematics", "MATH101")
	phys := createSubject(t, env.subRepo, "Physics", "PHY101")
	st := createStudent(t, env.usrRepo, "Awe", "awe@test.cd")

	mark := func(sub subject.Subject, day int, status string) {
		t.Helper()
		_, err := env.svc.MarkBatch(ctx, attendance.NewBatch{
			SubjectID: sub.ID,
			Date:      time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
			Entries:   []attendance.MarkEntry{{StudentID: st.ID, Status: status}},
		}, "admin-1")
		if err != nil {
			t.Fatalf("MarkBatch() failed: %v", err)
		}
	}
	mark(math, 2, attendance.StatusPresent)
	mark(math, 3, attendance.StatusLate)
	mark(phys, 2, attendance.StatusAbsent)

	overview, err := env.svc.StudentOverview(ctx, st.ID)
	if err != nil {
		t.Fatalf("StudentOverview() failed: %v", err)
	}
	// (1 + 0.5) / 3 * 100
	if overview.Overall.Percentage != 50 {
		t.Errorf("overall percentage = %v, want 50", overview.Overall.Percentage)
	}
	if overview.Band != attendance.BandRisk {
		t.Errorf("band = %s, want %s", overview.Band, attendance.BandRisk)
	}
	if len(overview.SubjectWise) != 2 {
		t.Fatalf("expected 2 subject groups, got %d", len(overview.SubjectWise))
	}
	for _, ss := range overview.SubjectWise {
		switch ss.Subject.ID {
		case math.ID:
			if ss.Stats.Percentage != 75 {
				t.Errorf("math percentage = %v, want 75", ss.Stats.Percentage)
			}
			if ss.Band != attendance.BandWarning {
				t.Errorf("math band = %s, want %s", ss.Band, attendance.BandWarning)
			}
		case phys.ID:
			if ss.Stats.Percentage != 0 {
				t.Errorf("phys percentage = %v, want 0", ss.Stats.Percentage)
			}
		default:
			t.Errorf("unexpected subject %q", ss.Subject.ID)
		}
	}
	if len(overview.Records) != 3 {
		t.Errorf("expected 3 records, got %d", len(overview.Records))
	}

	t.Run("unknown student", func(t *testing.T) {
		_, err := env.svc.StudentOverview(ctx, "nope")
		if errors.Cause(err) != user.ErrNotFound {
			t.Errorf("StudentOverview() error = %v, want user.ErrNotFound", err)
		}
	})
}

func Test_Service_LowAttendance(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	sub := createSubject(t, env.subRepo, "Mathematics", "MATH101")
	risky := createStudent(t, env.usrRepo, "Risky", "risky@test.cd")
	safe := createStudent(t, env.usrRepo, "Safe", "safe@test.cd")

	for day := 2; day < 6; day++ { // 4 lectures
		status := attendance.StatusPresent
		if day > 2 {
			status = attendance.StatusAbsent // risky: 1/4 = 25%
		}
		_, err := env.svc.MarkBatch(ctx, attendance.NewBatch{
			SubjectID: sub.ID,
			Date:      time.Date(2026, 3, day, 0, 0, 0, 0, time.UTC),
			Entries: []attendance.MarkEntry{
				{StudentID: risky.ID, Status: status},
				{StudentID: safe.ID, Status: attendance.StatusPresent},
			},
		}, "admin-1")
		if err != nil {
			t.Fatalf("MarkBatch() failed: %v", err)
		}
	}

	low, err := env.svc.LowAttendance(ctx, 0) // 0 falls back to the institutional minimum
	if err != nil {
		t.Fatalf("LowAttendance() failed: %v", err)
	}
	if len(low) != 1 {
		t.Fatalf("expected 1 low-attendance student, got %d", len(low))
	}
	if low[0].Student.ID != risky.ID {
		t.Errorf("low student = %s, want %s", low[0].Student.ID, risky.ID)
	}
	if low[0].Stats.Percentage != 25 {
		t.Errorf("percentage = %v, want 25", low[0].Stats.Percentage)
	}

	t.Run("custom threshold", func(t *testing.T) {
		low, err := env.svc.LowAttendance(ctx, 20)
		if err != nil {
			t.Fatalf("LowAttendance() failed: %v", err)
		}
		if len(low) != 0 {
			t.Errorf("expected no students under 20%%, got %d", len(low))
		}
	})
}

func Test_Service_Report(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	sub := createSubject(t, env.subRepo, "Mathematics", "MATH101")
	st1 := createStudent(t, env.usrRepo, "Awe", "awe@test.cd")
	st2 := createStudent(t, env.usrRepo, "King", "king@test.cd")

	_, err := env.svc.MarkBatch(ctx, attendance.NewBatch{
		SubjectID: sub.ID,
		Date:      time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Entries: []attendance.MarkEntry{
			{StudentID: st1.ID, Status: attendance.StatusPresent},
			{StudentID: st2.ID, Status: attendance.StatusAbsent},
		},
	}, "admin-1")
	if err != nil {
		t.Fatalf("MarkBatch() failed: %v", err)
	}

	rep, err := env.svc.Report(ctx, attendance.Filter{SubjectID: sub.ID})
	if err != nil {
		t.Fatalf("Report() failed: %v", err)
	}
	if len(rep.StudentStats) != 2 {
		t.Errorf("expected 2 student stats, got %d", len(rep.StudentStats))
	}
	if rep.TotalRecords != 2 {
		t.Errorf("TotalRecords = %d, want 2", rep.TotalRecords)
	}
	if len(rep.LowAttendance) != 1 || rep.LowAttendance[0].Student.ID != st2.ID {
		t.Errorf("LowAttendance = %+v, want only %s", rep.LowAttendance, st2.ID)
	}
}
