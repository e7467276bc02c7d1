package assignment_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/assignment"
	"github.com/trezcool/edusense/core/subject"
	dummydb "github.com/trezcool/edusense/storage/database/dummy"
)

type recordedEvent struct {
	identityID string
	event      string
	payload    interface{}
}

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

func (n *recordingNotifier) last(t *testing.T) recordedEvent {
	t.Helper()
	n.Lock()
	defer n.Unlock()
	if len(n.events) == 0 {
		t.Fatal("no events recorded")
	}
	return n.events[len(n.events)-1]
}

func setup(t *testing.T) (*assignment.Service, subject.Repository, *recordingNotifier) {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	notifier := &recordingNotifier{}
	svc := assignment.NewService(dummydb.NewAssignmentRepository(db), dummydb.NewSubjectRepository(db), notifier)
	return svc, dummydb.NewSubjectRepository(db), notifier
}

func createSubject(t *testing.T, repo subject.Repository) subject.Subject {
	t.Helper()

	active := true
	sub, err := repo.CreateSubject(context.Background(), subject.Subject{
		Name: "Mathematics", Code: "MATH101", Description: "Maths", Credits: 4, Semester: 1, IsActive: &active,
	})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return sub
}

func createAssignment(t *testing.T, svc *assignment.Service, subjectID string, due time.Time) assignment.Assignment {
	t.Helper()

	a, err := svc.Create(context.Background(), assignment.NewAssignment{
		Title:       "Problem set 1",
		Description: "Chapters 1-3",
		SubjectID:   subjectID,
		DueDate:     due,
	}, "admin-1")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	return a
}

func Test_Service_Create(t *testing.T) {
	svc, subRepo, notifier := setup(t)
	ctx := context.Background()
	sub := createSubject(t, subRepo)

	a, err := svc.Create(ctx, assignment.NewAssignment{
		Title:       "Problem set 1",
		Description: "Chapters 1-3",
		SubjectID:   sub.ID,
		DueDate:     time.Now().Add(48 * time.Hour),
	}, "admin-1")
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if a.TotalMarks != 100 {
		t.Errorf("TotalMarks = %d, want default 100", a.TotalMarks)
	}
	if a.CreatedBy != "admin-1" {
		t.Errorf("CreatedBy = %s, want admin-1", a.CreatedBy)
	}

	rec := notifier.last(t)
	if rec.event != core.EventNewAssignment || rec.identityID != "" {
		t.Errorf("expected new-assignment broadcast, got %+v", rec)
	}

	t.Run("unknown subject", func(t *testing.T) {
		_, err := svc.Create(ctx, assignment.NewAssignment{
			Title: "x", Description: "x", SubjectID: "nope", DueDate: time.Now(),
		}, "admin-1")
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("Create() error = %v, want ValidationError", err)
		}
	})
}

func Test_Service_Submit(t *testing.T) {
	svc, subRepo, notifier := setup(t)
	ctx := context.Background()
	sub := createSubject(t, subRepo)

	t.Run("on time", func(t *testing.T) {
		a := createAssignment(t, svc, sub.ID, time.Now().Add(48*time.Hour))

		s, err := svc.Submit(ctx, a.ID, "student-1", assignment.NewSubmission{Comments: "done"})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		if s.Status != assignment.StatusSubmitted {
			t.Errorf("status = %s, want submitted", s.Status)
		}
		if rec := notifier.last(t); rec.event != core.EventNewSubmission {
			t.Errorf("expected new-submission broadcast, got %+v", rec)
		}
	})

	t.Run("past due date is late", func(t *testing.T) {
		a := createAssignment(t, svc, sub.ID, time.Now().Add(-time.Hour))

		s, err := svc.Submit(ctx, a.ID, "student-1", assignment.NewSubmission{})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		if s.Status != assignment.StatusLate {
			t.Errorf("status = %s, want late", s.Status)
		}
	})

	t.Run("resubmission overwrites", func(t *testing.T) {
		a := createAssignment(t, svc, sub.ID, time.Now().Add(48*time.Hour))

		first, err := svc.Submit(ctx, a.ID, "student-1", assignment.NewSubmission{Comments: "v1"})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		second, err := svc.Submit(ctx, a.ID, "student-1", assignment.NewSubmission{Comments: "v2"})
		if err != nil {
			t.Fatalf("Submit() failed: %v", err)
		}
		if second.ID != first.ID {
			t.Errorf("resubmission created a new record: %s != %s", second.ID, first.ID)
		}
		if second.Comments != "v2" {
			t.Errorf("comments = %s, want v2", second.Comments)
		}

		all, err := svc.Submissions(ctx, a.ID)
		if err != nil {
			t.Fatalf("Submissions() failed: %v", err)
		}
		if len(all) != 1 {
			t.Errorf("expected 1 submission after resubmit, got %d", len(all))
		}
	})

	t.Run("unknown assignment", func(t *testing.T) {
		_, err := svc.Submit(ctx, "nope", "student-1", assignment.NewSubmission{})
		if errors.Cause(err) != assignment.ErrNotFound {
			t.Errorf("Submit() error = %v, want ErrNotFound", err)
		}
	})
}

func Test_Service_Grade(t *testing.T) {
	svc, subRepo, notifier := setup(t)
	ctx := context.Background()
	sub := createSubject(t, subRepo)
	a := createAssignment(t, svc, sub.ID, time.Now().Add(48*time.Hour))

	s, err := svc.Submit(ctx, a.ID, "student-1", assignment.NewSubmission{})
	if err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	graded, err := svc.Grade(ctx, s.ID, assignment.GradeSubmission{Marks: 87.5, Feedback: "solid"}, "admin-1")
	if err != nil {
		t.Fatalf("Grade() failed: %v", err)
	}
	if !graded.IsGraded() {
		t.Errorf("status = %s, want graded", graded.Status)
	}
	if graded.Marks == nil || *graded.Marks != 87.5 {
		t.Errorf("marks = %v, want 87.5", graded.Marks)
	}
	if graded.GradedBy != "admin-1" || graded.GradedAt.IsZero() {
		t.Errorf("grading metadata = %+v", graded)
	}

	rec := notifier.last(t)
	if rec.event != core.EventAssignmentGraded || rec.identityID != "student-1" {
		t.Errorf("expected targeted assignment-graded push, got %+v", rec)
	}

	t.Run("unknown submission", func(t *testing.T) {
		_, err := svc.Grade(ctx, "nope", assignment.GradeSubmission{Marks: 1}, "admin-1")
		if errors.Cause(err) != assignment.ErrSubmissionNotFound {
			t.Errorf("Grade() error = %v, want ErrSubmissionNotFound", err)
		}
	})
}

func Test_Service_QueryActiveWithStatus(t *testing.T) {
	svc, subRepo, _ := setup(t)
	ctx := context.Background()
	sub := createSubject(t, subRepo)

	submitted := createAssignment(t, svc, sub.ID, time.Now().Add(48*time.Hour))
	pending := createAssignment(t, svc, sub.ID, time.Now().Add(72*time.Hour))

	if _, err := svc.Submit(ctx, submitted.ID, "student-1", assignment.NewSubmission{}); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	annotated, err := svc.QueryActiveWithStatus(ctx, "", "student-1")
	if err != nil {
		t.Fatalf("QueryActiveWithStatus() failed: %v", err)
	}
	if len(annotated) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(annotated))
	}
	for _, aws := range annotated {
		switch aws.ID {
		case submitted.ID:
			if !aws.HasSubmitted || aws.SubmissionStatus != assignment.StatusSubmitted {
				t.Errorf("submitted assignment state = %+v", aws)
			}
		case pending.ID:
			if aws.HasSubmitted || aws.SubmissionStatus != "pending" {
				t.Errorf("pending assignment state = %+v", aws)
			}
		default:
			t.Errorf("unexpected assignment %q", aws.ID)
		}
	}
}

func Test_Service_Deactivate(t *testing.T) {
	svc, subRepo, _ := setup(t)
	ctx := context.Background()
	sub := createSubject(t, subRepo)
	a := createAssignment(t, svc, sub.ID, time.Now().Add(48*time.Hour))

	if err := svc.Deactivate(ctx, a.ID); err != nil {
		t.Fatalf("Deactivate() failed: %v", err)
	}

	active, err := svc.QueryActive(ctx, "")
	if err != nil {
		t.Fatalf("QueryActive() failed: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("expected no active assignments, got %d", len(active))
	}
}
