package subject_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/subject"
	dummydb "github.com/trezcool/edusense/storage/database/dummy"
)

func setup(t *testing.T) *subject.Service {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	return subject.NewService(dummydb.NewSubjectRepository(db))
}

func Test_Service_Create(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, subject.NewSubject{Name: "Mathematics", Code: "math101", Description: "Maths"})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	if sub.Code != "MATH101" {
		t.Errorf("code = %s, want MATH101", sub.Code)
	}
	if sub.Credits != 4 || sub.Semester != 1 {
		t.Errorf("defaults not applied: credits = %d, semester = %d", sub.Credits, sub.Semester)
	}
	if sub.IsActive == nil || !*sub.IsActive {
		t.Error("new subject is not active")
	}

	t.Run("duplicate code", func(t *testing.T) {
		err := svc.CheckCodeUniqueness("math101")
		var vErr *core.ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("CheckCodeUniqueness() error = %v, want ValidationError", err)
		}
	})
}

func Test_Service_UpdateDeactivate(t *testing.T) {
	svc := setup(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, subject.NewSubject{Name: "Mathematics", Code: "MATH101", Description: "Maths", Credits: 5, Semester: 2})
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	updated, err := svc.Update(ctx, sub.ID, subject.UpdateSubject{Name: "Advanced Mathematics"})
	if err != nil {
		t.Fatalf("Update() failed: %v", err)
	}
	if updated.Name != "Advanced Mathematics" {
		t.Errorf("name = %s, want Advanced Mathematics", updated.Name)
	}
	if updated.Code != "MATH101" || updated.Credits != 5 || updated.Semester != 2 {
		t.Errorf("unchanged fields were modified: %+v", updated)
	}

	t.Run("unknown subject", func(t *testing.T) {
		_, err := svc.Update(ctx, "nope", subject.UpdateSubject{Name: "x"})
		if errors.Cause(err) != subject.ErrNotFound {
			t.Errorf("Update() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("deactivate drops out of the active set", func(t *testing.T) {
		if err := svc.Deactivate(ctx, sub.ID); err != nil {
			t.Fatalf("Deactivate() failed: %v", err)
		}
		active, err := svc.QueryActive(ctx)
		if err != nil {
			t.Fatalf("QueryActive() failed: %v", err)
		}
		if len(active) != 0 {
			t.Errorf("expected no active subjects, got %d", len(active))
		}

		// deactivated subjects stay retrievable for history views
		got, err := svc.GetByID(ctx, sub.ID)
		if err != nil {
			t.Fatalf("GetByID() failed: %v", err)
		}
		if got.IsActive == nil || *got.IsActive {
			t.Error("subject still active")
		}
	})
}
