package subject

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edusense/core"
)

var (
	ErrNotFound   = errors.New("subject not found")
	ErrCodeExists = errors.New("a subject with this code already exists")
)

type (
	Repository interface {
		CheckSubjectCodeUniqueness(ctx context.Context, code string, exec ...core.DBExecutor) error
		CreateSubject(ctx context.Context, sub Subject, exec ...core.DBExecutor) (Subject, error)
		GetSubjectByID(ctx context.Context, id string, exec ...core.DBExecutor) (Subject, error)
		QueryActiveSubjects(ctx context.Context, exec ...core.DBExecutor) ([]Subject, error)
		CountActiveSubjects(ctx context.Context, exec ...core.DBExecutor) (int, error)
		UpdateSubject(ctx context.Context, sub Subject, isActive *bool, exec ...core.DBExecutor) (Subject, error)
		// IncrementLectureCount bumps TotalLectures by 1; atomic on the store side.
		IncrementLectureCount(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		CheckCodeUniqueness(code string) error
		Create(ctx context.Context, ns NewSubject) (Subject, error)
		GetByID(ctx context.Context, id string) (Subject, error)
		QueryActive(ctx context.Context) ([]Subject, error)
		Update(ctx context.Context, id string, us UpdateSubject) (Subject, error)
		Deactivate(ctx context.Context, id string) error
	}

	Service struct {
		repo Repository
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) CheckCodeUniqueness(code string) error {
	if err := svc.repo.CheckSubjectCodeUniqueness(context.Background(), strings.ToUpper(code)); err != nil {
		if errors.Cause(err) == ErrCodeExists {
			return core.NewValidationError(err, core.FieldError{Field: "code", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, ns NewSubject) (Subject, error) {
	now := time.Now().UTC()
	credits := ns.Credits
	if credits == 0 {
		credits = 4
	}
	semester := ns.Semester
	if semester == 0 {
		semester = 1
	}
	active := true
	sub := Subject{
		Name:        ns.Name,
		Code:        strings.ToUpper(ns.Code),
		Description: ns.Description,
		Credits:     credits,
		Semester:    semester,
		IsActive:    &active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return svc.repo.CreateSubject(ctx, sub)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Subject, error) {
	return svc.repo.GetSubjectByID(ctx, id)
}

func (svc *Service) QueryActive(ctx context.Context) ([]Subject, error) {
	return svc.repo.QueryActiveSubjects(ctx)
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateSubject) (Subject, error) {
	sub := Subject{
		ID:          id,
		Name:        us.Name,
		Description: us.Description,
		Credits:     us.Credits,
		Semester:    us.Semester,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateSubject(ctx, sub, us.IsActive)
}

func (svc *Service) Deactivate(ctx context.Context, id string) error {
	inactive := false
	_, err := svc.repo.UpdateSubject(ctx, Subject{ID: id, UpdatedAt: time.Now().UTC()}, &inactive)
	return err
}
