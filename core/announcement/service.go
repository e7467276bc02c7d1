package announcement

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/subject"
)

var (
	ErrNotFound     = errors.New("announcement not found")
	ErrNoteNotFound = errors.New("note not found")
)

type (
	Repository interface {
		CreateAnnouncement(ctx context.Context, a Announcement, exec ...core.DBExecutor) (Announcement, error)
		GetAnnouncementByID(ctx context.Context, id string, exec ...core.DBExecutor) (Announcement, error)
		// QueryActiveAnnouncements returns unexpired active announcements,
		// newest first.
		QueryActiveAnnouncements(ctx context.Context, filter Filter, exec ...core.DBExecutor) ([]Announcement, error)
		UpdateAnnouncement(ctx context.Context, a Announcement, isActive *bool, exec ...core.DBExecutor) (Announcement, error)

		CreateNote(ctx context.Context, n Note, exec ...core.DBExecutor) (Note, error)
		GetNoteByID(ctx context.Context, id string, exec ...core.DBExecutor) (Note, error)
		// QueryActiveNotes returns active notes, newest first; subjectID
		// narrows to one subject when non-empty.
		QueryActiveNotes(ctx context.Context, subjectID string, exec ...core.DBExecutor) ([]Note, error)
		UpdateNote(ctx context.Context, n Note, isActive *bool, exec ...core.DBExecutor) (Note, error)
		// IncrementNoteDownloads bumps the download counter atomically.
		IncrementNoteDownloads(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	ServiceInterface interface {
		Create(ctx context.Context, na NewAnnouncement, createdBy string) (Announcement, error)
		QueryActive(ctx context.Context, filter Filter) ([]Announcement, error)
		Deactivate(ctx context.Context, id string) error

		CreateNote(ctx context.Context, nn NewNote, uploadedBy string) (Note, error)
		GetNoteByID(ctx context.Context, id string) (Note, error)
		QueryActiveNotes(ctx context.Context, subjectID string) ([]Note, error)
		RecordNoteDownload(ctx context.Context, id string) (Note, error)
		DeactivateNote(ctx context.Context, id string) error
	}

	Service struct {
		repo     Repository
		subjects subject.Repository
		notifier core.Notifier
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, subjects subject.Repository, notifier core.Notifier) *Service {
	return &Service{repo: repo, subjects: subjects, notifier: notifier}
}

func (svc *Service) Create(ctx context.Context, na NewAnnouncement, createdBy string) (Announcement, error) {
	if na.SubjectID != "" {
		if _, err := svc.subjects.GetSubjectByID(ctx, na.SubjectID); err != nil {
			if errors.Cause(err) == subject.ErrNotFound {
				return Announcement{}, core.NewValidationError(err, core.FieldError{Field: "subject_id", Error: err.Error()})
			}
			return Announcement{}, errors.Wrap(err, "resolving subject")
		}
	}

	now := time.Now().UTC()
	priority := na.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	active := true
	a := Announcement{
		Title:     na.Title,
		Content:   na.Content,
		SubjectID: na.SubjectID,
		Priority:  priority,
		CreatedBy: createdBy,
		IsActive:  &active,
		ExpiresAt: na.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	a, err := svc.repo.CreateAnnouncement(ctx, a)
	if err != nil {
		return Announcement{}, errors.Wrap(err, "creating announcement")
	}

	svc.notifier.Broadcast(core.EventNewAnnouncement, a)
	return a, nil
}

func (svc *Service) QueryActive(ctx context.Context, filter Filter) ([]Announcement, error) {
	return svc.repo.QueryActiveAnnouncements(ctx, filter)
}

func (svc *Service) Deactivate(ctx context.Context, id string) error {
	inactive := false
	_, err := svc.repo.UpdateAnnouncement(ctx, Announcement{ID: id, UpdatedAt: time.Now().UTC()}, &inactive)
	return err
}

func (svc *Service) CreateNote(ctx context.Context, nn NewNote, uploadedBy string) (Note, error) {
	if _, err := svc.subjects.GetSubjectByID(ctx, nn.SubjectID); err != nil {
		if errors.Cause(err) == subject.ErrNotFound {
			return Note{}, core.NewValidationError(err, core.FieldError{Field: "subject_id", Error: err.Error()})
		}
		return Note{}, errors.Wrap(err, "resolving subject")
	}

	now := time.Now().UTC()
	active := true
	n := Note{
		Title:       nn.Title,
		Description: nn.Description,
		SubjectID:   nn.SubjectID,
		UploadedBy:  uploadedBy,
		IsActive:    &active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	n, err := svc.repo.CreateNote(ctx, n)
	if err != nil {
		return Note{}, errors.Wrap(err, "creating note")
	}

	svc.notifier.Broadcast(core.EventNewNote, n)
	return n, nil
}

func (svc *Service) GetNoteByID(ctx context.Context, id string) (Note, error) {
	return svc.repo.GetNoteByID(ctx, id)
}

func (svc *Service) QueryActiveNotes(ctx context.Context, subjectID string) ([]Note, error) {
	return svc.repo.QueryActiveNotes(ctx, subjectID)
}

func (svc *Service) RecordNoteDownload(ctx context.Context, id string) (Note, error) {
	if err := svc.repo.IncrementNoteDownloads(ctx, id); err != nil {
		return Note{}, err
	}
	return svc.repo.GetNoteByID(ctx, id)
}

func (svc *Service) DeactivateNote(ctx context.Context, id string) error {
	inactive := false
	_, err := svc.repo.UpdateNote(ctx, Note{ID: id, UpdatedAt: time.Now().UTC()}, &inactive)
	return err
}
