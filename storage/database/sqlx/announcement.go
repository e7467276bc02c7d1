package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/announcement"
)

type announcementRepository struct {
	repoBase
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *sqlx.DB) *announcementRepository {
	return &announcementRepository{repoBase{db: db}}
}

type announcementRow struct {
	ID        string      `db:"id"`
	Title     null.String `db:"title"`
	Content   null.String `db:"content"`
	SubjectID null.String `db:"subject_id"`
	Priority  null.String `db:"priority"`
	CreatedBy null.String `db:"created_by"`
	IsActive  null.Bool   `db:"is_active"`
	ExpiresAt null.Time   `db:"expires_at"`
	CreatedAt null.Time   `db:"created_at"`
	UpdatedAt null.Time   `db:"updated_at"`
}

type noteRow struct {
	ID          string      `db:"id"`
	Title       null.String `db:"title"`
	Description null.String `db:"description"`
	SubjectID   string      `db:"subject_id"`
	UploadedBy  null.String `db:"uploaded_by"`
	Downloads   null.Int    `db:"downloads"`
	IsActive    null.Bool   `db:"is_active"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

func (repo announcementRepository) unrow(r announcementRow) announcement.Announcement {
	return announcement.Announcement{
		ID:        r.ID,
		Title:     r.Title.String,
		Content:   r.Content.String,
		SubjectID: r.SubjectID.String,
		Priority:  r.Priority.String,
		CreatedBy: r.CreatedBy.String,
		IsActive:  r.IsActive.Ptr(),
		ExpiresAt: r.ExpiresAt.Time,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

func (repo announcementRepository) unrowNote(r noteRow) announcement.Note {
	return announcement.Note{
		ID:          r.ID,
		Title:       r.Title.String,
		Description: r.Description.String,
		SubjectID:   r.SubjectID,
		UploadedBy:  r.UploadedBy.String,
		Downloads:   r.Downloads.Int,
		IsActive:    r.IsActive.Ptr(),
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to the package sentinel
func (repo announcementRepository) trapNoRowsErr(err, sentinel error, msg string) error {
	if err == sql.ErrNoRows {
		return sentinel
	}
	return errors.Wrap(err, msg)
}

func (repo announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement, exec ...core.DBExecutor) (announcement.Announcement, error) {
	a.ID = uuid.New().String()
	q := `
		INSERT INTO announcement (id, title, content, subject_id, priority, created_by, is_active,
		                          expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.ext(exec).ExecContext(ctx, q,
		a.ID, a.Title, a.Content, null.NewString(a.SubjectID, a.SubjectID != ""), a.Priority,
		null.NewString(a.CreatedBy, a.CreatedBy != ""), a.IsActive,
		null.NewTime(a.ExpiresAt.UTC(), !a.ExpiresAt.IsZero()), a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return announcement.Announcement{}, errors.Wrap(err, "inserting announcement")
	}
	return a, nil
}

func (repo announcementRepository) GetAnnouncementByID(ctx context.Context, id string, exec ...core.DBExecutor) (announcement.Announcement, error) {
	var r announcementRow
	if err := sqlx.GetContext(ctx, repo.ext(exec), &r, `SELECT * FROM announcement WHERE id = $1`, id); err != nil {
		return announcement.Announcement{}, repo.trapNoRowsErr(err, announcement.ErrNotFound, "getting announcement")
	}
	return repo.unrow(r), nil
}

func (repo announcementRepository) QueryActiveAnnouncements(ctx context.Context, filter announcement.Filter, exec ...core.DBExecutor) ([]announcement.Announcement, error) {
	q := `
		SELECT * FROM announcement
		WHERE is_active AND (expires_at IS NULL OR expires_at > ?)`
	args := []interface{}{time.Now().UTC()}

	// campus-wide announcements reach everyone regardless of enrollment
	if len(filter.SubjectIDs) > 0 {
		q += ` AND (subject_id IS NULL OR subject_id = ANY(?))`
		args = append(args, pq.Array(filter.SubjectIDs))
	}
	q += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		q += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	var rows []announcementRow
	if err := sqlx.SelectContext(ctx, repo.ext(exec), &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying announcements")
	}
	announcements := make([]announcement.Announcement, 0, len(rows))
	for _, r := range rows {
		announcements = append(announcements, repo.unrow(r))
	}
	return announcements, nil
}

func (repo announcementRepository) UpdateAnnouncement(ctx context.Context, a announcement.Announcement, isActive *bool, exec ...core.DBExecutor) (announcement.Announcement, error) {
	sets := []string{`updated_at = ?`}
	args := []interface{}{a.UpdatedAt.UTC()}

	if a.Title != "" {
		sets = append(sets, `title = ?`)
		args = append(args, a.Title)
	}
	if a.Content != "" {
		sets = append(sets, `content = ?`)
		args = append(args, a.Content)
	}
	if a.Priority != "" {
		sets = append(sets, `priority = ?`)
		args = append(args, a.Priority)
	}
	if !a.ExpiresAt.IsZero() {
		sets = append(sets, `expires_at = ?`)
		args = append(args, a.ExpiresAt.UTC())
	}
	if isActive != nil {
		sets = append(sets, `is_active = ?`)
		args = append(args, *isActive)
	}

	q := `UPDATE announcement SET ` + strings.Join(sets, `, `) + ` WHERE id = ? RETURNING *`
	args = append(args, a.ID)

	var r announcementRow
	if err := sqlx.GetContext(ctx, repo.ext(exec), &r, repo.db.Rebind(q), args...); err != nil {
		return announcement.Announcement{}, repo.trapNoRowsErr(err, announcement.ErrNotFound, "updating announcement")
	}
	return repo.unrow(r), nil
}

func (repo announcementRepository) CreateNote(ctx context.Context, n announcement.Note, exec ...core.DBExecutor) (announcement.Note, error) {
	n.ID = uuid.New().String()
	q := `
		INSERT INTO note (id, title, description, subject_id, uploaded_by, downloads, is_active,
		                  created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, $6, $7, $8)`
	_, err := repo.ext(exec).ExecContext(ctx, q,
		n.ID, n.Title, null.NewString(n.Description, n.Description != ""), n.SubjectID,
		null.NewString(n.UploadedBy, n.UploadedBy != ""), n.IsActive, n.CreatedAt.UTC(), n.UpdatedAt.UTC())
	if err != nil {
		return announcement.Note{}, errors.Wrap(err, "inserting note")
	}
	return n, nil
}

func (repo announcementRepository) GetNoteByID(ctx context.Context, id string, exec ...core.DBExecutor) (announcement.Note, error) {
	var r noteRow
	if err := sqlx.GetContext(ctx, repo.ext(exec), &r, `SELECT * FROM note WHERE id = $1`, id); err != nil {
		return announcement.Note{}, repo.trapNoRowsErr(err, announcement.ErrNoteNotFound, "getting note")
	}
	return repo.unrowNote(r), nil
}

func (repo announcementRepository) QueryActiveNotes(ctx context.Context, subjectID string, exec ...core.DBExecutor) ([]announcement.Note, error) {
	q := `SELECT * FROM note WHERE is_active`
	var args []interface{}
	if subjectID != "" {
		q += ` AND subject_id = $1`
		args = append(args, subjectID)
	}
	q += ` ORDER BY created_at DESC`

	var rows []noteRow
	if err := sqlx.SelectContext(ctx, repo.ext(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying notes")
	}
	notes := make([]announcement.Note, 0, len(rows))
	for _, r := range rows {
		notes = append(notes, repo.unrowNote(r))
	}
	return notes, nil
}

func (repo announcementRepository) UpdateNote(ctx context.Context, n announcement.Note, isActive *bool, exec ...core.DBExecutor) (announcement.Note, error) {
	sets := []string{`updated_at = ?`}
	args := []interface{}{n.UpdatedAt.UTC()}

	if n.Title != "" {
		sets = append(sets, `title = ?`)
		args = append(args, n.Title)
	}
	if n.Description != "" {
		sets = append(sets, `description = ?`)
		args = append(args, n.Description)
	}
	if isActive != nil {
		sets = append(sets, `is_active = ?`)
		args = append(args, *isActive)
	}

	q := `UPDATE note SET ` + strings.Join(sets, `, `) + ` WHERE id = ? RETURNING *`
	args = append(args, n.ID)

	var r noteRow
	if err := sqlx.GetContext(ctx, repo.ext(exec), &r, repo.db.Rebind(q), args...); err != nil {
		return announcement.Note{}, repo.trapNoRowsErr(err, announcement.ErrNoteNotFound, "updating note")
	}
	return repo.unrowNote(r), nil
}

func (repo announcementRepository) IncrementNoteDownloads(ctx context.Context, id string, exec ...core.DBExecutor) error {
	q := `UPDATE note SET downloads = downloads + 1 WHERE id = $1`
	if _, err := repo.ext(exec).ExecContext(ctx, q, id); err != nil {
		return errors.Wrap(err, "incrementing note downloads")
	}
	return nil
}
