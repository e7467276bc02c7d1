package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/subject"
)

type subjectRepository struct {
	repoBase
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *sqlx.DB) *subjectRepository {
	return &subjectRepository{repoBase{db: db}}
}

type subjectRow struct {
	ID            string      `db:"id"`
	Name          null.String `db:"name"`
	Code          null.String `db:"code"`
	Description   null.String `db:"description"`
	Credits       null.Int    `db:"credits"`
	Semester      null.Int    `db:"semester"`
	TotalLectures null.Int    `db:"total_lectures"`
	IsActive      null.Bool   `db:"is_active"`
	CreatedAt     null.Time   `db:"created_at"`
	UpdatedAt     null.Time   `db:"updated_at"`
}

func (repo subjectRepository) row(sub subject.Subject) subjectRow {
	return subjectRow{
		ID:            sub.ID,
		Name:          null.NewString(sub.Name, sub.Name != ""),
		Code:          null.NewString(sub.Code, sub.Code != ""),
		Description:   null.NewString(sub.Description, sub.Description != ""),
		Credits:       null.NewInt(sub.Credits, sub.Credits != 0),
		Semester:      null.NewInt(sub.Semester, sub.Semester != 0),
		TotalLectures: null.IntFrom(sub.TotalLectures),
		IsActive:      null.BoolFromPtr(sub.IsActive),
		CreatedAt:     null.NewTime(sub.CreatedAt.UTC(), !sub.CreatedAt.IsZero()),
		UpdatedAt:     null.NewTime(sub.UpdatedAt.UTC(), !sub.UpdatedAt.IsZero()),
	}
}

func (repo subjectRepository) unrow(r subjectRow) subject.Subject {
	return subject.Subject{
		ID:            r.ID,
		Name:          r.Name.String,
		Code:          r.Code.String,
		Description:   r.Description.String,
		Credits:       r.Credits.Int,
		Semester:      r.Semester.Int,
		TotalLectures: r.TotalLectures.Int,
		IsActive:      r.IsActive.Ptr(),
		CreatedAt:     r.CreatedAt.Time,
		UpdatedAt:     r.UpdatedAt.Time,
	}
}

// trapNoRowsErr maps psql "no rows" err to subject.ErrNotFound
func (repo subjectRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return subject.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo subjectRepository) CheckSubjectCodeUniqueness(ctx context.Context, code string, exec ...core.DBExecutor) error {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM subject WHERE code = $1)`
	if err := sqlx.GetContext(ctx, repo.ext(exec), &exists, q, code); err != nil {
		return errors.Wrap(err, "checking subject uniqueness")
	}
	if exists {
		return subject.ErrCodeExists
	}
	return nil
}

func (repo subjectRepository) CreateSubject(ctx context.Context, sub subject.Subject, exec ...core.DBExecutor) (subject.Subject, error) {
	sub.ID = uuid.New().String()
	r := repo.row(sub)
	q := `
		INSERT INTO subject (id, name, code, description, credits, semester, total_lectures, is_active,
		                     created_at, updated_at)
		VALUES (:id, :name, :code, :description, :credits, :semester, :total_lectures, :is_active,
		        :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, repo.ext(exec), q, r); err != nil {
		return subject.Subject{}, errors.Wrap(err, "inserting subject")
	}
	return sub, nil
}

func (repo subjectRepository) GetSubjectByID(ctx context.Context, id string, exec ...core.DBExecutor) (subject.Subject, error) {
	var r subjectRow
	if err := sqlx.GetContext(ctx, repo.ext(exec), &r, `SELECT * FROM subject WHERE id = $1`, id); err != nil {
		return subject.Subject{}, repo.trapNoRowsErr(err, "getting subject")
	}
	return repo.unrow(r), nil
}

func (repo subjectRepository) QueryActiveSubjects(ctx context.Context, exec ...core.DBExecutor) ([]subject.Subject, error) {
	var rows []subjectRow
	q := `SELECT * FROM subject WHERE is_active ORDER BY code ASC`
	if err := sqlx.SelectContext(ctx, repo.ext(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]subject.Subject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, repo.unrow(r))
	}
	return subjects, nil
}

func (repo subjectRepository) CountActiveSubjects(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var count int
	q := `SELECT COUNT(*) FROM subject WHERE is_active`
	if err := sqlx.GetContext(ctx, repo.ext(exec), &count, q); err != nil {
		return 0, errors.Wrap(err, "counting subjects")
	}
	return count, nil
}

func (repo subjectRepository) UpdateSubject(ctx context.Context, sub subject.Subject, isActive *bool, exec ...core.DBExecutor) (subject.Subject, error) {
	sets := []string{`updated_at = ?`}
	args := []interface{}{sub.UpdatedAt.UTC()}

	if sub.Name != "" {
		sets = append(sets, `name = ?`)
		args = append(args, sub.Name)
	}
	if sub.Description != "" {
		sets = append(sets, `description = ?`)
		args = append(args, sub.Description)
	}
	if sub.Credits != 0 {
		sets = append(sets, `credits = ?`)
		args = append(args, sub.Credits)
	}
	if sub.Semester != 0 {
		sets = append(sets, `semester = ?`)
		args = append(args, sub.Semester)
	}
	if isActive != nil {
		sets = append(sets, `is_active = ?`)
		args = append(args, *isActive)
	}

	q := `UPDATE subject SET ` + strings.Join(sets, `, `) + ` WHERE id = ? RETURNING *`
	args = append(args, sub.ID)

	var r subjectRow
	if err := sqlx.GetContext(ctx, repo.ext(exec), &r, repo.db.Rebind(q), args...); err != nil {
		return subject.Subject{}, repo.trapNoRowsErr(err, "updating subject")
	}
	return repo.unrow(r), nil
}

func (repo subjectRepository) IncrementLectureCount(ctx context.Context, id string, exec ...core.DBExecutor) error {
	q := `UPDATE subject SET total_lectures = total_lectures + 1 WHERE id = $1`
	if _, err := repo.ext(exec).ExecContext(ctx, q, id); err != nil {
		return errors.Wrap(err, "incrementing lecture count")
	}
	return nil
}
