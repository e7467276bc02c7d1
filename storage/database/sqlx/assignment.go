package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/assignment"
)

type assignmentRepository struct {
	repoBase
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *sqlx.DB) *assignmentRepository {
	return &assignmentRepository{repoBase{db: db}}
}

type assignmentRow struct {
	ID          string      `db:"id"`
	Title       null.String `db:"title"`
	Description null.String `db:"description"`
	SubjectID   string      `db:"subject_id"`
	DueDate     time.Time   `db:"due_date"`
	TotalMarks  null.Int    `db:"total_marks"`
	CreatedBy   null.String `db:"created_by"`
	IsActive    null.Bool   `db:"is_active"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

type submissionRow struct {
	ID           string       `db:"id"`
	AssignmentID string       `db:"assignment_id"`
	StudentID    string       `db:"student_id"`
	Comments     null.String  `db:"comments"`
	Status       string       `db:"status"`
	Marks        null.Float64 `db:"marks"`
	Feedback     null.String  `db:"feedback"`
	SubmittedAt  time.Time    `db:"submitted_at"`
	GradedAt     null.Time    `db:"graded_at"`
	GradedBy     null.String  `db:"graded_by"`
}

func (repo assignmentRepository) unrow(r assignmentRow) assignment.Assignment {
	return assignment.Assignment{
		ID:          r.ID,
		Title:       r.Title.String,
		Description: r.Description.String,
		SubjectID:   r.SubjectID,
		DueDate:     r.DueDate.UTC(),
		TotalMarks:  r.TotalMarks.Int,
		CreatedBy:   r.CreatedBy.String,
		IsActive:    r.IsActive.Ptr(),
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

func (repo assignmentRepository) unrowSubmission(r submissionRow) assignment.Submission {
	return assignment.Submission{
		ID:           r.ID,
		AssignmentID: r.AssignmentID,
		StudentID:    r.StudentID,
		Comments:     r.Comments.String,
		Status:       r.Status,
		Marks:        r.Marks.Ptr(),
		Feedback:     r.Feedback.String,
		SubmittedAt:  r.SubmittedAt.UTC(),
		GradedAt:     r.GradedAt.Time,
		GradedBy:     r.GradedBy.String,
	}
}

func (repo assignmentRepository) unrowSubmissionSlice(rows []submissionRow) []assignment.Submission {
	submissions := make([]assignment.Submission, 0, len(rows))
	for _, r := range rows {
		submissions = append(submissions, repo.unrowSubmission(r))
	}
	return submissions
}

// trapNoRowsErr maps psql "no rows" err to the package sentinel
func (repo assignmentRepository) trapNoRowsErr(err, sentinel error, msg string) error {
	if err == sql.ErrNoRows {
		return sentinel
	}
	return errors.Wrap(err, msg)
}

func (repo assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	a.ID = uuid.New().String()
	q := `
		INSERT INTO assignment (id, title, description, subject_id, due_date, total_marks, created_by,
		                        is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.ext(exec).ExecContext(ctx, q,
		a.ID, a.Title, null.NewString(a.Description, a.Description != ""), a.SubjectID, a.DueDate.UTC(),
		a.TotalMarks, null.NewString(a.CreatedBy, a.CreatedBy != ""), a.IsActive, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return assignment.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo assignmentRepository) GetAssignmentByID(ctx context.Context, id string, exec ...core.DBExecutor) (assignment.Assignment, error) {
	var r assignmentRow
	if err := sqlx.GetContext(ctx, repo.ext(exec), &r, `SELECT * FROM assignment WHERE id = $1`, id); err != nil {
		return assignment.Assignment{}, repo.trapNoRowsErr(err, assignment.ErrNotFound, "getting assignment")
	}
	return repo.unrow(r), nil
}

func (repo assignmentRepository) QueryActiveAssignments(ctx context.Context, subjectID string, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	q := `SELECT * FROM assignment WHERE is_active`
	var args []interface{}
	if subjectID != "" {
		q += ` AND subject_id = $1`
		args = append(args, subjectID)
	}
	q += ` ORDER BY created_at DESC`

	var rows []assignmentRow
	if err := sqlx.SelectContext(ctx, repo.ext(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	assignments := make([]assignment.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, repo.unrow(r))
	}
	return assignments, nil
}

func (repo assignmentRepository) CountActiveAssignments(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var count int
	q := `SELECT COUNT(*) FROM assignment WHERE is_active`
	if err := sqlx.GetContext(ctx, repo.ext(exec), &count, q); err != nil {
		return 0, errors.Wrap(err, "counting assignments")
	}
	return count, nil
}

func (repo assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment, isActive *bool, exec ...core.DBExecutor) (assignment.Assignment, error) {
	sets := []string{`updated_at = ?`}
	args := []interface{}{a.UpdatedAt.UTC()}

	if a.Title != "" {
		sets = append(sets, `title = ?`)
		args = append(args, a.Title)
	}
	if a.Description != "" {
		sets = append(sets, `description = ?`)
		args = append(args, a.Description)
	}
	if !a.DueDate.IsZero() {
		sets = append(sets, `due_date = ?`)
		args = append(args, a.DueDate.UTC())
	}
	if a.TotalMarks != 0 {
		sets = append(sets, `total_marks = ?`)
		args = append(args, a.TotalMarks)
	}
	if isActive != nil {
		sets = append(sets, `is_active = ?`)
		args = append(args, *isActive)
	}

	q := `UPDATE assignment SET ` + strings.Join(sets, `, `) + ` WHERE id = ? RETURNING *`
	args = append(args, a.ID)

	var r assignmentRow
	if err := sqlx.GetContext(ctx, repo.ext(exec), &r, repo.db.Rebind(q), args...); err != nil {
		return assignment.Assignment{}, repo.trapNoRowsErr(err, assignment.ErrNotFound, "updating assignment")
	}
	return repo.unrow(r), nil
}

// UpsertSubmission keeps one row per (assignment, student); the conflict path
// overwrites the marking fields and resets any previous grade.
func (repo assignmentRepository) UpsertSubmission(ctx context.Context, s assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	q := `
		INSERT INTO submission (id, assignment_id, student_id, comments, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (assignment_id, student_id) DO UPDATE
			SET comments     = EXCLUDED.comments,
			    status       = EXCLUDED.status,
			    submitted_at = EXCLUDED.submitted_at,
			    marks        = NULL,
			    feedback     = NULL,
			    graded_at    = NULL,
			    graded_by    = NULL
		RETURNING *`

	var r submissionRow
	err := sqlx.GetContext(ctx, repo.ext(exec), &r, q,
		uuid.New().String(), s.AssignmentID, s.StudentID,
		null.NewString(s.Comments, s.Comments != ""), s.Status, s.SubmittedAt.UTC())
	if err != nil {
		return assignment.Submission{}, errors.Wrap(err, "upserting submission")
	}
	return repo.unrowSubmission(r), nil
}

func (repo assignmentRepository) GetSubmissionByID(ctx context.Context, id string, exec ...core.DBExecutor) (assignment.Submission, error) {
	var r submissionRow
	if err := sqlx.GetContext(ctx, repo.ext(exec), &r, `SELECT * FROM submission WHERE id = $1`, id); err != nil {
		return assignment.Submission{}, repo.trapNoRowsErr(err, assignment.ErrSubmissionNotFound, "getting submission")
	}
	return repo.unrowSubmission(r), nil
}

func (repo assignmentRepository) FilterSubmissions(ctx context.Context, filter assignment.SubmissionFilter, exec ...core.DBExecutor) ([]assignment.Submission, error) {
	q := `SELECT * FROM submission`
	var conds []string
	var args []interface{}
	if filter.AssignmentID != "" {
		conds = append(conds, `assignment_id = ?`)
		args = append(args, filter.AssignmentID)
	}
	if filter.StudentID != "" {
		conds = append(conds, `student_id = ?`)
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conds = append(conds, `status = ?`)
		args = append(args, filter.Status)
	}
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` ORDER BY submitted_at DESC`

	var rows []submissionRow
	if err := sqlx.SelectContext(ctx, repo.ext(exec), &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}
	return repo.unrowSubmissionSlice(rows), nil
}

func (repo assignmentRepository) UpdateSubmission(ctx context.Context, s assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	q := `
		UPDATE submission
		SET comments = $1, status = $2, marks = $3, feedback = $4, graded_at = $5, graded_by = $6
		WHERE id = $7
		RETURNING *`

	var r submissionRow
	err := sqlx.GetContext(ctx, repo.ext(exec), &r, q,
		null.NewString(s.Comments, s.Comments != ""), s.Status, null.Float64FromPtr(s.Marks),
		null.NewString(s.Feedback, s.Feedback != ""), null.NewTime(s.GradedAt.UTC(), !s.GradedAt.IsZero()),
		null.NewString(s.GradedBy, s.GradedBy != ""), s.ID)
	if err != nil {
		return assignment.Submission{}, repo.trapNoRowsErr(err, assignment.ErrSubmissionNotFound, "updating submission")
	}
	return repo.unrowSubmission(r), nil
}

func (repo assignmentRepository) CountSubmissions(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var count int
	q := `SELECT COUNT(*) FROM submission`
	if err := sqlx.GetContext(ctx, repo.ext(exec), &count, q); err != nil {
		return 0, errors.Wrap(err, "counting submissions")
	}
	return count, nil
}

func (repo assignmentRepository) RecentSubmissions(ctx context.Context, limit int, exec ...core.DBExecutor) ([]assignment.Submission, error) {
	var rows []submissionRow
	q := `SELECT * FROM submission ORDER BY submitted_at DESC LIMIT $1`
	if err := sqlx.SelectContext(ctx, repo.ext(exec), &rows, q, limit); err != nil {
		return nil, errors.Wrap(err, "querying recent submissions")
	}
	return repo.unrowSubmissionSlice(rows), nil
}

func (repo assignmentRepository) CountSubmissionsByAssignment(ctx context.Context, exec ...core.DBExecutor) (map[string]int, error) {
	q := `
		SELECT s.assignment_id, COUNT(*) AS count
		FROM submission s
		         JOIN assignment a ON a.id = s.assignment_id
		WHERE a.is_active
		GROUP BY s.assignment_id`

	var rows []struct {
		AssignmentID string `db:"assignment_id"`
		Count        int    `db:"count"`
	}
	if err := sqlx.SelectContext(ctx, repo.ext(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "grouping submission counts")
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.AssignmentID] = r.Count
	}
	return counts, nil
}
