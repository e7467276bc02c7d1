package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/attendance"
)

type attendanceRepository struct {
	repoBase
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{repoBase{db: db}}
}

type attendanceEventRow struct {
	ID          string      `db:"id"`
	StudentID   string      `db:"student_id"`
	SubjectID   string      `db:"subject_id"`
	Date        time.Time   `db:"date"`
	Status      string      `db:"status"`
	MarkedBy    null.String `db:"marked_by"`
	Remarks     null.String `db:"remarks"`
	EditHistory []byte      `db:"edit_history"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

func (repo attendanceRepository) unrow(r attendanceEventRow) (attendance.Event, error) {
	ev := attendance.Event{
		ID:        r.ID,
		StudentID: r.StudentID,
		SubjectID: r.SubjectID,
		Date:      r.Date.UTC(),
		Status:    r.Status,
		MarkedBy:  r.MarkedBy.String,
		Remarks:   r.Remarks.String,
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
	if len(r.EditHistory) > 0 {
		if err := json.Unmarshal(r.EditHistory, &ev.EditHistory); err != nil {
			return attendance.Event{}, errors.Wrap(err, "decoding edit history")
		}
	}
	return ev, nil
}

func (repo attendanceRepository) unrowSlice(rows []attendanceEventRow) ([]attendance.Event, error) {
	events := make([]attendance.Event, 0, len(rows))
	for _, r := range rows {
		ev, err := repo.unrow(r)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// trapNoRowsErr maps psql "no rows" err to attendance.ErrNotFound
func (repo attendanceRepository) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return attendance.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func filterConds(filter attendance.Filter) ([]string, []interface{}) {
	var conds []string
	var args []interface{}
	if filter.StudentID != "" {
		conds = append(conds, `student_id = ?`)
		args = append(args, filter.StudentID)
	}
	if filter.SubjectID != "" {
		conds = append(conds, `subject_id = ?`)
		args = append(args, filter.SubjectID)
	}
	if !filter.DateFrom.IsZero() {
		conds = append(conds, `date >= ?`)
		args = append(args, filter.DateFrom.UTC())
	}
	if !filter.DateTo.IsZero() {
		conds = append(conds, `date <= ?`)
		args = append(args, filter.DateTo.UTC())
	}
	return conds, args
}

func (repo attendanceRepository) FilterEvents(ctx context.Context, filter attendance.Filter, exec ...core.DBExecutor) ([]attendance.Event, error) {
	q := `SELECT * FROM attendance_event`
	conds, args := filterConds(filter)
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` ORDER BY date DESC`

	var rows []attendanceEventRow
	if err := sqlx.SelectContext(ctx, repo.ext(exec), &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance events")
	}
	return repo.unrowSlice(rows)
}

// UpsertEventBatch writes all cells in one transaction. A conflicting cell
// keeps its id, edit history and creation time; only the marking fields move.
func (repo attendanceRepository) UpsertEventBatch(
	ctx context.Context,
	subjectID string,
	date time.Time,
	entries []attendance.MarkEntry,
	markedBy string,
	exec ...core.DBExecutor,
) ([]attendance.Event, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q := `
		INSERT INTO attendance_event (id, student_id, subject_id, date, status, marked_by, remarks,
		                              edit_history, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, '[]', $8, $8)
		ON CONFLICT (student_id, subject_id, date) DO UPDATE
			SET status     = EXCLUDED.status,
			    marked_by  = EXCLUDED.marked_by,
			    remarks    = EXCLUDED.remarks,
			    updated_at = EXCLUDED.updated_at
		RETURNING *`

	now := time.Now().UTC()
	events := make([]attendance.Event, 0, len(entries))
	for _, entry := range entries {
		var r attendanceEventRow
		err = sqlx.GetContext(ctx, tx, &r, q,
			uuid.New().String(), entry.StudentID, subjectID, date.UTC(), entry.Status,
			null.NewString(markedBy, markedBy != ""), null.NewString(entry.Remarks, entry.Remarks != ""), now)
		if err != nil {
			return nil, errors.Wrap(err, "upserting attendance event")
		}
		ev, err := repo.unrow(r)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err = tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "committing transaction")
	}
	return events, nil
}

func (repo attendanceRepository) HasEventsOn(ctx context.Context, subjectID string, date time.Time, exec ...core.DBExecutor) (bool, error) {
	var exists bool
	q := `SELECT EXISTS (SELECT 1 FROM attendance_event WHERE subject_id = $1 AND date = $2)`
	if err := sqlx.GetContext(ctx, repo.ext(exec), &exists, q, subjectID, date.UTC()); err != nil {
		return false, errors.Wrap(err, "checking attendance events")
	}
	return exists, nil
}

func (repo attendanceRepository) GetEventByID(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Event, error) {
	var r attendanceEventRow
	if err := sqlx.GetContext(ctx, repo.ext(exec), &r, `SELECT * FROM attendance_event WHERE id = $1`, id); err != nil {
		return attendance.Event{}, repo.trapNoRowsErr(err, "getting attendance event")
	}
	return repo.unrow(r)
}

func (repo attendanceRepository) UpdateEvent(ctx context.Context, ev attendance.Event, exec ...core.DBExecutor) (attendance.Event, error) {
	history, err := json.Marshal(ev.EditHistory)
	if err != nil {
		return attendance.Event{}, errors.Wrap(err, "encoding edit history")
	}

	q := `
		UPDATE attendance_event
		SET status = $1, remarks = $2, edit_history = $3, updated_at = $4
		WHERE id = $5
		RETURNING *`

	var r attendanceEventRow
	err = sqlx.GetContext(ctx, repo.ext(exec), &r, q,
		ev.Status, null.NewString(ev.Remarks, ev.Remarks != ""), history, ev.UpdatedAt.UTC(), ev.ID)
	if err != nil {
		return attendance.Event{}, repo.trapNoRowsErr(err, "updating attendance event")
	}
	return repo.unrow(r)
}

func (repo attendanceRepository) CountsByStudent(ctx context.Context, filter attendance.Filter, exec ...core.DBExecutor) (map[string]attendance.Counts, error) {
	q := `
		SELECT student_id,
		       COUNT(*)                                   AS total,
		       COUNT(*) FILTER (WHERE status = 'present') AS present,
		       COUNT(*) FILTER (WHERE status = 'absent')  AS absent,
		       COUNT(*) FILTER (WHERE status = 'late')    AS late
		FROM attendance_event`
	conds, args := filterConds(filter)
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	q += ` GROUP BY student_id`

	var rows []struct {
		StudentID string `db:"student_id"`
		Total     int    `db:"total"`
		Present   int    `db:"present"`
		Absent    int    `db:"absent"`
		Late      int    `db:"late"`
	}
	if err := sqlx.SelectContext(ctx, repo.ext(exec), &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "grouping attendance counts")
	}

	counts := make(map[string]attendance.Counts, len(rows))
	for _, r := range rows {
		counts[r.StudentID] = attendance.Counts{
			Total:   r.Total,
			Present: r.Present,
			Absent:  r.Absent,
			Late:    r.Late,
		}
	}
	return counts, nil
}
