package dummydb

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/attendance"
)

type attendanceRepository struct {
	db *attendanceTable
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db.attendance}
}

func cellKey(studentID, subjectID string, date time.Time) string {
	return fmt.Sprintf("%s|%s|%d", studentID, subjectID, date.UTC().Unix())
}

func matchesFilter(ev attendance.Event, filter attendance.Filter) bool {
	if filter.StudentID != "" && ev.StudentID != filter.StudentID {
		return false
	}
	if filter.SubjectID != "" && ev.SubjectID != filter.SubjectID {
		return false
	}
	if !filter.DateFrom.IsZero() && ev.Date.Before(filter.DateFrom) {
		return false
	}
	if !filter.DateTo.IsZero() && ev.Date.After(filter.DateTo) {
		return false
	}
	return true
}

func (repo *attendanceRepository) FilterEvents(ctx context.Context, filter attendance.Filter, exec ...core.DBExecutor) ([]attendance.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	events := make([]attendance.Event, 0)
	for _, ev := range repo.db.table {
		if matchesFilter(*ev, filter) {
			events = append(events, *ev)
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].Date.After(events[j].Date) })
	return events, nil
}

func (repo *attendanceRepository) UpsertEventBatch(
	ctx context.Context,
	subjectID string,
	date time.Time,
	entries []attendance.MarkEntry,
	markedBy string,
	exec ...core.DBExecutor,
) ([]attendance.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	now := time.Now().UTC()
	events := make([]attendance.Event, 0, len(entries))
	for _, entry := range entries {
		key := cellKey(entry.StudentID, subjectID, date)
		if id, ok := repo.db.byKey[key]; ok {
			ev := repo.db.table[id]
			ev.Status = entry.Status
			ev.MarkedBy = markedBy
			ev.Remarks = entry.Remarks
			ev.UpdatedAt = now
			events = append(events, *ev)
			continue
		}

		ev := attendance.Event{
			ID:        uuid.New().String(),
			StudentID: entry.StudentID,
			SubjectID: subjectID,
			Date:      date.UTC(),
			Status:    entry.Status,
			MarkedBy:  markedBy,
			Remarks:   entry.Remarks,
			CreatedAt: now,
			UpdatedAt: now,
		}
		repo.db.table[ev.ID] = &ev
		repo.db.byKey[key] = ev.ID
		events = append(events, ev)
	}
	return events, nil
}

func (repo *attendanceRepository) HasEventsOn(ctx context.Context, subjectID string, date time.Time, exec ...core.DBExecutor) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, ev := range repo.db.table {
		if ev.SubjectID == subjectID && ev.Date.Equal(date.UTC()) {
			return true, nil
		}
	}
	return false, nil
}

func (repo *attendanceRepository) GetEventByID(ctx context.Context, id string, exec ...core.DBExecutor) (attendance.Event, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if ev, ok := repo.db.table[id]; ok {
		return *ev, nil
	}
	return attendance.Event{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) UpdateEvent(ctx context.Context, ev attendance.Event, exec ...core.DBExecutor) (attendance.Event, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.table[ev.ID]
	if !ok {
		return attendance.Event{}, attendance.ErrNotFound
	}
	existing.Status = ev.Status
	existing.Remarks = ev.Remarks
	existing.EditHistory = ev.EditHistory
	existing.UpdatedAt = ev.UpdatedAt
	return *existing, nil
}

func (repo *attendanceRepository) CountsByStudent(ctx context.Context, filter attendance.Filter, exec ...core.DBExecutor) (map[string]attendance.Counts, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[string]attendance.Counts)
	for _, ev := range repo.db.table {
		if !matchesFilter(*ev, filter) {
			continue
		}
		c := counts[ev.StudentID]
		c.Total++
		switch ev.Status {
		case attendance.StatusPresent:
			c.Present++
		case attendance.StatusAbsent:
			c.Absent++
		case attendance.StatusLate:
			c.Late++
		}
		counts[ev.StudentID] = c
	}
	return counts, nil
}
