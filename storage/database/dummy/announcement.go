package dummydb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/announcement"
)

type announcementRepository struct {
	db *announcementTable
}

var _ announcement.Repository = (*announcementRepository)(nil) // interface compliance check

func NewAnnouncementRepository(db *DB) announcement.Repository {
	return &announcementRepository{db: db.announcement}
}

func (repo *announcementRepository) CreateAnnouncement(ctx context.Context, a announcement.Announcement, exec ...core.DBExecutor) (announcement.Announcement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = uuid.New().String()
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *announcementRepository) GetAnnouncementByID(ctx context.Context, id string, exec ...core.DBExecutor) (announcement.Announcement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return *a, nil
	}
	return announcement.Announcement{}, announcement.ErrNotFound
}

func (repo *announcementRepository) QueryActiveAnnouncements(ctx context.Context, filter announcement.Filter, exec ...core.DBExecutor) ([]announcement.Announcement, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	now := time.Now().UTC()
	announcements := make([]announcement.Announcement, 0)
	for _, a := range repo.db.table {
		if a.IsActive != nil && !*a.IsActive {
			continue
		}
		if !a.ExpiresAt.IsZero() && !a.ExpiresAt.After(now) {
			continue
		}
		// subject-scoped announcements only reach enrolled students
		if len(filter.SubjectIDs) > 0 && a.SubjectID != "" && !containsString(filter.SubjectIDs, a.SubjectID) {
			continue
		}
		announcements = append(announcements, *a)
	}
	sort.Slice(announcements, func(i, j int) bool { return announcements[i].CreatedAt.After(announcements[j].CreatedAt) })
	if filter.Limit > 0 && len(announcements) > filter.Limit {
		announcements = announcements[:filter.Limit]
	}
	return announcements, nil
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func (repo *announcementRepository) UpdateAnnouncement(ctx context.Context, a announcement.Announcement, isActive *bool, exec ...core.DBExecutor) (announcement.Announcement, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.table[a.ID]
	if !ok {
		return announcement.Announcement{}, announcement.ErrNotFound
	}
	if a.Title != "" {
		existing.Title = a.Title
	}
	if a.Content != "" {
		existing.Content = a.Content
	}
	if a.Priority != "" {
		existing.Priority = a.Priority
	}
	if !a.ExpiresAt.IsZero() {
		existing.ExpiresAt = a.ExpiresAt
	}
	if isActive != nil {
		existing.IsActive = isActive
	}
	existing.UpdatedAt = a.UpdatedAt
	return *existing, nil
}

func (repo *announcementRepository) CreateNote(ctx context.Context, n announcement.Note, exec ...core.DBExecutor) (announcement.Note, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n.ID = uuid.New().String()
	repo.db.notes[n.ID] = &n
	return n, nil
}

func (repo *announcementRepository) GetNoteByID(ctx context.Context, id string, exec ...core.DBExecutor) (announcement.Note, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if n, ok := repo.db.notes[id]; ok {
		return *n, nil
	}
	return announcement.Note{}, announcement.ErrNoteNotFound
}

func (repo *announcementRepository) QueryActiveNotes(ctx context.Context, subjectID string, exec ...core.DBExecutor) ([]announcement.Note, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	notes := make([]announcement.Note, 0)
	for _, n := range repo.db.notes {
		if n.IsActive != nil && !*n.IsActive {
			continue
		}
		if subjectID != "" && n.SubjectID != subjectID {
			continue
		}
		notes = append(notes, *n)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].CreatedAt.After(notes[j].CreatedAt) })
	return notes, nil
}

func (repo *announcementRepository) UpdateNote(ctx context.Context, n announcement.Note, isActive *bool, exec ...core.DBExecutor) (announcement.Note, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.notes[n.ID]
	if !ok {
		return announcement.Note{}, announcement.ErrNoteNotFound
	}
	if n.Title != "" {
		existing.Title = n.Title
	}
	if n.Description != "" {
		existing.Description = n.Description
	}
	if isActive != nil {
		existing.IsActive = isActive
	}
	existing.UpdatedAt = n.UpdatedAt
	return *existing, nil
}

func (repo *announcementRepository) IncrementNoteDownloads(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	n, ok := repo.db.notes[id]
	if !ok {
		return announcement.ErrNoteNotFound
	}
	n.Downloads++
	return nil
}
