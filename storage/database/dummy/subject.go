package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/subject"
)

type subjectRepository struct {
	db *subjectTable
}

var _ subject.Repository = (*subjectRepository)(nil) // interface compliance check

func NewSubjectRepository(db *DB) subject.Repository {
	return &subjectRepository{db: db.subject}
}

func (repo *subjectRepository) query() []subject.Subject {
	subjects := make([]subject.Subject, 0, len(repo.db.table))
	for _, sub := range repo.db.table {
		subjects = append(subjects, *sub)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].Code < subjects[j].Code })
	return subjects
}

func (repo *subjectRepository) CheckSubjectCodeUniqueness(ctx context.Context, code string, exec ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, sub := range repo.db.table {
		if sub.Code == code {
			return subject.ErrCodeExists
		}
	}
	return nil
}

func (repo *subjectRepository) CreateSubject(ctx context.Context, sub subject.Subject, exec ...core.DBExecutor) (subject.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	sub.ID = uuid.New().String()
	repo.db.table[sub.ID] = &sub
	return sub, nil
}

func (repo *subjectRepository) GetSubjectByID(ctx context.Context, id string, exec ...core.DBExecutor) (subject.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if sub, ok := repo.db.table[id]; ok {
		return *sub, nil
	}
	return subject.Subject{}, subject.ErrNotFound
}

func (repo *subjectRepository) QueryActiveSubjects(ctx context.Context, exec ...core.DBExecutor) ([]subject.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subjects := make([]subject.Subject, 0)
	for _, sub := range repo.query() {
		if sub.IsActive == nil || *sub.IsActive {
			subjects = append(subjects, sub)
		}
	}
	return subjects, nil
}

func (repo *subjectRepository) CountActiveSubjects(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	subjects, _ := repo.QueryActiveSubjects(ctx)
	return len(subjects), nil
}

func (repo *subjectRepository) UpdateSubject(ctx context.Context, sub subject.Subject, isActive *bool, exec ...core.DBExecutor) (subject.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.table[sub.ID]
	if !ok {
		return subject.Subject{}, subject.ErrNotFound
	}
	if sub.Name != "" {
		existing.Name = sub.Name
	}
	if sub.Description != "" {
		existing.Description = sub.Description
	}
	if sub.Credits != 0 {
		existing.Credits = sub.Credits
	}
	if sub.Semester != 0 {
		existing.Semester = sub.Semester
	}
	if isActive != nil {
		existing.IsActive = isActive
	}
	existing.UpdatedAt = sub.UpdatedAt
	return *existing, nil
}

func (repo *subjectRepository) IncrementLectureCount(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	sub, ok := repo.db.table[id]
	if !ok {
		return subject.ErrNotFound
	}
	sub.TotalLectures++
	return nil
}
