package dummydb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/assignment"
)

type assignmentRepository struct {
	db *assignmentTable
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db *DB) assignment.Repository {
	return &assignmentRepository{db: db.assignment}
}

func subKey(assignmentID, studentID string) string {
	return assignmentID + "|" + studentID
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment, exec ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	a.ID = uuid.New().String()
	repo.db.table[a.ID] = &a
	return a, nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, id string, exec ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.table[id]; ok {
		return *a, nil
	}
	return assignment.Assignment{}, assignment.ErrNotFound
}

func (repo *assignmentRepository) QueryActiveAssignments(ctx context.Context, subjectID string, exec ...core.DBExecutor) ([]assignment.Assignment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	assignments := make([]assignment.Assignment, 0)
	for _, a := range repo.db.table {
		if a.IsActive != nil && !*a.IsActive {
			continue
		}
		if subjectID != "" && a.SubjectID != subjectID {
			continue
		}
		assignments = append(assignments, *a)
	}
	sort.Slice(assignments, func(i, j int) bool { return assignments[i].CreatedAt.After(assignments[j].CreatedAt) })
	return assignments, nil
}

func (repo *assignmentRepository) CountActiveAssignments(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	assignments, _ := repo.QueryActiveAssignments(ctx, "")
	return len(assignments), nil
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, a assignment.Assignment, isActive *bool, exec ...core.DBExecutor) (assignment.Assignment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.table[a.ID]
	if !ok {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	if a.Title != "" {
		existing.Title = a.Title
	}
	if a.Description != "" {
		existing.Description = a.Description
	}
	if !a.DueDate.IsZero() {
		existing.DueDate = a.DueDate
	}
	if a.TotalMarks != 0 {
		existing.TotalMarks = a.TotalMarks
	}
	if isActive != nil {
		existing.IsActive = isActive
	}
	existing.UpdatedAt = a.UpdatedAt
	return *existing, nil
}

func (repo *assignmentRepository) UpsertSubmission(ctx context.Context, s assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	key := subKey(s.AssignmentID, s.StudentID)
	if id, ok := repo.db.subByKey[key]; ok {
		existing := repo.db.submissions[id]
		existing.Comments = s.Comments
		existing.Status = s.Status
		existing.SubmittedAt = s.SubmittedAt
		existing.Marks = nil
		existing.Feedback = ""
		existing.GradedAt = s.GradedAt
		existing.GradedBy = ""
		return *existing, nil
	}

	s.ID = uuid.New().String()
	repo.db.submissions[s.ID] = &s
	repo.db.subByKey[key] = s.ID
	return s, nil
}

func (repo *assignmentRepository) GetSubmissionByID(ctx context.Context, id string, exec ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.submissions[id]; ok {
		return *s, nil
	}
	return assignment.Submission{}, assignment.ErrSubmissionNotFound
}

func (repo *assignmentRepository) FilterSubmissions(ctx context.Context, filter assignment.SubmissionFilter, exec ...core.DBExecutor) ([]assignment.Submission, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	submissions := make([]assignment.Submission, 0)
	for _, s := range repo.db.submissions {
		if filter.AssignmentID != "" && s.AssignmentID != filter.AssignmentID {
			continue
		}
		if filter.StudentID != "" && s.StudentID != filter.StudentID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		submissions = append(submissions, *s)
	}
	sort.Slice(submissions, func(i, j int) bool { return submissions[i].SubmittedAt.After(submissions[j].SubmittedAt) })
	return submissions, nil
}

func (repo *assignmentRepository) UpdateSubmission(ctx context.Context, s assignment.Submission, exec ...core.DBExecutor) (assignment.Submission, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.submissions[s.ID]
	if !ok {
		return assignment.Submission{}, assignment.ErrSubmissionNotFound
	}
	existing.Comments = s.Comments
	existing.Status = s.Status
	existing.Marks = s.Marks
	existing.Feedback = s.Feedback
	existing.GradedAt = s.GradedAt
	existing.GradedBy = s.GradedBy
	return *existing, nil
}

func (repo *assignmentRepository) CountSubmissions(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.submissions), nil
}

func (repo *assignmentRepository) RecentSubmissions(ctx context.Context, limit int, exec ...core.DBExecutor) ([]assignment.Submission, error) {
	submissions, err := repo.FilterSubmissions(ctx, assignment.SubmissionFilter{})
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(submissions) > limit {
		submissions = submissions[:limit]
	}
	return submissions, nil
}

func (repo *assignmentRepository) CountSubmissionsByAssignment(ctx context.Context, exec ...core.DBExecutor) (map[string]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[string]int)
	for _, s := range repo.db.submissions {
		if a, ok := repo.db.table[s.AssignmentID]; ok {
			if a.IsActive != nil && !*a.IsActive {
				continue
			}
			counts[s.AssignmentID]++
		}
	}
	return counts, nil
}
