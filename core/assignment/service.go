package assignment

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/edusense/core"
	"github.com/trezcool/edusense/core/subject"
)

var (
	ErrNotFound           = errors.New("assignment not found")
	ErrSubmissionNotFound = errors.New("submission not found")
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, a Assignment, exec ...core.DBExecutor) (Assignment, error)
		GetAssignmentByID(ctx context.Context, id string, exec ...core.DBExecutor) (Assignment, error)
		// QueryActiveAssignments returns active assignments, newest first;
		// subjectID narrows to one subject when non-empty.
		QueryActiveAssignments(ctx context.Context, subjectID string, exec ...core.DBExecutor) ([]Assignment, error)
		CountActiveAssignments(ctx context.Context, exec ...core.DBExecutor) (int, error)
		UpdateAssignment(ctx context.Context, a Assignment, isActive *bool, exec ...core.DBExecutor) (Assignment, error)

		// UpsertSubmission writes the one submission for
		// (assignment, student), atomically on the store side.
		UpsertSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		GetSubmissionByID(ctx context.Context, id string, exec ...core.DBExecutor) (Submission, error)
		FilterSubmissions(ctx context.Context, filter SubmissionFilter, exec ...core.DBExecutor) ([]Submission, error)
		UpdateSubmission(ctx context.Context, s Submission, exec ...core.DBExecutor) (Submission, error)
		CountSubmissions(ctx context.Context, exec ...core.DBExecutor) (int, error)
		// RecentSubmissions returns the latest submissions by submission
		// time, newest first.
		RecentSubmissions(ctx context.Context, limit int, exec ...core.DBExecutor) ([]Submission, error)
		// CountSubmissionsByAssignment tallies submissions per active
		// assignment in one grouped query.
		CountSubmissionsByAssignment(ctx context.Context, exec ...core.DBExecutor) (map[string]int, error)
	}

	ServiceInterface interface {
		Create(ctx context.Context, na NewAssignment, createdBy string) (Assignment, error)
		GetByID(ctx context.Context, id string) (Assignment, error)
		QueryActive(ctx context.Context, subjectID string) ([]Assignment, error)
		QueryActiveWithStatus(ctx context.Context, subjectID, studentID string) ([]AssignmentWithStatus, error)
		Submit(ctx context.Context, assignmentID, studentID string, ns NewSubmission) (Submission, error)
		Submissions(ctx context.Context, assignmentID string) ([]Submission, error)
		Grade(ctx context.Context, submissionID string, gs GradeSubmission, gradedBy string) (Submission, error)
		Deactivate(ctx context.Context, id string) error
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

func (svc *Service) Create(ctx context.Context, na NewAssignment, createdBy string) (Assignment, error) {
	if _, err := svc.subjects.GetSubjectByID(ctx, na.SubjectID); err != nil {
		if errors.Cause(err) == subject.ErrNotFound {
			return Assignment{}, core.NewValidationError(err, core.FieldError{Field: "subject_id", Error: err.Error()})
		}
		return Assignment{}, errors.Wrap(err, "resolving subject")
	}

	now := time.Now().UTC()
	totalMarks := na.TotalMarks
	if totalMarks == 0 {
		totalMarks = 100
	}
	active := true
	a := Assignment{
		Title:       na.Title,
		Description: na.Description,
		SubjectID:   na.SubjectID,
		DueDate:     na.DueDate.UTC(),
		TotalMarks:  totalMarks,
		CreatedBy:   createdBy,
		IsActive:    &active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	a, err := svc.repo.CreateAssignment(ctx, a)
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}

	svc.notifier.Broadcast(core.EventNewAssignment, a)
	return a, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, id)
}

func (svc *Service) QueryActive(ctx context.Context, subjectID string) ([]Assignment, error) {
	return svc.repo.QueryActiveAssignments(ctx, subjectID)
}

// QueryActiveWithStatus annotates each active assignment with the student's
// submission state.
func (svc *Service) QueryActiveWithStatus(ctx context.Context, subjectID, studentID string) ([]AssignmentWithStatus, error) {
	assignments, err := svc.repo.QueryActiveAssignments(ctx, subjectID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	submissions, err := svc.repo.FilterSubmissions(ctx, SubmissionFilter{StudentID: studentID})
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	byAssignment := make(map[string]Submission, len(submissions))
	for _, s := range submissions {
		byAssignment[s.AssignmentID] = s
	}

	annotated := make([]AssignmentWithStatus, 0, len(assignments))
	for _, a := range assignments {
		aws := AssignmentWithStatus{Assignment: a, SubmissionStatus: "pending"}
		if s, ok := byAssignment[a.ID]; ok {
			aws.SubmissionStatus = s.Status
			aws.HasSubmitted = true
		}
		annotated = append(annotated, aws)
	}
	return annotated, nil
}

// Submit upserts the student's submission for the assignment. Status is
// derived against the due date at call time: a resubmission after the due
// date turns "submitted" into "late".
func (svc *Service) Submit(ctx context.Context, assignmentID, studentID string, ns NewSubmission) (Submission, error) {
	a, err := svc.repo.GetAssignmentByID(ctx, assignmentID)
	if err != nil {
		return Submission{}, err
	}

	now := time.Now().UTC()
	status := StatusSubmitted
	if now.After(a.DueDate) {
		status = StatusLate
	}

	s := Submission{
		AssignmentID: a.ID,
		StudentID:    studentID,
		Comments:     ns.Comments,
		Status:       status,
		SubmittedAt:  now,
	}
	s, err = svc.repo.UpsertSubmission(ctx, s)
	if err != nil {
		return Submission{}, errors.Wrap(err, "upserting submission")
	}

	svc.notifier.Broadcast(core.EventNewSubmission, s)
	return s, nil
}

func (svc *Service) Submissions(ctx context.Context, assignmentID string) ([]Submission, error) {
	return svc.repo.FilterSubmissions(ctx, SubmissionFilter{AssignmentID: assignmentID})
}

// Grade marks a submission as graded; the transition is one-way. The student
// gets a targeted "assignment-graded" push.
func (svc *Service) Grade(ctx context.Context, submissionID string, gs GradeSubmission, gradedBy string) (Submission, error) {
	s, err := svc.repo.GetSubmissionByID(ctx, submissionID)
	if err != nil {
		return Submission{}, err
	}

	marks := gs.Marks
	s.Marks = &marks
	s.Feedback = gs.Feedback
	s.Status = StatusGraded
	s.GradedAt = time.Now().UTC()
	s.GradedBy = gradedBy

	s, err = svc.repo.UpdateSubmission(ctx, s)
	if err != nil {
		return Submission{}, errors.Wrap(err, "updating submission")
	}

	svc.notifier.Notify(s.StudentID, core.EventAssignmentGraded, s)
	return s, nil
}

func (svc *Service) Deactivate(ctx context.Context, id string) error {
	inactive := false
	_, err := svc.repo.UpdateAssignment(ctx, Assignment{ID: id, UpdatedAt: time.Now().UTC()}, &inactive)
	return err
}
