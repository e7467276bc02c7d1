package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edusense/core"
)

// Submission statuses. "graded" is terminal: there is no un-grade.
const (
	StatusSubmitted = "submitted"
	StatusLate      = "late"
	StatusGraded    = "graded"
)

type Assignment struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SubjectID   string    `json:"subject_id"`
	DueDate     time.Time `json:"due_date"`
	TotalMarks  int       `json:"total_marks"`
	CreatedBy   string    `json:"created_by"`
	IsActive    *bool     `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Submission belongs to exactly one (assignment, student) pair; resubmitting
// overwrites it.
type Submission struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignment_id"`
	StudentID    string    `json:"student_id"`
	Comments     string    `json:"comments,omitempty"`
	Status       string    `json:"status"`
	Marks        *float64  `json:"marks,omitempty"`
	Feedback     string    `json:"feedback,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
	GradedAt     time.Time `json:"graded_at,omitempty"`
	GradedBy     string    `json:"graded_by,omitempty"`
}

func (s Submission) IsGraded() bool { return s.Status == StatusGraded }

// AssignmentWithStatus is an assignment annotated with one student's
// submission state, for the student listing.
type AssignmentWithStatus struct {
	Assignment
	SubmissionStatus string `json:"submission_status"`
	HasSubmitted     bool   `json:"has_submitted"`
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description" validate:"required"`
	SubjectID   string    `json:"subject_id" validate:"required"`
	DueDate     time.Time `json:"due_date" validate:"required"`
	TotalMarks  int       `json:"total_marks" validate:"omitempty,min=1"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.SubjectID = core.CleanString(na.SubjectID)
	return validate.Struct(na)
}

// NewSubmission is a student's (re)submission for an assignment.
type NewSubmission struct {
	Comments string `json:"comments"`
}

func (ns *NewSubmission) Validate(validate *validator.Validate) error {
	ns.Comments = core.CleanString(ns.Comments)
	return validate.Struct(ns)
}

// GradeSubmission defines the one-way grading action.
type GradeSubmission struct {
	Marks    float64 `json:"marks" validate:"min=0"`
	Feedback string  `json:"feedback"`
}

func (gs *GradeSubmission) Validate(validate *validator.Validate) error {
	gs.Feedback = core.CleanString(gs.Feedback)
	return validate.Struct(gs)
}

// SubmissionFilter narrows submission queries. Zero values are ignored.
type SubmissionFilter struct {
	AssignmentID string
	StudentID    string
	Status       string
}
