package announcement

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edusense/core"
)

// Announcement priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Announcement is a notice, optionally scoped to one subject (empty
// SubjectID means campus-wide).
type Announcement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	SubjectID string    `json:"subject_id,omitempty"`
	Priority  string    `json:"priority"`
	CreatedBy string    `json:"created_by"`
	IsActive  *bool     `json:"is_active"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Note is shared study material for one subject.
type Note struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	SubjectID   string    `json:"subject_id"`
	UploadedBy  string    `json:"uploaded_by"`
	Downloads   int       `json:"downloads"`
	IsActive    *bool     `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewAnnouncement contains information needed to create a new Announcement.
type NewAnnouncement struct {
	Title     string    `json:"title" validate:"required"`
	Content   string    `json:"content" validate:"required"`
	SubjectID string    `json:"subject_id"`
	Priority  string    `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (na *NewAnnouncement) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Priority = core.CleanString(na.Priority, true /* lower */)
	return validate.Struct(na)
}

// NewNote contains information needed to create a new Note.
type NewNote struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	SubjectID   string `json:"subject_id" validate:"required"`
}

func (nn *NewNote) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.SubjectID = core.CleanString(nn.SubjectID)
	return validate.Struct(nn)
}

// Filter narrows announcement queries. Zero values are ignored.
type Filter struct {
	SubjectIDs []string // announcements for these subjects, or campus-wide
	Limit      int
}
