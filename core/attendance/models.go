package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edusense/core"
)

// Attendance statuses. "late" earns half credit towards the percentage.
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
)

// ValidStatus reports whether s is a recognized attendance status.
func ValidStatus(s string) bool {
	switch s {
	case StatusPresent, StatusAbsent, StatusLate:
		return true
	}
	return false
}

// Event is one status record for one student, one subject, one calendar day.
// There is at most one Event per (student, subject, day); marking the same
// cell again overwrites it. Events are never deleted.
type Event struct {
	ID          string      `json:"id"`
	StudentID   string      `json:"student_id"`
	SubjectID   string      `json:"subject_id"`
	Date        time.Time   `json:"date"` // truncated to UTC midnight
	Status      string      `json:"status"`
	MarkedBy    string      `json:"marked_by"`
	Remarks     string      `json:"remarks,omitempty"`
	EditHistory []EditEntry `json:"edit_history,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// EditEntry records one correction of an Event. History is append-only.
type EditEntry struct {
	PreviousStatus string    `json:"previous_status"`
	NewStatus      string    `json:"new_status"`
	EditedBy       string    `json:"edited_by"`
	Reason         string    `json:"reason,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Day truncates t to its calendar day (UTC midnight), the upsert key for marking.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MarkEntry is one student's status in a marking batch.
type MarkEntry struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=present absent late"`
	Remarks   string `json:"remarks"`
}

// NewBatch is a full marking call for one subject on one day.
type NewBatch struct {
	SubjectID string      `json:"subject_id" validate:"required"`
	Date      time.Time   `json:"date" validate:"required"`
	Entries   []MarkEntry `json:"entries" validate:"required,min=1,dive"`
}

func (nb *NewBatch) Validate(validate *validator.Validate) error {
	nb.SubjectID = core.CleanString(nb.SubjectID)
	for i := range nb.Entries {
		nb.Entries[i].StudentID = core.CleanString(nb.Entries[i].StudentID)
		nb.Entries[i].Status = core.CleanString(nb.Entries[i].Status, true /* lower */)
		nb.Entries[i].Remarks = core.CleanString(nb.Entries[i].Remarks)
	}
	return validate.Struct(nb)
}

// EditEvent defines a correction of one existing Event.
type EditEvent struct {
	Status  string `json:"status" validate:"required,oneof=present absent late"`
	Remarks string `json:"remarks"`
	Reason  string `json:"reason" validate:"required"`
}

func (ee *EditEvent) Validate(validate *validator.Validate) error {
	ee.Status = core.CleanString(ee.Status, true /* lower */)
	ee.Remarks = core.CleanString(ee.Remarks)
	ee.Reason = core.CleanString(ee.Reason)
	return validate.Struct(ee)
}

// UpdatedPayload is the body of the "attendance-updated" realtime event.
// Clients treat it as a hint to re-fetch, not as the full new state.
type UpdatedPayload struct {
	SubjectID string    `json:"subject_id"`
	Date      time.Time `json:"date"`
	Status    string    `json:"status"`
}

// Filter narrows event queries. Zero values are ignored.
type Filter struct {
	StudentID string
	SubjectID string
	DateFrom  time.Time
	DateTo    time.Time
}
