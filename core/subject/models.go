package subject

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/edusense/core"
)

type Subject struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Code        string `json:"code"` // unique, upper-cased
	Description string `json:"description"`
	Credits     int    `json:"credits"`
	Semester    int    `json:"semester"`
	// TotalLectures counts how many times attendance has been taken for this
	// subject. It only ever increases, and only the attendance marking flow
	// touches it.
	TotalLectures int       `json:"total_lectures"`
	IsActive      *bool     `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewSubject contains information needed to create a new Subject.
type NewSubject struct {
	Name        string `json:"name" validate:"required"`
	Code        string `json:"code" validate:"required,alphanum_"`
	Description string `json:"description" validate:"required"`
	Credits     int    `json:"credits" validate:"omitempty,min=1,max=10"`
	Semester    int    `json:"semester" validate:"omitempty,min=1,max=12"`
}

func (ns *NewSubject) Validate(validate *validator.Validate, svc ServiceInterface) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = core.CleanString(ns.Code, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckCodeUniqueness(ns.Code)
}

// UpdateSubject defines what information may be provided to modify an existing Subject.
type UpdateSubject struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Credits     int    `json:"credits" validate:"omitempty,min=1,max=10"`
	Semester    int    `json:"semester" validate:"omitempty,min=1,max=12"`
	IsActive    *bool  `json:"is_active"`
}

func (us *UpdateSubject) Validate(orig Subject, validate *validator.Validate) error {
	name := core.CleanString(us.Name)
	if name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if us.Description == "" {
		us.Description = orig.Description
	}
	if us.Credits == 0 {
		us.Credits = orig.Credits
	}
	if us.Semester == 0 {
		us.Semester = orig.Semester
	}
	return validate.Struct(us)
}
