package onboarding

import (
	"time"

	"github.com/trezcool/masomo-onboarding/core"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Request is a school's request to be onboarded.
type Request struct {
	ID                string     `json:"id"`
	InstitutionName   string     `json:"institution_name"`
	AdminName         string     `json:"admin_name"`
	AdminEmail        string     `json:"admin_email"`
	Phone             *string    `json:"phone"`
	Address           *string    `json:"address"`
	RequestedStudents *int       `json:"requested_students"`
	RequestedTeachers *int       `json:"requested_teachers"`
	Notes             *string    `json:"notes"`
	Status            Status     `json:"status"`
	RejectionReason   *string    `json:"rejection_reason"`
	CreatedAt         time.Time  `json:"created_at"` // UTC
	UpdatedAt         time.Time  `json:"updated_at"` // UTC
	ReviewedAt        *time.Time `json:"reviewed_at"`
	ReviewedBy        *string    `json:"reviewed_by"` // reviewer Profile ID
}

func (r Request) IsPending() bool { return r.Status == StatusPending }

// StatusUpdate is the review outcome written on a Request.
// All fields are written; nil values clear the review.
type StatusUpdate struct {
	Status          Status
	ReviewedBy      *string
	ReviewedAt      *time.Time
	RejectionReason *string
}

// NewRequest contains information submitted by a school to be onboarded.
type NewRequest struct {
	InstitutionName   string  `json:"institution_name" validate:"required,notblank,max=255"`
	AdminName         string  `json:"admin_name" validate:"required,notblank,max=255"`
	AdminEmail        string  `json:"admin_email" validate:"required,email,max=254"`
	Phone             *string `json:"phone" validate:"omitempty,max=32"`
	Address           *string `json:"address" validate:"omitempty,max=1000"`
	RequestedStudents *int    `json:"requested_students" validate:"omitempty,min=0"`
	RequestedTeachers *int    `json:"requested_teachers" validate:"omitempty,min=0"`
	Notes             *string `json:"notes" validate:"omitempty,max=5000"`
}

func (nr *NewRequest) Clean() {
	nr.InstitutionName = core.CleanString(nr.InstitutionName)
	nr.AdminName = core.CleanString(nr.AdminName)
	nr.AdminEmail = core.CleanString(nr.AdminEmail, true /* lower */)
	nr.Phone = core.CleanStringPtr(nr.Phone)
	nr.Address = core.CleanStringPtr(nr.Address)
	nr.Notes = core.CleanStringPtr(nr.Notes)
}

// UpdateRequest defines what information may be provided to modify a pending Request.
type UpdateRequest struct {
	InstitutionName   string  `json:"institution_name" validate:"omitempty,notblank,max=255"`
	AdminName         string  `json:"admin_name" validate:"omitempty,notblank,max=255"`
	AdminEmail        string  `json:"admin_email" validate:"omitempty,email,max=254"`
	Phone             *string `json:"phone" validate:"omitempty,max=32"`
	Address           *string `json:"address" validate:"omitempty,max=1000"`
	RequestedStudents *int    `json:"requested_students" validate:"omitempty,min=0"`
	RequestedTeachers *int    `json:"requested_teachers" validate:"omitempty,min=0"`
	Notes             *string `json:"notes" validate:"omitempty,max=5000"`
}

func (ur *UpdateRequest) Clean() {
	ur.InstitutionName = core.CleanString(ur.InstitutionName)
	ur.AdminName = core.CleanString(ur.AdminName)
	ur.AdminEmail = core.CleanString(ur.AdminEmail, true /* lower */)
	ur.Phone = core.CleanStringPtr(ur.Phone)
	ur.Address = core.CleanStringPtr(ur.Address)
	ur.Notes = core.CleanStringPtr(ur.Notes)
}

// apply returns orig with the provided fields of ur set.
func (ur UpdateRequest) apply(orig Request) Request {
	if ur.InstitutionName != "" {
		orig.InstitutionName = ur.InstitutionName
	}
	if ur.AdminName != "" {
		orig.AdminName = ur.AdminName
	}
	if ur.AdminEmail != "" {
		orig.AdminEmail = ur.AdminEmail
	}
	if ur.Phone != nil {
		orig.Phone = ur.Phone
	}
	if ur.Address != nil {
		orig.Address = ur.Address
	}
	if ur.RequestedStudents != nil {
		orig.RequestedStudents = ur.RequestedStudents
	}
	if ur.RequestedTeachers != nil {
		orig.RequestedTeachers = ur.RequestedTeachers
	}
	if ur.Notes != nil {
		orig.Notes = ur.Notes
	}
	return orig
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Statuses    []Status  `query:"status"`
	AdminEmail  string    `query:"admin_email"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.AdminEmail = core.CleanString(qf.AdminEmail, true /* lower */)
}
