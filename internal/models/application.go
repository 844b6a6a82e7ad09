package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ProgramType discriminates the three application forms.
type ProgramType string

const (
	ProgramBibleSchool ProgramType = "bible_school"
	ProgramCourse      ProgramType = "course"
	ProgramMembership  ProgramType = "membership"
)

// Label is the name shown to applicants and admins.
func (p ProgramType) Label() string {
	switch p {
	case ProgramBibleSchool:
		return "Bible School"
	case ProgramCourse:
		return "Course"
	case ProgramMembership:
		return "Membership"
	}
	return string(p)
}

// ApplicationStatus is the review state an admin drives.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "pending"
	ApplicationApproved ApplicationStatus = "approved"
	ApplicationRejected ApplicationStatus = "rejected"
)

// Valid reports whether the status is one of the known review states.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationPending, ApplicationApproved, ApplicationRejected:
		return true
	}
	return false
}

// PaymentState is mirrored onto entities that may carry a fee.
type PaymentState string

const (
	PaymentStateNotRequired PaymentState = "not_required"
	PaymentStatePending     PaymentState = "pending"
	PaymentStateConfirmed   PaymentState = "confirmed"
)

// Application is one submitted enrolment or membership request. FormData is
// authoritative; the typed columns are a projection used for listing.
type Application struct {
	ID               string            `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	UserID           string            `gorm:"column:user_id;size:190;not null;index" json:"user_id"`
	ProgramType      ProgramType       `gorm:"column:program_type;size:32;not null;index" json:"program_type"`
	Status           ApplicationStatus `gorm:"column:status;size:16;not null;default:'pending';index" json:"status"`
	PaymentStatus    PaymentState      `gorm:"column:payment_status;size:16;not null;default:'not_required'" json:"payment_status"`
	FullName         string            `gorm:"column:full_name;size:320" json:"full_name"`
	Email            string            `gorm:"column:email;size:320" json:"email"`
	Phone            string            `gorm:"column:phone;size:64" json:"phone"`
	IDNumber         string            `gorm:"column:id_number;size:32" json:"id_number"`
	CourseID         string            `gorm:"column:course_id;size:64;index" json:"course_id"`
	FormData         datatypes.JSONMap `gorm:"column:form_data;not null" json:"form_data"`
	ExtraFields      datatypes.JSONMap `gorm:"column:extra_fields" json:"extra_fields"`
	IDDocumentKey    string            `gorm:"column:id_document_key;size:512" json:"id_document_key"`
	IDDocumentURL    string            `gorm:"column:id_document_url;size:1024" json:"id_document_url"`
	PaymentProofKey  string            `gorm:"column:payment_proof_key;size:512" json:"payment_proof_key"`
	PaymentProofURL  string            `gorm:"column:payment_proof_url;size:1024" json:"payment_proof_url"`
	Fee              decimal.Decimal   `gorm:"column:fee;type:decimal(12,2);not null;default:0" json:"fee"`
	Currency         string            `gorm:"column:currency;size:8" json:"currency"`
	PaymentID        *string           `gorm:"column:payment_id;size:64" json:"payment_id"`
	ReviewedBy       string            `gorm:"column:reviewed_by;size:190" json:"reviewed_by"`
	ReviewedAt       *time.Time        `gorm:"column:reviewed_at" json:"reviewed_at"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime;index" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Application) TableName() string {
	return "applications"
}
