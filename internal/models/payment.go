package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentType identifies which parent entity a payment settles.
type PaymentType string

const (
	PaymentTypeApplication       PaymentType = "application"
	PaymentTypeDonation          PaymentType = "donation"
	PaymentTypeEventRegistration PaymentType = "event_registration"
	PaymentTypeRegistration      PaymentType = "registration"
)

// PaymentStatus is the settlement state of a payment row.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentConfirmed PaymentStatus = "confirmed"
)

// Payment is a monetary obligation linked to exactly one parent entity.
type Payment struct {
	ID                  string          `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	UserID              string          `gorm:"column:user_id;size:190;not null;index" json:"user_id"`
	Amount              decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null" json:"amount"`
	Currency            string          `gorm:"column:currency;size:8;not null" json:"currency"`
	PaymentType         PaymentType     `gorm:"column:payment_type;size:32;not null" json:"payment_type"`
	Status              PaymentStatus   `gorm:"column:status;size:16;not null;default:'pending';index" json:"status"`
	ApplicationID       *string         `gorm:"column:application_id;size:64;index" json:"application_id"`
	DonationID          *string         `gorm:"column:donation_id;size:64;index" json:"donation_id"`
	EventRegistrationID *string         `gorm:"column:event_registration_id;size:64;index" json:"event_registration_id"`
	ProviderReference   string          `gorm:"column:provider_reference;size:190" json:"provider_reference"`
	ConfirmedAt         *time.Time      `gorm:"column:confirmed_at" json:"confirmed_at"`
	CreatedAt           time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Payment) TableName() string {
	return "payments"
}
