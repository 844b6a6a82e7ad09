package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DonationStatus tracks whether the donation payment cleared.
type DonationStatus string

const (
	DonationPending   DonationStatus = "pending"
	DonationCompleted DonationStatus = "completed"
)

type Donation struct {
	ID          string          `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	UserID      string          `gorm:"column:user_id;size:190;not null;index" json:"user_id"`
	DonorName   string          `gorm:"column:donor_name;size:320" json:"donor_name"`
	DonorEmail  string          `gorm:"column:donor_email;size:320" json:"donor_email"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(12,2);not null" json:"amount"`
	Currency    string          `gorm:"column:currency;size:8;not null" json:"currency"`
	Designation string          `gorm:"column:designation;size:190" json:"designation"`
	Message     string          `gorm:"column:message;type:text" json:"message"`
	Status      DonationStatus  `gorm:"column:status;size:16;not null;default:'pending'" json:"status"`
	PaymentID   *string         `gorm:"column:payment_id;size:64" json:"payment_id"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Donation) TableName() string {
	return "donations"
}
