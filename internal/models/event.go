package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Event struct {
	ID        string          `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	Title     string          `gorm:"column:title;size:320;not null" json:"title"`
	StartsAt  time.Time       `gorm:"column:starts_at;not null" json:"starts_at"`
	Location  string          `gorm:"column:location;size:320" json:"location"`
	Fee       decimal.Decimal `gorm:"column:fee;type:decimal(12,2);not null;default:0" json:"fee"`
	Currency  string          `gorm:"column:currency;size:8" json:"currency"`
	Capacity  int             `gorm:"column:capacity;not null;default:0" json:"capacity"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Event) TableName() string {
	return "events"
}

// EventRegistration records one attendee for one event.
type EventRegistration struct {
	ID               string            `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	EventID          string            `gorm:"column:event_id;size:64;not null;uniqueIndex:idx_event_registrations_event_user,priority:1" json:"event_id"`
	UserID           string            `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_event_registrations_event_user,priority:2" json:"user_id"`
	RegistrationData datatypes.JSONMap `gorm:"column:registration_data" json:"registration_data"`
	PaymentStatus    PaymentState      `gorm:"column:payment_status;size:16;not null;default:'not_required'" json:"payment_status"`
	PaymentID        *string           `gorm:"column:payment_id;size:64" json:"payment_id"`
	TicketNumber     string            `gorm:"column:ticket_number;size:32;uniqueIndex" json:"ticket_number"`
	CreatedAt        time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (EventRegistration) TableName() string {
	return "event_registrations"
}
