package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Kind names a side effect recorded alongside a primary write.
type Kind string

const (
	KindNotifyUser   Kind = "notify_user"
	KindNotifyAdmins Kind = "notify_admins"
	KindSendEmail    Kind = "send_email"
)

// Status is the delivery state of an outbox message.
type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Message is a durable side-effect intent.
type Message struct {
	ID          string         `gorm:"column:id;primaryKey;size:64;not null"`
	Kind        Kind           `gorm:"column:kind;size:32;not null"`
	Payload     datatypes.JSON `gorm:"column:payload;not null"`
	Status      Status         `gorm:"column:status;size:16;not null;default:'pending';index:idx_outbox_status_available,priority:1"`
	Attempts    int            `gorm:"column:attempts;not null;default:0"`
	LastError   string         `gorm:"column:last_error;type:text"`
	AvailableAt time.Time      `gorm:"column:available_at;not null;index:idx_outbox_status_available,priority:2"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Message) TableName() string {
	return "outbox_messages"
}

// Notice is the payload of notify_user and notify_admins intents.
type Notice struct {
	UserID    string `json:"user_id,omitempty"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	RelatedID string `json:"related_id,omitempty"`
}

// Email is the payload of send_email intents.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Intent pairs a kind with its payload before it is persisted.
type Intent struct {
	Kind    Kind
	Payload any
}

func NotifyUser(notice Notice) Intent {
	return Intent{Kind: KindNotifyUser, Payload: notice}
}

func NotifyAdmins(notice Notice) Intent {
	notice.UserID = ""
	return Intent{Kind: KindNotifyAdmins, Payload: notice}
}

func SendEmail(email Email) Intent {
	return Intent{Kind: KindSendEmail, Payload: email}
}

// DecodeNotice reads the payload of a notify intent.
func (m Message) DecodeNotice() (Notice, error) {
	var notice Notice
	if m.Kind != KindNotifyUser && m.Kind != KindNotifyAdmins {
		return Notice{}, fmt.Errorf("outbox: message %s is %s, not a notice", m.ID, m.Kind)
	}
	if err := json.Unmarshal(m.Payload, &notice); err != nil {
		return Notice{}, fmt.Errorf("outbox: decode notice %s: %w", m.ID, err)
	}
	return notice, nil
}

// DecodeEmail reads the payload of a send_email intent.
func (m Message) DecodeEmail() (Email, error) {
	var email Email
	if m.Kind != KindSendEmail {
		return Email{}, fmt.Errorf("outbox: message %s is %s, not an email", m.ID, m.Kind)
	}
	if err := json.Unmarshal(m.Payload, &email); err != nil {
		return Email{}, fmt.Errorf("outbox: decode email %s: %w", m.ID, err)
	}
	return email, nil
}
