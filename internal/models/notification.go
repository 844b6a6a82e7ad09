package models

import "time"

// Notification is one in-app message for one user.
type Notification struct {
	ID            string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	UserID        string    `gorm:"column:user_id;size:190;not null;index:idx_notifications_user_created,priority:1" json:"user_id"`
	Type          string    `gorm:"column:type;size:64;not null" json:"type"`
	Title         string    `gorm:"column:title;size:320;not null" json:"title"`
	Message       string    `gorm:"column:message;type:text" json:"message"`
	RelatedID     string    `gorm:"column:related_id;size:64" json:"related_id"`
	Read          bool      `gorm:"column:read;not null;default:false" json:"read"`
	SourceEventID *string   `gorm:"column:source_event_id;size:190;uniqueIndex" json:"-"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime;index:idx_notifications_user_created,priority:2" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Notification) TableName() string {
	return "notifications"
}
