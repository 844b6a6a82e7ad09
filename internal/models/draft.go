package models

import (
	"time"

	"gorm.io/datatypes"
)

// Draft is a user's in-progress form. One row exists per (user, form type).
type Draft struct {
	ID          string            `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	UserID      string            `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_drafts_user_form,priority:1" json:"user_id"`
	FormType    string            `gorm:"column:form_type;size:32;not null;uniqueIndex:idx_drafts_user_form,priority:2" json:"form_type"`
	FormData    datatypes.JSONMap `gorm:"column:form_data;not null" json:"form_data"`
	CurrentStep int               `gorm:"column:current_step;not null;default:1" json:"current_step"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Draft) TableName() string {
	return "form_drafts"
}
