package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Course struct {
	ID        string          `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	Title     string          `gorm:"column:title;size:320;not null" json:"title"`
	Fee       decimal.Decimal `gorm:"column:fee;type:decimal(12,2);not null;default:0" json:"fee"`
	Currency  string          `gorm:"column:currency;size:8" json:"currency"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Course) TableName() string {
	return "courses"
}

// CourseEnrollment is created when a course application is approved.
type CourseEnrollment struct {
	ID            string    `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	CourseID      string    `gorm:"column:course_id;size:64;not null;uniqueIndex:idx_course_enrollments_course_user,priority:1" json:"course_id"`
	UserID        string    `gorm:"column:user_id;size:190;not null;uniqueIndex:idx_course_enrollments_course_user,priority:2" json:"user_id"`
	ApplicationID string    `gorm:"column:application_id;size:64" json:"application_id"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (CourseEnrollment) TableName() string {
	return "course_enrollments"
}
