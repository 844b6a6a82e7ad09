package models

import "time"

// CertificateStatus is the lifecycle of an issued certificate.
type CertificateStatus string

const (
	CertificateIssued  CertificateStatus = "issued"
	CertificatePending CertificateStatus = "pending"
	CertificateRevoked CertificateStatus = "revoked"
)

type Certificate struct {
	ID                string            `gorm:"column:id;primaryKey;size:64;not null" json:"id"`
	UserID            string            `gorm:"column:user_id;size:190;not null;index" json:"user_id"`
	CourseID          *string           `gorm:"column:course_id;size:64" json:"course_id"`
	CertificateNumber string            `gorm:"column:certificate_number;size:64;not null;uniqueIndex" json:"certificate_number"`
	Status            CertificateStatus `gorm:"column:status;size:16;not null;default:'issued'" json:"status"`
	IssuedAt          time.Time         `gorm:"column:issued_at;not null" json:"issued_at"`
	DocumentKey       string            `gorm:"column:document_key;size:512" json:"document_key"`
	DocumentURL       string            `gorm:"column:document_url;size:1024" json:"document_url"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (Certificate) TableName() string {
	return "certificates"
}
