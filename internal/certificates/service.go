package certificates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/christlifeministries/portal/internal/apperrors"
	"github.com/christlifeministries/portal/internal/documents"
	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/outbox"
	"github.com/christlifeministries/portal/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrCertificateNotFound indicates no certificate with that id exists.
	ErrCertificateNotFound = errors.New("certificates: certificate not found")
	// ErrDuplicateNumber indicates the supplied certificate number is taken.
	ErrDuplicateNumber = errors.New("certificates: certificate number already exists")
	// ErrCertificateRevoked indicates the certificate can no longer be published.
	ErrCertificateRevoked = errors.New("certificates: certificate is revoked")
	// ErrInvalidRequest indicates a missing user or an unknown status.
	ErrInvalidRequest = errors.New("certificates: user id is required and status must be issued, pending or revoked")

	errMissingDatabase   = errors.New("certificates: database handle is required")
	errMissingIDProvider = errors.New("certificates: id provider is required")
	errMissingStorage    = errors.New("certificates: storage is required")
	errMissingOutbox     = errors.New("certificates: outbox writer is required")
)

const (
	opServiceNew = "certificates.service.new"
	opIssue      = "certificates.issue"
	opRender     = "certificates.render"
	opPublish    = "certificates.publish"
	opRevoke     = "certificates.revoke"
	opList       = "certificates.list"

	numberPrefix   = "CLM"
	numberAttempts = 5
	contentTypePDF = "application/pdf"
)

type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider models.IDProvider
	Storage    storage.Storage
	Outbox     *outbox.Writer
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service issues, renders and publishes course certificates.
type Service struct {
	db      *gorm.DB
	ids     models.IDProvider
	storage storage.Storage
	outbox  *outbox.Writer
	clock   func() time.Time
	logger  *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Database == nil:
		return nil, apperrors.New(opServiceNew, "missing_database", errMissingDatabase)
	case cfg.IDProvider == nil:
		return nil, apperrors.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	case cfg.Storage == nil:
		return nil, apperrors.New(opServiceNew, "missing_storage", errMissingStorage)
	case cfg.Outbox == nil:
		return nil, apperrors.New(opServiceNew, "missing_outbox", errMissingOutbox)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, ids: cfg.IDProvider, storage: cfg.Storage, outbox: cfg.Outbox, clock: clock, logger: logger}, nil
}

// IssueRequest describes a certificate to create. Number and Status are
// optional.
type IssueRequest struct {
	UserID   string
	CourseID string
	Number   string
	Status   models.CertificateStatus
}

// Issue stores a new certificate. A blank number is generated as
// CLM-<year>-<six random characters>.
func (s *Service) Issue(ctx context.Context, request IssueRequest) (models.Certificate, error) {
	userID := strings.TrimSpace(request.UserID)
	status := request.Status
	if status == "" {
		status = models.CertificateIssued
	}
	if userID == "" || !validStatus(status) {
		return models.Certificate{}, ErrInvalidRequest
	}
	id, err := s.ids.NewID()
	if err != nil {
		return models.Certificate{}, apperrors.New(opIssue, "id_generation_failed", err)
	}
	now := s.clock().UTC()
	certificate := models.Certificate{
		ID:       id,
		UserID:   userID,
		Status:   status,
		IssuedAt: now,
	}
	if courseID := strings.TrimSpace(request.CourseID); courseID != "" {
		certificate.CourseID = &courseID
	}

	db := s.db.WithContext(ctx)
	supplied := strings.TrimSpace(request.Number)
	for attempt := 0; attempt < numberAttempts; attempt++ {
		number := supplied
		if number == "" {
			if number, err = models.NewReference(numberPrefix, now.Year()); err != nil {
				return models.Certificate{}, apperrors.New(opIssue, "number_generation_failed", err)
			}
		}
		var taken int64
		if err := db.Model(&models.Certificate{}).Where("certificate_number = ?", number).Count(&taken).Error; err != nil {
			apperrors.Log(s.logger, "certificates service error", opIssue, "query_failed", err)
			return models.Certificate{}, apperrors.New(opIssue, "query_failed", err)
		}
		if taken > 0 {
			if supplied != "" {
				return models.Certificate{}, ErrDuplicateNumber
			}
			continue
		}
		certificate.CertificateNumber = number
		break
	}
	if certificate.CertificateNumber == "" {
		return models.Certificate{}, apperrors.New(opIssue, "number_exhausted", ErrDuplicateNumber)
	}

	if err := db.Create(&certificate).Error; err != nil {
		apperrors.Log(s.logger, "certificates service error", opIssue, "insert_failed", err, zap.String("user_id", userID))
		return models.Certificate{}, apperrors.New(opIssue, "insert_failed", err)
	}
	return certificate, nil
}

// Get loads one certificate.
func (s *Service) Get(ctx context.Context, certificateID string) (models.Certificate, error) {
	var certificate models.Certificate
	err := s.db.WithContext(ctx).Where("id = ?", certificateID).Take(&certificate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Certificate{}, ErrCertificateNotFound
	}
	if err != nil {
		return models.Certificate{}, apperrors.New(opRender, "query_failed", err)
	}
	return certificate, nil
}

// ListForUser returns the certificates a member holds, newest first.
// Pending certificates are not shown.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Certificate, error) {
	var certificates []models.Certificate
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, models.CertificatePending).
		Order("issued_at DESC").
		Find(&certificates).Error
	if err != nil {
		apperrors.Log(s.logger, "certificates service error", opList, "query_failed", err, zap.String("user_id", userID))
		return nil, apperrors.New(opList, "query_failed", err)
	}
	return certificates, nil
}

// Render produces the PDF for a certificate.
func (s *Service) Render(ctx context.Context, certificateID string) ([]byte, models.Certificate, error) {
	certificate, err := s.Get(ctx, certificateID)
	if err != nil {
		return nil, models.Certificate{}, err
	}
	data := documents.CertificateData{Number: certificate.CertificateNumber, IssuedAt: certificate.IssuedAt}

	db := s.db.WithContext(ctx)
	var profile models.UserProfile
	if err := db.Where("id = ?", certificate.UserID).Take(&profile).Error; err == nil {
		data.RecipientName = profile.DisplayName()
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.Certificate{}, apperrors.New(opRender, "profile_lookup_failed", err)
	}
	if certificate.CourseID != nil {
		var course models.Course
		if err := db.Where("id = ?", *certificate.CourseID).Take(&course).Error; err == nil {
			data.CourseTitle = course.Title
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.Certificate{}, apperrors.New(opRender, "course_lookup_failed", err)
		}
	}

	var buffer bytes.Buffer
	if err := documents.CertificatePDF(&buffer, data); err != nil {
		apperrors.Log(s.logger, "certificates service error", opRender, "pdf_failed", err, zap.String("certificate_id", certificateID))
		return nil, models.Certificate{}, apperrors.New(opRender, "pdf_failed", err)
	}
	return buffer.Bytes(), certificate, nil
}

// Publish renders the certificate, stores the PDF and links it on the row.
// The holder is notified once the link is saved.
func (s *Service) Publish(ctx context.Context, certificateID string) (models.Certificate, error) {
	pdf, certificate, err := s.Render(ctx, certificateID)
	if err != nil {
		return models.Certificate{}, err
	}
	if certificate.Status == models.CertificateRevoked {
		return models.Certificate{}, ErrCertificateRevoked
	}

	key := fmt.Sprintf("certificates/%s/%s.pdf", certificate.UserID, certificate.CertificateNumber)
	if err := s.storage.Put(ctx, key, bytes.NewReader(pdf), contentTypePDF); err != nil {
		apperrors.Log(s.logger, "certificates service error", opPublish, "upload_failed", err, zap.String("certificate_id", certificateID))
		return models.Certificate{}, apperrors.New(opPublish, "upload_failed", err)
	}
	url, err := s.storage.URL(ctx, key)
	if err != nil {
		return models.Certificate{}, apperrors.New(opPublish, "url_failed", err)
	}

	now := s.clock().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Certificate{}).Where("id = ?", certificate.ID).Updates(map[string]interface{}{
			"document_key": key,
			"document_url": url,
			"status":       models.CertificateIssued,
			"updated_at":   now,
		}).Error
		if err != nil {
			return apperrors.New(opPublish, "update_failed", err)
		}
		return s.outbox.Enqueue(tx, outbox.NotifyUser(outbox.Notice{
			UserID:    certificate.UserID,
			Type:      "certificate",
			Title:     "Certificate available",
			Message:   fmt.Sprintf("Your certificate %s is ready to download.", certificate.CertificateNumber),
			RelatedID: certificate.ID,
		}))
	})
	if err != nil {
		apperrors.Log(s.logger, "certificates service error", opPublish, "transaction_failed", err, zap.String("certificate_id", certificateID))
		return models.Certificate{}, err
	}
	certificate.DocumentKey = key
	certificate.DocumentURL = url
	certificate.Status = models.CertificateIssued
	return certificate, nil
}

// Revoke marks a certificate revoked. Revoking twice is a no-op.
func (s *Service) Revoke(ctx context.Context, certificateID string) (models.Certificate, error) {
	certificate, err := s.Get(ctx, certificateID)
	if err != nil {
		return models.Certificate{}, err
	}
	if certificate.Status == models.CertificateRevoked {
		return certificate, nil
	}
	err = s.db.WithContext(ctx).Model(&models.Certificate{}).Where("id = ?", certificateID).Updates(map[string]interface{}{
		"status":     models.CertificateRevoked,
		"updated_at": s.clock().UTC(),
	}).Error
	if err != nil {
		apperrors.Log(s.logger, "certificates service error", opRevoke, "update_failed", err, zap.String("certificate_id", certificateID))
		return models.Certificate{}, apperrors.New(opRevoke, "update_failed", err)
	}
	certificate.Status = models.CertificateRevoked
	return certificate, nil
}

func validStatus(status models.CertificateStatus) bool {
	switch status {
	case models.CertificateIssued, models.CertificatePending, models.CertificateRevoked:
		return true
	}
	return false
}
