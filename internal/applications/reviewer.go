package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/christlifeministries/portal/internal/apperrors"
	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/outbox"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrApplicationNotFound indicates no application with that id exists.
	ErrApplicationNotFound = errors.New("applications: application not found")
	// ErrInvalidStatus indicates a review status outside pending/approved/rejected.
	ErrInvalidStatus = errors.New("applications: invalid status")
)

const (
	opReviewerNew  = "applications.reviewer.new"
	opList         = "applications.list"
	opGet          = "applications.get"
	opChangeStatus = "applications.change_status"
)

type ReviewerConfig struct {
	Database   *gorm.DB
	IDProvider models.IDProvider
	Outbox     *outbox.Writer
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Reviewer backs the admin review console.
type Reviewer struct {
	db     *gorm.DB
	ids    models.IDProvider
	outbox *outbox.Writer
	clock  func() time.Time
	logger *zap.Logger
}

func NewReviewer(cfg ReviewerConfig) (*Reviewer, error) {
	if cfg.Database == nil {
		return nil, apperrors.New(opReviewerNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, apperrors.New(opReviewerNew, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Outbox == nil {
		return nil, apperrors.New(opReviewerNew, "missing_outbox", errMissingOutbox)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reviewer{db: cfg.Database, ids: cfg.IDProvider, outbox: cfg.Outbox, clock: clock, logger: logger}, nil
}

// Filter narrows the admin listing. Status and ProgramType are exact
// matches; Search is a case-insensitive substring over name, email and
// program type.
type Filter struct {
	Status      models.ApplicationStatus
	ProgramType models.ProgramType
	Search      string
}

// List returns applications newest first.
func (r *Reviewer) List(ctx context.Context, filter Filter) ([]models.Application, error) {
	query := r.db.WithContext(ctx).Model(&models.Application{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ProgramType != "" {
		query = query.Where("program_type = ?", filter.ProgramType)
	}
	var applications []models.Application
	if err := query.Order("created_at DESC").Order("id DESC").Find(&applications).Error; err != nil {
		apperrors.Log(r.logger, "applications service error", opList, "query_failed", err)
		return nil, apperrors.New(opList, "query_failed", err)
	}
	return filterBySearch(applications, filter.Search), nil
}

func filterBySearch(applications []models.Application, search string) []models.Application {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return applications
	}
	matched := make([]models.Application, 0, len(applications))
	for _, application := range applications {
		haystacks := []string{application.FullName, application.Email, string(application.ProgramType)}
		for _, haystack := range haystacks {
			if strings.Contains(strings.ToLower(haystack), needle) {
				matched = append(matched, application)
				break
			}
		}
	}
	return matched
}

// ListForUser returns the caller's own applications.
func (r *Reviewer) ListForUser(ctx context.Context, userID string) ([]models.Application, error) {
	var applications []models.Application
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&applications).Error
	if err != nil {
		apperrors.Log(r.logger, "applications service error", opList, "query_failed", err, zap.String("user_id", userID))
		return nil, apperrors.New(opList, "query_failed", err)
	}
	return applications, nil
}

// Get loads one application.
func (r *Reviewer) Get(ctx context.Context, applicationID string) (models.Application, error) {
	var application models.Application
	err := r.db.WithContext(ctx).Where("id = ?", applicationID).Take(&application).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Application{}, ErrApplicationNotFound
	}
	if err != nil {
		apperrors.Log(r.logger, "applications service error", opGet, "query_failed", err, zap.String("application_id", applicationID))
		return models.Application{}, apperrors.New(opGet, "query_failed", err)
	}
	return application, nil
}

// ChangeStatus records an admin decision. Concurrent decisions are not
// serialised: the last write wins. Each call schedules exactly one
// applicant notification and one email.
func (r *Reviewer) ChangeStatus(ctx context.Context, adminID, applicationID string, status models.ApplicationStatus) (models.Application, error) {
	if !status.Valid() {
		return models.Application{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	var updated models.Application
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var application models.Application
		err := tx.Where("id = ?", applicationID).Take(&application).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrApplicationNotFound
		}
		if err != nil {
			return apperrors.New(opChangeStatus, "query_failed", err)
		}

		now := r.clock().UTC()
		err = tx.Model(&models.Application{}).Where("id = ?", applicationID).Updates(map[string]interface{}{
			"status":      status,
			"reviewed_by": adminID,
			"reviewed_at": now,
			"updated_at":  now,
		}).Error
		if err != nil {
			return apperrors.New(opChangeStatus, "update_failed", err)
		}
		application.Status = status
		application.ReviewedBy = adminID
		application.ReviewedAt = &now

		if status == models.ApplicationApproved && application.ProgramType == models.ProgramCourse && application.CourseID != "" {
			if err := r.enrol(tx, application); err != nil {
				return err
			}
		}
		if err := r.outbox.Enqueue(tx, statusIntents(application)...); err != nil {
			return apperrors.New(opChangeStatus, "outbox_failed", err)
		}
		updated = application
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrApplicationNotFound) {
			apperrors.Log(r.logger, "applications service error", opChangeStatus, "transaction_failed", err,
				zap.String("application_id", applicationID))
		}
		return models.Application{}, err
	}
	return updated, nil
}

func (r *Reviewer) enrol(tx *gorm.DB, application models.Application) error {
	id, err := r.ids.NewID()
	if err != nil {
		return apperrors.New(opChangeStatus, "id_generation_failed", err)
	}
	enrollment := models.CourseEnrollment{
		ID:            id,
		CourseID:      application.CourseID,
		UserID:        application.UserID,
		ApplicationID: application.ID,
	}
	err = tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "course_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&enrollment).Error
	if err != nil {
		return apperrors.New(opChangeStatus, "enrollment_failed", err)
	}
	return nil
}

func statusIntents(application models.Application) []outbox.Intent {
	label := application.ProgramType.Label()
	var title, message string
	switch application.Status {
	case models.ApplicationApproved:
		title = "Application approved"
		message = fmt.Sprintf("Congratulations! Your %s application has been approved.", label)
	case models.ApplicationRejected:
		title = "Application not successful"
		message = fmt.Sprintf("Your %s application was not approved this time. Please contact the office for more information.", label)
	default:
		title = "Application under review"
		message = fmt.Sprintf("Your %s application is pending review.", label)
	}
	intents := []outbox.Intent{outbox.NotifyUser(outbox.Notice{
		UserID:    application.UserID,
		Type:      "application_status",
		Title:     title,
		Message:   message,
		RelatedID: application.ID,
	})}
	if application.Email != "" {
		intents = append(intents, outbox.SendEmail(outbox.Email{
			To:      application.Email,
			Subject: title,
			Body:    fmt.Sprintf("Dear %s,\n\n%s\n\nReference: %s\n\nChrist Life Ministries", displayName(application), message, application.ID),
		}))
	}
	return intents
}
