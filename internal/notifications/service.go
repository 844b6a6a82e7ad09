package notifications

import (
	"context"
	"errors"

	"github.com/christlifeministries/portal/internal/apperrors"
	"github.com/christlifeministries/portal/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotificationNotFound indicates no notification with that id belongs to the user.
	ErrNotificationNotFound = errors.New("notifications: notification not found")
	errMissingDatabase      = errors.New("notifications: database handle is required")
	errMissingIDProvider    = errors.New("notifications: id provider is required")
)

const (
	opServiceNew = "notifications.service.new"
	opList       = "notifications.list"
	opMarkRead   = "notifications.mark_read"

	defaultListLimit = 50
	maxListLimit     = 200
)

// Service reads and acknowledges a user's in-app notifications.
type Service struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewService(db *gorm.DB, logger *zap.Logger) (*Service, error) {
	if db == nil {
		return nil, apperrors.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: db, logger: logger}, nil
}

// Page is one listing with the user's unread total.
type Page struct {
	Notifications []models.Notification `json:"notifications"`
	Unread        int64                 `json:"unread"`
}

// List returns the newest notifications first.
func (s *Service) List(ctx context.Context, userID string, limit int) (Page, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	page := Page{Notifications: []models.Notification{}}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&page.Notifications).Error
	if err != nil {
		apperrors.Log(s.logger, "notifications service error", opList, "query_failed", err, zap.String("user_id", userID))
		return Page{}, apperrors.New(opList, "query_failed", err)
	}
	err = s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&page.Unread).Error
	if err != nil {
		apperrors.Log(s.logger, "notifications service error", opList, "count_failed", err, zap.String("user_id", userID))
		return Page{}, apperrors.New(opList, "count_failed", err)
	}
	return page, nil
}

// MarkRead flags one notification as read. Marking twice succeeds.
func (s *Service) MarkRead(ctx context.Context, userID, notificationID string) error {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		apperrors.Log(s.logger, "notifications service error", opMarkRead, "update_failed", result.Error,
			zap.String("user_id", userID))
		return apperrors.New(opMarkRead, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		var count int64
		s.db.WithContext(ctx).Model(&models.Notification{}).
			Where("id = ? AND user_id = ?", notificationID, userID).
			Count(&count)
		if count == 0 {
			return ErrNotificationNotFound
		}
	}
	return nil
}
