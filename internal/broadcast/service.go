package broadcast

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
)

// Mode selects the audience of a broadcast.
type Mode string

const (
	ModeAll      Mode = "all"
	ModeAdmins   Mode = "admins"
	ModeSpecific Mode = "specific"
	ModeCourse   Mode = "course"
	ModeEvent    Mode = "event"
)

var (
	// ErrUnknownMode indicates an audience mode outside the supported set.
	ErrUnknownMode = errors.New("broadcast: unknown recipient mode")
	// ErrInvalidBroadcast indicates a missing title, message or audience key.
	ErrInvalidBroadcast = errors.New("broadcast: title and message are required")
	// ErrNoRecipients indicates the audience resolved to nobody.
	ErrNoRecipients = errors.New("broadcast: no recipients matched")

	errMissingDatabase   = errors.New("broadcast: database handle is required")
	errMissingIDProvider = errors.New("broadcast: id provider is required")
	errMissingOutbox     = errors.New("broadcast: outbox writer is required")
)

const (
	opServiceNew = "broadcast.service.new"
	opSend       = "broadcast.send"
	insertBatch  = 200
)

type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider models.IDProvider
	Outbox     *outbox.Writer
	Publish    func(models.Notification)
	Clock      func() time.Time
	Logger     *zap.Logger
	Observe    func(recipients int)
}

// Service sends one message to many members.
type Service struct {
	db      *gorm.DB
	ids     models.IDProvider
	outbox  *outbox.Writer
	publish func(models.Notification)
	clock   func() time.Time
	logger  *zap.Logger
	observe func(recipients int)
}

func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Database == nil:
		return nil, apperrors.New(opServiceNew, "missing_database", errMissingDatabase)
	case cfg.IDProvider == nil:
		return nil, apperrors.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	case cfg.Outbox == nil:
		return nil, apperrors.New(opServiceNew, "missing_outbox", errMissingOutbox)
	}
	service := &Service{
		db:      cfg.Database,
		ids:     cfg.IDProvider,
		outbox:  cfg.Outbox,
		publish: cfg.Publish,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		observe: cfg.Observe,
	}
	if service.publish == nil {
		service.publish = func(models.Notification) {}
	}
	if service.clock == nil {
		service.clock = time.Now
	}
	if service.logger == nil {
		service.logger = zap.NewNop()
	}
	if service.observe == nil {
		service.observe = func(int) {}
	}
	return service, nil
}

// Request describes one broadcast. UserIDs is read for ModeSpecific,
// CourseID for ModeCourse and EventID for ModeEvent.
type Request struct {
	Mode      Mode
	UserIDs   []string
	CourseID  string
	EventID   string
	Type      string
	Title     string
	Message   string
	SendEmail bool
}

// Send resolves the audience, inserts every notification in one batch and,
// when requested, queues one email per recipient in the same transaction.
// It returns the number of members notified.
func (s *Service) Send(ctx context.Context, request Request) (int, error) {
	title := strings.TrimSpace(request.Title)
	message := strings.TrimSpace(request.Message)
	if title == "" || message == "" {
		return 0, ErrInvalidBroadcast
	}
	db := s.db.WithContext(ctx)
	recipients, err := s.recipients(db, request)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, ErrNoRecipients
	}

	noticeType := request.Type
	if noticeType == "" {
		noticeType = "announcement"
	}
	now := s.clock().UTC()
	rows := make([]models.Notification, 0, len(recipients))
	for _, userID := range recipients {
		id, err := s.ids.NewID()
		if err != nil {
			return 0, apperrors.New(opSend, "id_generation_failed", err)
		}
		rows = append(rows, models.Notification{
			ID:        id,
			UserID:    userID,
			Type:      noticeType,
			Title:     title,
			Message:   message,
			CreatedAt: now,
		})
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.CreateInBatches(&rows, insertBatch).Error; err != nil {
			return apperrors.New(opSend, "insert_failed", err)
		}
		if !request.SendEmail {
			return nil
		}
		emails, err := s.emails(tx, recipients)
		if err != nil {
			return err
		}
		intents := make([]outbox.Intent, 0, len(emails))
		for _, address := range emails {
			intents = append(intents, outbox.SendEmail(outbox.Email{
				To:      address,
				Subject: title,
				Body:    message + "\n\nChrist Life Ministries",
			}))
		}
		if err := s.outbox.Enqueue(tx, intents...); err != nil {
			return apperrors.New(opSend, "outbox_failed", err)
		}
		return nil
	})
	if err != nil {
		apperrors.Log(s.logger, "broadcast service error", opSend, "transaction_failed", err,
			zap.String("mode", string(request.Mode)),
			zap.Int("recipients", len(recipients)))
		return 0, err
	}

	for _, row := range rows {
		s.publish(row)
	}
	s.observe(len(rows))
	return len(rows), nil
}

// recipients runs exactly one query for the mode and returns distinct user
// ids in first-seen order.
func (s *Service) recipients(db *gorm.DB, request Request) ([]string, error) {
	var ids []string
	var err error
	switch request.Mode {
	case ModeAll:
		err = db.Model(&models.UserProfile{}).Order("created_at ASC").Pluck("id", &ids).Error
	case ModeAdmins:
		err = db.Model(&models.UserProfile{}).Where("role IN ?", models.AdminRoles).Order("created_at ASC").Pluck("id", &ids).Error
	case ModeSpecific:
		requested := dedupe(request.UserIDs)
		if len(requested) == 0 {
			return nil, nil
		}
		err = db.Model(&models.UserProfile{}).Where("id IN ?", requested).Pluck("id", &ids).Error
	case ModeCourse:
		if strings.TrimSpace(request.CourseID) == "" {
			return nil, fmt.Errorf("%w: course id is required", ErrInvalidBroadcast)
		}
		err = db.Model(&models.CourseEnrollment{}).Where("course_id = ?", request.CourseID).Order("created_at ASC").Pluck("user_id", &ids).Error
	case ModeEvent:
		if strings.TrimSpace(request.EventID) == "" {
			return nil, fmt.Errorf("%w: event id is required", ErrInvalidBroadcast)
		}
		err = db.Model(&models.EventRegistration{}).Where("event_id = ?", request.EventID).Order("created_at ASC").Pluck("user_id", &ids).Error
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, request.Mode)
	}
	if err != nil {
		apperrors.Log(s.logger, "broadcast service error", opSend, "recipient_query_failed", err, zap.String("mode", string(request.Mode)))
		return nil, apperrors.New(opSend, "recipient_query_failed", err)
	}
	return dedupe(ids), nil
}

func (s *Service) emails(tx *gorm.DB, recipients []string) ([]string, error) {
	var profiles []models.UserProfile
	if err := tx.Select("id", "email").Where("id IN ?", recipients).Find(&profiles).Error; err != nil {
		return nil, apperrors.New(opSend, "email_lookup_failed", err)
	}
	byID := make(map[string]string, len(profiles))
	for _, profile := range profiles {
		byID[profile.ID] = profile.Email
	}
	emails := make([]string, 0, len(recipients))
	for _, userID := range recipients {
		if address := byID[userID]; address != "" {
			emails = append(emails, address)
		}
	}
	return emails, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.TrimSpace(value)
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
