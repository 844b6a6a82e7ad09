package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/christlifeministries/portal/internal/apperrors"
	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/outbox"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const opDispatch = "notifications.dispatch"

var (
	errMissingMailer = errors.New("notifications: mailer is required")
	errMissingAdmins = errors.New("notifications: admin directory is required")
)

// AdminDirectory resolves the recipients of admin notices.
type AdminDirectory interface {
	ListAdmins(ctx context.Context) ([]models.UserProfile, error)
}

type DispatcherConfig struct {
	Database   *gorm.DB
	IDProvider models.IDProvider
	Admins     AdminDirectory
	Mailer     Mailer
	Publish    func(models.Notification)
	Logger     *zap.Logger
}

// Dispatcher performs outbox intents. Notification rows are keyed by the
// originating message so a redelivered message inserts nothing.
type Dispatcher struct {
	db      *gorm.DB
	ids     models.IDProvider
	admins  AdminDirectory
	mailer  Mailer
	publish func(models.Notification)
	logger  *zap.Logger
}

func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Database == nil {
		return nil, apperrors.New(opDispatch, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, apperrors.New(opDispatch, "missing_id_provider", errMissingIDProvider)
	}
	if cfg.Admins == nil {
		return nil, apperrors.New(opDispatch, "missing_admins", errMissingAdmins)
	}
	if cfg.Mailer == nil {
		return nil, apperrors.New(opDispatch, "missing_mailer", errMissingMailer)
	}
	publish := cfg.Publish
	if publish == nil {
		publish = func(models.Notification) {}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		db:      cfg.Database,
		ids:     cfg.IDProvider,
		admins:  cfg.Admins,
		mailer:  cfg.Mailer,
		publish: publish,
		logger:  logger,
	}, nil
}

// Handle implements outbox.Handler.
func (d *Dispatcher) Handle(ctx context.Context, message outbox.Message) error {
	switch message.Kind {
	case outbox.KindNotifyUser:
		notice, err := message.DecodeNotice()
		if err != nil {
			return err
		}
		if notice.UserID == "" {
			return fmt.Errorf("notifications: message %s has no recipient", message.ID)
		}
		return d.insert(ctx, message.ID, notice, []string{notice.UserID}, false)
	case outbox.KindNotifyAdmins:
		notice, err := message.DecodeNotice()
		if err != nil {
			return err
		}
		admins, err := d.admins.ListAdmins(ctx)
		if err != nil {
			apperrors.Log(d.logger, "notification dispatch error", opDispatch, "admin_query_failed", err)
			return apperrors.New(opDispatch, "admin_query_failed", err)
		}
		if len(admins) == 0 {
			d.logger.Warn("admin notification dropped, no admins configured", zap.String("message_id", message.ID))
			return nil
		}
		adminIDs := make([]string, 0, len(admins))
		for _, admin := range admins {
			adminIDs = append(adminIDs, admin.ID)
		}
		return d.insert(ctx, message.ID, notice, adminIDs, true)
	case outbox.KindSendEmail:
		email, err := message.DecodeEmail()
		if err != nil {
			return err
		}
		return d.mailer.Send(ctx, email)
	default:
		return fmt.Errorf("notifications: unknown outbox kind %q", message.Kind)
	}
}

func (d *Dispatcher) insert(ctx context.Context, messageID string, notice outbox.Notice, recipients []string, fanOut bool) error {
	rows := make([]models.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		id, err := d.ids.NewID()
		if err != nil {
			return apperrors.New(opDispatch, "id_generation_failed", err)
		}
		sourceID := messageID
		if fanOut {
			sourceID = messageID + ":" + recipient
		}
		rows = append(rows, models.Notification{
			ID:            id,
			UserID:        recipient,
			Type:          notice.Type,
			Title:         notice.Title,
			Message:       notice.Message,
			RelatedID:     notice.RelatedID,
			SourceEventID: &sourceID,
		})
	}
	result := d.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "source_event_id"}}, DoNothing: true}).
		Create(&rows)
	if result.Error != nil {
		apperrors.Log(d.logger, "notification dispatch error", opDispatch, "insert_failed", result.Error,
			zap.String("message_id", messageID))
		return apperrors.New(opDispatch, "insert_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil
	}
	for _, row := range rows {
		d.publish(row)
	}
	return nil
}
