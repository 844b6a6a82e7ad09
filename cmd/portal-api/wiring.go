package main

import (
	"context"
	"net/http"

	"github.com/christlifeministries/portal/internal/applications"
	"github.com/christlifeministries/portal/internal/auth"
	"github.com/christlifeministries/portal/internal/broadcast"
	"github.com/christlifeministries/portal/internal/certificates"
	"github.com/christlifeministries/portal/internal/config"
	"github.com/christlifeministries/portal/internal/donations"
	"github.com/christlifeministries/portal/internal/drafts"
	"github.com/christlifeministries/portal/internal/events"
	"github.com/christlifeministries/portal/internal/metrics"
	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/notifications"
	"github.com/christlifeministries/portal/internal/outbox"
	"github.com/christlifeministries/portal/internal/payments"
	"github.com/christlifeministries/portal/internal/server"
	"github.com/christlifeministries/portal/internal/storage"
	"github.com/christlifeministries/portal/internal/uploads"
	"github.com/christlifeministries/portal/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type application struct {
	handler http.Handler
	worker  *outbox.Worker
}

// buildApplication wires every service onto one database, one outbox and
// one realtime dispatcher.
func buildApplication(ctx context.Context, cfg config.AppConfig, db *gorm.DB, logger *zap.Logger) (*application, error) {
	ids := models.NewUUIDProvider()
	portalMetrics := metrics.New()
	realtime := server.NewRealtimeDispatcher()

	objects, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	writer, err := outbox.NewWriter(ids, nil)
	if err != nil {
		return nil, err
	}
	gateway, err := payments.NewGateway(payments.GatewayConfig{
		CheckoutURL:   cfg.Payments.CheckoutURL,
		SigningSecret:  cfg.Payments.SigningSecret,
		CallbackSecret: cfg.Payments.CallbackSecret,
		ReturnBaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return nil, err
	}
	sessions, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(cfg.AuthSigningSecret),
		Issuer:        cfg.AuthIssuer,
		CookieName:    cfg.AuthCookieName,
	})
	if err != nil {
		return nil, err
	}

	usersService, err := users.NewService(users.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		return nil, err
	}
	draftsService, err := drafts.NewService(drafts.ServiceConfig{Database: db, IDProvider: ids, Logger: logger})
	if err != nil {
		return nil, err
	}
	uploader, err := uploads.NewUploader(uploads.UploaderConfig{
		Storage:    objects,
		Profiles:   usersService,
		IDProvider: ids,
		MaxBytes:   cfg.MaxUploadBytes,
		Logger:     logger,
		OnRejected: portalMetrics.ObserveUploadRejected,
	})
	if err != nil {
		return nil, err
	}
	submitter, err := applications.NewSubmitter(applications.SubmitterConfig{
		Database:   db,
		IDProvider: ids,
		Outbox:     writer,
		Uploader:   uploader,
		Drafts:     draftsService,
		Payments:   gateway,
		Fees:       cfg.Fees,
		Currency:   cfg.Payments.Currency,
		BaseURL:    cfg.BaseURL,
		Logger:     logger,
		Observe: func(program models.ProgramType) {
			portalMetrics.ObserveSubmission(string(program))
		},
	})
	if err != nil {
		return nil, err
	}
	reviewer, err := applications.NewReviewer(applications.ReviewerConfig{Database: db, IDProvider: ids, Outbox: writer, Logger: logger})
	if err != nil {
		return nil, err
	}
	paymentsService, err := payments.NewService(payments.ServiceConfig{
		Database: db,
		Gateway:  gateway,
		Outbox:   writer,
		Logger:   logger,
		Observe: func(paymentType models.PaymentType) {
			portalMetrics.ObservePaymentConfirmed(string(paymentType))
		},
	})
	if err != nil {
		return nil, err
	}
	donationsService, err := donations.NewService(donations.ServiceConfig{
		Database:   db,
		IDProvider: ids,
		Outbox:     writer,
		Payments:   gateway,
		Currency:   cfg.Payments.Currency,
		Logger:     logger,
		Observe:    func() { portalMetrics.ObserveSubmission("donation") },
	})
	if err != nil {
		return nil, err
	}
	eventsService, err := events.NewService(events.ServiceConfig{
		Database:   db,
		IDProvider: ids,
		Outbox:     writer,
		Payments:   gateway,
		BaseURL:    cfg.BaseURL,
		Logger:     logger,
		Observe:    func() { portalMetrics.ObserveSubmission("event_registration") },
	})
	if err != nil {
		return nil, err
	}
	broadcasts, err := broadcast.NewService(broadcast.ServiceConfig{
		Database:   db,
		IDProvider: ids,
		Outbox:     writer,
		Publish:    realtime.PublishNotification,
		Logger:     logger,
		Observe:    portalMetrics.ObserveBroadcast,
	})
	if err != nil {
		return nil, err
	}
	certificatesService, err := certificates.NewService(certificates.ServiceConfig{
		Database:   db,
		IDProvider: ids,
		Storage:    objects,
		Outbox:     writer,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	notificationsService, err := notifications.NewService(db, logger)
	if err != nil {
		return nil, err
	}

	mailer, err := notifications.NewMailer(cfg.Email, logger)
	if err != nil {
		return nil, err
	}
	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherConfig{
		Database:   db,
		IDProvider: ids,
		Admins:     usersService,
		Mailer:     mailer,
		Publish:    realtime.PublishNotification,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	worker, err := outbox.NewWorker(outbox.WorkerConfig{
		Database:     db,
		Handler:      dispatcher,
		BatchSize:    cfg.Outbox.BatchSize,
		MaxAttempts:  cfg.Outbox.MaxAttempts,
		PollInterval: cfg.Outbox.PollInterval,
		Logger:       logger,
		Observe: func(kind outbox.Kind, result string) {
			portalMetrics.ObserveOutbox(string(kind), result)
		},
	})
	if err != nil {
		return nil, err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:       sessions,
		Users:          usersService,
		Drafts:         draftsService,
		Submitter:      submitter,
		Reviewer:       reviewer,
		Payments:       paymentsService,
		Donations:      donationsService,
		Events:         eventsService,
		Broadcasts:     broadcasts,
		Certificates:   certificatesService,
		Notifications:  notificationsService,
		Uploader:       uploader,
		Storage:        objects,
		Realtime:       realtime,
		Metrics:        portalMetrics,
		DashboardURL:   cfg.BaseURL + cfg.DashboardPath,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	return &application{handler: handler, worker: worker}, nil
}
