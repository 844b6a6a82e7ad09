package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/christlifeministries/portal/internal/applications"
	"github.com/christlifeministries/portal/internal/auth"
	"github.com/christlifeministries/portal/internal/broadcast"
	"github.com/christlifeministries/portal/internal/certificates"
	"github.com/christlifeministries/portal/internal/config"
	"github.com/christlifeministries/portal/internal/database"
	"github.com/christlifeministries/portal/internal/donations"
	"github.com/christlifeministries/portal/internal/drafts"
	"github.com/christlifeministries/portal/internal/events"
	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/notifications"
	"github.com/christlifeministries/portal/internal/outbox"
	"github.com/christlifeministries/portal/internal/payments"
	"github.com/christlifeministries/portal/internal/server"
	"github.com/christlifeministries/portal/internal/storage"
	"github.com/christlifeministries/portal/internal/uploads"
	"github.com/christlifeministries/portal/internal/users"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	sessionSigningSecret = "integration-secret"
	sessionCookieName    = "clm_session"
	memberID             = "member-1"
	adminID              = "admin-1"
)

type recordingMailer struct {
	mu     sync.Mutex
	emails []outbox.Email
}

func (m *recordingMailer) Send(_ context.Context, email outbox.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, email)
	return nil
}

func (m *recordingMailer) subjects() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	subjects := make([]string, 0, len(m.emails))
	for _, email := range m.emails {
		subjects = append(subjects, email.Subject)
	}
	sort.Strings(subjects)
	return subjects
}

func TestCourseApplicationFlow(testContext *testing.T) {
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	logger := zap.NewNop()

	db, err := database.Open(database.Options{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(testContext.TempDir(), "integration.db"),
	}, logger)
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	objects, err := storage.NewLocal(testContext.TempDir(), "/files")
	if err != nil {
		testContext.Fatalf("failed to create storage: %v", err)
	}
	ids := models.NewUUIDProvider()
	writer, err := outbox.NewWriter(ids, nil)
	if err != nil {
		testContext.Fatalf("failed to create outbox writer: %v", err)
	}
	gateway, err := payments.NewGateway(payments.GatewayConfig{
		CheckoutURL:    "https://pay.example.com/checkout",
		SigningSecret:  "integration-payments",
		CallbackSecret: "integration-provider",
		ReturnBaseURL:  "https://portal.example.com",
	})
	if err != nil {
		testContext.Fatalf("failed to create gateway: %v", err)
	}
	realtime := server.NewRealtimeDispatcher()

	usersService, err := users.NewService(users.ServiceConfig{Database: db, Logger: logger})
	if err != nil {
		testContext.Fatalf("users: %v", err)
	}
	draftsService, err := drafts.NewService(drafts.ServiceConfig{Database: db, IDProvider: ids, Logger: logger})
	if err != nil {
		testContext.Fatalf("drafts: %v", err)
	}
	uploader, err := uploads.NewUploader(uploads.UploaderConfig{Storage: objects, Profiles: usersService, IDProvider: ids, Logger: logger})
	if err != nil {
		testContext.Fatalf("uploader: %v", err)
	}
	submitter, err := applications.NewSubmitter(applications.SubmitterConfig{
		Database:   db,
		IDProvider: ids,
		Outbox:     writer,
		Uploader:   uploader,
		Drafts:     draftsService,
		Payments:   gateway,
		Fees:       config.FeesConfig{BibleSchool: decimal.NewFromInt(350), Membership: decimal.Zero},
		Currency:   "ZAR",
		BaseURL:    "https://portal.example.com",
		Logger:     logger,
	})
	if err != nil {
		testContext.Fatalf("submitter: %v", err)
	}
	reviewer, err := applications.NewReviewer(applications.ReviewerConfig{Database: db, IDProvider: ids, Outbox: writer, Logger: logger})
	if err != nil {
		testContext.Fatalf("reviewer: %v", err)
	}
	paymentsService, err := payments.NewService(payments.ServiceConfig{Database: db, Gateway: gateway, Outbox: writer, Logger: logger})
	if err != nil {
		testContext.Fatalf("payments: %v", err)
	}
	donationsService, err := donations.NewService(donations.ServiceConfig{Database: db, IDProvider: ids, Outbox: writer, Payments: gateway})
	if err != nil {
		testContext.Fatalf("donations: %v", err)
	}
	eventsService, err := events.NewService(events.ServiceConfig{Database: db, IDProvider: ids, Outbox: writer, Payments: gateway})
	if err != nil {
		testContext.Fatalf("events: %v", err)
	}
	broadcasts, err := broadcast.NewService(broadcast.ServiceConfig{Database: db, IDProvider: ids, Outbox: writer, Publish: realtime.PublishNotification})
	if err != nil {
		testContext.Fatalf("broadcast: %v", err)
	}
	certificatesService, err := certificates.NewService(certificates.ServiceConfig{Database: db, IDProvider: ids, Storage: objects, Outbox: writer})
	if err != nil {
		testContext.Fatalf("certificates: %v", err)
	}
	notificationsService, err := notifications.NewService(db, logger)
	if err != nil {
		testContext.Fatalf("notifications: %v", err)
	}
	mailer := &recordingMailer{}
	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherConfig{
		Database:   db,
		IDProvider: ids,
		Admins:     usersService,
		Mailer:     mailer,
		Publish:    realtime.PublishNotification,
		Logger:     logger,
	})
	if err != nil {
		testContext.Fatalf("dispatcher: %v", err)
	}
	worker, err := outbox.NewWorker(outbox.WorkerConfig{Database: db, Handler: dispatcher, Logger: logger})
	if err != nil {
		testContext.Fatalf("worker: %v", err)
	}
	sessionValidator, err := auth.NewSessionValidator(auth.SessionValidatorConfig{
		SigningSecret: []byte(sessionSigningSecret),
		CookieName:    sessionCookieName,
	})
	if err != nil {
		testContext.Fatalf("failed to construct session validator: %v", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte(sessionSigningSecret)})
	if err != nil {
		testContext.Fatalf("failed to construct token issuer: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Sessions:      sessionValidator,
		Users:         usersService,
		Drafts:        draftsService,
		Submitter:     submitter,
		Reviewer:      reviewer,
		Payments:      paymentsService,
		Donations:     donationsService,
		Events:        eventsService,
		Broadcasts:    broadcasts,
		Certificates:  certificatesService,
		Notifications: notificationsService,
		Uploader:      uploader,
		Storage:       objects,
		Realtime:      realtime,
		Logger:        logger,
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}

	if err := db.Create(&models.Course{ID: "course-1", Title: "Foundations of Faith", Fee: decimal.NewFromInt(120), Currency: "ZAR"}).Error; err != nil {
		testContext.Fatalf("seed course: %v", err)
	}
	if _, err := usersService.Promote(ctx, adminID, "office@example.com", "Office", models.RoleAdmin); err != nil {
		testContext.Fatalf("seed admin: %v", err)
	}

	token := func(userID string) string {
		signed, _, err := issuer.Issue(auth.SessionClaims{UserID: userID, UserEmail: userID + "@example.com"})
		if err != nil {
			testContext.Fatalf("issue token: %v", err)
		}
		return signed
	}
	send := func(request *http.Request, userID string) *httptest.ResponseRecorder {
		request.AddCookie(&http.Cookie{Name: sessionCookieName, Value: token(userID)})
		recorder := httptest.NewRecorder()
		handler.ServeHTTP(recorder, request)
		return recorder
	}
	sendJSON := func(method, target, userID string, body any) *httptest.ResponseRecorder {
		payload, _ := json.Marshal(body)
		request := httptest.NewRequest(method, target, bytes.NewReader(payload))
		request.Header.Set("Content-Type", "application/json")
		return send(request, userID)
	}

	values, _ := json.Marshal(map[string]any{
		"full_name":         "Thandi Mokoena",
		"email":             "thandi@example.com",
		"phone":             "0820000000",
		"course_id":         "course-1",
		"study_mode":        "online",
		"declaration_truth": true,
	})
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	_ = form.WriteField("form_type", "course")
	_ = form.WriteField("current_step", "3")
	_ = form.WriteField("form_data", string(values))
	_ = form.Close()
	submitRequest := httptest.NewRequest(http.MethodPost, "/applications", &body)
	submitRequest.Header.Set("Content-Type", form.FormDataContentType())
	submitted := send(submitRequest, memberID)
	if submitted.Code != http.StatusCreated {
		testContext.Fatalf("submit failed: %d %s", submitted.Code, submitted.Body.String())
	}
	var result applications.SubmissionResult
	if err := json.Unmarshal(submitted.Body.Bytes(), &result); err != nil {
		testContext.Fatalf("decode submission: %v", err)
	}
	if result.PaymentID == "" || !strings.HasPrefix(result.RedirectURL, "https://pay.example.com/checkout") {
		testContext.Fatalf("expected checkout redirect, got %+v", result)
	}

	signature := gateway.SignReturn(result.PaymentID, decimal.NewFromInt(120), "ZAR", "PSP-INT-1")
	confirmed := sendJSON(http.MethodPost, "/payments/"+result.PaymentID+"/confirm", memberID, map[string]string{
		"reference": "PSP-INT-1",
		"signature": signature,
	})
	if confirmed.Code != http.StatusOK {
		testContext.Fatalf("confirm failed: %d %s", confirmed.Code, confirmed.Body.String())
	}

	approved := sendJSON(http.MethodPatch, "/admin/applications/"+result.ApplicationID+"/status", adminID, map[string]string{"status": "approved"})
	if approved.Code != http.StatusOK {
		testContext.Fatalf("approve failed: %d %s", approved.Code, approved.Body.String())
	}

	stats, err := worker.ProcessPending(ctx)
	if err != nil {
		testContext.Fatalf("process outbox: %v", err)
	}
	if stats.Failed != 0 || stats.Retried != 0 {
		testContext.Fatalf("expected clean delivery, got %+v", stats)
	}

	var application models.Application
	if err := db.Where("id = ?", result.ApplicationID).Take(&application).Error; err != nil {
		testContext.Fatalf("load application: %v", err)
	}
	if application.Status != models.ApplicationApproved || application.PaymentStatus != models.PaymentStateConfirmed {
		testContext.Fatalf("unexpected application state %s/%s", application.Status, application.PaymentStatus)
	}
	var enrollments int64
	db.Model(&models.CourseEnrollment{}).Where("course_id = ? AND user_id = ?", "course-1", memberID).Count(&enrollments)
	if enrollments != 1 {
		testContext.Fatalf("expected one enrollment, got %d", enrollments)
	}

	listed := send(httptest.NewRequest(http.MethodGet, "/notifications", http.NoBody), memberID)
	var page notifications.Page
	if err := json.Unmarshal(listed.Body.Bytes(), &page); err != nil {
		testContext.Fatalf("decode notifications: %v", err)
	}
	titles := make([]string, 0, len(page.Notifications))
	for _, notification := range page.Notifications {
		titles = append(titles, notification.Title)
	}
	sort.Strings(titles)
	if strings.Join(titles, "|") != "Application approved|Application fee paid|Application received" || page.Unread != 3 {
		testContext.Fatalf("unexpected member notifications %v (unread %d)", titles, page.Unread)
	}

	var adminNotices int64
	db.Model(&models.Notification{}).Where("user_id = ? AND title = ?", adminID, "New Course application").Count(&adminNotices)
	if adminNotices != 1 {
		testContext.Fatalf("expected one admin notification, got %d", adminNotices)
	}

	subjects := strings.Join(mailer.subjects(), "|")
	want := "Application approved|Application fee received|Your Course application has been received"
	if subjects != want {
		testContext.Fatalf("unexpected emails %q", subjects)
	}

	again, err := worker.ProcessPending(ctx)
	if err != nil || again.Sent != 0 {
		testContext.Fatalf("expected nothing left to deliver, got %+v %v", again, err)
	}
}
