package events

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/outbox"
	sqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type sequenceIDs struct {
	next int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.next++
	return fmt.Sprintf("evt-%03d", s.next), nil
}

type linker struct{}

func (linker) PaymentURL(payment models.Payment) string {
	return "https://pay.example.com/checkout?payment_id=" + payment.ID
}

var now = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "events.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(append(models.All(), &outbox.Message{})...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	ids := &sequenceIDs{}
	writer, _ := outbox.NewWriter(ids, nil)
	service, err := NewService(ServiceConfig{
		Database:   db,
		IDProvider: ids,
		Outbox:     writer,
		Payments:   linker{},
		BaseURL:    "https://portal.example.com",
		Clock:      func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	events := []models.Event{
		{ID: "free", Title: "Prayer Night", StartsAt: now.Add(48 * time.Hour), Fee: decimal.Zero},
		{ID: "paid", Title: "Leaders Summit", StartsAt: now.Add(72 * time.Hour), Fee: decimal.RequireFromString("150"), Currency: "zar"},
		{ID: "small", Title: "Retreat", StartsAt: now.Add(96 * time.Hour), Fee: decimal.Zero, Capacity: 1},
		{ID: "past", Title: "Easter Service", StartsAt: now.Add(-24 * time.Hour), Fee: decimal.Zero},
	}
	for _, event := range events {
		if err := db.Create(&event).Error; err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}
	return service, db
}

var ticketPattern = regexp.MustCompile(`^EVT-2026-[A-Z0-9]{6}$`)

func TestRegisterFreeEvent(t *testing.T) {
	service, db := newTestService(t)
	result, err := service.Register(context.Background(), RegisterRequest{
		UserID: "user-1", Name: "Sizwe", Email: "sizwe@example.com", EventID: "free",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !ticketPattern.MatchString(result.TicketNumber) || result.PaymentID != "" {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.RedirectURL != "https://portal.example.com/events/registrations/"+result.RegistrationID {
		t.Fatalf("unexpected redirect %q", result.RedirectURL)
	}
	var registration models.EventRegistration
	db.Take(&registration, "id = ?", result.RegistrationID)
	if registration.PaymentStatus != models.PaymentStateNotRequired || registration.RegistrationData["full_name"] != "Sizwe" {
		t.Fatalf("unexpected registration %+v", registration)
	}
	var count int64
	db.Model(&outbox.Message{}).Count(&count)
	if count != 3 {
		t.Fatalf("expected user, admin and email intents, got %d", count)
	}
}

func TestRegisterPaidEventCreatesPayment(t *testing.T) {
	service, db := newTestService(t)
	result, err := service.Register(context.Background(), RegisterRequest{UserID: "user-1", EventID: "paid"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if result.PaymentID == "" || result.RedirectURL != "https://pay.example.com/checkout?payment_id="+result.PaymentID {
		t.Fatalf("unexpected result %+v", result)
	}
	var payment models.Payment
	db.Take(&payment, "id = ?", result.PaymentID)
	if payment.PaymentType != models.PaymentTypeEventRegistration || payment.Currency != "ZAR" ||
		payment.EventRegistrationID == nil || *payment.EventRegistrationID != result.RegistrationID {
		t.Fatalf("unexpected payment %+v", payment)
	}
}

func TestRegisterRejectsDuplicatesAndFullEvents(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	if _, err := service.Register(ctx, RegisterRequest{UserID: "user-1", EventID: "free"}); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := service.Register(ctx, RegisterRequest{UserID: "user-1", EventID: "free"}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected already registered, got %v", err)
	}
	if _, err := service.Register(ctx, RegisterRequest{UserID: "user-1", EventID: "small"}); err != nil {
		t.Fatalf("capacity seat: %v", err)
	}
	if _, err := service.Register(ctx, RegisterRequest{UserID: "user-2", EventID: "small"}); !errors.Is(err, ErrEventFull) {
		t.Fatalf("expected event full, got %v", err)
	}
	if _, err := service.Register(ctx, RegisterRequest{UserID: "user-1", EventID: "missing"}); !errors.Is(err, ErrEventNotFound) {
		t.Fatalf("expected event not found, got %v", err)
	}
}

func TestUpcomingSkipsPastEvents(t *testing.T) {
	service, _ := newTestService(t)
	events, err := service.Upcoming(context.Background())
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(events) != 3 || events[0].ID != "free" || events[2].ID != "small" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestTicketIsScopedToOwner(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()
	result, _ := service.Register(ctx, RegisterRequest{UserID: "user-1", Name: "Sizwe", EventID: "free"})

	pdf, registration, err := service.Ticket(ctx, "user-1", result.RegistrationID, false)
	if err != nil {
		t.Fatalf("ticket: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) || registration.TicketNumber != result.TicketNumber {
		t.Fatalf("unexpected ticket output")
	}
	if _, _, err := service.Ticket(ctx, "user-2", result.RegistrationID, false); !errors.Is(err, ErrRegistrationNotFound) {
		t.Fatalf("expected not found for another member, got %v", err)
	}
	if _, _, err := service.Ticket(ctx, "admin-1", result.RegistrationID, true); err != nil {
		t.Fatalf("admins may fetch any ticket: %v", err)
	}
}
