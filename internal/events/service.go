package events

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
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrEventNotFound indicates no event with that id exists.
	ErrEventNotFound = errors.New("events: event not found")
	// ErrAlreadyRegistered indicates the member already holds a registration.
	ErrAlreadyRegistered = errors.New("events: you are already registered for this event")
	// ErrEventFull indicates the event reached its capacity.
	ErrEventFull = errors.New("events: event is fully booked")
	// ErrRegistrationNotFound covers a missing registration and one owned by someone else.
	ErrRegistrationNotFound = errors.New("events: registration not found")
	// ErrUnauthenticated indicates a registration without a signed-in member.
	ErrUnauthenticated = errors.New("events: user must be authenticated")

	errMissingDatabase   = errors.New("events: database handle is required")
	errMissingIDProvider = errors.New("events: id provider is required")
	errMissingOutbox     = errors.New("events: outbox writer is required")
	errMissingPayments   = errors.New("events: payment linker is required")
)

const (
	opServiceNew = "events.service.new"
	opList       = "events.list"
	opRegister   = "events.register"
	opTicket     = "events.ticket"

	ticketPrefix   = "EVT"
	ticketAttempts = 5
)

// PaymentLinker builds the checkout redirect for a pending payment.
type PaymentLinker interface {
	PaymentURL(payment models.Payment) string
}

type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider models.IDProvider
	Outbox     *outbox.Writer
	Payments   PaymentLinker
	BaseURL    string
	Clock      func() time.Time
	Logger     *zap.Logger
	Observe    func()
}

// Service lists events and registers members for them.
type Service struct {
	db       *gorm.DB
	ids      models.IDProvider
	outbox   *outbox.Writer
	payments PaymentLinker
	baseURL  string
	clock    func() time.Time
	logger   *zap.Logger
	observe  func()
}

func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Database == nil:
		return nil, apperrors.New(opServiceNew, "missing_database", errMissingDatabase)
	case cfg.IDProvider == nil:
		return nil, apperrors.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	case cfg.Outbox == nil:
		return nil, apperrors.New(opServiceNew, "missing_outbox", errMissingOutbox)
	case cfg.Payments == nil:
		return nil, apperrors.New(opServiceNew, "missing_payments", errMissingPayments)
	}
	service := &Service{
		db:       cfg.Database,
		ids:      cfg.IDProvider,
		outbox:   cfg.Outbox,
		payments: cfg.Payments,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		observe:  cfg.Observe,
	}
	if service.clock == nil {
		service.clock = time.Now
	}
	if service.logger == nil {
		service.logger = zap.NewNop()
	}
	if service.observe == nil {
		service.observe = func() {}
	}
	return service, nil
}

// Upcoming returns events that have not started yet, soonest first.
func (s *Service) Upcoming(ctx context.Context) ([]models.Event, error) {
	var events []models.Event
	err := s.db.WithContext(ctx).Where("starts_at >= ?", s.clock().UTC()).Order("starts_at ASC").Find(&events).Error
	if err != nil {
		apperrors.Log(s.logger, "events service error", opList, "query_failed", err)
		return nil, apperrors.New(opList, "query_failed", err)
	}
	return events, nil
}

// Get loads one event.
func (s *Service) Get(ctx context.Context, eventID string) (models.Event, error) {
	var event models.Event
	err := s.db.WithContext(ctx).Where("id = ?", eventID).Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Event{}, ErrEventNotFound
	}
	if err != nil {
		return models.Event{}, apperrors.New(opList, "query_failed", err)
	}
	return event, nil
}

// RegisterRequest is one member signing up for one event.
type RegisterRequest struct {
	UserID  string
	Name    string
	Email   string
	EventID string
	Data    map[string]any
}

// Registration tells the client where to go next.
type Registration struct {
	RegistrationID string `json:"registration_id"`
	TicketNumber   string `json:"ticket_number"`
	PaymentID      string `json:"payment_id,omitempty"`
	RedirectURL    string `json:"redirect_url"`
}

// Register books a seat. A duplicate (event, user) pair is reported as
// ErrAlreadyRegistered whether it is caught by the pre-check or by the
// unique index.
func (s *Service) Register(ctx context.Context, request RegisterRequest) (Registration, error) {
	if strings.TrimSpace(request.UserID) == "" {
		return Registration{}, ErrUnauthenticated
	}
	event, err := s.Get(ctx, request.EventID)
	if err != nil {
		return Registration{}, err
	}
	db := s.db.WithContext(ctx)
	registered, err := s.isRegistered(db, event.ID, request.UserID)
	if err != nil {
		return Registration{}, err
	}
	if registered {
		return Registration{}, ErrAlreadyRegistered
	}
	if event.Capacity > 0 {
		var taken int64
		if err := db.Model(&models.EventRegistration{}).Where("event_id = ?", event.ID).Count(&taken).Error; err != nil {
			return Registration{}, apperrors.New(opRegister, "query_failed", err)
		}
		if taken >= int64(event.Capacity) {
			return Registration{}, ErrEventFull
		}
	}

	registrationID, err := s.ids.NewID()
	if err != nil {
		return Registration{}, apperrors.New(opRegister, "id_generation_failed", err)
	}
	ticket, err := s.ticketNumber(db)
	if err != nil {
		return Registration{}, err
	}
	data := datatypes.JSONMap{}
	for key, value := range request.Data {
		data[key] = value
	}
	if request.Name != "" {
		data["full_name"] = request.Name
	}
	if request.Email != "" {
		data["email"] = request.Email
	}
	registration := models.EventRegistration{
		ID:               registrationID,
		EventID:          event.ID,
		UserID:           request.UserID,
		RegistrationData: data,
		PaymentStatus:    models.PaymentStateNotRequired,
		TicketNumber:     ticket,
	}

	var payment *models.Payment
	if event.Fee.IsPositive() {
		paymentID, err := s.ids.NewID()
		if err != nil {
			return Registration{}, apperrors.New(opRegister, "id_generation_failed", err)
		}
		currency := strings.ToUpper(event.Currency)
		if currency == "" {
			currency = "ZAR"
		}
		payment = &models.Payment{
			ID:                  paymentID,
			UserID:              request.UserID,
			Amount:              event.Fee,
			Currency:            currency,
			PaymentType:         models.PaymentTypeEventRegistration,
			Status:              models.PaymentPending,
			EventRegistrationID: &registration.ID,
		}
		registration.PaymentID = &payment.ID
		registration.PaymentStatus = models.PaymentStatePending
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&registration).Error; err != nil {
			return apperrors.New(opRegister, "registration_insert_failed", err)
		}
		if payment != nil {
			if err := tx.Create(payment).Error; err != nil {
				return apperrors.New(opRegister, "payment_insert_failed", err)
			}
		}
		if err := s.outbox.Enqueue(tx, registrationIntents(event, registration, request.Email)...); err != nil {
			return apperrors.New(opRegister, "outbox_failed", err)
		}
		return nil
	})
	if err != nil {
		if registered, checkErr := s.isRegistered(db, event.ID, request.UserID); checkErr == nil && registered {
			return Registration{}, ErrAlreadyRegistered
		}
		apperrors.Log(s.logger, "events service error", opRegister, "transaction_failed", err,
			zap.String("event_id", event.ID),
			zap.String("user_id", request.UserID))
		return Registration{}, err
	}
	s.observe()

	result := Registration{RegistrationID: registration.ID, TicketNumber: ticket}
	if payment != nil {
		result.PaymentID = payment.ID
		result.RedirectURL = s.payments.PaymentURL(*payment)
	} else {
		result.RedirectURL = s.baseURL + "/events/registrations/" + registration.ID
	}
	return result, nil
}

func (s *Service) isRegistered(db *gorm.DB, eventID, userID string) (bool, error) {
	var count int64
	err := db.Model(&models.EventRegistration{}).Where("event_id = ? AND user_id = ?", eventID, userID).Count(&count).Error
	if err != nil {
		return false, apperrors.New(opRegister, "query_failed", err)
	}
	return count > 0, nil
}

func (s *Service) ticketNumber(db *gorm.DB) (string, error) {
	year := s.clock().UTC().Year()
	for attempt := 0; attempt < ticketAttempts; attempt++ {
		number, err := models.NewReference(ticketPrefix, year)
		if err != nil {
			return "", apperrors.New(opRegister, "ticket_generation_failed", err)
		}
		var taken int64
		if err := db.Model(&models.EventRegistration{}).Where("ticket_number = ?", number).Count(&taken).Error; err != nil {
			return "", apperrors.New(opRegister, "query_failed", err)
		}
		if taken == 0 {
			return number, nil
		}
	}
	return "", apperrors.New(opRegister, "ticket_generation_failed", errors.New("events: ticket numbers exhausted"))
}

// ListForUser returns the member's registrations, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.EventRegistration, error) {
	var registrations []models.EventRegistration
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&registrations).Error; err != nil {
		apperrors.Log(s.logger, "events service error", opList, "query_failed", err, zap.String("user_id", userID))
		return nil, apperrors.New(opList, "query_failed", err)
	}
	return registrations, nil
}

// Ticket renders the ticket PDF. Members may only fetch their own tickets;
// admins may fetch any.
func (s *Service) Ticket(ctx context.Context, userID, registrationID string, admin bool) ([]byte, models.EventRegistration, error) {
	db := s.db.WithContext(ctx)
	query := db.Where("id = ?", registrationID)
	if !admin {
		query = query.Where("user_id = ?", userID)
	}
	var registration models.EventRegistration
	err := query.Take(&registration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.EventRegistration{}, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, models.EventRegistration{}, apperrors.New(opTicket, "query_failed", err)
	}
	event, err := s.Get(ctx, registration.EventID)
	if err != nil {
		return nil, models.EventRegistration{}, err
	}

	attendee := dataString(registration.RegistrationData, "full_name")
	if attendee == "" {
		var profile models.UserProfile
		if err := db.Where("id = ?", registration.UserID).Take(&profile).Error; err == nil {
			attendee = profile.DisplayName()
		}
	}
	var buffer bytes.Buffer
	err = documents.TicketPDF(&buffer, documents.TicketData{
		TicketNumber:  registration.TicketNumber,
		AttendeeName:  attendee,
		EventTitle:    event.Title,
		Location:      event.Location,
		StartsAt:      event.StartsAt,
		PaymentStatus: paymentLabel(registration.PaymentStatus),
	})
	if err != nil {
		apperrors.Log(s.logger, "events service error", opTicket, "pdf_failed", err, zap.String("registration_id", registrationID))
		return nil, models.EventRegistration{}, apperrors.New(opTicket, "pdf_failed", err)
	}
	return buffer.Bytes(), registration, nil
}

func dataString(data datatypes.JSONMap, key string) string {
	value, ok := data[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(value)
}

func paymentLabel(state models.PaymentState) string {
	switch state {
	case models.PaymentStateConfirmed:
		return "Paid"
	case models.PaymentStatePending:
		return "Awaiting payment"
	}
	return "No payment required"
}

func registrationIntents(event models.Event, registration models.EventRegistration, email string) []outbox.Intent {
	when := event.StartsAt.UTC().Format("2 January 2006 15:04")
	message := fmt.Sprintf("You are registered for %s on %s. Your ticket number is %s.", event.Title, when, registration.TicketNumber)
	if registration.PaymentStatus == models.PaymentStatePending {
		message += " Please complete the payment to secure your seat."
	}
	attendee := dataString(registration.RegistrationData, "full_name")
	if attendee == "" {
		attendee = "A member"
	}
	intents := []outbox.Intent{
		outbox.NotifyUser(outbox.Notice{
			UserID:    registration.UserID,
			Type:      "event_registration",
			Title:     "Event registration received",
			Message:   message,
			RelatedID: registration.ID,
		}),
		outbox.NotifyAdmins(outbox.Notice{
			Type:      "event_registration",
			Title:     "New registration: " + event.Title,
			Message:   fmt.Sprintf("%s registered for %s.", attendee, event.Title),
			RelatedID: registration.ID,
		}),
	}
	if email != "" {
		intents = append(intents, outbox.SendEmail(outbox.Email{
			To:      email,
			Subject: "Registration: " + event.Title,
			Body:    message + "\n\nChrist Life Ministries",
		}))
	}
	return intents
}
