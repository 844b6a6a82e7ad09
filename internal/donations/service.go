package donations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/christlifeministries/portal/internal/apperrors"
	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/outbox"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidAmount indicates a donation of zero or less.
	ErrInvalidAmount = errors.New("donations: amount must be greater than zero")
	// ErrUnauthenticated indicates a donation without a signed-in donor.
	ErrUnauthenticated = errors.New("donations: user must be authenticated")

	errMissingDatabase   = errors.New("donations: database handle is required")
	errMissingIDProvider = errors.New("donations: id provider is required")
	errMissingOutbox     = errors.New("donations: outbox writer is required")
	errMissingPayments   = errors.New("donations: payment linker is required")
)

const (
	opServiceNew = "donations.service.new"
	opDonate     = "donations.donate"
	opList       = "donations.list"
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
	Currency   string
	Clock      func() time.Time
	Logger     *zap.Logger
	Observe    func()
}

type Service struct {
	db       *gorm.DB
	ids      models.IDProvider
	outbox   *outbox.Writer
	payments PaymentLinker
	currency string
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
		currency: strings.ToUpper(strings.TrimSpace(cfg.Currency)),
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		observe:  cfg.Observe,
	}
	if service.currency == "" {
		service.currency = "ZAR"
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

// Request is a donation as entered on the giving page.
type Request struct {
	UserID      string
	DonorName   string
	DonorEmail  string
	Amount      decimal.Decimal
	Currency    string
	Designation string
	Message     string
}

// Result tells the client where to pay.
type Result struct {
	DonationID  string `json:"donation_id"`
	PaymentID   string `json:"payment_id"`
	RedirectURL string `json:"redirect_url"`
}

// Donate records a pending donation and its payment in one transaction and
// returns the checkout redirect.
func (s *Service) Donate(ctx context.Context, request Request) (Result, error) {
	if strings.TrimSpace(request.UserID) == "" {
		return Result{}, ErrUnauthenticated
	}
	amount := request.Amount.Round(2)
	if !amount.IsPositive() {
		return Result{}, ErrInvalidAmount
	}
	currency := strings.ToUpper(strings.TrimSpace(request.Currency))
	if currency == "" {
		currency = s.currency
	}

	donationID, err := s.ids.NewID()
	if err != nil {
		return Result{}, apperrors.New(opDonate, "id_generation_failed", err)
	}
	paymentID, err := s.ids.NewID()
	if err != nil {
		return Result{}, apperrors.New(opDonate, "id_generation_failed", err)
	}
	donation := models.Donation{
		ID:          donationID,
		UserID:      request.UserID,
		DonorName:   strings.TrimSpace(request.DonorName),
		DonorEmail:  strings.TrimSpace(request.DonorEmail),
		Amount:      amount,
		Currency:    currency,
		Designation: strings.TrimSpace(request.Designation),
		Message:     strings.TrimSpace(request.Message),
		Status:      models.DonationPending,
		PaymentID:   &paymentID,
	}
	payment := models.Payment{
		ID:          paymentID,
		UserID:      request.UserID,
		Amount:      amount,
		Currency:    currency,
		PaymentType: models.PaymentTypeDonation,
		Status:      models.PaymentPending,
		DonationID:  &donation.ID,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&donation).Error; err != nil {
			return apperrors.New(opDonate, "donation_insert_failed", err)
		}
		if err := tx.Create(&payment).Error; err != nil {
			return apperrors.New(opDonate, "payment_insert_failed", err)
		}
		if err := s.outbox.Enqueue(tx, donationIntents(donation)...); err != nil {
			return apperrors.New(opDonate, "outbox_failed", err)
		}
		return nil
	})
	if err != nil {
		apperrors.Log(s.logger, "donations service error", opDonate, "transaction_failed", err, zap.String("user_id", request.UserID))
		return Result{}, err
	}
	s.observe()
	return Result{DonationID: donation.ID, PaymentID: payment.ID, RedirectURL: s.payments.PaymentURL(payment)}, nil
}

// ListForUser returns the donor's giving history, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]models.Donation, error) {
	var donations []models.Donation
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&donations).Error; err != nil {
		apperrors.Log(s.logger, "donations service error", opList, "query_failed", err, zap.String("user_id", userID))
		return nil, apperrors.New(opList, "query_failed", err)
	}
	return donations, nil
}

func donationIntents(donation models.Donation) []outbox.Intent {
	amount := donation.Currency + " " + donation.Amount.StringFixed(2)
	donor := donation.DonorName
	if donor == "" {
		donor = "A member"
	}
	purpose := ""
	if donation.Designation != "" {
		purpose = " towards " + donation.Designation
	}
	return []outbox.Intent{
		outbox.NotifyUser(outbox.Notice{
			UserID:    donation.UserID,
			Type:      "donation",
			Title:     "Donation started",
			Message:   fmt.Sprintf("Thank you! Complete the payment of %s to finish your donation%s.", amount, purpose),
			RelatedID: donation.ID,
		}),
		outbox.NotifyAdmins(outbox.Notice{
			Type:      "donation",
			Title:     "New donation pledged",
			Message:   fmt.Sprintf("%s pledged %s%s.", donor, amount, purpose),
			RelatedID: donation.ID,
		}),
	}
}
