package payments

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
	// ErrPaymentNotFound covers both a missing payment and one owned by someone else.
	ErrPaymentNotFound = errors.New("payments: payment not found")
	// ErrInvalidSignature indicates the provider signature did not verify.
	ErrInvalidSignature = errors.New("payments: invalid signature")
	errMissingParent    = errors.New("payments: payment has no parent record")
	errMissingDatabase  = errors.New("payments: database handle is required")
	errMissingGateway   = errors.New("payments: gateway is required")
	errMissingOutbox    = errors.New("payments: outbox writer is required")
)

const (
	opServiceNew = "payments.service.new"
	opConfirm    = "payments.confirm"
	opGet        = "payments.get"
)

type ServiceConfig struct {
	Database *gorm.DB
	Gateway  *Gateway
	Outbox   *outbox.Writer
	Clock    func() time.Time
	Logger   *zap.Logger
	Observe  func(paymentType models.PaymentType)
}

// Service owns the transition of a payment to confirmed.
type Service struct {
	db      *gorm.DB
	gateway *Gateway
	outbox  *outbox.Writer
	clock   func() time.Time
	logger  *zap.Logger
	observe func(paymentType models.PaymentType)
}

// Receipt is what the confirmation page renders.
type Receipt struct {
	Payment          models.Payment `json:"payment"`
	Description      string         `json:"description"`
	TicketNumber     string         `json:"ticket_number,omitempty"`
	AlreadyConfirmed bool           `json:"already_confirmed"`
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, apperrors.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Gateway == nil {
		return nil, apperrors.New(opServiceNew, "missing_gateway", errMissingGateway)
	}
	if cfg.Outbox == nil {
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
	observe := cfg.Observe
	if observe == nil {
		observe = func(models.PaymentType) {}
	}
	return &Service{
		db:      cfg.Database,
		gateway: cfg.Gateway,
		outbox:  cfg.Outbox,
		clock:   clock,
		logger:  logger,
		observe: observe,
	}, nil
}

// Get returns the receipt for the payment's owner.
func (s *Service) Get(ctx context.Context, userID, paymentID string) (Receipt, error) {
	receipt, err := s.loadReceipt(s.db.WithContext(ctx), userID, paymentID, false)
	if err != nil && !errors.Is(err, ErrPaymentNotFound) {
		apperrors.Log(s.logger, "payments service error", opGet, "query_failed", err, zap.String("payment_id", paymentID))
		return Receipt{}, apperrors.New(opGet, "query_failed", err)
	}
	return receipt, err
}

// Confirm verifies the provider return and marks the payment and its parent
// as paid. Confirming an already confirmed payment writes nothing.
func (s *Service) Confirm(ctx context.Context, userID, paymentID string, providerReturn ProviderReturn) (Receipt, error) {
	var receipt Receipt
	confirmed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.loadReceipt(tx, userID, paymentID, true)
		if err != nil {
			return err
		}
		if current.Payment.Status == models.PaymentConfirmed {
			current.AlreadyConfirmed = true
			receipt = current
			return nil
		}
		if !s.gateway.Verify(current.Payment, providerReturn) {
			return ErrInvalidSignature
		}

		now := s.clock().UTC()
		err = tx.Model(&models.Payment{}).Where("id = ?", paymentID).Updates(map[string]interface{}{
			"status":             models.PaymentConfirmed,
			"provider_reference": strings.TrimSpace(providerReturn.Reference),
			"confirmed_at":       now,
			"updated_at":         now,
		}).Error
		if err != nil {
			return apperrors.New(opConfirm, "payment_update_failed", err)
		}
		if err := s.confirmParent(tx, current.Payment); err != nil {
			return err
		}

		updated, err := s.loadReceipt(tx, userID, paymentID, false)
		if err != nil {
			return err
		}
		email, err := s.recipientEmail(tx, updated.Payment)
		if err != nil {
			return apperrors.New(opConfirm, "recipient_lookup_failed", err)
		}
		if email == "" {
			s.logger.Warn("payment confirmation email skipped, no address on file",
				zap.String("payment_id", paymentID))
		}
		if err := s.outbox.Enqueue(tx, confirmationIntents(updated, email)...); err != nil {
			return apperrors.New(opConfirm, "outbox_failed", err)
		}
		receipt = updated
		confirmed = true
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrPaymentNotFound) && !errors.Is(err, ErrInvalidSignature) {
			apperrors.Log(s.logger, "payments service error", opConfirm, "transaction_failed", err,
				zap.String("payment_id", paymentID))
		}
		return Receipt{}, err
	}
	if confirmed {
		s.observe(receipt.Payment.PaymentType)
	}
	return receipt, nil
}

func (s *Service) confirmParent(tx *gorm.DB, payment models.Payment) error {
	var result *gorm.DB
	switch payment.PaymentType {
	case models.PaymentTypeApplication:
		if payment.ApplicationID == nil {
			return apperrors.New(opConfirm, "missing_parent", errMissingParent)
		}
		result = tx.Model(&models.Application{}).Where("id = ?", *payment.ApplicationID).
			Update("payment_status", models.PaymentStateConfirmed)
	case models.PaymentTypeDonation:
		if payment.DonationID == nil {
			return apperrors.New(opConfirm, "missing_parent", errMissingParent)
		}
		result = tx.Model(&models.Donation{}).Where("id = ?", *payment.DonationID).
			Update("status", models.DonationCompleted)
	case models.PaymentTypeEventRegistration, models.PaymentTypeRegistration:
		if payment.EventRegistrationID == nil {
			return apperrors.New(opConfirm, "missing_parent", errMissingParent)
		}
		result = tx.Model(&models.EventRegistration{}).Where("id = ?", *payment.EventRegistrationID).
			Update("payment_status", models.PaymentStateConfirmed)
	default:
		return apperrors.New(opConfirm, "unknown_payment_type", fmt.Errorf("payments: unknown type %q", payment.PaymentType))
	}
	if result.Error != nil {
		return apperrors.New(opConfirm, "parent_update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(opConfirm, "missing_parent", errMissingParent)
	}
	return nil
}

func (s *Service) loadReceipt(db *gorm.DB, userID, paymentID string, lock bool) (Receipt, error) {
	query := db
	if lock {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var payment models.Payment
	err := query.Where("id = ? AND user_id = ?", paymentID, userID).Take(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Receipt{}, ErrPaymentNotFound
	}
	if err != nil {
		return Receipt{}, err
	}
	receipt := Receipt{Payment: payment}
	switch payment.PaymentType {
	case models.PaymentTypeApplication:
		receipt.Description = "Application fee"
		if payment.ApplicationID != nil {
			var application models.Application
			if err := db.Select("program_type").Where("id = ?", *payment.ApplicationID).Take(&application).Error; err == nil {
				receipt.Description = application.ProgramType.Label() + " application fee"
			}
		}
	case models.PaymentTypeDonation:
		receipt.Description = "Donation"
		if payment.DonationID != nil {
			var donation models.Donation
			if err := db.Select("designation").Where("id = ?", *payment.DonationID).Take(&donation).Error; err == nil && donation.Designation != "" {
				receipt.Description = "Donation: " + donation.Designation
			}
		}
	case models.PaymentTypeEventRegistration, models.PaymentTypeRegistration:
		receipt.Description = "Event registration"
		if payment.EventRegistrationID != nil {
			var registration models.EventRegistration
			if err := db.Where("id = ?", *payment.EventRegistrationID).Take(&registration).Error; err == nil {
				receipt.TicketNumber = registration.TicketNumber
				var event models.Event
				if err := db.Select("title").Where("id = ?", registration.EventID).Take(&event).Error; err == nil {
					receipt.Description = "Registration: " + event.Title
				}
			}
		}
	default:
		receipt.Description = "Payment"
	}
	return receipt, nil
}

func (s *Service) recipientEmail(tx *gorm.DB, payment models.Payment) (string, error) {
	if payment.PaymentType == models.PaymentTypeDonation && payment.DonationID != nil {
		var donation models.Donation
		if err := tx.Select("donor_email").Where("id = ?", *payment.DonationID).Take(&donation).Error; err == nil && donation.DonorEmail != "" {
			return donation.DonorEmail, nil
		}
	}
	if payment.PaymentType == models.PaymentTypeApplication && payment.ApplicationID != nil {
		var application models.Application
		if err := tx.Select("email").Where("id = ?", *payment.ApplicationID).Take(&application).Error; err == nil && application.Email != "" {
			return application.Email, nil
		}
	}
	var profile models.UserProfile
	err := tx.Select("email").Where("id = ?", payment.UserID).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return profile.Email, err
}
