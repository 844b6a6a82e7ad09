package applications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/christlifeministries/portal/internal/apperrors"
	"github.com/christlifeministries/portal/internal/config"
	"github.com/christlifeministries/portal/internal/forms"
	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/outbox"
	"github.com/christlifeministries/portal/internal/uploads"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	// ErrIDDocumentRequired indicates a program that needs a copy of the applicant's ID.
	ErrIDDocumentRequired = errors.New("applications: a copy of your ID document is required")
	// ErrUnknownCourse indicates the selected course does not exist.
	ErrUnknownCourse     = errors.New("applications: selected course does not exist")
	errMissingDatabase   = errors.New("applications: database handle is required")
	errMissingIDProvider = errors.New("applications: id provider is required")
	errMissingOutbox     = errors.New("applications: outbox writer is required")
	errMissingUploader   = errors.New("applications: uploader is required")
	errMissingPayments   = errors.New("applications: payment linker is required")
)

const (
	opSubmitterNew = "applications.submitter.new"
	opSubmit       = "applications.submit"
)

// DocumentUploader stores applicant documents.
type DocumentUploader interface {
	Upload(ctx context.Context, request uploads.Request) (uploads.Result, error)
}

// DraftDeleter removes the wizard draft after a successful submission.
type DraftDeleter interface {
	Delete(ctx context.Context, userID string, formType forms.FormType) error
}

// PaymentLinker builds the checkout redirect for an unpaid fee.
type PaymentLinker interface {
	PaymentURL(payment models.Payment) string
}

type SubmitterConfig struct {
	Database   *gorm.DB
	IDProvider models.IDProvider
	Outbox     *outbox.Writer
	Uploader   DocumentUploader
	Drafts     DraftDeleter
	Payments   PaymentLinker
	Fees       config.FeesConfig
	Currency   string
	BaseURL    string
	Clock      func() time.Time
	Logger     *zap.Logger
	Observe    func(program models.ProgramType)
}

// Submitter runs the application submission pipeline.
type Submitter struct {
	db       *gorm.DB
	ids      models.IDProvider
	outbox   *outbox.Writer
	uploader DocumentUploader
	drafts   DraftDeleter
	payments PaymentLinker
	fees     config.FeesConfig
	currency string
	baseURL  string
	clock    func() time.Time
	logger   *zap.Logger
	observe  func(program models.ProgramType)
}

func NewSubmitter(cfg SubmitterConfig) (*Submitter, error) {
	switch {
	case cfg.Database == nil:
		return nil, apperrors.New(opSubmitterNew, "missing_database", errMissingDatabase)
	case cfg.IDProvider == nil:
		return nil, apperrors.New(opSubmitterNew, "missing_id_provider", errMissingIDProvider)
	case cfg.Outbox == nil:
		return nil, apperrors.New(opSubmitterNew, "missing_outbox", errMissingOutbox)
	case cfg.Uploader == nil:
		return nil, apperrors.New(opSubmitterNew, "missing_uploader", errMissingUploader)
	case cfg.Payments == nil:
		return nil, apperrors.New(opSubmitterNew, "missing_payments", errMissingPayments)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "ZAR"
	}
	observe := cfg.Observe
	if observe == nil {
		observe = func(models.ProgramType) {}
	}
	return &Submitter{
		db:       cfg.Database,
		ids:      cfg.IDProvider,
		outbox:   cfg.Outbox,
		uploader: cfg.Uploader,
		drafts:   cfg.Drafts,
		payments: cfg.Payments,
		fees:     cfg.Fees,
		currency: currency,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		clock:    clock,
		logger:   logger,
		observe:  observe,
	}, nil
}

// Submission is everything the applicant sends on the final step.
type Submission struct {
	User         uploads.User
	State        forms.State
	IDDocument   *uploads.Request
	PaymentProof *uploads.Request
}

// SubmissionResult tells the client where to go next.
type SubmissionResult struct {
	ApplicationID string `json:"application_id"`
	PaymentID     string `json:"payment_id,omitempty"`
	RedirectURL   string `json:"redirect_url"`
}

// Submit validates, uploads, persists and schedules notifications for one
// application. The draft is deleted only after the write commits.
func (s *Submitter) Submit(ctx context.Context, submission Submission) (SubmissionResult, error) {
	if strings.TrimSpace(submission.User.ID) == "" {
		return SubmissionResult{}, uploads.ErrUnauthenticated
	}
	machine, err := forms.Restore(submission.State)
	if err != nil {
		return SubmissionResult{}, err
	}
	if err := machine.Submit(nil); err != nil {
		return SubmissionResult{}, err
	}
	state := machine.Snapshot()
	program := models.ProgramType(state.FormType)

	if submission.IDDocument == nil && requiresIDDocument(program) {
		return SubmissionResult{}, ErrIDDocumentRequired
	}

	payload, err := forms.BuildPayload(state.FormType, state.Values)
	if err != nil {
		return SubmissionResult{}, err
	}
	fee, currency, err := s.fee(ctx, payload)
	if err != nil {
		return SubmissionResult{}, err
	}

	application := models.Application{
		UserID:      submission.User.ID,
		ProgramType: program,
		Status:      models.ApplicationPending,
		FullName:    payload.Common.FullName,
		Email:       payload.Common.Email,
		Phone:       payload.Common.Phone,
		IDNumber:    payload.Common.IDNumber,
		FormData:    datatypes.JSONMap(state.Values.Clone()),
		ExtraFields: datatypes.JSONMap(payload.ExtraFields),
		Fee:         fee,
		Currency:    currency,
	}
	if payload.Course != nil {
		application.CourseID = payload.Course.CourseID
	}

	if submission.IDDocument != nil {
		result, err := s.upload(ctx, submission.User, *submission.IDDocument, uploads.DestinationIDDocuments)
		if err != nil {
			return SubmissionResult{}, err
		}
		application.IDDocumentKey, application.IDDocumentURL = result.Key, result.URL
	}
	if submission.PaymentProof != nil {
		result, err := s.upload(ctx, submission.User, *submission.PaymentProof, uploads.DestinationPaymentProofs)
		if err != nil {
			return SubmissionResult{}, err
		}
		application.PaymentProofKey, application.PaymentProofURL = result.Key, result.URL
	}

	if application.ID, err = s.ids.NewID(); err != nil {
		return SubmissionResult{}, apperrors.New(opSubmit, "id_generation_failed", err)
	}
	var payment *models.Payment
	if fee.IsPositive() {
		paymentID, err := s.ids.NewID()
		if err != nil {
			return SubmissionResult{}, apperrors.New(opSubmit, "id_generation_failed", err)
		}
		payment = &models.Payment{
			ID:            paymentID,
			UserID:        submission.User.ID,
			Amount:        fee,
			Currency:      currency,
			PaymentType:   models.PaymentTypeApplication,
			Status:        models.PaymentPending,
			ApplicationID: &application.ID,
		}
		application.PaymentID = &payment.ID
		application.PaymentStatus = models.PaymentStatePending
	} else {
		application.PaymentStatus = models.PaymentStateNotRequired
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&application).Error; err != nil {
			return apperrors.New(opSubmit, "application_insert_failed", err)
		}
		if payment != nil {
			if err := tx.Create(payment).Error; err != nil {
				return apperrors.New(opSubmit, "payment_insert_failed", err)
			}
		}
		if err := s.outbox.Enqueue(tx, submissionIntents(application)...); err != nil {
			return apperrors.New(opSubmit, "outbox_failed", err)
		}
		return nil
	})
	if err != nil {
		apperrors.Log(s.logger, "applications service error", opSubmit, "transaction_failed", err,
			zap.String("user_id", submission.User.ID),
			zap.String("program_type", string(program)))
		return SubmissionResult{}, err
	}
	s.observe(program)

	if s.drafts != nil {
		if err := s.drafts.Delete(ctx, submission.User.ID, state.FormType); err != nil {
			s.logger.Warn("draft cleanup after submission failed",
				zap.String("user_id", submission.User.ID),
				zap.String("form_type", string(state.FormType)),
				zap.Error(err))
		}
	}

	result := SubmissionResult{ApplicationID: application.ID}
	if payment != nil {
		result.PaymentID = payment.ID
		result.RedirectURL = s.payments.PaymentURL(*payment)
	} else {
		result.RedirectURL = s.baseURL + "/applications/" + application.ID + "/confirmation"
	}
	return result, nil
}

func (s *Submitter) upload(ctx context.Context, user uploads.User, request uploads.Request, destination string) (uploads.Result, error) {
	request.Destination = destination
	request.User = &user
	result, err := s.uploader.Upload(ctx, request)
	if err != nil {
		if errors.Is(err, uploads.ErrFileTooLarge) || errors.Is(err, uploads.ErrUnauthenticated) {
			return uploads.Result{}, err
		}
		return uploads.Result{}, fmt.Errorf("applications: document upload failed: %w", err)
	}
	return result, nil
}

func (s *Submitter) fee(ctx context.Context, payload forms.Payload) (decimal.Decimal, string, error) {
	switch payload.Program {
	case forms.FormBibleSchool:
		return s.fees.BibleSchool, s.currency, nil
	case forms.FormMembership:
		return s.fees.Membership, s.currency, nil
	case forms.FormCourse:
		var course models.Course
		err := s.db.WithContext(ctx).Where("id = ?", payload.Course.CourseID).Take(&course).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, "", ErrUnknownCourse
		}
		if err != nil {
			return decimal.Zero, "", apperrors.New(opSubmit, "course_lookup_failed", err)
		}
		currency := strings.ToUpper(course.Currency)
		if currency == "" {
			currency = s.currency
		}
		return course.Fee, currency, nil
	}
	return decimal.Zero, s.currency, nil
}

func requiresIDDocument(program models.ProgramType) bool {
	return program == models.ProgramBibleSchool || program == models.ProgramMembership
}

func submissionIntents(application models.Application) []outbox.Intent {
	label := application.ProgramType.Label()
	applicantMessage := fmt.Sprintf("We received your %s application and will review it soon.", label)
	if application.PaymentStatus == models.PaymentStatePending {
		applicantMessage += " Please complete the application fee payment to finish."
	}
	intents := []outbox.Intent{
		outbox.NotifyUser(outbox.Notice{
			UserID:    application.UserID,
			Type:      "application",
			Title:     "Application received",
			Message:   applicantMessage,
			RelatedID: application.ID,
		}),
		outbox.NotifyAdmins(outbox.Notice{
			Type:      "application",
			Title:     "New " + label + " application",
			Message:   fmt.Sprintf("%s submitted a %s application.", displayName(application), label),
			RelatedID: application.ID,
		}),
	}
	if application.Email != "" {
		intents = append(intents, outbox.SendEmail(outbox.Email{
			To:      application.Email,
			Subject: fmt.Sprintf("Your %s application has been received", label),
			Body: fmt.Sprintf("Dear %s,\n\n%s\n\nReference: %s\n\nChrist Life Ministries",
				displayName(application), applicantMessage, application.ID),
		}))
	}
	return intents
}

func displayName(application models.Application) string {
	if application.FullName != "" {
		return application.FullName
	}
	if application.Email != "" {
		return application.Email
	}
	return "An applicant"
}
