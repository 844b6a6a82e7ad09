package drafts

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/christlifeministries/portal/internal/apperrors"
	"github.com/christlifeministries/portal/internal/forms"
	"github.com/christlifeministries/portal/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrDraftNotFound indicates the user has no saved draft for the form.
	ErrDraftNotFound     = errors.New("drafts: draft not found")
	errMissingDatabase   = errors.New("drafts: database handle is required")
	errMissingIDProvider = errors.New("drafts: id provider is required")
	errMissingUserID     = errors.New("drafts: user identifier is required")
)

const (
	opServiceNew = "drafts.service.new"
	opLoad       = "drafts.load"
	opSave       = "drafts.save"
	opDelete     = "drafts.delete"
)

type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider models.IDProvider
	Logger     *zap.Logger
}

// Service persists one in-progress wizard per user and form type.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider models.IDProvider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, apperrors.New(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, apperrors.New(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// Load returns the saved wizard state.
func (s *Service) Load(ctx context.Context, userID string, formType forms.FormType) (forms.State, error) {
	if strings.TrimSpace(userID) == "" {
		return forms.State{}, apperrors.New(opLoad, "missing_user_id", errMissingUserID)
	}
	var draft models.Draft
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND form_type = ?", userID, string(formType)).
		Take(&draft).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return forms.State{}, ErrDraftNotFound
	}
	if err != nil {
		s.logError(opLoad, "query_failed", err, userID, formType)
		return forms.State{}, apperrors.New(opLoad, "query_failed", err)
	}
	return forms.State{
		FormType:    formType,
		CurrentStep: draft.CurrentStep,
		Values:      forms.Values(draft.FormData),
	}, nil
}

// Save upserts the draft; concurrent saves for the same pair converge on one row.
func (s *Service) Save(ctx context.Context, userID string, state forms.State) error {
	if strings.TrimSpace(userID) == "" {
		return apperrors.New(opSave, "missing_user_id", errMissingUserID)
	}
	if _, err := forms.Lookup(state.FormType); err != nil {
		return apperrors.New(opSave, "unknown_form_type", err)
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opSave, "id_generation_failed", err, userID, state.FormType)
		return apperrors.New(opSave, "id_generation_failed", err)
	}
	values := state.Values
	if values == nil {
		values = forms.Values{}
	}
	step := state.CurrentStep
	if step < 1 {
		step = 1
	}
	draft := models.Draft{
		ID:          id,
		UserID:      userID,
		FormType:    string(state.FormType),
		FormData:    datatypes.JSONMap(values.Clone()),
		CurrentStep: step,
		UpdatedAt:   s.clock().UTC(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "form_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"form_data", "current_step", "updated_at"}),
	}).Create(&draft).Error
	if err != nil {
		s.logError(opSave, "upsert_failed", err, userID, state.FormType)
		return apperrors.New(opSave, "upsert_failed", err)
	}
	return nil
}

// Delete removes the draft. A missing draft is not an error.
func (s *Service) Delete(ctx context.Context, userID string, formType forms.FormType) error {
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND form_type = ?", userID, string(formType)).
		Delete(&models.Draft{}).Error
	if err != nil {
		s.logError(opDelete, "delete_failed", err, userID, formType)
		return apperrors.New(opDelete, "delete_failed", err)
	}
	return nil
}

func (s *Service) logError(operation, reason string, err error, userID string, formType forms.FormType) {
	apperrors.Log(s.logger, "drafts service error", operation, reason, err,
		zap.String("user_id", userID),
		zap.String("form_type", string(formType)))
}
