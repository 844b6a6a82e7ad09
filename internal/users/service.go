package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/christlifeministries/portal/internal/apperrors"
	"github.com/christlifeministries/portal/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInvalidIdentity indicates the caller did not supply a usable user id.
	ErrInvalidIdentity = errors.New("users: invalid identity")
	// ErrProfileNotFound indicates no profile exists for the id.
	ErrProfileNotFound = errors.New("users: profile not found")
	errMissingDatabase = errors.New("users: database connection required")
)

const (
	opServiceNew    = "users.service.new"
	opEnsureProfile = "users.ensure_profile"
	opGetProfile    = "users.get_profile"
	opListAdmins    = "users.list_admins"
	opPromote       = "users.promote"
)

// ServiceConfig describes the dependencies required for profile management.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service manages user profiles mirrored from the auth provider.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the profile service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, apperrors.New(opServiceNew, "missing_database", errMissingDatabase)
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
		db:     cfg.Database,
		now:    clock,
		logger: logger,
	}, nil
}

// EnsureProfile creates the profile on first sight and refreshes email and
// name afterwards. The role of an existing profile is never touched.
func (s *Service) EnsureProfile(ctx context.Context, userID, email, fullName string) (models.UserProfile, error) {
	userID = normalize(userID)
	if userID == "" {
		return models.UserProfile{}, ErrInvalidIdentity
	}
	now := s.now().UTC()
	profile := models.UserProfile{
		ID:        userID,
		Email:     normalize(email),
		FullName:  normalize(fullName),
		Role:      models.RoleUser,
		CreatedAt: now,
		UpdatedAt: now,
	}

	updates := []string{"updated_at"}
	if profile.Email != "" {
		updates = append(updates, "email")
	}
	if profile.FullName != "" {
		updates = append(updates, "full_name")
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&profile).Error
	if err != nil {
		apperrors.Log(s.logger, "users service error", opEnsureProfile, "upsert_failed", err, zap.String("user_id", userID))
		return models.UserProfile{}, apperrors.New(opEnsureProfile, "upsert_failed", err)
	}
	return s.Get(ctx, userID)
}

// Get loads a profile by id.
func (s *Service) Get(ctx context.Context, userID string) (models.UserProfile, error) {
	var profile models.UserProfile
	err := s.db.WithContext(ctx).Where("id = ?", normalize(userID)).Take(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.UserProfile{}, ErrProfileNotFound
	}
	if err != nil {
		apperrors.Log(s.logger, "users service error", opGetProfile, "query_failed", err, zap.String("user_id", userID))
		return models.UserProfile{}, apperrors.New(opGetProfile, "query_failed", err)
	}
	return profile, nil
}

// ListAdmins returns every profile whose role grants admin access.
func (s *Service) ListAdmins(ctx context.Context) ([]models.UserProfile, error) {
	var admins []models.UserProfile
	err := s.db.WithContext(ctx).
		Where("role IN ?", models.AdminRoles).
		Order("created_at ASC").
		Order("id ASC").
		Find(&admins).Error
	if err != nil {
		apperrors.Log(s.logger, "users service error", opListAdmins, "query_failed", err)
		return nil, apperrors.New(opListAdmins, "query_failed", err)
	}
	return admins, nil
}

// Promote ensures the profile exists and grants it the role.
func (s *Service) Promote(ctx context.Context, userID, email, fullName string, role models.Role) (models.UserProfile, error) {
	if !role.IsAdmin() && role != models.RoleUser {
		return models.UserProfile{}, apperrors.New(opPromote, "invalid_role", errors.New(string(role)))
	}
	if _, err := s.EnsureProfile(ctx, userID, email, fullName); err != nil {
		return models.UserProfile{}, err
	}
	err := s.db.WithContext(ctx).Model(&models.UserProfile{}).
		Where("id = ?", normalize(userID)).
		Updates(map[string]interface{}{"role": role, "updated_at": s.now().UTC()}).Error
	if err != nil {
		apperrors.Log(s.logger, "users service error", opPromote, "update_failed", err, zap.String("user_id", userID))
		return models.UserProfile{}, apperrors.New(opPromote, "update_failed", err)
	}
	return s.Get(ctx, userID)
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
