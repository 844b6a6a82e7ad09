package database

import (
	"errors"
	"time"

	"github.com/christlifeministries/portal/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	migrationBackfillPaymentState = "2026-08-04_backfill_payment_state"
	migrationDefaultProfileRole   = "2026-08-19_default_profile_role"
)

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillPaymentState, apply: backfillPaymentState},
		{name: migrationDefaultProfileRole, apply: defaultProfileRole},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows written before payment tracking carry an empty payment status; those
// with a linked payment are pending, the rest never needed one.
func backfillPaymentState(db *gorm.DB) error {
	if err := db.Model(&models.Application{}).
		Where("payment_status = '' AND payment_id IS NOT NULL").
		Update("payment_status", models.PaymentStatePending).Error; err != nil {
		return err
	}
	return db.Model(&models.Application{}).
		Where("payment_status = '' AND payment_id IS NULL").
		Update("payment_status", models.PaymentStateNotRequired).Error
}

func defaultProfileRole(db *gorm.DB) error {
	return db.Model(&models.UserProfile{}).
		Where("role = '' OR role IS NULL").
		Update("role", models.RoleUser).Error
}
