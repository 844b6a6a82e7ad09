package database

import (
	"path/filepath"
	"testing"

	"github.com/christlifeministries/portal/internal/models"
	sqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func TestApplyMigrationsBackfillsPaymentState(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&models.Application{}, &models.UserProfile{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	paymentID := "payment-1"
	legacy := []models.Application{
		{ID: "app-paid", UserID: "user-1", ProgramType: models.ProgramBibleSchool, FormData: datatypes.JSONMap{}, Fee: decimal.NewFromInt(350), PaymentID: &paymentID},
		{ID: "app-free", UserID: "user-2", ProgramType: models.ProgramMembership, FormData: datatypes.JSONMap{}},
	}
	if err := database.Create(&legacy).Error; err != nil {
		testContext.Fatalf("failed to insert applications: %v", err)
	}
	if err := database.Model(&models.Application{}).Where("1 = 1").Update("payment_status", "").Error; err != nil {
		testContext.Fatalf("failed to blank payment status: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	var paid, free models.Application
	if err := database.Where("id = ?", "app-paid").Take(&paid).Error; err != nil {
		testContext.Fatalf("failed to reload application: %v", err)
	}
	if err := database.Where("id = ?", "app-free").Take(&free).Error; err != nil {
		testContext.Fatalf("failed to reload application: %v", err)
	}
	if paid.PaymentStatus != models.PaymentStatePending {
		testContext.Fatalf("expected pending payment status, got %q", paid.PaymentStatus)
	}
	if free.PaymentStatus != models.PaymentStateNotRequired {
		testContext.Fatalf("expected not_required payment status, got %q", free.PaymentStatus)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationBackfillPaymentState).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestOpenCreatesSchema(testContext *testing.T) {
	database, err := Open(Options{Driver: DriverSQLite, Path: filepath.Join(testContext.TempDir(), "portal.db")}, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open database: %v", err)
	}
	for _, table := range []string{"applications", "form_drafts", "payments", "notifications", "outbox_messages", "db_migrations"} {
		if !database.Migrator().HasTable(table) {
			testContext.Fatalf("expected table %s to exist", table)
		}
	}
}

func TestOpenRejectsUnknownDriver(testContext *testing.T) {
	if _, err := Open(Options{Driver: "oracle"}, nil); err == nil {
		testContext.Fatalf("expected unsupported driver error")
	}
}
