package users

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/christlifeministries/portal/internal/models"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "users.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.UserProfile{}); err != nil {
		t.Fatalf("failed to migrate profile schema: %v", err)
	}
	service, err := NewService(ServiceConfig{
		Database: db,
		Clock: func() time.Time {
			return time.Unix(1_700_000_000, 0)
		},
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	return service
}

func TestEnsureProfileIsIdempotent(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	first, err := service.EnsureProfile(ctx, "user-1", "user@example.com", "Thandi Nkosi")
	if err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if first.Role != models.RoleUser || first.FullName != "Thandi Nkosi" {
		t.Fatalf("unexpected profile: %+v", first)
	}

	second, err := service.EnsureProfile(ctx, "user-1", "", "")
	if err != nil {
		t.Fatalf("second ensure failed: %v", err)
	}
	if second.Email != "user@example.com" || second.FullName != "Thandi Nkosi" {
		t.Fatalf("blank values must not overwrite stored ones: %+v", second)
	}

	var count int64
	service.db.Model(&models.UserProfile{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected one profile row, got %d", count)
	}
}

func TestEnsureProfileRejectsBlankID(t *testing.T) {
	service := newTestService(t)
	if _, err := service.EnsureProfile(context.Background(), "  ", "x@example.com", ""); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("expected invalid identity, got %v", err)
	}
}

func TestPromoteKeepsRoleAcrossEnsure(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	if _, err := service.Promote(ctx, "admin-1", "admin@example.com", "Admin", models.RoleSuperAdmin); err != nil {
		t.Fatalf("promote failed: %v", err)
	}
	if _, err := service.EnsureProfile(ctx, "admin-1", "admin@example.com", "Admin Renamed"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if _, err := service.EnsureProfile(ctx, "user-2", "u2@example.com", "User"); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}

	admins, err := service.ListAdmins(ctx)
	if err != nil {
		t.Fatalf("list admins failed: %v", err)
	}
	if len(admins) != 1 || admins[0].ID != "admin-1" || admins[0].Role != models.RoleSuperAdmin {
		t.Fatalf("unexpected admins: %+v", admins)
	}
	if admins[0].FullName != "Admin Renamed" {
		t.Fatalf("expected name refresh, got %q", admins[0].FullName)
	}
}

func TestGetMissingProfile(t *testing.T) {
	service := newTestService(t)
	if _, err := service.Get(context.Background(), "nobody"); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
