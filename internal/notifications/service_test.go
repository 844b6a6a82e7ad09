package notifications

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/christlifeministries/portal/internal/config"
	"github.com/christlifeministries/portal/internal/models"
)

func configWithDriver(driver string) config.EmailConfig {
	return config.EmailConfig{Driver: driver, SMTPHost: "smtp.example.com", SMTPPort: 587, FromEmail: "noreply@example.com", FromName: "CLM"}
}

func TestServiceListsNewestFirstWithUnreadCount(t *testing.T) {
	db := openTestDatabase(t)
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	db.Create(&[]models.Notification{
		{ID: "n1", UserID: "user-1", Type: "a", Title: "Old", CreatedAt: base},
		{ID: "n2", UserID: "user-1", Type: "a", Title: "New", CreatedAt: base.Add(time.Hour)},
		{ID: "n3", UserID: "user-2", Type: "a", Title: "Other", CreatedAt: base},
	})
	service, err := NewService(db, nil)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	page, err := service.List(context.Background(), "user-1", 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page.Notifications) != 2 || page.Notifications[0].ID != "n2" || page.Unread != 2 {
		t.Fatalf("unexpected page %+v", page)
	}

	if err := service.MarkRead(context.Background(), "user-1", "n1"); err != nil {
		t.Fatalf("mark read failed: %v", err)
	}
	if err := service.MarkRead(context.Background(), "user-1", "n1"); err != nil {
		t.Fatalf("second mark read failed: %v", err)
	}
	page, _ = service.List(context.Background(), "user-1", 10)
	if page.Unread != 1 {
		t.Fatalf("expected one unread, got %d", page.Unread)
	}
}

func TestServiceMarkReadIsScopedToOwner(t *testing.T) {
	db := openTestDatabase(t)
	db.Create(&models.Notification{ID: "n1", UserID: "user-1", Type: "a", Title: "Mine"})
	service, _ := NewService(db, nil)
	if err := service.MarkRead(context.Background(), "user-2", "n1"); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("expected not found for another user, got %v", err)
	}
}
