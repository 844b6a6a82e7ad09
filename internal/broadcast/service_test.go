package broadcast

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/outbox"
	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type sequenceIDs struct {
	next int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.next++
	return fmt.Sprintf("id-%04d", s.next), nil
}

type fixture struct {
	db        *gorm.DB
	service   *Service
	published []models.Notification
	observed  []int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "broadcast.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(append(models.All(), &outbox.Message{})...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	f := &fixture{db: db}
	ids := &sequenceIDs{}
	writer, _ := outbox.NewWriter(ids, nil)
	f.service, err = NewService(ServiceConfig{
		Database:   db,
		IDProvider: ids,
		Outbox:     writer,
		Publish:    func(notification models.Notification) { f.published = append(f.published, notification) },
		Observe:    func(recipients int) { f.observed = append(f.observed, recipients) },
	})
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	profiles := []models.UserProfile{
		{ID: "u1", Email: "u1@example.com", Role: models.RoleUser, CreatedAt: base},
		{ID: "u2", Email: "", Role: models.RoleUser, CreatedAt: base.Add(time.Minute)},
		{ID: "a1", Email: "a1@example.com", Role: models.RoleAdmin, CreatedAt: base.Add(2 * time.Minute)},
		{ID: "s1", Email: "s1@example.com", Role: models.RoleSuperAdmin, CreatedAt: base.Add(3 * time.Minute)},
	}
	for _, profile := range profiles {
		if err := db.Create(&profile).Error; err != nil {
			t.Fatalf("seed profile: %v", err)
		}
	}
	db.Create(&models.CourseEnrollment{ID: "e1", CourseID: "c1", UserID: "u1"})
	db.Create(&models.CourseEnrollment{ID: "e2", CourseID: "c1", UserID: "u2"})
	db.Create(&models.EventRegistration{ID: "r1", EventID: "ev1", UserID: "u2", TicketNumber: "EVT-1", PaymentStatus: models.PaymentStateNotRequired})
	return f
}

func (f *fixture) recipients(t *testing.T) []string {
	t.Helper()
	var ids []string
	f.db.Model(&models.Notification{}).Pluck("user_id", &ids)
	sort.Strings(ids)
	return ids
}

func TestSendModes(t *testing.T) {
	cases := []struct {
		name    string
		request Request
		want    string
	}{
		{name: "all", request: Request{Mode: ModeAll}, want: "a1,s1,u1,u2"},
		{name: "admins", request: Request{Mode: ModeAdmins}, want: "a1,s1"},
		{name: "specific", request: Request{Mode: ModeSpecific, UserIDs: []string{"u1", "u1", " ", "ghost", "a1"}}, want: "a1,u1"},
		{name: "course", request: Request{Mode: ModeCourse, CourseID: "c1"}, want: "u1,u2"},
		{name: "event", request: Request{Mode: ModeEvent, EventID: "ev1"}, want: "u2"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			tc.request.Title = "Service update"
			tc.request.Message = "Sunday service starts at 10:00."
			count, err := f.service.Send(context.Background(), tc.request)
			if err != nil {
				t.Fatalf("send: %v", err)
			}
			got := strings.Join(f.recipients(t), ",")
			if got != tc.want || count != len(f.recipients(t)) {
				t.Fatalf("got %s (count %d), want %s", got, count, tc.want)
			}
			if len(f.published) != count || len(f.observed) != 1 || f.observed[0] != count {
				t.Fatalf("unexpected publish/observe: %d %v", len(f.published), f.observed)
			}
		})
	}
}

func TestSendQueuesEmailsForRecipientsWithAddresses(t *testing.T) {
	f := newFixture(t)
	count, err := f.service.Send(context.Background(), Request{
		Mode:      ModeAll,
		Title:     "Conference",
		Message:   "Registration is open.",
		SendEmail: true,
	})
	if err != nil || count != 4 {
		t.Fatalf("send: %d %v", count, err)
	}
	var messages []outbox.Message
	f.db.Find(&messages)
	if len(messages) != 3 {
		t.Fatalf("expected one email per addressed recipient, got %d", len(messages))
	}
	for _, message := range messages {
		email, err := message.DecodeEmail()
		if err != nil || email.Subject != "Conference" || email.To == "" {
			t.Fatalf("unexpected email %+v %v", email, err)
		}
	}
}

func TestSendValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.service.Send(ctx, Request{Mode: ModeAll, Title: " "}); !errors.Is(err, ErrInvalidBroadcast) {
		t.Fatalf("expected invalid broadcast, got %v", err)
	}
	if _, err := f.service.Send(ctx, Request{Mode: "everyone", Title: "t", Message: "m"}); !errors.Is(err, ErrUnknownMode) {
		t.Fatalf("expected unknown mode, got %v", err)
	}
	if _, err := f.service.Send(ctx, Request{Mode: ModeCourse, Title: "t", Message: "m"}); !errors.Is(err, ErrInvalidBroadcast) {
		t.Fatalf("expected missing course id, got %v", err)
	}
	if _, err := f.service.Send(ctx, Request{Mode: ModeEvent, EventID: "none", Title: "t", Message: "m"}); !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("expected no recipients, got %v", err)
	}
}
