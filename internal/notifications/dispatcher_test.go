package notifications

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/outbox"
	"github.com/christlifeministries/portal/internal/users"
	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type sequenceIDs struct {
	prefix string
	next   int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.next++
	return fmt.Sprintf("%s-%03d", s.prefix, s.next), nil
}

type recordingMailer struct {
	sent []outbox.Email
	err  error
}

func (r *recordingMailer) Send(_ context.Context, email outbox.Email) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, email)
	return nil
}

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "notifications.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.UserProfile{}, &models.Notification{}, &outbox.Message{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func adminDirectory(t *testing.T, db *gorm.DB) *users.Service {
	t.Helper()
	service, err := users.NewService(users.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("users service: %v", err)
	}
	return service
}

func enqueue(t *testing.T, db *gorm.DB, intents ...outbox.Intent) []outbox.Message {
	t.Helper()
	writer, err := outbox.NewWriter(&sequenceIDs{prefix: "msg"}, nil)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	if err := writer.Enqueue(db, intents...); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	var messages []outbox.Message
	if err := db.Order("id ASC").Find(&messages).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	return messages
}

func TestDispatcherNotifyUserIsIdempotent(t *testing.T) {
	db := openTestDatabase(t)
	var published []models.Notification
	dispatcher, err := NewDispatcher(DispatcherConfig{
		Database:   db,
		IDProvider: &sequenceIDs{prefix: "n"},
		Admins:     adminDirectory(t, db),
		Mailer:     &recordingMailer{},
		Publish:    func(n models.Notification) { published = append(published, n) },
	})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	messages := enqueue(t, db, outbox.NotifyUser(outbox.Notice{UserID: "user-1", Type: "application", Title: "Application received", RelatedID: "app-1"}))

	for i := 0; i < 2; i++ {
		if err := dispatcher.Handle(context.Background(), messages[0]); err != nil {
			t.Fatalf("handle %d failed: %v", i, err)
		}
	}

	var rows []models.Notification
	db.Find(&rows)
	if len(rows) != 1 || rows[0].UserID != "user-1" || rows[0].RelatedID != "app-1" {
		t.Fatalf("expected exactly one notification, got %+v", rows)
	}
	if len(published) != 1 {
		t.Fatalf("replay must not republish, got %d publications", len(published))
	}
}

func TestDispatcherFansOutToAdmins(t *testing.T) {
	db := openTestDatabase(t)
	db.Create(&[]models.UserProfile{
		{ID: "admin-1", Role: models.RoleAdmin},
		{ID: "super-1", Role: models.RoleSuperAdmin},
		{ID: "user-1", Role: models.RoleUser},
	})
	dispatcher, err := NewDispatcher(DispatcherConfig{Database: db, IDProvider: &sequenceIDs{prefix: "n"}, Admins: adminDirectory(t, db), Mailer: &recordingMailer{}})
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	messages := enqueue(t, db, outbox.NotifyAdmins(outbox.Notice{Type: "application", Title: "New application"}))

	for i := 0; i < 2; i++ {
		if err := dispatcher.Handle(context.Background(), messages[0]); err != nil {
			t.Fatalf("handle failed: %v", err)
		}
	}
	var recipients []string
	db.Model(&models.Notification{}).Order("user_id ASC").Pluck("user_id", &recipients)
	if len(recipients) != 2 || recipients[0] != "admin-1" || recipients[1] != "super-1" {
		t.Fatalf("unexpected admin recipients %v", recipients)
	}
}

func TestNewDispatcherRequiresAdminDirectory(t *testing.T) {
	db := openTestDatabase(t)
	_, err := NewDispatcher(DispatcherConfig{Database: db, IDProvider: &sequenceIDs{prefix: "n"}, Mailer: &recordingMailer{}})
	if !errors.Is(err, errMissingAdmins) {
		t.Fatalf("expected missing admin directory error, got %v", err)
	}
}

func TestDispatcherAdminNoticeWithoutAdminsIsDropped(t *testing.T) {
	db := openTestDatabase(t)
	core, logs := observer.New(zap.WarnLevel)
	dispatcher, _ := NewDispatcher(DispatcherConfig{Database: db, IDProvider: &sequenceIDs{prefix: "n"}, Admins: adminDirectory(t, db), Mailer: &recordingMailer{}, Logger: zap.New(core)})
	messages := enqueue(t, db, outbox.NotifyAdmins(outbox.Notice{Type: "donation", Title: "Gift"}))
	if err := dispatcher.Handle(context.Background(), messages[0]); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected a warning, got %d entries", logs.Len())
	}
}

func TestDispatcherSendsEmail(t *testing.T) {
	db := openTestDatabase(t)
	mailer := &recordingMailer{}
	dispatcher, _ := NewDispatcher(DispatcherConfig{Database: db, IDProvider: &sequenceIDs{prefix: "n"}, Admins: adminDirectory(t, db), Mailer: mailer})
	messages := enqueue(t, db, outbox.SendEmail(outbox.Email{To: "a@example.com", Subject: "Approved", Body: "Welcome"}))
	if err := dispatcher.Handle(context.Background(), messages[0]); err != nil {
		t.Fatalf("handle failed: %v", err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0].Subject != "Approved" {
		t.Fatalf("unexpected sent mail %+v", mailer.sent)
	}

	mailer.err = errors.New("relay refused")
	if err := dispatcher.Handle(context.Background(), messages[0]); err == nil {
		t.Fatalf("mailer failures must surface so the outbox retries")
	}
}

func TestDispatcherWithWorkerDeliversOnce(t *testing.T) {
	db := openTestDatabase(t)
	mailer := &recordingMailer{}
	dispatcher, _ := NewDispatcher(DispatcherConfig{Database: db, IDProvider: &sequenceIDs{prefix: "n"}, Admins: adminDirectory(t, db), Mailer: mailer})
	enqueue(t, db,
		outbox.NotifyUser(outbox.Notice{UserID: "user-1", Type: "payment", Title: "Payment confirmed"}),
		outbox.SendEmail(outbox.Email{To: "user@example.com", Subject: "Receipt"}),
	)
	worker, err := outbox.NewWorker(outbox.WorkerConfig{
		Database: db,
		Handler:  dispatcher,
		Clock:    func() time.Time { return time.Now().Add(time.Minute) },
	})
	if err != nil {
		t.Fatalf("worker: %v", err)
	}
	stats, err := worker.ProcessPending(context.Background())
	if err != nil || stats.Sent != 2 {
		t.Fatalf("unexpected stats %+v (%v)", stats, err)
	}
	stats, _ = worker.ProcessPending(context.Background())
	if stats.Sent != 0 || len(mailer.sent) != 1 {
		t.Fatalf("sent messages must not be redelivered: %+v, %d mails", stats, len(mailer.sent))
	}
}

func TestNewMailerSelectsDriver(t *testing.T) {
	mailer, err := NewMailer(configWithDriver("log"), nil)
	if err != nil {
		t.Fatalf("log driver: %v", err)
	}
	if _, ok := mailer.(*LogMailer); !ok {
		t.Fatalf("expected log mailer, got %T", mailer)
	}
	mailer, err = NewMailer(configWithDriver("smtp"), nil)
	if err != nil {
		t.Fatalf("smtp driver: %v", err)
	}
	smtp, ok := mailer.(*SMTPMailer)
	if !ok {
		t.Fatalf("expected smtp mailer, got %T", mailer)
	}
	message := smtp.message(outbox.Email{To: "a@example.com", Subject: "Hello"})
	if got := message.GetHeader("Subject"); len(got) != 1 || got[0] != "Hello" {
		t.Fatalf("unexpected subject header %v", got)
	}
	if _, err := NewMailer(configWithDriver("pigeon"), nil); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}

func TestLogMailerLogsInsteadOfSending(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	mailer := NewLogMailer(zap.New(core))
	if err := mailer.Send(context.Background(), outbox.Email{To: "a@example.com", Subject: "Hi"}); err != nil {
		t.Fatalf("log mailer must not fail: %v", err)
	}
	if logs.FilterField(zap.String("to", "a@example.com")).Len() != 1 {
		t.Fatalf("expected recipient in log")
	}
}
