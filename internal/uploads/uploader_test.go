package uploads

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/storage"
)

type fixedIDs struct{ n int }

func (f *fixedIDs) NewID() (string, error) {
	f.n++
	return fmt.Sprintf("file-%d", f.n), nil
}

type recordingProfiles struct {
	ensured []string
	err     error
}

func (r *recordingProfiles) EnsureProfile(_ context.Context, userID, email, fullName string) (models.UserProfile, error) {
	if r.err != nil {
		return models.UserProfile{}, r.err
	}
	r.ensured = append(r.ensured, userID)
	return models.UserProfile{ID: userID, Email: email, FullName: fullName}, nil
}

type countingStorage struct {
	storage.Storage
	puts int
}

func (c *countingStorage) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	c.puts++
	return c.Storage.Put(ctx, key, body, contentType)
}

func newTestUploader(t *testing.T) (*Uploader, *countingStorage, *recordingProfiles, *[]string) {
	t.Helper()
	local, err := storage.NewLocal(t.TempDir(), "/files")
	if err != nil {
		t.Fatalf("local storage: %v", err)
	}
	store := &countingStorage{Storage: local}
	profiles := &recordingProfiles{}
	var rejected []string
	uploader, err := NewUploader(UploaderConfig{
		Storage:    store,
		Profiles:   profiles,
		IDProvider: &fixedIDs{},
		OnRejected: func(reason string) { rejected = append(rejected, reason) },
	})
	if err != nil {
		t.Fatalf("new uploader: %v", err)
	}
	return uploader, store, profiles, &rejected
}

func TestUploadRejectsOversizeBeforeStorage(t *testing.T) {
	uploader, store, profiles, rejected := newTestUploader(t)
	_, err := uploader.Upload(context.Background(), Request{
		File:     strings.NewReader("x"),
		Size:     MaxFileBytes + 1,
		Filename: "id.pdf",
		User:     &User{ID: "user-1"},
	})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected file too large, got %v", err)
	}
	if store.puts != 0 || len(profiles.ensured) != 0 {
		t.Fatalf("oversize files must not reach storage or the profile service")
	}
	if len(*rejected) != 1 || (*rejected)[0] != "too_large" {
		t.Fatalf("unexpected rejection reasons %v", *rejected)
	}
}

func TestUploadAcceptsExactLimit(t *testing.T) {
	uploader, _, _, _ := newTestUploader(t)
	payload := bytes.Repeat([]byte("a"), int(MaxFileBytes))
	result, err := uploader.Upload(context.Background(), Request{
		File:     bytes.NewReader(payload),
		Size:     MaxFileBytes,
		Filename: "id.PDF",
		User:     &User{ID: "user-1"},
	})
	if err != nil {
		t.Fatalf("upload at the limit should succeed: %v", err)
	}
	if result.Key != "id_documents/user-1/file-1.pdf" {
		t.Fatalf("unexpected key %q", result.Key)
	}
}

func TestUploadRejectsUnderstatedSize(t *testing.T) {
	uploader, _, _, _ := newTestUploader(t)
	payload := bytes.Repeat([]byte("a"), int(MaxFileBytes)+10)
	_, err := uploader.Upload(context.Background(), Request{
		File:     bytes.NewReader(payload),
		Size:     100,
		Filename: "id.pdf",
		User:     &User{ID: "user-1"},
	})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("expected file too large, got %v", err)
	}
}

func TestUploadRequiresUser(t *testing.T) {
	uploader, store, _, _ := newTestUploader(t)
	_, err := uploader.Upload(context.Background(), Request{File: strings.NewReader("x"), Size: 1, Filename: "a.png"})
	if !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
	if store.puts != 0 {
		t.Fatalf("storage must not be touched")
	}
}

func TestUploadStoresUnderDestination(t *testing.T) {
	uploader, store, profiles, _ := newTestUploader(t)
	result, err := uploader.Upload(context.Background(), Request{
		File:        strings.NewReader("proof"),
		Size:        5,
		Filename:    "receipt.jpg",
		ContentType: "image/jpeg",
		Destination: DestinationPaymentProofs,
		User:        &User{ID: "user-9", Email: "u9@example.com"},
	})
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}
	if result.Key != "payment_proofs/user-9/file-1.jpg" || result.URL != "/files/payment_proofs/user-9/file-1.jpg" {
		t.Fatalf("unexpected result %+v", result)
	}
	if store.puts != 1 || len(profiles.ensured) != 1 || profiles.ensured[0] != "user-9" {
		t.Fatalf("expected one put and one profile ensure, got %d/%v", store.puts, profiles.ensured)
	}
}

func TestUploadSurfacesProfileFailure(t *testing.T) {
	uploader, store, profiles, _ := newTestUploader(t)
	profiles.err = errors.New("permission denied")
	_, err := uploader.Upload(context.Background(), Request{File: strings.NewReader("x"), Size: 1, Filename: "a.png", User: &User{ID: "u"}})
	if err == nil || !strings.Contains(err.Error(), "permission denied") {
		t.Fatalf("expected profile error, got %v", err)
	}
	if store.puts != 0 {
		t.Fatalf("storage must not be touched when the profile cannot be ensured")
	}
}
