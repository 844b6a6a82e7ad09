package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/christlifeministries/portal/internal/apperrors"
	"github.com/christlifeministries/portal/internal/models"
	"github.com/christlifeministries/portal/internal/storage"
	"go.uber.org/zap"
)

// MaxFileBytes is the largest document an applicant may upload.
const MaxFileBytes int64 = 10 * 1024 * 1024

var (
	// ErrFileTooLarge is returned before any storage call when the file exceeds the limit.
	ErrFileTooLarge = errors.New("uploads: file too large, the limit is 10MB")
	// ErrUnauthenticated is returned when no signed-in user is attached to the request.
	ErrUnauthenticated = errors.New("uploads: you must be signed in to upload")
	// ErrMissingFile indicates an empty request.
	ErrMissingFile       = errors.New("uploads: file is required")
	errMissingStorage    = errors.New("uploads: storage is required")
	errMissingProfiles   = errors.New("uploads: profile service is required")
	errMissingIDProvider = errors.New("uploads: id provider is required")
)

const (
	opUploaderNew = "uploads.uploader.new"
	opUpload      = "uploads.upload"
)

// Destinations used by the portal.
const (
	DestinationIDDocuments   = "id_documents"
	DestinationPaymentProofs = "payment_proofs"
	DestinationCertificates  = "certificates"
	DestinationTickets       = "tickets"
)

// ProfileEnsurer makes sure a profile row exists before the user's first write.
type ProfileEnsurer interface {
	EnsureProfile(ctx context.Context, userID, email, fullName string) (models.UserProfile, error)
}

// User identifies the uploader.
type User struct {
	ID       string
	Email    string
	FullName string
}

// Request describes one file to store.
type Request struct {
	File        io.Reader
	Size        int64
	Filename    string
	ContentType string
	Destination string
	User        *User
}

// Result locates the stored object.
type Result struct {
	URL string `json:"url"`
	Key string `json:"key"`
}

type UploaderConfig struct {
	Storage    storage.Storage
	Profiles   ProfileEnsurer
	IDProvider models.IDProvider
	MaxBytes   int64
	Logger     *zap.Logger
	OnRejected func(reason string)
}

// Uploader validates and stores applicant documents.
type Uploader struct {
	storage    storage.Storage
	profiles   ProfileEnsurer
	ids        models.IDProvider
	maxBytes   int64
	logger     *zap.Logger
	onRejected func(reason string)
}

func NewUploader(cfg UploaderConfig) (*Uploader, error) {
	if cfg.Storage == nil {
		return nil, apperrors.New(opUploaderNew, "missing_storage", errMissingStorage)
	}
	if cfg.Profiles == nil {
		return nil, apperrors.New(opUploaderNew, "missing_profiles", errMissingProfiles)
	}
	if cfg.IDProvider == nil {
		return nil, apperrors.New(opUploaderNew, "missing_id_provider", errMissingIDProvider)
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 || maxBytes > MaxFileBytes {
		maxBytes = MaxFileBytes
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	onRejected := cfg.OnRejected
	if onRejected == nil {
		onRejected = func(string) {}
	}
	return &Uploader{
		storage:    cfg.Storage,
		profiles:   cfg.Profiles,
		ids:        cfg.IDProvider,
		maxBytes:   maxBytes,
		logger:     logger,
		onRejected: onRejected,
	}, nil
}

// Upload stores the file under <destination>/<user_id>/<uuid><ext>.
func (u *Uploader) Upload(ctx context.Context, request Request) (Result, error) {
	if request.Size > u.maxBytes {
		u.onRejected("too_large")
		return Result{}, ErrFileTooLarge
	}
	if request.User == nil || strings.TrimSpace(request.User.ID) == "" {
		u.onRejected("unauthenticated")
		return Result{}, ErrUnauthenticated
	}
	if request.File == nil {
		u.onRejected("missing_file")
		return Result{}, ErrMissingFile
	}
	destination := strings.Trim(strings.TrimSpace(request.Destination), "/")
	if destination == "" {
		destination = DestinationIDDocuments
	}

	if _, err := u.profiles.EnsureProfile(ctx, request.User.ID, request.User.Email, request.User.FullName); err != nil {
		apperrors.Log(u.logger, "uploads error", opUpload, "ensure_profile_failed", err, zap.String("user_id", request.User.ID))
		return Result{}, apperrors.New(opUpload, "ensure_profile_failed", err)
	}

	id, err := u.ids.NewID()
	if err != nil {
		return Result{}, apperrors.New(opUpload, "id_generation_failed", err)
	}
	key := fmt.Sprintf("%s/%s/%s%s", destination, request.User.ID, id, strings.ToLower(filepath.Ext(request.Filename)))

	// Guard against a declared size that understates the stream.
	limited := &limitedReader{reader: request.File, remaining: u.maxBytes}
	if err := u.storage.Put(ctx, key, limited, request.ContentType); err != nil {
		if limited.exceeded {
			_ = u.storage.Delete(ctx, key)
			u.onRejected("too_large")
			return Result{}, ErrFileTooLarge
		}
		apperrors.Log(u.logger, "uploads error", opUpload, "upload_failed", err, zap.String("key", key))
		return Result{}, apperrors.New(opUpload, "upload_failed", err)
	}
	url, err := u.storage.URL(ctx, key)
	if err != nil {
		return Result{}, apperrors.New(opUpload, "upload_url_failed", err)
	}
	return Result{URL: url, Key: key}, nil
}

type limitedReader struct {
	reader    io.Reader
	remaining int64
	exceeded  bool
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.remaining < 0 {
		l.exceeded = true
		return 0, ErrFileTooLarge
	}
	if int64(len(p)) > l.remaining+1 {
		p = p[:l.remaining+1]
	}
	n, err := l.reader.Read(p)
	l.remaining -= int64(n)
	if l.remaining < 0 {
		l.exceeded = true
		return n, ErrFileTooLarge
	}
	return n, err
}
