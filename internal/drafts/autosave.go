package drafts

import (
	"context"
	"time"

	"github.com/christlifeministries/portal/internal/forms"
	"go.uber.org/zap"
)

const defaultAutosaveInterval = 15 * time.Second

// Saver is the persistence half of Service used by the Autosaver.
type Saver interface {
	Save(ctx context.Context, userID string, state forms.State) error
}

type AutosaverConfig struct {
	Saver    Saver
	UserID   string
	Snapshot func() forms.State
	Interval time.Duration
	Logger   *zap.Logger
}

// Autosaver periodically persists a wizard snapshot while it changes. It is
// for callers that hold wizard state in process; HTTP clients save through
// the draft endpoints instead.
type Autosaver struct {
	saver    Saver
	userID   string
	snapshot func() forms.State
	interval time.Duration
	logger   *zap.Logger

	last    forms.State
	hasLast bool
}

func NewAutosaver(cfg AutosaverConfig) *Autosaver {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultAutosaveInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Autosaver{
		saver:    cfg.Saver,
		userID:   cfg.UserID,
		snapshot: cfg.Snapshot,
		interval: interval,
		logger:   logger,
	}
}

// Run ticks until ctx is done.
func (a *Autosaver) Run(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Tick(ctx)
		}
	}
}

// Tick saves the current snapshot when it differs from the last saved one.
// It reports whether a save succeeded. Failures are logged, never returned.
func (a *Autosaver) Tick(ctx context.Context) bool {
	if a.saver == nil || a.snapshot == nil {
		return false
	}
	state := a.snapshot()
	if a.hasLast && state.Equal(a.last) {
		return false
	}
	if err := a.saver.Save(ctx, a.userID, state); err != nil {
		a.logger.Warn("draft autosave failed",
			zap.String("user_id", a.userID),
			zap.String("form_type", string(state.FormType)),
			zap.Error(err))
		return false
	}
	a.last = state
	a.hasLast = true
	return true
}
