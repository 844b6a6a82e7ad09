package outbox

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultBatchSize    = 50
	defaultMaxAttempts  = 5
	defaultPollInterval = 5 * time.Second
	baseBackoff         = 30 * time.Second
	maxBackoff          = time.Hour

	ResultSent    = "sent"
	ResultRetried = "retried"
	ResultFailed  = "failed"
)

var errMissingDatabase = errors.New("outbox: database handle is required")
var errMissingHandler = errors.New("outbox: handler is required")

// Handler performs the side effect a message describes.
type Handler interface {
	Handle(ctx context.Context, message Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, message Message) error

func (f HandlerFunc) Handle(ctx context.Context, message Message) error {
	return f(ctx, message)
}

// WorkerConfig describes the dependencies of a Worker.
type WorkerConfig struct {
	Database     *gorm.DB
	Handler      Handler
	Clock        func() time.Time
	BatchSize    int
	MaxAttempts  int
	PollInterval time.Duration
	Logger       *zap.Logger
	Observe      func(kind Kind, result string)
}

// Worker delivers pending messages at least once.
type Worker struct {
	db           *gorm.DB
	handler      Handler
	clock        func() time.Time
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	logger       *zap.Logger
	observe      func(kind Kind, result string)
}

// Stats summarises one processing pass.
type Stats struct {
	Sent    int
	Retried int
	Failed  int
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Handler == nil {
		return nil, errMissingHandler
	}
	worker := &Worker{
		db:           cfg.Database,
		handler:      cfg.Handler,
		clock:        cfg.Clock,
		batchSize:    cfg.BatchSize,
		maxAttempts:  cfg.MaxAttempts,
		pollInterval: cfg.PollInterval,
		logger:       cfg.Logger,
		observe:      cfg.Observe,
	}
	if worker.clock == nil {
		worker.clock = time.Now
	}
	if worker.batchSize <= 0 {
		worker.batchSize = defaultBatchSize
	}
	if worker.maxAttempts <= 0 {
		worker.maxAttempts = defaultMaxAttempts
	}
	if worker.pollInterval <= 0 {
		worker.pollInterval = defaultPollInterval
	}
	if worker.logger == nil {
		worker.logger = zap.NewNop()
	}
	if worker.observe == nil {
		worker.observe = func(Kind, string) {}
	}
	return worker, nil
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		if _, err := w.ProcessPending(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("outbox pass failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ProcessPending makes exactly one delivery attempt for each due message in
// the next batch.
func (w *Worker) ProcessPending(ctx context.Context) (Stats, error) {
	now := w.clock().UTC()
	var messages []Message
	err := w.db.WithContext(ctx).
		Where("status = ? AND available_at <= ?", StatusPending, now).
		Order("created_at ASC").
		Limit(w.batchSize).
		Find(&messages).Error
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, message := range messages {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		handleErr := w.handler.Handle(ctx, message)
		result, err := w.record(ctx, message, handleErr)
		if err != nil {
			return stats, err
		}
		w.observe(message.Kind, result)
		switch result {
		case ResultSent:
			stats.Sent++
		case ResultRetried:
			stats.Retried++
		case ResultFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (w *Worker) record(ctx context.Context, message Message, handleErr error) (string, error) {
	now := w.clock().UTC()
	attempts := message.Attempts + 1
	updates := map[string]interface{}{
		"attempts":   attempts,
		"updated_at": now,
	}
	result := ResultSent
	if handleErr == nil {
		updates["status"] = StatusSent
		updates["last_error"] = ""
	} else if attempts >= w.maxAttempts {
		result = ResultFailed
		updates["status"] = StatusFailed
		updates["last_error"] = handleErr.Error()
		w.logger.Error("outbox message failed permanently",
			zap.String("message_id", message.ID),
			zap.String("kind", string(message.Kind)),
			zap.Int("attempts", attempts),
			zap.Error(handleErr))
	} else {
		result = ResultRetried
		updates["last_error"] = handleErr.Error()
		updates["available_at"] = now.Add(backoff(attempts))
		w.logger.Warn("outbox message delivery failed",
			zap.String("message_id", message.ID),
			zap.String("kind", string(message.Kind)),
			zap.Int("attempts", attempts),
			zap.Error(handleErr))
	}
	err := w.db.WithContext(ctx).Model(&Message{}).Where("id = ?", message.ID).Updates(updates).Error
	return result, err
}

func backoff(attempts int) time.Duration {
	delay := baseBackoff
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
