package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

var errMissingIDProvider = errors.New("outbox: id provider is required")

// IDProvider issues message identifiers.
type IDProvider interface {
	NewID() (string, error)
}

// Writer records intents inside the caller's transaction so they commit or
// roll back together with the primary write.
type Writer struct {
	ids   IDProvider
	clock func() time.Time
}

// NewWriter constructs a Writer.
func NewWriter(ids IDProvider, clock func() time.Time) (*Writer, error) {
	if ids == nil {
		return nil, errMissingIDProvider
	}
	if clock == nil {
		clock = time.Now
	}
	return &Writer{ids: ids, clock: clock}, nil
}

// Enqueue persists the intents using tx.
func (w *Writer) Enqueue(tx *gorm.DB, intents ...Intent) error {
	if len(intents) == 0 {
		return nil
	}
	now := w.clock().UTC()
	messages := make([]Message, 0, len(intents))
	for _, intent := range intents {
		payload, err := json.Marshal(intent.Payload)
		if err != nil {
			return fmt.Errorf("outbox: encode %s: %w", intent.Kind, err)
		}
		id, err := w.ids.NewID()
		if err != nil {
			return fmt.Errorf("outbox: id: %w", err)
		}
		messages = append(messages, Message{
			ID:          id,
			Kind:        intent.Kind,
			Payload:     payload,
			Status:      StatusPending,
			AvailableAt: now,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	return tx.Create(&messages).Error
}
