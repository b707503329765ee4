package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"postboard/internal/queue"
)

// ObjectDeleter is the slice of object storage the worker needs.
type ObjectDeleter interface {
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// ErrUnknownEvent is returned for event types this handler does not process.
var ErrUnknownEvent = errors.New("unknown event type")

// Handler processes media lifecycle events from the queue.
type Handler struct {
	objects ObjectDeleter
}

// NewHandler creates a new event handler.
func NewHandler(objects ObjectDeleter) *Handler {
	return &Handler{objects: objects}
}

// HandleEvent routes an event to the appropriate handler based on type.
func (h *Handler) HandleEvent(ctx context.Context, event queue.MediaEvent) error {
	startTime := time.Now()
	var err error

	switch event.Type {
	case queue.EventMediaOrphaned:
		err = h.handleMediaOrphaned(ctx, event)
	default:
		log.Printf("[Worker] Unknown event type: %s", event.Type)
		return fmt.Errorf("%w: %s", ErrUnknownEvent, event.Type)
	}

	if err != nil {
		log.Printf("[Worker] HandleEvent FAILED: type=%s duration=%v err=%v",
			event.Type, time.Since(startTime), err)
		return err
	}

	log.Printf("[Worker] HandleEvent OK: type=%s duration=%v", event.Type, time.Since(startTime))
	return nil
}

// handleMediaOrphaned deletes an object no record points at any more.
// Events for another bucket are ignored: the backend may have been switched since publishing.
func (h *Handler) handleMediaOrphaned(ctx context.Context, event queue.MediaEvent) error {
	if event.Key == "" {
		log.Printf("[Worker] MediaOrphaned: empty key, skipping")
		return nil
	}
	if event.Bucket != "" && event.Bucket != h.objects.Bucket() {
		log.Printf("[Worker] MediaOrphaned: key=%s bucket=%s not ours (%s), skipping",
			event.Key, event.Bucket, h.objects.Bucket())
		return nil
	}

	if err := h.objects.Delete(ctx, event.Key); err != nil {
		return fmt.Errorf("delete object %s: %w", event.Key, err)
	}

	log.Printf("[Worker] MediaOrphaned DONE: key=%s reason=%s", event.Key, event.Reason)
	return nil
}
