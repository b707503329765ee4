package worker_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"postboard/internal/queue"
	"postboard/internal/storage"
	"postboard/internal/worker"
)

// =============================================================================
// Fakes
// =============================================================================

// fakeConsumer serves messages from memory and records acknowledgements.
type fakeConsumer struct {
	mu      sync.Mutex
	pending []queue.Message
	fresh   []queue.Message
	acked   []string
	ensured int
	readers map[string]bool

	// ackErr fails every Ack, leaving pending messages in place.
	ackErr       error
	pendingReads int
}

func (f *fakeConsumer) EnsureGroup(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured++
	return nil
}

func (f *fakeConsumer) Read(ctx context.Context, name string, count int64, block time.Duration) ([]queue.Message, error) {
	f.mu.Lock()
	if f.readers == nil {
		f.readers = map[string]bool{}
	}
	f.readers[name] = true
	msgs := f.fresh
	f.fresh = nil
	f.mu.Unlock()

	if len(msgs) == 0 {
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Millisecond):
		}
	}
	return msgs, nil
}

func (f *fakeConsumer) Ack(ctx context.Context, ids ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return f.ackErr
	}
	f.acked = append(f.acked, ids...)
	return nil
}

func (f *fakeConsumer) Pending(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(len(f.pending)), nil
}

func (f *fakeConsumer) ReadPending(ctx context.Context, name string, count int64) ([]queue.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pendingReads++
	msgs := f.pending
	if f.ackErr == nil {
		f.pending = nil
	}
	return msgs, nil
}

func (f *fakeConsumer) hasReader(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readers[name]
}

func (f *fakeConsumer) ackedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.acked...)
}

type failingDeleter struct{}

func (failingDeleter) Delete(ctx context.Context, key string) error {
	return errors.New("bucket offline")
}
func (failingDeleter) Bucket() string { return "media" }

func putObject(t *testing.T, s *storage.MemoryStorage, key string) {
	t.Helper()
	data := []byte("image-bytes")
	if err := s.Put(context.Background(), key, bytes.NewReader(data), int64(len(data)), "image/png"); err != nil {
		t.Fatalf("Put(%s): %v", key, err)
	}
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestHandler_MediaOrphanedDeletesObject(t *testing.T) {
	objects := storage.NewMemoryStorage("media", "")
	putObject(t, objects, "posts/1-u1-cat.png")
	putObject(t, objects, "posts/2-u1-dog.png")

	h := worker.NewHandler(objects)
	event := queue.NewMediaOrphanedEvent("posts/1-u1-cat.png", "media", queue.ReasonPostDeleted)

	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	if _, ok := objects.Object("posts/1-u1-cat.png"); ok {
		t.Error("orphaned object should have been deleted")
	}
	if _, ok := objects.Object("posts/2-u1-dog.png"); !ok {
		t.Error("unrelated object should remain")
	}
}

func TestHandler_SkipsOtherBucketsAndEmptyKeys(t *testing.T) {
	objects := storage.NewMemoryStorage("media", "")
	putObject(t, objects, "users/u1.jpg")
	h := worker.NewHandler(objects)

	tests := []struct {
		name  string
		event queue.MediaEvent
	}{
		{"other bucket", queue.NewMediaOrphanedEvent("users/u1.jpg", "legacy", queue.ReasonUserDeleted)},
		{"empty key", queue.NewMediaOrphanedEvent("", "media", queue.ReasonUserDeleted)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := h.HandleEvent(context.Background(), tt.event); err != nil {
				t.Fatalf("HandleEvent failed: %v", err)
			}
			if objects.Len() != 1 {
				t.Errorf("objects = %d, want 1", objects.Len())
			}
		})
	}
}

func TestHandler_UnknownEventType(t *testing.T) {
	h := worker.NewHandler(storage.NewMemoryStorage("media", ""))

	err := h.HandleEvent(context.Background(), queue.MediaEvent{Type: "post_created"})

	if !errors.Is(err, worker.ErrUnknownEvent) {
		t.Errorf("error = %v, want ErrUnknownEvent", err)
	}
}

func TestHandler_DeleteFailureIsReturned(t *testing.T) {
	h := worker.NewHandler(failingDeleter{})

	err := h.HandleEvent(context.Background(), queue.NewMediaOrphanedEvent("k", "", queue.ReasonPostReplaced))

	if err == nil || !strings.Contains(err.Error(), "bucket offline") {
		t.Errorf("error = %v, want wrapped delete failure", err)
	}
}

// =============================================================================
// Manager Tests
// =============================================================================

func TestManager_ProcessesPendingThenNewMessages(t *testing.T) {
	objects := storage.NewMemoryStorage("media", "")
	putObject(t, objects, "posts/old.png")
	putObject(t, objects, "posts/new.png")

	consumer := &fakeConsumer{
		pending: []queue.Message{{ID: "1-0", Event: queue.NewMediaOrphanedEvent("posts/old.png", "media", queue.ReasonPostDeleted)}},
		fresh:   []queue.Message{{ID: "2-0", Event: queue.NewMediaOrphanedEvent("posts/new.png", "media", queue.ReasonPostReplaced)}},
	}

	mgr := worker.NewManager(consumer, worker.NewHandler(objects), worker.ManagerConfig{Workers: 1})
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(consumer.ackedIDs()) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	mgr.Stop()

	acked := consumer.ackedIDs()
	if len(acked) != 2 || acked[0] != "1-0" || acked[1] != "2-0" {
		t.Errorf("acked = %v, want [1-0 2-0]", acked)
	}
	if objects.Len() != 0 {
		t.Errorf("objects remaining = %d, want 0", objects.Len())
	}
	if consumer.ensured != 1 {
		t.Errorf("EnsureGroup calls = %d, want 1", consumer.ensured)
	}
	if !consumer.readers["media-worker-1"] {
		t.Errorf("readers = %v, want media-worker-1", consumer.readers)
	}
}

func TestManager_AcksFailedMessages(t *testing.T) {
	consumer := &fakeConsumer{
		fresh: []queue.Message{{ID: "7-0", Event: queue.NewMediaOrphanedEvent("k", "", queue.ReasonPostDeleted)}},
	}

	mgr := worker.NewManager(consumer, worker.NewHandler(failingDeleter{}), worker.DefaultManagerConfig())
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(consumer.ackedIDs()) < 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	mgr.Stop()

	if acked := consumer.ackedIDs(); len(acked) != 1 || acked[0] != "7-0" {
		t.Errorf("acked = %v, want [7-0]", acked)
	}
}

func TestManager_PendingDrainStopsWhenAcksFail(t *testing.T) {
	objects := storage.NewMemoryStorage("media", "")
	consumer := &fakeConsumer{
		pending: []queue.Message{{ID: "3-0", Event: queue.NewMediaOrphanedEvent("posts/gone.png", "media", queue.ReasonPostDeleted)}},
		ackErr:  errors.New("redis read-only"),
	}

	mgr := worker.NewManager(consumer, worker.NewHandler(objects), worker.ManagerConfig{Workers: 1})
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !consumer.hasReader("media-worker-1") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	mgr.Stop()

	if !consumer.hasReader("media-worker-1") {
		t.Fatal("worker never moved on to new events")
	}
	if consumer.pendingReads != 1 {
		t.Errorf("pending reads = %d, want 1", consumer.pendingReads)
	}
}

// =============================================================================
// Redis Integration
// =============================================================================

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}
	// DB 1 keeps test streams away from dev data
	opts.DB = 1

	client := redis.NewClient(opts)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	client.FlushDB(ctx)

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestRedisStream_PublishConsumeDelete(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	objects := storage.NewMemoryStorage("media", "")
	putObject(t, objects, "users/u1-avatar.jpg")

	publisher := queue.NewPublisher(client)
	if _, err := publisher.Publish(ctx,
		queue.NewMediaOrphanedEvent("users/u1-avatar.jpg", "media", queue.ReasonAvatarReplaced)); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	consumer := queue.NewConsumer(client)
	mgr := worker.NewManager(consumer, worker.NewHandler(objects), worker.ManagerConfig{
		Workers:      1,
		BlockTimeout: 100 * time.Millisecond,
	})
	if err := mgr.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for objects.Len() > 0 && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
	}
	mgr.Stop()

	if objects.Len() != 0 {
		t.Fatal("object should have been deleted by the worker")
	}

	pending, err := consumer.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending failed: %v", err)
	}
	if pending != 0 {
		t.Errorf("pending = %d, want 0", pending)
	}
}
