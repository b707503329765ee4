package worker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"postboard/internal/queue"
)

// EventHandler processes one decoded event.
type EventHandler interface {
	HandleEvent(ctx context.Context, event queue.MediaEvent) error
}

// ManagerConfig sizes the worker pool. Zero values take the defaults.
type ManagerConfig struct {
	Workers      int
	BatchSize    int64
	BlockTimeout time.Duration // XREADGROUP block time
	RetryDelay   time.Duration // pause after a failed read
}

func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Workers:      2,
		BatchSize:    10,
		BlockTimeout: 5 * time.Second,
		RetryDelay:   time.Second,
	}
}

func (c ManagerConfig) withDefaults() ManagerConfig {
	def := DefaultManagerConfig()
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = def.BatchSize
	}
	if c.BlockTimeout <= 0 {
		c.BlockTimeout = def.BlockTimeout
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = def.RetryDelay
	}
	return c
}

// Manager runs a pool of goroutines that drain the media stream into handler.
type Manager struct {
	consumer queue.Consumer
	handler  EventHandler
	cfg      ManagerConfig

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewManager(consumer queue.Consumer, handler EventHandler, cfg ManagerConfig) *Manager {
	return &Manager{consumer: consumer, handler: handler, cfg: cfg.withDefaults()}
}

// Start ensures the consumer group and launches the workers. They run until
// ctx is cancelled or Stop is called.
func (m *Manager) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	if err := m.consumer.EnsureGroup(ctx); err != nil {
		cancel()
		return err
	}
	m.cancel = cancel

	log.Printf("[Manager] Starting %d media workers", m.cfg.Workers)
	for i := 1; i <= m.cfg.Workers; i++ {
		w := &mediaWorker{
			name:    fmt.Sprintf("media-worker-%d", i),
			manager: m,
		}
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			w.run(ctx)
		}()
	}
	return nil
}

// Stop cancels the workers and waits for the batch in flight to finish.
func (m *Manager) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	log.Printf("[Manager] All media workers stopped")
}

type mediaWorker struct {
	name    string
	manager *Manager
}

func (w *mediaWorker) run(ctx context.Context) {
	cfg := w.manager.cfg
	log.Printf("[%s] Started", w.name)

	// Finish what a previous run of this consumer read but never acknowledged.
	for ctx.Err() == nil {
		messages, err := w.manager.consumer.ReadPending(ctx, w.name, cfg.BatchSize)
		if err != nil {
			log.Printf("[%s] ReadPending FAILED: err=%v", w.name, err)
			break
		}
		if len(messages) == 0 {
			break
		}
		// Nothing acked means the same batch would come back forever.
		if w.handle(ctx, messages) == 0 {
			log.Printf("[%s] Pending drain stalled: %d unacked, resuming with new events", w.name, len(messages))
			break
		}
	}

	for ctx.Err() == nil {
		messages, err := w.manager.consumer.Read(ctx, w.name, cfg.BatchSize, cfg.BlockTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Printf("[%s] Read FAILED: err=%v", w.name, err)
			select {
			case <-ctx.Done():
			case <-time.After(cfg.RetryDelay):
			}
			continue
		}
		w.handle(ctx, messages)
	}
	log.Printf("[%s] Shutting down", w.name)
}

// handle acknowledges every message, failed ones included: a delete that
// fails once is logged and left for the bucket's lifecycle rules. It returns
// how many acks succeeded.
func (w *mediaWorker) handle(ctx context.Context, messages []queue.Message) int {
	acked := 0
	for _, msg := range messages {
		if err := w.manager.handler.HandleEvent(ctx, msg.Event); err != nil {
			log.Printf("[%s] HandleEvent FAILED: id=%s err=%v", w.name, msg.ID, err)
		}
		if err := w.manager.consumer.Ack(ctx, msg.ID); err != nil {
			log.Printf("[%s] Ack FAILED: id=%s err=%v", w.name, msg.ID, err)
			continue
		}
		acked++
	}
	return acked
}
