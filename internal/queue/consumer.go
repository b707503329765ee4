package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is one media event read from the stream.
type Message struct {
	ID    string // e.g. "1702000000000-0"
	Event MediaEvent
}

// Consumer reads media events as a member of one consumer group.
type Consumer interface {
	// EnsureGroup creates the group, and the stream with it, if missing.
	EnsureGroup(ctx context.Context) error

	// Read returns up to count never-delivered events, blocking for at most block.
	Read(ctx context.Context, name string, count int64, block time.Duration) ([]Message, error)

	// ReadPending returns events delivered to name but never acknowledged.
	ReadPending(ctx context.Context, name string, count int64) ([]Message, error)

	Ack(ctx context.Context, ids ...string) error

	// Pending counts unacknowledged events across the group.
	Pending(ctx context.Context) (int64, error)
}

// RedisConsumer is a Consumer over a Redis Streams consumer group.
type RedisConsumer struct {
	client *redis.Client
	stream string
	group  string
}

// NewConsumer joins the media workers group on the media stream.
func NewConsumer(client *redis.Client) *RedisConsumer {
	return &RedisConsumer{client: client, stream: StreamMedia, group: ConsumerGroupMedia}
}

// Group returns "stream/group" for logging.
func (c *RedisConsumer) Group() string {
	return c.stream + "/" + c.group
}

// EnsureGroup starts the group at "0" so releases published before the
// first worker ran are still processed.
func (c *RedisConsumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	switch {
	case err == nil:
		log.Printf("[Consumer] EnsureGroup OK: group=%s (created)", c.Group())
	case strings.HasPrefix(err.Error(), "BUSYGROUP"):
		log.Printf("[Consumer] EnsureGroup OK: group=%s (exists)", c.Group())
	default:
		log.Printf("[Consumer] EnsureGroup FAILED: group=%s err=%v", c.Group(), err)
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context, name string, count int64, block time.Duration) ([]Message, error) {
	return c.readGroup(ctx, name, ">", count, block)
}

// ReadPending reads from ID "0", which yields name's unacknowledged history.
func (c *RedisConsumer) ReadPending(ctx context.Context, name string, count int64) ([]Message, error) {
	return c.readGroup(ctx, name, "0", count, 0)
}

func (c *RedisConsumer) readGroup(ctx context.Context, name, start string, count int64, block time.Duration) ([]Message, error) {
	args := &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: name,
		Streams:  []string{c.stream, start},
		Count:    count,
		Block:    block,
	}
	// A zero Block would wait forever; history reads must return immediately.
	if start != ">" {
		args.Block = -1
	}

	streams, err := c.client.XReadGroup(ctx, args).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup %s from %s: %w", c.Group(), start, err)
	}

	var messages []Message
	for _, s := range streams {
		for _, msg := range s.Messages {
			event, err := ParseMediaEvent(msg.Values)
			if err != nil {
				// left pending; a stream trim removes it eventually
				log.Printf("[Consumer] skipping undecodable message: id=%s err=%v", msg.ID, err)
				continue
			}
			messages = append(messages, Message{ID: msg.ID, Event: event})
		}
	}
	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.stream, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("xack %v: %w", ids, err)
	}
	return nil
}

func (c *RedisConsumer) Pending(ctx context.Context) (int64, error) {
	info, err := c.client.XPending(ctx, c.stream, c.group).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending: %w", err)
	}
	return info.Count, nil
}
