package queue

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// Publisher hands released objects to the media workers.
type Publisher interface {
	// Publish appends event to the media stream and returns its stream ID.
	Publish(ctx context.Context, event MediaEvent) (string, error)
}

// RedisPublisher appends to the media stream with XADD.
type RedisPublisher struct {
	client *redis.Client
	// maxLen caps the stream approximately; 0 leaves it unbounded.
	maxLen int64
}

// DefaultStreamMaxLen keeps roughly the last 100k releases.
const DefaultStreamMaxLen = 100_000

func NewPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, maxLen: DefaultStreamMaxLen}
}

func (p *RedisPublisher) Publish(ctx context.Context, event MediaEvent) (string, error) {
	values, err := event.ToMap()
	if err != nil {
		return "", err
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamMedia,
		MaxLen: p.maxLen,
		Approx: p.maxLen > 0,
		Values: values,
	}).Result()
	if err != nil {
		log.Printf("[Publisher] Publish FAILED: key=%s reason=%s err=%v", event.Key, event.Reason, err)
		return "", fmt.Errorf("xadd %s: %w", StreamMedia, err)
	}

	log.Printf("[Publisher] Publish OK: key=%s reason=%s id=%s", event.Key, event.Reason, id)
	return id, nil
}
