package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types for the media stream
const (
	EventMediaOrphaned = "media_orphaned"
)

// Stream names
const (
	StreamMedia = "stream:media"
)

// Consumer group name for media workers
const (
	ConsumerGroupMedia = "media_workers"
)

// Reasons an object stopped being referenced
const (
	ReasonPostDeleted     = "post_deleted"
	ReasonPostReplaced    = "post_image_replaced"
	ReasonUserDeleted     = "user_deleted"
	ReasonAvatarReplaced  = "avatar_replaced"
	ReasonRecordNotStored = "record_not_stored"
)

// MediaEvent is published when a stored object is no longer referenced by any record.
type MediaEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`

	Key    string `json:"key"`
	Bucket string `json:"bucket,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// NewMediaOrphanedEvent creates an event asking a worker to delete key from bucket.
func NewMediaOrphanedEvent(key, bucket, reason string) MediaEvent {
	return MediaEvent{
		Type:      EventMediaOrphaned,
		Timestamp: time.Now().Unix(),
		Key:       key,
		Bucket:    bucket,
		Reason:    reason,
	}
}

// ToMap converts the event to a map for Redis XADD.
// Redis Streams store field-value pairs, so we serialize to JSON in a "data" field.
func (e MediaEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseMediaEvent parses a MediaEvent from Redis stream message values.
func ParseMediaEvent(values map[string]interface{}) (MediaEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return MediaEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event MediaEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return MediaEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
