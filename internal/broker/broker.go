// Package broker carries notice.stored events from the fetch path to the
// annotation worker.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/renderinc/notice-cache/internal/notice"
)

// TopicNoticeStored receives one event per newly inserted notice
const TopicNoticeStored = "notice.stored"

// Broker abstracts message publishing and consumption.
type Broker interface {
	// Publish sends a message to a topic. key picks the partition on Kafka
	// and is ignored in memory.
	Publish(ctx context.Context, topic string, key string, value []byte) error

	// Subscribe returns a channel of messages from topic for a consumer
	// group. The channel closes when ctx is done or the broker closes.
	Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error)

	Close() error
}

// Message is a consumed message
type Message struct {
	Topic     string
	Key       string
	Value     []byte
	Offset    int64
	Partition int32
	Timestamp int64
}

// StoredEvent announces that a notice was inserted by a fetch.
type StoredEvent struct {
	NoticeID    uint32    `json:"notice_id"`
	Key         string    `json:"key"`
	Location    string    `json:"location"`
	RequestID   string    `json:"request_id,omitempty"`
	ProcessedAt time.Time `json:"processed_at"`
}

// NewStoredEvent builds the event for r
func NewStoredEvent(r notice.Record, requestID string) StoredEvent {
	return StoredEvent{
		NoticeID:    r.ID,
		Key:         r.Key,
		Location:    r.Location,
		RequestID:   requestID,
		ProcessedAt: r.ProcessedAt,
	}
}

// PublishStored publishes ev on TopicNoticeStored keyed by location
func PublishStored(ctx context.Context, b Broker, ev StoredEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.Publish(ctx, TopicNoticeStored, ev.Location, data)
}

// DecodeStored parses a message published by PublishStored
func DecodeStored(msg Message) (StoredEvent, error) {
	var ev StoredEvent
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return StoredEvent{}, fmt.Errorf("decode %s message at offset %s: %w", msg.Topic, strconv.FormatInt(msg.Offset, 10), err)
	}
	return ev, nil
}
