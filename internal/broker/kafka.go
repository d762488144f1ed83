package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/phuslu/log"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaBroker is a Kafka/Redpanda broker using franz-go.
type KafkaBroker struct {
	client    *kgo.Client
	brokers   []string
	logger    *log.Logger
	mu        sync.RWMutex
	consumers map[string]*kgo.Client // topic:groupID -> consumer client
	closed    bool
}

// NewKafkaBroker connects a producer to brokers (e.g. ["localhost:19092"]).
func NewKafkaBroker(brokers []string, logger *log.Logger) (*KafkaBroker, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker address is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	return &KafkaBroker{
		client:    client,
		brokers:   brokers,
		logger:    logger,
		consumers: make(map[string]*kgo.Client),
	}, nil
}

// Publish implements Broker
func (b *KafkaBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("broker is closed")
	}

	record := &kgo.Record{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}

	if err := b.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce message: %w", err)
	}
	return nil
}

// Subscribe implements Broker
func (b *KafkaBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("broker is closed")
	}

	consumerKey := topic + ":" + groupID
	if _, exists := b.consumers[consumerKey]; exists {
		return nil, fmt.Errorf("consumer already exists for topic %s and group %s", topic, groupID)
	}

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(b.brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	b.consumers[consumerKey] = consumer

	msgChan := make(chan Message, 100)
	go b.consumeLoop(ctx, consumer, msgChan)

	return msgChan, nil
}

func (b *KafkaBroker) consumeLoop(ctx context.Context, consumer *kgo.Client, msgChan chan<- Message) {
	defer close(msgChan)

	for {
		if ctx.Err() != nil {
			return
		}

		fetches := consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return
		}

		b.deliver(ctx, fetches, msgChan)
	}
}

// deliver hands every record in fetches to msgChan, then logs the
// partition errors of the same poll. Records are delivered even when some
// partitions failed; auto-commit covers them.
func (b *KafkaBroker) deliver(ctx context.Context, fetches kgo.Fetches, msgChan chan<- Message) {
	fetches.EachRecord(func(record *kgo.Record) {
		msg := Message{
			Topic:     record.Topic,
			Key:       string(record.Key),
			Value:     record.Value,
			Offset:    record.Offset,
			Partition: record.Partition,
			Timestamp: record.Timestamp.UnixMilli(),
		}

		select {
		case msgChan <- msg:
		case <-ctx.Done():
		}
	})

	for _, fe := range fetches.Errors() {
		b.logger.Warn().Str("topic", fe.Topic).Int("partition", int(fe.Partition)).Err(fe.Err).Msg("kafka fetch error")
	}
}

// Close shuts down the producer and all consumers
func (b *KafkaBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, consumer := range b.consumers {
		consumer.Close()
	}
	b.consumers = make(map[string]*kgo.Client)
	b.client.Close()

	return nil
}
