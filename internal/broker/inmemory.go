package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ErrSubscriberFull is returned when a subscriber's buffer is full and the
// message was dropped for it
var ErrSubscriberFull = errors.New("subscriber buffer full")

// subscriberBuffer is the per-subscriber channel capacity
const subscriberBuffer = 1024

// InMemoryBroker fans messages out to every subscriber of a topic inside
// one process. Messages published before a Subscribe are not replayed.
type InMemoryBroker struct {
	mu     sync.RWMutex
	subs   map[string][]chan Message
	next   atomic.Int64
	closed bool
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewInMemoryBroker creates an empty broker
func NewInMemoryBroker() *InMemoryBroker {
	return &InMemoryBroker{
		subs: make(map[string][]chan Message),
		done: make(chan struct{}),
	}
}

// Publish implements Broker. It never blocks: a subscriber whose buffer is
// full misses the message and ErrSubscriberFull is returned.
func (b *InMemoryBroker) Publish(ctx context.Context, topic string, key string, value []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("broker is closed")
	}

	msg := Message{
		Topic:     topic,
		Key:       key,
		Value:     value,
		Offset:    b.next.Add(1) - 1,
		Timestamp: time.Now().UnixMilli(),
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	var dropped int
	for _, ch := range b.subs[topic] {
		select {
		case ch <- msg:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("%s: dropped for %d subscriber(s): %w", topic, dropped, ErrSubscriberFull)
	}
	return nil
}

// Subscribe implements Broker. groupID is ignored.
func (b *InMemoryBroker) Subscribe(ctx context.Context, topic string, groupID string) (<-chan Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("broker is closed")
	}

	ch := make(chan Message, subscriberBuffer)
	b.subs[topic] = append(b.subs[topic], ch)

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		select {
		case <-ctx.Done():
			b.unsubscribe(topic, ch)
		case <-b.done:
		}
	}()

	return ch, nil
}

func (b *InMemoryBroker) unsubscribe(topic string, ch chan Message) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[topic]
	for i, c := range subs {
		if c == ch {
			b.subs[topic] = append(subs[:i], subs[i+1:]...)
			close(ch)
			return
		}
	}
}

// Close closes every subscriber channel and waits for the per-subscription
// goroutines to exit
func (b *InMemoryBroker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.done)

	for topic, subs := range b.subs {
		for _, ch := range subs {
			close(ch)
		}
		delete(b.subs, topic)
	}
	b.mu.Unlock()

	b.wg.Wait()
	return nil
}
