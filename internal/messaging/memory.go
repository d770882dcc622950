package messaging

import (
	"context"
	"sync"
	"time"
)

// MemoryClient delivers published messages to every consumer running in the
// same process. Messages published while nobody consumes are dropped.
type MemoryClient struct {
	topic string

	mu     sync.Mutex
	offset int64
	subs   map[int]subscriber
	nextID int
}

type subscriber struct {
	ch   chan Message
	done chan struct{}
}

// NewMemoryClient returns an in-process bus for topic.
func NewMemoryClient(topic string) *MemoryClient {
	return &MemoryClient{topic: topic, subs: make(map[int]subscriber)}
}

// Publish hands the message to every active consumer. It blocks while a
// consumer's queue is full, until ctx is done.
func (m *MemoryClient) Publish(ctx context.Context, key, value []byte, headers map[string]string) error {
	m.mu.Lock()
	m.offset++
	msg := Message{
		Topic:   m.topic,
		Key:     append([]byte(nil), key...),
		Value:   append([]byte(nil), value...),
		Headers: copyHeaders(headers),
		Offset:  m.offset,
		Time:    time.Now().UTC(),
	}
	targets := make([]subscriber, 0, len(m.subs))
	for _, sub := range m.subs {
		targets = append(targets, sub)
	}
	m.mu.Unlock()

	for _, sub := range targets {
		select {
		case sub.ch <- msg:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Consume runs handler for each message until ctx is done.
func (m *MemoryClient) Consume(ctx context.Context, handler Handler) error {
	sub := subscriber{ch: make(chan Message, 64), done: make(chan struct{})}
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = sub
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		close(sub.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-sub.ch:
			_ = handler(ctx, msg)
		}
	}
}

// Consumers reports how many consumers are attached.
func (m *MemoryClient) Consumers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Topic returns the topic name.
func (m *MemoryClient) Topic() string { return m.topic }

func copyHeaders(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
