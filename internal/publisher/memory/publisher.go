// Package memory provides an in-process Publisher. It backs the prediction
// pipeline when Pub/Sub is disabled and doubles as a capture point in tests.
package memory

import (
	"context"
	"fmt"
	"sync"
)

// PublishedMessage captures one publish call: the prediction or notification
// topic and the payload handed to it.
type PublishedMessage struct {
	Topic   string
	Payload any
}

// Publisher implements crawl.Publisher by retaining every payload in memory.
type Publisher struct {
	mu       sync.RWMutex
	messages []PublishedMessage
}

// New returns an empty in-process Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish retains the payload and returns a sequential pseudo message ID, so
// callers correlating on the ID behave the same as against Pub/Sub.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, PublishedMessage{Topic: topic, Payload: payload})
	return fmt.Sprintf("memory-%d", len(p.messages)), nil
}

// Messages returns a snapshot of everything published so far, in order.
func (p *Publisher) Messages() []PublishedMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
