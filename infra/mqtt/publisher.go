package mqtt

import (
	"context"
	"fmt"
	"sync"

	coremqtt "github.com/kilianp07/harvestplan/core/mqtt"
	"github.com/kilianp07/harvestplan/core/timeline"
)

// Publisher mirrors the core mqtt.Publisher interface.
type Publisher = coremqtt.Publisher

// MemoryPublisher keeps published events in memory, keyed by topic.
type MemoryPublisher struct {
	Prefix string
	// FailKinds makes Publish fail for events of these kinds.
	FailKinds map[timeline.EventKind]bool

	mu       sync.Mutex
	messages map[string][]timeline.Event
	closed   bool
}

// NewMemoryPublisher creates a new MemoryPublisher.
func NewMemoryPublisher(prefix string) *MemoryPublisher {
	return &MemoryPublisher{
		Prefix:    prefix,
		FailKinds: make(map[timeline.EventKind]bool),
		messages:  make(map[string][]timeline.Event),
	}
}

// Publish records ev or returns an error if configured to fail.
func (m *MemoryPublisher) Publish(_ context.Context, ev timeline.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return coremqtt.ErrNotConnected
	}
	if m.FailKinds[ev.Kind] {
		return fmt.Errorf("publish failed")
	}
	topic := coremqtt.Topic(m.Prefix, ev)
	m.messages[topic] = append(m.messages[topic], ev)
	return nil
}

// Messages returns a copy of the events published on topic.
func (m *MemoryPublisher) Messages(topic string) []timeline.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]timeline.Event(nil), m.messages[topic]...)
}

// Close marks the publisher closed.
func (m *MemoryPublisher) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
