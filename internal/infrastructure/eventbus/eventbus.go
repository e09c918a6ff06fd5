// Package eventbus implements the process-wide, in-memory pub/sub that
// dispatches domain events to registered handlers.
package eventbus

import (
	"context"
	"fmt"
	"sync"

	"github.com/aboglioli/configd/internal/core/domain"
)

// Handler processes a single domain event. A returned error is surfaced to
// the publisher; it is never swallowed.
type Handler func(ctx context.Context, event domain.Event) error

// EventBus is a single-process in-memory pub/sub. Subscriptions are
// expected to be registered once at startup; Publish takes a read lock so
// concurrent publishes from multiple requests never block each other.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func New() *EventBus {
	return &EventBus{handlers: make(map[string][]Handler)}
}

// Subscribe registers handler for exact topic match.
func (b *EventBus) Subscribe(topic string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[topic] = append(b.handlers[topic], handler)
}

// Publish dispatches each event, in order, to every handler subscribed to
// its topic. Handler failure is surfaced to the caller rather than
// swallowed; a re-entrant Publish call from within a handler is allowed.
func (b *EventBus) Publish(ctx context.Context, events []domain.Event) error {
	for _, event := range events {
		b.mu.RLock()
		handlers := append([]Handler(nil), b.handlers[event.Topic]...)
		b.mu.RUnlock()

		for _, handler := range handlers {
			if err := handler(ctx, event); err != nil {
				return fmt.Errorf("handler for topic %q failed on event %q: %w", event.Topic, event.ID, err)
			}
		}
	}
	return nil
}
