package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// EventHandler handles a published event.
type EventHandler func(context.Context, Event) error

// Bus fans assignment lifecycle events out to subscribers.
type Bus interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(eventType EventType, handler EventHandler)
}

// inMemoryBus runs handlers on the publishing goroutine, in subscription
// order. Handlers that need to do slow work hand it off themselves.
type inMemoryBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]EventHandler
	logger   *zap.Logger
}

// NewInMemoryBus creates a bus. A nil logger discards handler failures.
func NewInMemoryBus(logger *zap.Logger) Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &inMemoryBus{
		handlers: make(map[EventType][]EventHandler),
		logger:   logger,
	}
}

// Publish delivers the event to every subscriber. Handler errors and panics
// are logged and never reach the publisher, whose state transition has
// already committed.
func (b *inMemoryBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	subscribers := b.handlers[event.Type]
	b.mu.RUnlock()

	for i, handler := range subscribers {
		if err := b.deliver(ctx, handler, event); err != nil {
			b.logger.Warn("event handler failed",
				zap.String("event_type", string(event.Type)),
				zap.String("prospect_id", event.ProspectID),
				zap.Int("handler", i),
				zap.Error(err))
		}
	}
	return nil
}

func (b *inMemoryBus) deliver(ctx context.Context, handler EventHandler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", string(event.Type)),
				zap.Any("panic", r))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, event)
}

// Subscribe registers a handler for the given event type. The slice is
// replaced rather than appended in place so a concurrent Publish keeps
// iterating its own snapshot.
func (b *inMemoryBus) Subscribe(eventType EventType, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.handlers[eventType]
	next := make([]EventHandler, len(current), len(current)+1)
	copy(next, current)
	b.handlers[eventType] = append(next, handler)
}
