// internal/handler/event_bus.go
package handler

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"microconfig-service/internal/model"
)

// EventBus fans session events out to subscribers. Publish never blocks
// the session; a full bus or a slow subscriber loses events.
type EventBus struct {
	subscribers map[uint64]*subscriber
	nextID      uint64
	events      chan model.SessionEvent
	mutex       sync.RWMutex
	logger      *zap.Logger
}

type subscriber struct {
	ch    chan model.SessionEvent
	types map[model.EventType]bool
}

func (s *subscriber) wants(t model.EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// NewEventBus creates a new event bus
func NewEventBus(logger *zap.Logger) *EventBus {
	return &EventBus{
		subscribers: make(map[uint64]*subscriber),
		events:      make(chan model.SessionEvent, 1000),
		logger:      logger,
	}
}

// Run distributes published events until ctx is done
func (eb *EventBus) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eb.events:
			eb.distributeEvent(event)
		}
	}
}

// Publish queues an event for distribution
func (eb *EventBus) Publish(event model.SessionEvent) {
	select {
	case eb.events <- event:
	default:
		if eb.logger != nil {
			eb.logger.Warn("Event bus full, dropping event",
				zap.String("event_type", string(event.EventType)),
			)
		}
	}
}

// Subscribe returns a channel receiving the given event types, or every
// event when none are given. The returned func ends the subscription and
// closes the channel.
func (eb *EventBus) Subscribe(types ...model.EventType) (<-chan model.SessionEvent, func()) {
	eb.mutex.Lock()
	defer eb.mutex.Unlock()

	id := eb.nextID
	eb.nextID++
	sub := &subscriber{
		ch:    make(chan model.SessionEvent, 100),
		types: make(map[model.EventType]bool, len(types)),
	}
	for _, t := range types {
		sub.types[t] = true
	}
	eb.subscribers[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			eb.mutex.Lock()
			defer eb.mutex.Unlock()
			delete(eb.subscribers, id)
			close(sub.ch)
		})
	}
}

// distributeEvent distributes an event to subscribers
func (eb *EventBus) distributeEvent(event model.SessionEvent) {
	eb.mutex.RLock()
	defer eb.mutex.RUnlock()

	for _, sub := range eb.subscribers {
		if !sub.wants(event.EventType) {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			// Subscriber is slow, skip
		}
	}
}
