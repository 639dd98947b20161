// Package events provides event bus infrastructure for decoupled,
// event-driven communication between modules.
// This is part of the platform layer and contains no business logic.
package events

import (
	"context"
	"time"
)

// Event is implemented by every domain event.
type Event interface {
	// EventName is the routing key handlers subscribe to.
	EventName() string
	OccurredAt() time.Time
}

// BaseEvent carries the timestamp shared by all events. Embed it.
type BaseEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// NewBaseEvent stamps an event with at, normally the injected clock's now.
func NewBaseEvent(at time.Time) BaseEvent {
	return BaseEvent{Timestamp: at}
}

// Handler reacts to one event.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Publisher is the producer side of the bus. Services that emit events
// depend on this alone.
type Publisher interface {
	// Publish dispatches asynchronously; handler failures are logged by the bus.
	Publish(ctx context.Context, event Event)
	// PublishSync runs handlers inline and returns their joined errors.
	PublishSync(ctx context.Context, event Event) error
}

// Subscriber is the consumer side of the bus.
type Subscriber interface {
	// Subscribe registers handler under eventName, matching Event.EventName.
	Subscribe(eventName string, handler Handler)
}

// Bus is a Publisher that also accepts subscriptions.
type Bus interface {
	Publisher
	Subscriber
}
