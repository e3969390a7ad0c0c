package outbox

import "context"

// Event is a domain event that can be published to subscribers.
type Event interface {
	EventName() string
}

// Handler processes a published event.
type Handler func(ctx context.Context, e Event) error

// Publisher enqueues domain events for asynchronous fanout.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Subscriber registers a handler for a named event.
type Subscriber interface {
	Subscribe(eventName string, h Handler)
}
