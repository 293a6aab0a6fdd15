// Package pubsub holds the relay's two in-process buses: the signal Bus that
// fans published values out to sessions, and the lifecycle event bridge
// (watermill) that carries session open/close notifications to observers.
package pubsub

import (
	"context"
)

// Message is a lifecycle event passed between server components.
type Message struct {
	// Topic identifies the event kind (e.g., "session.closed").
	Topic string
	// SessionID identifies the session the event is about, if any.
	SessionID string
	// Payload contains the JSON encoded event body.
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context.
	Metadata map[string]string
}

// Handler defines the function signature for processing a received event.
type Handler func(ctx context.Context, msg Message) error

// Publisher defines the contract for emitting lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Subscriber defines the contract for observing lifecycle events.
type Subscriber interface {
	// Subscribe starts delivering events of topic to handler in the background.
	// Delivery stops when ctx is canceled or the subscriber is closed.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
