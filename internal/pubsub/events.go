// Package pubsub is the generic fan-out primitive relayfleet's
// internal/log uses to stream log lines to anything tailing them live
// without the logger caring who, if anyone, is listening (no
// component in this module, the dashboard included, subscribes). Nothing here names a log line
// specifically — the type parameter is instantiated with string once,
// in internal/log — so the package stays reusable for any future
// typed event stream (task-graph change notifications, say) without
// a rewrite.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	CreatedEvent EventType = "created"
	UpdatedEvent EventType = "updated"
	DeletedEvent EventType = "deleted"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
