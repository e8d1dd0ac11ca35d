package ports

import (
	"context"

	"github.com/weftworks/weft/pkg/domain"
)

// EventSource is the inbound side of the queue transport. Delivery is
// at-least-once: the engine tolerates duplicates and does not
// deduplicate.
type EventSource interface {
	// Pop blocks until an event is available or ctx is done.
	Pop(ctx context.Context) (*domain.Event, error)

	// Ack confirms the event was processed (matched or not).
	Ack(ctx context.Context, ev *domain.Event) error

	// Nack reports a processing failure; redelivery policy belongs to
	// the transport.
	Nack(ctx context.Context, ev *domain.Event, reason string) error
}

// MessageSink is the outbound side. Publish failures bubble up as
// dispatch errors but never roll back an already committed transition.
type MessageSink interface {
	Publish(ctx context.Context, msg *domain.Message) error
}
