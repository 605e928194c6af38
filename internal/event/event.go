// Package event provides a small synchronous publish/subscribe bus.
//
// Handlers run on the publishing goroutine in subscription order. A
// panicking handler is recovered and counted; it does not stop delivery to
// the remaining handlers.
package event

import (
	"time"

	"github.com/google/uuid"
)

// Metadata describes an event.
type Metadata struct {
	// ID uniquely identifies the event.
	ID string
	// Timestamp is when the event was created.
	Timestamp time.Time
	// Source names the component that published the event.
	Source string
}

// Event is a published message.
type Event struct {
	Topic    Topic
	Payload  any
	Metadata Metadata
}

// New creates an event with fresh metadata.
func New(t Topic, payload any, source string) Event {
	return Event{
		Topic:   t,
		Payload: payload,
		Metadata: Metadata{
			ID:        uuid.NewString(),
			Timestamp: time.Now(),
			Source:    source,
		},
	}
}
