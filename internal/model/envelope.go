// Package model defines data structures used throughout the application.
package model

import (
	"time"
)

// Envelope is the uniform wrapper used by every backend response and by the
// companion service's own responses.
type Envelope[T any] struct {
	AllOK   bool   `json:"allOK"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// NewSuccessEnvelope creates a successful envelope.
func NewSuccessEnvelope[T any](data T) Envelope[T] {
	return Envelope[T]{
		AllOK: true,
		Data:  data,
	}
}

// NewErrorEnvelope creates a failed envelope carrying a display message.
func NewErrorEnvelope(message string) Envelope[any] {
	return Envelope[any]{
		AllOK:   false,
		Message: message,
	}
}

// Event types pushed over the WebSocket stream.
const (
	EventTypeCart           = "cart"
	EventTypeCartVisibility = "cart_visibility"
	EventTypeSession        = "session"
)

// Event is a state change pushed to subscribed views.
type Event struct {
	Type      string    `json:"type"`
	Revision  uint64    `json:"revision,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent creates an Event stamped with the current time.
func NewEvent(eventType string, revision uint64, data any) Event {
	return Event{
		Type:      eventType,
		Revision:  revision,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}
