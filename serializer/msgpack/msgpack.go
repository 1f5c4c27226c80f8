// Package msgpack provides a MessagePack envelope codec for queue
// transport.
//
// MessagePack is a binary serialization format that produces smaller
// payloads than JSON while staying schema-free, which suits the
// engine's map-based event payloads on high-volume queues.
//
// Basic usage:
//
//	bus := strand.NewEventBus(
//		strand.WithBusSerializer(msgpack.NewSerializer()),
//	)
package msgpack

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	strand "github.com/AshkanYarmoradi/go-strand"
)

var _ strand.Serializer = (*Serializer)(nil)

// Serializer is a MessagePack implementation of strand.Serializer.
type Serializer struct{}

// NewSerializer creates a MessagePack Serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// MarshalEvent encodes the event envelope as MessagePack.
func (s *Serializer) MarshalEvent(event strand.Event) ([]byte, error) {
	data, err := msgpack.Marshal(event)
	if err != nil {
		return nil, &SerializationError{
			EventType: event.Type,
			Operation: "marshal",
			Err:       err,
		}
	}
	return data, nil
}

// UnmarshalEvent decodes a MessagePack event envelope.
func (s *Serializer) UnmarshalEvent(data []byte) (strand.Event, error) {
	if len(data) == 0 {
		return strand.Event{}, &SerializationError{
			Operation: "unmarshal",
			Err:       fmt.Errorf("data cannot be empty"),
		}
	}

	var event strand.Event
	if err := msgpack.Unmarshal(data, &event); err != nil {
		return strand.Event{}, &SerializationError{
			Operation: "unmarshal",
			Err:       err,
		}
	}
	return event, nil
}

// ContentType returns "application/msgpack".
func (s *Serializer) ContentType() string {
	return "application/msgpack"
}

// SerializationError represents an envelope encoding error.
type SerializationError struct {
	EventType string
	Operation string // "marshal" or "unmarshal"
	Err       error
}

// Error implements the error interface.
func (e *SerializationError) Error() string {
	if e.EventType != "" {
		return fmt.Sprintf("strand/msgpack: failed to %s event %s: %v", e.Operation, e.EventType, e.Err)
	}
	return fmt.Sprintf("strand/msgpack: failed to %s event: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error.
func (e *SerializationError) Unwrap() error {
	return e.Err
}
