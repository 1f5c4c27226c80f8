package strand

import "encoding/json"

// Serializer encodes event envelopes for queue transport and storage.
// See serializer/msgpack for a compact binary alternative.
type Serializer interface {
	// MarshalEvent encodes an event envelope.
	MarshalEvent(event Event) ([]byte, error)

	// UnmarshalEvent decodes an event envelope.
	UnmarshalEvent(data []byte) (Event, error)

	// ContentType returns the MIME type of the encoding.
	ContentType() string
}

// JSONSerializer is the default JSON envelope codec.
type JSONSerializer struct{}

// NewJSONSerializer creates a JSONSerializer.
func NewJSONSerializer() *JSONSerializer {
	return &JSONSerializer{}
}

// MarshalEvent encodes the event as JSON.
func (s *JSONSerializer) MarshalEvent(event Event) ([]byte, error) {
	return json.Marshal(event)
}

// UnmarshalEvent decodes a JSON event envelope.
func (s *JSONSerializer) UnmarshalEvent(data []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// ContentType returns "application/json".
func (s *JSONSerializer) ContentType() string {
	return "application/json"
}
