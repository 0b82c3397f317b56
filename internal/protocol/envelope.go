package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the tagged wire frame for every socket message. Data is
// left raw until the event name selects a payload type.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps an outbound payload under an event name.
func NewEnvelope(event string, v any) (Envelope, error) {
	if v == nil {
		return Envelope{Event: event}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", event, err)
	}
	return Envelope{Event: event, Data: b}, nil
}

type validator interface {
	Validate() error
}

// Decode unmarshals the envelope payload into v and runs the payload's
// required-field validation. Malformed or incomplete payloads never
// reach a handler.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s: missing payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%s: %w", e.Event, err)
	}
	if val, ok := v.(validator); ok {
		if err := val.Validate(); err != nil {
			return fmt.Errorf("%s: %w", e.Event, err)
		}
	}
	return nil
}
