package kafka

import (
	"encoding/json"
	"fmt"

	"github.com/kmercart/kmercart-api/internal/events"
)

func MarshalEnvelope(env events.Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope %s: %w", env.EventType, err)
	}
	return b, nil
}

func UnmarshalEnvelope(b []byte) (events.Envelope, error) {
	var env events.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// UnwrapPayload decodes the payload of one specific event type.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
