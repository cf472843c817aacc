package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

var jsonAPI = sonic.ConfigStd

// Marshal creates a JSON-encoded Envelope from an event name and payload.
func Marshal(event EventName, payload interface{}) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		b, err := jsonAPI.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal payload for %q: %w", event, err)
		}
		raw = b
	}
	return jsonAPI.Marshal(Envelope{
		Event:   event,
		Payload: raw,
	})
}

// Unmarshal parses a JSON-encoded Envelope, returning the event name and raw payload.
func Unmarshal(data []byte) (EventName, json.RawMessage, error) {
	var env Envelope
	if err := jsonAPI.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: unmarshal envelope: %w", err)
	}
	if env.Event == "" {
		return "", nil, fmt.Errorf("protocol: envelope missing event field")
	}
	return env.Event, env.Payload, nil
}

// UnmarshalPayload decodes a raw JSON payload into a typed struct.
func UnmarshalPayload[T any](raw json.RawMessage) (T, error) {
	var v T
	if err := jsonAPI.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("protocol: unmarshal payload: %w", err)
	}
	return v, nil
}
