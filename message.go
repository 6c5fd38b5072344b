package rvlink

import (
	"bytes"
	"encoding/json"
)

// Event is a decoded envelope received from the server. Data is passed through untouched; decoding it into a
// concrete type is up to the consumer. Raw holds the whole message as received.
type Event struct {
	Type      EventType       `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp,omitempty"`
	Raw       []byte          `json:"-"`
}

type envelope struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp json.RawMessage `json:"timestamp"`
}

var jsonNull = []byte("null")

// DecodeEnvelope parses a `{"type": ..., "data": ...}` message. It returns false if the payload is not a JSON
// object, if type is not a non-empty string or if data is missing or null.
func DecodeEnvelope(payload []byte) (Event, bool) {
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Event{}, false
	}
	if env.Type == "" || len(env.Data) == 0 || bytes.Equal(env.Data, jsonNull) {
		return Event{}, false
	}

	ev := Event{
		Type: EventType(env.Type),
		Data: env.Data,
		Raw:  payload,
	}
	// timestamp is informational, a non-string value is ignored rather than rejected
	var ts string
	if json.Unmarshal(env.Timestamp, &ts) == nil {
		ev.Timestamp = ts
	}
	return ev, true
}
