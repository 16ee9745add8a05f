package core

import (
	"encoding/json"
	"fmt"
)

type EnvelopeType string

const (
	EnvelopeEvent        EnvelopeType = "event"
	EnvelopePing         EnvelopeType = "ping"
	EnvelopePong         EnvelopeType = "pong"
	EnvelopeHandshakeAck EnvelopeType = "handshakeAck"
	EnvelopeError        EnvelopeType = "error"
)

// Envelope is the fixed wire shape for both directions.
type Envelope struct {
	Type    EnvelopeType `json:"type"`
	Event   EventName    `json:"event,omitempty"`
	Payload any          `json:"payload,omitempty"`
}

// InboundEnvelope defers payload decoding until the event is known.
type InboundEnvelope struct {
	Type    EnvelopeType    `json:"type"`
	Event   EventName       `json:"event,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeEvent validates e and serializes it into an event envelope.
func EncodeEvent(e Event) (Frame, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: nil event", ErrInvalidEvent)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(Envelope{Type: EnvelopeEvent, Event: e.Name(), Payload: e.Payload()})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Name(), err)
	}
	return b, nil
}

func EncodeControl(t EnvelopeType, payload any) (Frame, error) {
	b, err := json.Marshal(Envelope{Type: t, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return b, nil
}

// ErrorPayload is the body of an error envelope sent back to one session.
type ErrorPayload struct {
	Error string `json:"error"`
}
