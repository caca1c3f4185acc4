package streaming

import (
	"encoding/json"
	"fmt"

	"github.com/emberwatch/firecommand/pkg/core"
)

// Server to client message types.
const (
	TypeState        = "state"
	TypeFrame        = "frame"
	TypeRunCompleted = "run_completed"
	TypeRunFailed    = "run_failed"
	TypeAck          = "ack"
	TypeError        = "error"
)

// Client to server control types.
const (
	TypeDispatch = "dispatch"
	TypeRelocate = "relocate"
	TypeScrub    = "scrub"
	TypeRestart  = "restart"
	TypeToggle   = "toggle"
	TypeCommand  = "command"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an envelope of type t.
func NewEnvelope(t string, payload any) (Envelope, error) {
	if payload == nil {
		return Envelope{Type: t}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", t, err)
	}
	return Envelope{Type: t, Payload: raw}, nil
}

// Encode marshals an envelope of type t to bytes ready for the wire.
func Encode(t string, payload any) ([]byte, error) {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", e.Type, err)
	}
	return nil
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type   string `json:"type"` // always "ack"
	For    string `json:"for"`  // the message type being acknowledged
	Result any    `json:"result,omitempty"`
}

// ErrorMessage reports a rejected control message.
type ErrorMessage struct {
	Type  string `json:"type"` // always "error"
	For   string `json:"for"`
	Error string `json:"error"`
}

// FramePayload carries the visible frame as a GeoJSON feature collection.
type FramePayload struct {
	Index        int             `json:"index"`
	ElapsedHours float64         `json:"elapsedHours"`
	Playing      bool            `json:"playing"`
	Features     json.RawMessage `json:"features"`
}

// RunFailedPayload reports a failed engine call.
type RunFailedPayload struct {
	Sequence uint64 `json:"sequence"`
	Error    string `json:"error"`
}

// DispatchPayload requests a run. Override keys follow the parameter names
// accepted by the command parser.
type DispatchPayload struct {
	Override   json.RawMessage `json:"override,omitempty"`
	ForceDefer bool            `json:"forceDefer"`
}

// RelocatePayload moves the ambient origin.
type RelocatePayload struct {
	Origin core.Origin `json:"origin"`
}

// ScrubPayload jumps to a frame.
type ScrubPayload struct {
	Index int `json:"index"`
}

// CommandPayload carries a free-text operator prompt.
type CommandPayload struct {
	Prompt string `json:"prompt"`
}
