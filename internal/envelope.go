package internal

import (
	"encoding/json"
	"fmt"
)

// Envelope types exchanged between the panels
const (
	TypeOpenSession   = "OPEN_SESSION"
	TypeSessionActive = "SESSION_ACTIVE"
)

// Envelope is the unit exchanged over the cross-panel bus.
// Delivery is at-most-once with no acknowledgement; the latest envelope wins.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OpenSessionPayload asks the chat panel to make a session active
type OpenSessionPayload struct {
	ID        string    `json:"id,omitempty"`
	SessionID string    `json:"sessionId,omitempty"`
	AgentID   string    `json:"agentId,omitempty"`
	Model     *ModelRef `json:"model,omitempty"`
}

// SessionActivePayload tells the directory which session the chat panel holds
type SessionActivePayload struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
}

// Publisher sends values over the bus; implementations never fail the caller.
type Publisher interface {
	Send(v interface{})
}

// NewEnvelope builds an envelope with the JSON encoding of payload
func NewEnvelope(typ string, payload interface{}) (Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("failed to encode %s payload: %w", typ, err)
	}
	return Envelope{Type: typ, Payload: data}, nil
}

// DecodeEnvelope parses a bus frame. Frames without a type are rejected.
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, fmt.Errorf("envelope has no type")
	}
	return env, nil
}

// OpenSession decodes an OPEN_SESSION payload. A missing payload decodes to the zero value.
func (e Envelope) OpenSession() (OpenSessionPayload, error) {
	var p OpenSessionPayload
	if e.Type != TypeOpenSession {
		return p, fmt.Errorf("envelope type %q is not %s", e.Type, TypeOpenSession)
	}
	if !isPresent(e.Payload) {
		return p, nil
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to decode %s payload: %w", TypeOpenSession, err)
	}
	return p, nil
}

// SessionActive decodes a SESSION_ACTIVE payload
func (e Envelope) SessionActive() (SessionActivePayload, error) {
	var p SessionActivePayload
	if e.Type != TypeSessionActive {
		return p, fmt.Errorf("envelope type %q is not %s", e.Type, TypeSessionActive)
	}
	if !isPresent(e.Payload) {
		return p, nil
	}
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return p, fmt.Errorf("failed to decode %s payload: %w", TypeSessionActive, err)
	}
	return p, nil
}

// OpenSessionPayloadFor builds the payload the directory sends for a picked session
func OpenSessionPayloadFor(s AgentSession) OpenSessionPayload {
	p := OpenSessionPayload{
		ID:        s.ID,
		SessionID: s.SessionID,
		AgentID:   s.AgentID,
	}
	if p.SessionID == "" {
		p.SessionID = s.ID
	}
	if s.Model != nil && s.Model.ID != "" {
		m := *s.Model
		p.Model = &m
	}
	return p
}
