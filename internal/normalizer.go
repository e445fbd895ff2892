package internal

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Normalizer converts the backend's message shapes into display text
type Normalizer struct{}

// NewNormalizer creates a new Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// messageShape covers { message: string } and { content: string | { content: string } }
type messageShape struct {
	Message json.RawMessage `json:"message,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// HistoryRecord is one message as returned by the session history endpoint
type HistoryRecord struct {
	ID      string          `json:"id,omitempty"`
	Sender  string          `json:"sender"`
	Message json.RawMessage `json:"message,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
}

// NormalizeFinal turns the value of a final "message" stream event into plain text.
// The value is a plain string, a JSON-encoded string, or one of the object shapes.
func (n *Normalizer) NormalizeFinal(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return n.decodeEncodedText(s)
	}

	var obj messageShape
	if err := json.Unmarshal(raw, &obj); err != nil {
		return string(raw)
	}
	if text, ok := n.shapeText(obj); ok {
		return text
	}

	for _, r := range []json.RawMessage{obj.Content, obj.Message} {
		if isPresent(r) {
			return string(compactJSON(r))
		}
	}
	return ""
}

// NormalizeHistory converts history records into display messages
func (n *Normalizer) NormalizeHistory(records []HistoryRecord) []Message {
	messages := make([]Message, 0, len(records))
	for i, rec := range records {
		sender := n.normalizeSender(rec.Sender)
		text, _ := n.shapeText(messageShape{Message: rec.Message, Content: rec.Content})

		id := rec.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", sender, i)
		}
		messages = append(messages, Message{ID: id, Sender: sender, Content: text})
	}
	return messages
}

func (n *Normalizer) shapeText(obj messageShape) (string, bool) {
	var s string
	if json.Unmarshal(obj.Message, &s) == nil && isPresent(obj.Message) {
		return n.decodeEncodedText(s), true
	}
	if json.Unmarshal(obj.Content, &s) == nil && isPresent(obj.Content) {
		return s, true
	}
	var nested struct {
		Content *string `json:"content"`
	}
	if json.Unmarshal(obj.Content, &nested) == nil && nested.Content != nil {
		return *nested.Content, true
	}
	return "", false
}

// decodeEncodedText unwraps a string that may itself hold JSON: a string or { content }.
func (n *Normalizer) decodeEncodedText(s string) string {
	var v interface{}
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return s
	}
	switch t := v.(type) {
	case string:
		return t
	case map[string]interface{}:
		if c, ok := t["content"].(string); ok {
			return c
		}
	}
	return s
}

// normalizeSender maps anything but "assistant" to the user side
func (n *Normalizer) normalizeSender(sender string) Sender {
	if sender == string(SenderAssistant) {
		return SenderAssistant
	}
	return SenderUser
}

// isPresent reports whether a raw JSON value is set and not null
func isPresent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func compactJSON(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
