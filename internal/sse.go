package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
)

// StreamEvent is one decoded event of an assistant stream.
// At most one of the fields is expected to be set; see Engine for precedence.
type StreamEvent struct {
	MessageDelta json.RawMessage `json:"messageDelta,omitempty"`
	Message      json.RawMessage `json:"message,omitempty"`
	AgentSession *SessionRef     `json:"agentSession,omitempty"`
	Error        json.RawMessage `json:"error,omitempty"`
}

// SessionRef carries the identities assigned by the backend
type SessionRef struct {
	ID        string `json:"id,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// DeltaText returns the delta as text; non-string deltas are kept verbatim.
func (e StreamEvent) DeltaText() string {
	var s string
	if err := json.Unmarshal(e.MessageDelta, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(e.MessageDelta))
}

// ErrorText returns the message of an error event, "Stream error" when it has none.
func (e StreamEvent) ErrorText() string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.Error, &body); err == nil && body.Message != "" {
		return body.Message
	}
	var s string
	if err := json.Unmarshal(e.Error, &s); err == nil && s != "" {
		return s
	}
	return "Stream error"
}

var (
	eventSeparator = []byte("\n\n")
	dataPrefix     = []byte("data:")
)

// EventSplitter cuts a byte stream into blank-line separated events.
// Splitting happens on raw bytes: "\n" never occurs inside a multi-byte rune,
// so a rune split across two reads is reassembled before it is decoded.
type EventSplitter struct {
	buf     []byte
	onEvent func(StreamEvent)
}

// NewEventSplitter creates a splitter delivering parsed events to onEvent
func NewEventSplitter(onEvent func(StreamEvent)) *EventSplitter {
	return &EventSplitter{onEvent: onEvent}
}

// Feed appends a chunk and emits every complete event it closes.
// Fragments that are not JSON objects are dropped.
func (s *EventSplitter) Feed(chunk []byte) {
	s.buf = append(s.buf, chunk...)
	for {
		idx := bytes.Index(s.buf, eventSeparator)
		if idx == -1 {
			return
		}
		raw := bytes.TrimSpace(s.buf[:idx])
		s.buf = s.buf[idx+len(eventSeparator):]
		if len(raw) == 0 {
			continue
		}
		if bytes.HasPrefix(raw, dataPrefix) {
			raw = bytes.TrimSpace(raw[len(dataPrefix):])
		}

		var evt StreamEvent
		if err := json.Unmarshal(raw, &evt); err != nil {
			LogDebug("dropping malformed stream fragment: %v", err)
			continue
		}
		s.onEvent(evt)
	}
}

// Pending returns the bytes not yet terminated by a blank line
func (s *EventSplitter) Pending() []byte {
	return s.buf
}

// StreamSSE posts body as JSON and feeds the response stream to onEvent until the server
// closes it. There is no reconnection and no timeout beyond what ctx imposes.
func StreamSSE(ctx context.Context, client *http.Client, url string, body interface{}, headers map[string]string, onEvent func(StreamEvent)) error {
	if client == nil {
		client = http.DefaultClient
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Op: "post", URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return &TransportError{Op: "post", URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StreamError{URL: url, Status: resp.StatusCode, Text: http.StatusText(resp.StatusCode)}
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return ErrNoBody
	}

	splitter := NewEventSplitter(onEvent)
	chunk := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(chunk)
		if n > 0 {
			splitter.Feed(chunk[:n])
		}
		if readErr == io.EOF {
			if len(bytes.TrimSpace(splitter.Pending())) > 0 {
				LogDebug("stream ended with %d unterminated bytes", len(splitter.Pending()))
			}
			return nil
		}
		if readErr != nil {
			return &TransportError{Op: "read", URL: url, Err: readErr}
		}
	}
}
