package internal

import (
	"errors"
	"strings"
	"testing"
)

func TestTransportError(t *testing.T) {
	originalErr := errors.New("connection refused")
	err := &TransportError{
		Op:  "get",
		URL: "http://backend/models",
		Err: originalErr,
	}

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "transport error") {
		t.Errorf("TransportError.Error() should contain 'transport error', got: %q", errorMsg)
	}
	if !strings.Contains(errorMsg, "http://backend/models") {
		t.Errorf("TransportError.Error() should contain URL, got: %q", errorMsg)
	}

	if !errors.Is(err, originalErr) {
		t.Error("TransportError.Unwrap() should return original error")
	}
}

func TestStreamError(t *testing.T) {
	err := &StreamError{URL: "http://backend/run", Status: 502, Text: "Bad Gateway"}
	if got := err.Error(); got != "SSE request failed: 502 Bad Gateway" {
		t.Errorf("StreamError.Error() = %q", got)
	}

	var target *StreamError
	wrapped := error(err)
	if !errors.As(wrapped, &target) || target.Status != 502 {
		t.Error("errors.As should find StreamError")
	}
}

func TestPreconditionError(t *testing.T) {
	err := &PreconditionError{Reason: ErrNoTarget}

	if err.Error() != ErrNoTarget.Error() {
		t.Errorf("PreconditionError.Error() = %q, want %q", err.Error(), ErrNoTarget.Error())
	}
	if !errors.Is(err, ErrNoTarget) {
		t.Error("PreconditionError.Unwrap() should return the reason")
	}
}

func TestPersistenceError(t *testing.T) {
	originalErr := errors.New("disk full")
	err := &PersistenceError{
		Collection: "chat_state",
		Op:         "update",
		Err:        originalErr,
	}

	errorMsg := err.Error()
	if !strings.Contains(errorMsg, "persistence error") {
		t.Errorf("PersistenceError.Error() should contain 'persistence error', got: %q", errorMsg)
	}
	if !strings.Contains(errorMsg, "chat_state") {
		t.Errorf("PersistenceError.Error() should contain collection, got: %q", errorMsg)
	}

	if !errors.Is(err, originalErr) {
		t.Error("PersistenceError.Unwrap() should return original error")
	}
}

func TestConfigError(t *testing.T) {
	originalErr := errors.New("yaml: line 2")
	err := &ConfigError{Path: "/etc/wize.yaml", Err: originalErr}

	if !strings.Contains(err.Error(), "/etc/wize.yaml") {
		t.Errorf("ConfigError.Error() should contain path, got: %q", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("ConfigError.Unwrap() should return original error")
	}
}

func TestBusError(t *testing.T) {
	originalErr := errors.New("dial tcp: refused")
	err := &BusError{Op: "connect", Err: originalErr}

	if got := err.Error(); got != "bus error: connect: dial tcp: refused" {
		t.Errorf("BusError.Error() = %q", got)
	}
	if !errors.Is(err, originalErr) {
		t.Error("BusError.Unwrap() should return original error")
	}
}
