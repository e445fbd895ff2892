package internal

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrNoTarget          = errors.New("please select an agent or a model first")
	ErrEmptyInput        = errors.New("message is empty")
	ErrNoBody            = errors.New("response has no body")
	ErrBaseURLNotSet     = errors.New("API backend is not set")
	ErrBridgeUnavailable = errors.New("browser bridge is not available")
)

// TransportError represents failures reaching the backend, the relay or the modules files
type TransportError struct {
	Op  string // "get", "post", "read", "dial"
	URL string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// StreamError represents a streaming request answered with a non-2xx status
type StreamError struct {
	URL    string
	Status int
	Text   string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("SSE request failed: %d %s", e.Status, e.Text)
}

// StatusError represents a REST call answered with a non-2xx status
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request %s failed: %d", e.URL, e.Status)
}

// PreconditionError represents a user action that was refused before doing anything
type PreconditionError struct {
	Reason error
}

func (e *PreconditionError) Error() string {
	return e.Reason.Error()
}

func (e *PreconditionError) Unwrap() error {
	return e.Reason
}

// PersistenceError represents errors reading or writing the sidecar document store
type PersistenceError struct {
	Collection string
	Op         string // "list", "create", "update", "open"
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error [%s] %s: %v", e.Collection, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ConfigError represents errors loading the configuration file
type ConfigError struct {
	Path string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error %s: %v", e.Path, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// BusError represents failures of the cross-panel bus connection
type BusError struct {
	Op  string // "connect", "send", "read"
	Err error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("bus error: %s: %v", e.Op, e.Err)
}

func (e *BusError) Unwrap() error {
	return e.Err
}
