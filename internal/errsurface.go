package internal

import "sync"

// ErrorReporter is the capability handed to every component that can fail.
type ErrorReporter interface {
	Report(msg string)
}

// ErrorSurface holds the single "last error" slot shown to the user.
// It is cleared only by Dismiss.
type ErrorSurface struct {
	mu       sync.Mutex
	message  string
	onChange func(msg string)
}

// NewErrorSurface creates an empty error surface. onChange may be nil.
func NewErrorSurface(onChange func(msg string)) *ErrorSurface {
	return &ErrorSurface{onChange: onChange}
}

// Report replaces the current message.
func (s *ErrorSurface) Report(msg string) {
	if msg == "" {
		return
	}
	s.mu.Lock()
	s.message = msg
	fn := s.onChange
	s.mu.Unlock()

	LogDebug("error surface: %s", msg)
	if fn != nil {
		fn(msg)
	}
}

// Last returns the current message, empty when nothing is shown.
func (s *ErrorSurface) Last() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}

// Dismiss clears the slot.
func (s *ErrorSurface) Dismiss() {
	s.mu.Lock()
	changed := s.message != ""
	s.message = ""
	fn := s.onChange
	s.mu.Unlock()

	if changed && fn != nil {
		fn("")
	}
}

// reportErr reports err on r when both are non-nil.
func reportErr(r ErrorReporter, err error) {
	if r == nil || err == nil {
		return
	}
	r.Report(err.Error())
}
