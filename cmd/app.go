package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/iksnae/wize-panels/internal"
	"github.com/iksnae/wize-panels/internal/bus"
)

// signalContext is cancelled on interrupt or termination
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newTokenStore() *internal.FileTokenStore {
	return internal.NewFileTokenStore(cfg.FilesDir)
}

// newAPI builds a backend client reading the token from the modules files directory
func newAPI() (*internal.APIClient, error) {
	if err := cfg.RequireBaseURL(); err != nil {
		return nil, err
	}
	return internal.NewAPIClient(cfg.BaseURL, newTokenStore(), cfg.GetRESTTimeout()), nil
}

// newSurface prints every reported error once on stderr
func newSurface() *internal.ErrorSurface {
	return internal.NewErrorSurface(func(msg string) {
		if msg != "" {
			internal.PrintError(msg)
		}
	})
}

// dialBus prepares the relay connection for panel; handlers are added before openBus
func dialBus(panel string, reporter internal.ErrorReporter) *bus.Conn {
	conn := bus.Dial(cfg.RelayURL, cfg.ModuleID, panel, reporter)
	conn.OnClose(func() { internal.LogDebug("Relay connection closed") })
	return conn
}

// openBus connects conn. A failed connection is reported and the panel keeps working.
func openBus(ctx context.Context, conn *bus.Conn) {
	if err := conn.Connect(ctx); err != nil {
		internal.LogWarn("Relay unavailable at %s, continuing without it", cfg.RelayURL)
	}
}

// handleFrames routes JSON frames from the relay to fn
func handleFrames(conn *bus.Conn, fn func([]byte)) {
	conn.OnJSON(func(raw json.RawMessage) { fn(raw) })
}

// readLines delivers trimmed input lines until r ends. The reader goroutine may outlive ctx
// while blocked on a terminal read.
func readLines(ctx context.Context, r io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- strings.TrimSpace(scanner.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}
