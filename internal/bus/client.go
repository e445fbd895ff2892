// Package bus connects a panel to the cross-panel relay and implements that relay.
package bus

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/iksnae/wize-panels/internal"
)

const (
	writeWait  = 10 * time.Second
	maxPending = 64
)

// Frame is one raw message received from the relay
type Frame struct {
	Binary bool
	Data   []byte
}

// Conn is a panel's connection to the relay. Send never fails the caller: envelopes
// sent before the connection opens are buffered, failures go to the reporter.
type Conn struct {
	url      string
	moduleID string
	panel    string
	reporter internal.ErrorReporter
	dialer   *websocket.Dialer

	mu      sync.Mutex
	ws      *websocket.Conn
	done    chan struct{}
	closing bool
	pending [][]byte
	onOpen  []func()
	onClose []func()
	onError []func(error)
	onFrame []func(Frame)
	onJSON  []func(json.RawMessage)
	writeMu sync.Mutex
}

// Dial prepares a connection for moduleID/panel. Nothing is dialed until Connect.
func Dial(rawURL, moduleID, panel string, reporter internal.ErrorReporter) *Conn {
	return &Conn{
		url:      rawURL,
		moduleID: moduleID,
		panel:    panel,
		reporter: reporter,
		dialer:   websocket.DefaultDialer,
	}
}

func (c *Conn) OnOpen(fn func()) {
	c.mu.Lock()
	c.onOpen = append(c.onOpen, fn)
	c.mu.Unlock()
}

func (c *Conn) OnClose(fn func()) {
	c.mu.Lock()
	c.onClose = append(c.onClose, fn)
	c.mu.Unlock()
}

func (c *Conn) OnError(fn func(error)) {
	c.mu.Lock()
	c.onError = append(c.onError, fn)
	c.mu.Unlock()
}

// OnMessage receives every frame, text or binary
func (c *Conn) OnMessage(fn func(Frame)) {
	c.mu.Lock()
	c.onFrame = append(c.onFrame, fn)
	c.mu.Unlock()
}

// OnJSON receives frames that hold a JSON object, whatever their frame type
func (c *Conn) OnJSON(fn func(json.RawMessage)) {
	c.mu.Lock()
	c.onJSON = append(c.onJSON, fn)
	c.mu.Unlock()
}

// Endpoint is the relay address including the module and panel query
func (c *Conn) Endpoint() (string, error) {
	u, err := url.Parse(c.url)
	if err != nil {
		return "", fmt.Errorf("invalid relay URL %q: %w", c.url, err)
	}
	q := u.Query()
	q.Set("moduleId", c.moduleID)
	q.Set("panel", c.panel)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials the relay and starts the read loop. A failure is reported and returned;
// the panel keeps working without the bus.
func (c *Conn) Connect(ctx context.Context) error {
	endpoint, err := c.Endpoint()
	if err != nil {
		return c.fail("connect", err)
	}

	ws, _, err := c.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return c.fail("connect", err)
	}

	c.mu.Lock()
	if c.ws != nil {
		c.mu.Unlock()
		_ = ws.Close()
		return nil
	}
	c.ws = ws
	c.closing = false
	c.done = make(chan struct{})
	pending := c.pending
	c.pending = nil
	done := c.done
	openFns := append([]func(){}, c.onOpen...)
	// Sends that see c.ws queue on writeMu behind the buffered frames
	c.writeMu.Lock()
	c.mu.Unlock()

	var flushErr error
	for _, data := range pending {
		if flushErr = c.writeLocked(ws, data); flushErr != nil {
			break
		}
	}
	c.writeMu.Unlock()
	if flushErr != nil {
		_ = c.fail("send", flushErr)
	}

	internal.LogDebug("Bus connected to %s as %s/%s", c.url, c.moduleID, c.panel)
	go c.readLoop(ws, done)

	for _, fn := range openFns {
		fn()
	}
	return nil
}

// Connected reports whether the connection is open
func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws != nil
}

// Send encodes v as JSON and writes it, or buffers it until the connection opens
func (c *Conn) Send(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		_ = c.fail("send", err)
		return
	}

	c.mu.Lock()
	ws := c.ws
	if ws == nil {
		if len(c.pending) >= maxPending {
			internal.LogWarn("Bus buffer full, dropping oldest frame")
			c.pending = c.pending[1:]
		}
		c.pending = append(c.pending, data)
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.write(ws, data)
}

func (c *Conn) write(ws *websocket.Conn, data []byte) {
	c.writeMu.Lock()
	err := c.writeLocked(ws, data)
	c.writeMu.Unlock()
	if err != nil {
		_ = c.fail("send", err)
	}
}

// writeLocked requires writeMu
func (c *Conn) writeLocked(ws *websocket.Conn, data []byte) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	return ws.WriteMessage(websocket.TextMessage, data)
}

// Disconnect closes the connection and waits for the read loop. Safe to call repeatedly.
func (c *Conn) Disconnect() {
	c.mu.Lock()
	if c.closing || c.ws == nil {
		c.closing = true
		c.mu.Unlock()
		return
	}
	c.closing = true
	ws := c.ws
	done := c.done
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()
	_ = ws.Close()
	<-done
}

func (c *Conn) readLoop(ws *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closing := c.closing
			if c.ws == ws {
				c.ws = nil
			}
			closeFns := append([]func(){}, c.onClose...)
			c.mu.Unlock()

			if !closing && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				_ = c.fail("read", err)
			}
			for _, fn := range closeFns {
				fn()
			}
			return
		}
		c.deliver(Frame{Binary: mt == websocket.BinaryMessage, Data: data})
	}
}

func (c *Conn) deliver(f Frame) {
	c.mu.Lock()
	frameFns := append([]func(Frame){}, c.onFrame...)
	jsonFns := append([]func(json.RawMessage){}, c.onJSON...)
	c.mu.Unlock()

	for _, fn := range frameFns {
		fn(f)
	}
	if len(jsonFns) == 0 || !isJSONObject(f.Data) {
		return
	}
	for _, fn := range jsonFns {
		fn(json.RawMessage(f.Data))
	}
}

func (c *Conn) fail(op string, err error) error {
	berr := &internal.BusError{Op: op, Err: err}
	internal.LogWarn("%v", berr)
	if c.reporter != nil {
		c.reporter.Report(berr.Error())
	}

	c.mu.Lock()
	errFns := append([]func(error){}, c.onError...)
	c.mu.Unlock()
	for _, fn := range errFns {
		fn(berr)
	}
	return berr
}

func isJSONObject(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '{' && json.Valid(trimmed)
}
