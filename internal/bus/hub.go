package bus

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/iksnae/wize-panels/internal"
)

const peerBuffer = 64

type outbound struct {
	messageType int
	data        []byte
}

type peer struct {
	conn   *websocket.Conn
	module string
	panel  string
	send   chan outbound
	done   chan struct{}
}

// Hub is the relay the panels connect to. Every frame is forwarded verbatim to the other
// connections of the same module. Nothing is stored: a frame sent while the peer is away is lost.
type Hub struct {
	upgrader websocket.Upgrader
	log      *zap.Logger

	mu     sync.Mutex
	peers  map[*peer]struct{}
	closed bool
	wg     sync.WaitGroup
}

// NewHub creates an empty relay
func NewHub() *Hub {
	h := &Hub{
		log:   internal.Logger().Named("relay"),
		peers: make(map[*peer]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     sameOrigin,
	}
	return h
}

// sameOrigin accepts requests without an Origin header or whose origin host matches the request host
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// ServeHTTP upgrades the request and relays frames until the peer leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	module := r.URL.Query().Get("moduleId")
	if module == "" {
		http.Error(w, "moduleId is required", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		return
	}

	p := &peer{
		conn:   conn,
		module: module,
		panel:  r.URL.Query().Get("panel"),
		send:   make(chan outbound, peerBuffer),
		done:   make(chan struct{}),
	}
	if !h.register(p) {
		_ = conn.Close()
		return
	}
	defer h.wg.Done()

	h.log.Debug("peer joined",
		zap.String("module", p.module),
		zap.String("panel", p.panel),
		zap.String("remote", r.RemoteAddr))

	go h.writeLoop(p)
	h.readLoop(p)

	h.unregister(p)
	<-p.done
	h.log.Debug("peer left", zap.String("module", p.module), zap.String("panel", p.panel))
}

func (h *Hub) register(p *peer) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.peers[p] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Hub) unregister(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.peers[p]; ok {
		delete(h.peers, p)
		close(p.send)
	}
}

func (h *Hub) readLoop(p *peer) {
	for {
		mt, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("read failed", zap.String("module", p.module), zap.String("panel", p.panel), zap.Error(err))
			}
			return
		}
		h.forward(p, outbound{messageType: mt, data: data})
	}
}

func (h *Hub) forward(from *peer, msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for p := range h.peers {
		if p == from || p.module != from.module {
			continue
		}
		select {
		case p.send <- msg:
		default:
			h.log.Warn("peer too slow, dropping frame", zap.String("module", p.module), zap.String("panel", p.panel))
		}
	}
}

func (h *Hub) writeLoop(p *peer) {
	defer close(p.done)
	for msg := range p.send {
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(msg.messageType, msg.data); err != nil {
			h.log.Debug("write failed", zap.String("module", p.module), zap.String("panel", p.panel), zap.Error(err))
		}
	}
	_ = p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	_ = p.conn.Close()
}

// Peers counts the connections of module
func (h *Hub) Peers(module string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for p := range h.peers {
		if p.module == module {
			n++
		}
	}
	return n
}

// Close disconnects every peer and waits for their handlers to return
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	for p := range h.peers {
		_ = p.conn.Close()
	}
	h.mu.Unlock()

	h.wg.Wait()
}
