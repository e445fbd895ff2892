package internal

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// ChatStateCollection is the collection holding the mirrored chat state
const ChatStateCollection = "chat_state"

// PersistedState is the chat state mirrored to the document store
type PersistedState struct {
	AgentSessionID string    `json:"agentSessionId,omitempty"`
	MsgSessionID   string    `json:"msgSessionId,omitempty"`
	Messages       []Message `json:"messages"`
	SelectedAgent  string    `json:"selectedAgent"`
	SelectedModel  string    `json:"selectedModel"`
	Temperature    *float64  `json:"temperature,omitempty"`

	// LegacySessionID is read from documents written before the two identities were split
	LegacySessionID string `json:"sessionId,omitempty"`
}

// Meaningful reports whether the state is worth creating a document for
func (p PersistedState) Meaningful() bool {
	return p.AgentSessionID != "" || p.MsgSessionID != "" || len(p.Messages) > 0 ||
		p.SelectedAgent != "" || p.SelectedModel != ""
}

// Equal compares two snapshots field by field
func (p PersistedState) Equal(o PersistedState) bool {
	if p.AgentSessionID != o.AgentSessionID || p.MsgSessionID != o.MsgSessionID ||
		p.SelectedAgent != o.SelectedAgent || p.SelectedModel != o.SelectedModel ||
		!sameTemperature(p.Temperature, o.Temperature) || len(p.Messages) != len(o.Messages) {
		return false
	}
	for i := range p.Messages {
		if p.Messages[i] != o.Messages[i] {
			return false
		}
	}
	return true
}

func sameTemperature(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// StateMirror keeps a single chat_state document in sync with the in-memory state.
// Saves are fire-and-forget: one writer goroutine drains them and only the latest
// pending snapshot is written.
type StateMirror struct {
	store        DocumentStore
	collection   string
	writeTimeout time.Duration

	mu      sync.Mutex
	docID   string
	pending *PersistedState
	running bool
	wg      sync.WaitGroup
}

// NewStateMirror creates a mirror over the chat_state collection of store
func NewStateMirror(store DocumentStore) *StateMirror {
	return &StateMirror{
		store:        store,
		collection:   ChatStateCollection,
		writeTimeout: 10 * time.Second,
	}
}

// Load returns the last listed document. found is false when the collection is empty
// or holds nothing decodable.
func (m *StateMirror) Load(ctx context.Context) (state PersistedState, found bool, err error) {
	docs, err := m.store.List(ctx, m.collection)
	if err != nil {
		return PersistedState{}, false, err
	}
	if len(docs) == 0 {
		return PersistedState{}, false, nil
	}

	last := docs[len(docs)-1]
	m.mu.Lock()
	m.docID = last.ID
	m.mu.Unlock()

	if err := json.Unmarshal(last.Body, &state); err != nil {
		LogWarn("ignoring unreadable %s document %s: %v", m.collection, last.ID, err)
		return PersistedState{}, false, nil
	}
	if state.AgentSessionID == "" && state.LegacySessionID != "" {
		state.AgentSessionID = state.LegacySessionID
	}
	if state.MsgSessionID == "" {
		state.MsgSessionID = state.LegacySessionID
	}
	state.LegacySessionID = ""
	return state, true, nil
}

// Save schedules a write of snap and returns immediately
func (m *StateMirror) Save(snap PersistedState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending = &snap
	if m.running {
		return
	}
	m.running = true
	m.wg.Add(1)
	go m.drain()
}

// Wait blocks until every scheduled write has been attempted
func (m *StateMirror) Wait() {
	m.wg.Wait()
}

// DocumentID returns the id of the mirrored document, empty before the first create
func (m *StateMirror) DocumentID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docID
}

func (m *StateMirror) drain() {
	defer m.wg.Done()
	for {
		m.mu.Lock()
		if m.pending == nil {
			m.running = false
			m.mu.Unlock()
			return
		}
		snap := *m.pending
		m.pending = nil
		docID := m.docID
		m.mu.Unlock()

		m.write(docID, snap)
	}
}

func (m *StateMirror) write(docID string, snap PersistedState) {
	ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
	defer cancel()

	if docID != "" {
		if err := m.store.Update(ctx, m.collection, docID, snap); err != nil {
			LogWarn("failed to persist chat state: %v", err)
		}
		return
	}
	if !snap.Meaningful() {
		return
	}

	created, err := m.store.Create(ctx, m.collection, snap)
	if err != nil {
		LogWarn("failed to persist chat state: %v", err)
		return
	}
	m.mu.Lock()
	m.docID = created.ID
	m.mu.Unlock()
	LogDebug("created %s document %s", m.collection, created.ID)
}
