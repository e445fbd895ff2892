package internal

import (
	"context"
	"errors"
	"sync"
)

// DirectoryState is the lifecycle of the session list panel
type DirectoryState int

const (
	DirectoryIdle DirectoryState = iota
	DirectoryLoaded
	DirectoryAnnounced
)

func (s DirectoryState) String() string {
	switch s {
	case DirectoryLoaded:
		return "loaded"
	case DirectoryAnnounced:
		return "announced"
	default:
		return "idle"
	}
}

// SessionLister fetches the session directory
type SessionLister interface {
	Sessions(ctx context.Context, limit int) ([]AgentSession, error)
}

// Directory is the session list panel. It never fetches message history and it does not
// own which session is active: the chat panel tells it through SESSION_ACTIVE.
type Directory struct {
	api      SessionLister
	cache    *CacheManager
	baseURL  string
	limit    int
	bus      Publisher
	reporter ErrorReporter
	dedup    *Deduplicator

	mu       sync.Mutex
	state    DirectoryState
	sessions []AgentSession
	current  string
	onChange func()
}

// NewDirectory creates an idle directory. cache may be nil to disable the offline fallback.
func NewDirectory(api SessionLister, bus Publisher, reporter ErrorReporter, cache *CacheManager, baseURL string, limit int) *Directory {
	if limit <= 0 {
		limit = DefaultSessionLimit
	}
	return &Directory{
		api:      api,
		cache:    cache,
		baseURL:  baseURL,
		limit:    limit,
		bus:      bus,
		reporter: reporter,
		dedup:    NewDeduplicator(),
	}
}

// OnChange registers fn to run after the list or the current session changed
func (d *Directory) OnChange(fn func()) {
	d.mu.Lock()
	d.onChange = fn
	d.mu.Unlock()
}

// Load fetches the sessions. When the request fails the cached list is used if there is one.
func (d *Directory) Load(ctx context.Context) ([]AgentSession, error) {
	sessions, err := d.api.Sessions(ctx, d.limit)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			LogDebug("Session list waits for a token")
			return nil, err
		}
		LogError("Failed to load sessions: %v", err)
		reportErr(d.reporter, err)

		cached, cacheErr := d.loadCached()
		if cacheErr != nil {
			return nil, err
		}
		LogInfo("Using %d cached sessions", len(cached))
		sessions = cached
	} else {
		sessions = d.dedup.Deduplicate(sessions)
		if d.cache != nil {
			if err := d.cache.SaveSessions(sessions, d.baseURL); err != nil {
				LogWarn("Failed to cache sessions: %v", err)
			}
		}
	}

	d.mu.Lock()
	d.sessions = sessions
	if d.state == DirectoryIdle {
		d.state = DirectoryLoaded
	}
	d.mu.Unlock()
	d.changed()

	return sessions, nil
}

func (d *Directory) loadCached() ([]AgentSession, error) {
	if d.cache == nil {
		return nil, errors.New("no session cache")
	}
	return d.cache.LoadSessions()
}

// HandleEnvelope follows SESSION_ACTIVE. Other envelopes are ignored.
func (d *Directory) HandleEnvelope(env Envelope) {
	if env.Type != TypeSessionActive {
		return
	}
	payload, err := env.SessionActive()
	if err != nil {
		LogDebug("Dropping SESSION_ACTIVE: %v", err)
		return
	}
	sid := firstNonEmpty(payload.ID, payload.SessionID)
	if sid == "" {
		return
	}

	d.mu.Lock()
	d.current = sid
	d.mu.Unlock()
	d.changed()
}

// HandleFrame decodes a bus frame and applies it
func (d *Directory) HandleFrame(raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		LogDebug("Ignoring bus frame: %v", err)
		return
	}
	d.HandleEnvelope(env)
}

// Open announces session to the chat panel and marks it current without waiting for confirmation
func (d *Directory) Open(session AgentSession) {
	payload := OpenSessionPayloadFor(session)
	if d.bus != nil {
		env, err := NewEnvelope(TypeOpenSession, payload)
		if err != nil {
			reportErr(d.reporter, err)
		} else {
			d.bus.Send(env)
		}
	} else {
		LogWarn("Bus not connected, cannot send OPEN_SESSION")
	}

	d.mu.Lock()
	d.current = session.ID
	d.state = DirectoryAnnounced
	d.mu.Unlock()
	d.changed()
}

// Find returns the listed session with id
func (d *Directory) Find(id string) (AgentSession, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, s := range d.sessions {
		if s.ID == id || s.SessionID == id {
			return s, true
		}
	}
	return AgentSession{}, false
}

// Sessions returns the loaded list
func (d *Directory) Sessions() []AgentSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]AgentSession(nil), d.sessions...)
}

// Current returns the id of the highlighted session, empty when none
func (d *Directory) Current() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

func (d *Directory) State() DirectoryState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Directory) changed() {
	d.mu.Lock()
	fn := d.onChange
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}
