package internal

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ChatBackend is the part of the API the chat engine uses
type ChatBackend interface {
	Token(ctx context.Context) (string, error)
	Models(ctx context.Context) ([]Model, error)
	Agents(ctx context.Context) ([]Agent, error)
	SessionMessages(ctx context.Context, sessionID string) ([]HistoryRecord, error)
	Stream(ctx context.Context, path string, body interface{}, onEvent func(StreamEvent)) error
}

// Engine runs the chat panel: it serializes events through Reduce and carries out
// the resulting effects once the lock is released.
type Engine struct {
	api        ChatBackend
	docs       *DocumentCache
	mirror     *StateMirror
	bus        Publisher
	reporter   ErrorReporter
	normalizer *Normalizer
	newID      func() string

	mu        sync.Mutex
	state     ChatState
	seq       uint64
	observers []func(ChatState)

	// notifyMu orders observer calls; delivered is the seq of the last state observed
	notifyMu  sync.Mutex
	delivered uint64

	background sync.WaitGroup
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithDocuments enables @title expansion of outgoing messages
func WithDocuments(docs *DocumentCache) EngineOption {
	return func(e *Engine) { e.docs = docs }
}

// WithMirror enables persistence of the chat state
func WithMirror(m *StateMirror) EngineOption {
	return func(e *Engine) { e.mirror = m }
}

// WithPublisher sets where SESSION_ACTIVE envelopes are sent
func WithPublisher(p Publisher) EngineOption {
	return func(e *Engine) { e.bus = p }
}

// WithIDGenerator replaces the uuid based message id generator
func WithIDGenerator(fn func() string) EngineOption {
	return func(e *Engine) { e.newID = fn }
}

// NewEngine creates a chat engine in the unconfigured state
func NewEngine(api ChatBackend, reporter ErrorReporter, opts ...EngineOption) *Engine {
	e := &Engine{
		api:        api,
		reporter:   reporter,
		normalizer: NewNormalizer(),
		newID:      uuid.NewString,
		state:      NewChatState(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns a copy of the current state
func (e *Engine) State() ChatState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Subscribe registers fn to be called with new states. Calls never overlap and never go
// back in time: a state superseded before its turn came is skipped. fn must not call Dispatch.
func (e *Engine) Subscribe(fn func(ChatState)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// Dispatch reduces one event and runs its effects
func (e *Engine) Dispatch(evt Event) {
	e.mu.Lock()
	next, effects := Reduce(e.state, evt)
	e.state = next
	e.seq++
	seq := e.seq
	observers := e.observers
	e.mu.Unlock()

	e.notify(seq, next, observers)
	e.run(effects)
}

func (e *Engine) notify(seq uint64, s ChatState, observers []func(ChatState)) {
	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	if seq <= e.delivered {
		return
	}
	e.delivered = seq
	for _, fn := range observers {
		fn(s)
	}
}

// Wait blocks until background history fetches have finished and pending
// persistence writes were attempted
func (e *Engine) Wait() {
	e.background.Wait()
	if e.mirror != nil {
		e.mirror.Wait()
	}
}

func (e *Engine) run(effects []Effect) {
	for _, eff := range effects {
		switch eff := eff.(type) {
		case EmitSessionActive:
			e.publish(TypeSessionActive, eff.Payload)
		case FetchHistory:
			e.background.Add(1)
			go func(id string) {
				defer e.background.Done()
				e.fetchHistory(id)
			}(eff.SessionID)
		case Persist:
			if e.mirror != nil {
				e.mirror.Save(eff.Snapshot)
			}
		case ReportError:
			if e.reporter != nil {
				e.reporter.Report(eff.Message)
			}
		case LogNote:
			switch eff.Level {
			case LogLevelDebug:
				LogDebug("%s", eff.Message)
			case LogLevelInfo:
				LogInfo("%s", eff.Message)
			case LogLevelWarn:
				LogWarn("%s", eff.Message)
			default:
				LogError("%s", eff.Message)
			}
		}
	}
}

func (e *Engine) publish(typ string, payload interface{}) {
	if e.bus == nil {
		return
	}
	env, err := NewEnvelope(typ, payload)
	if err != nil {
		LogError("%v", err)
		return
	}
	LogDebug("publishing %s", typ)
	e.bus.Send(env)
}

// Restore loads the mirrored state. Persistence failures leave the engine unconfigured.
func (e *Engine) Restore(ctx context.Context) {
	if e.mirror == nil {
		e.Dispatch(Restored{})
		return
	}
	state, found, err := e.mirror.Load(ctx)
	if err != nil {
		LogWarn("failed to load chat state: %v", err)
	}
	e.Dispatch(Restored{State: state, Found: found})
}

// LoadCatalog fetches models and agents concurrently. Whatever arrived is applied even
// when the other request failed.
func (e *Engine) LoadCatalog(ctx context.Context) error {
	var (
		models []Model
		agents []Agent
		g      errgroup.Group
	)
	g.Go(func() error {
		var err error
		models, err = e.api.Models(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		agents, err = e.api.Agents(ctx)
		return err
	})
	err := g.Wait()
	if err != nil {
		reportErr(e.reporter, err)
		if models == nil && agents == nil {
			return err
		}
	}

	e.Dispatch(CatalogLoaded{Models: models, Agents: agents})
	return err
}

// HandleEnvelope adopts OPEN_SESSION requests; other envelope types are ignored
func (e *Engine) HandleEnvelope(env Envelope) {
	if env.Type != TypeOpenSession {
		return
	}
	payload, err := env.OpenSession()
	if err != nil {
		LogWarn("ignoring envelope: %v", err)
		return
	}
	LogInfo("adopting session %s", firstNonEmpty(payload.ID, payload.SessionID, "(blank)"))
	e.Dispatch(SessionAdopted{Payload: payload})
}

// HandleFrame decodes a bus frame and handles it as an envelope
func (e *Engine) HandleFrame(raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		LogDebug("ignoring bus frame: %v", err)
		return
	}
	e.HandleEnvelope(env)
}

// SelectTarget picks an agent, a model, or nothing
func (e *Engine) SelectTarget(t Target) {
	e.Dispatch(TargetSelected{Target: t})
}

// SetTemperature changes the model temperature
func (e *Engine) SetTemperature(v float64) {
	e.Dispatch(TemperatureChanged{Value: v})
}

// ResetConversation clears the session identities and messages
func (e *Engine) ResetConversation() {
	e.Dispatch(ConversationReset{})
}

// StartNewSession also clears the agent, model and temperature
func (e *Engine) StartNewSession() {
	e.Dispatch(NewSessionStarted{})
}

func (e *Engine) fetchHistory(sessionID string) {
	ctx := context.Background()
	records, err := e.api.SessionMessages(ctx, sessionID)
	if err != nil {
		LogWarn("unable to fetch messages of session %s: %v", sessionID, err)
		reportErr(e.reporter, err)
		return
	}
	e.Dispatch(HistoryLoaded{SessionID: sessionID, Messages: e.normalizer.NormalizeHistory(records)})
}

// Send appends the user message and a placeholder, then streams the reply into the
// placeholder. It returns when the stream ends. Precondition violations are reported
// and leave the messages untouched.
func (e *Engine) Send(ctx context.Context, input string) error {
	if strings.TrimSpace(input) == "" {
		return e.refuse(ErrEmptyInput)
	}
	token, err := e.api.Token(ctx)
	if err != nil {
		reportErr(e.reporter, ErrModulesUnavailable)
		return err
	}
	if token == "" {
		return e.refuse(ErrNotAuthenticated)
	}
	state := e.State()
	if !state.HasTarget() {
		return e.refuse(ErrNoTarget)
	}

	placeholderID := "a-" + e.newID()
	e.Dispatch(SendStarted{
		User:          Message{ID: "u-" + e.newID(), Sender: SenderUser, Content: input},
		PlaceholderID: placeholderID,
	})

	wire := input
	if e.docs != nil {
		wire = e.docs.Expand(ctx, input)
	}

	req := BuildStreamRequest(state, wire)
	LogDebug("streaming %s", req.Path)
	err = e.api.Stream(ctx, req.Path, req.Body, func(evt StreamEvent) {
		e.handleStreamEvent(placeholderID, evt)
	})
	if err != nil {
		e.Dispatch(StreamFailed{PlaceholderID: placeholderID, Err: err})
		return err
	}
	e.Dispatch(StreamEnded{PlaceholderID: placeholderID})
	return nil
}

func (e *Engine) refuse(reason error) error {
	reportErr(e.reporter, reason)
	return &PreconditionError{Reason: reason}
}

// handleStreamEvent applies the first matching rule: delta, final message, session
// identity, error. Anything else is ignored.
func (e *Engine) handleStreamEvent(placeholderID string, evt StreamEvent) {
	switch {
	case evt.MessageDelta != nil:
		e.Dispatch(DeltaReceived{PlaceholderID: placeholderID, Delta: evt.DeltaText()})
	case isPresent(evt.Message) && string(evt.Message) != `""`:
		e.Dispatch(FinalReceived{PlaceholderID: placeholderID, Content: e.normalizer.NormalizeFinal(evt.Message)})
	case evt.AgentSession != nil && (evt.AgentSession.ID != "" || evt.AgentSession.SessionID != ""):
		e.Dispatch(SessionIdentified{ID: evt.AgentSession.ID, SessionID: evt.AgentSession.SessionID})
	case isPresent(evt.Error):
		e.Dispatch(StreamErrored{PlaceholderID: placeholderID, Message: evt.ErrorText()})
	default:
		LogDebug("ignoring stream event")
	}
}

// StreamRequest is the endpoint and body of one send
type StreamRequest struct {
	Path string
	Body interface{}
}

type agentRunBody struct {
	Message string `json:"message"`
}

type modelRunBody struct {
	Message string   `json:"message"`
	Model   ModelRef `json:"model"`
}

// BuildStreamRequest chooses run or continue for the agent or model flow
func BuildStreamRequest(s ChatState, message string) StreamRequest {
	if s.SelectedAgent != "" {
		if s.AgentSessionID != "" {
			return StreamRequest{Path: "/ai-agent-continue-text/" + url.PathEscape(s.AgentSessionID), Body: agentRunBody{Message: message}}
		}
		return StreamRequest{Path: "/ai-agent-run-text/" + url.PathEscape(s.SelectedAgent), Body: agentRunBody{Message: message}}
	}

	body := modelRunBody{Message: message, Model: ModelRef{ID: s.SelectedModel, Temperature: Float64(s.Temperature)}}
	if s.AgentSessionID != "" {
		return StreamRequest{Path: "/ai-agent-continue-by-model/" + url.PathEscape(s.AgentSessionID), Body: body}
	}
	return StreamRequest{Path: "/ai-agent-run-by-model", Body: body}
}
