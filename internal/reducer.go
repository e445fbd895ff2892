package internal

import "fmt"

// DefaultTemperature is used for model sessions that do not carry their own
const DefaultTemperature = 0.7

// ChatState is the chat panel's view of the active conversation.
// At most one of SelectedAgent and SelectedModel is non-empty.
type ChatState struct {
	AgentSessionID string
	MsgSessionID   string
	SelectedAgent  string
	SelectedModel  string
	Temperature    float64
	Messages       []Message

	// PendingDefault is set by adopting a session with neither agent nor model;
	// the first catalog model is selected once the catalog is known.
	PendingDefault bool
	// Hydrated is set once the persisted state has been looked up, found or not.
	// No Persist effect is produced before that.
	Hydrated bool

	Models []Model
	Agents []Agent
}

// NewChatState returns the unconfigured state
func NewChatState() ChatState {
	return ChatState{Temperature: DefaultTemperature}
}

// Snapshot returns the part of the state mirrored to the persistence sidecar
func (s ChatState) Snapshot() PersistedState {
	return PersistedState{
		AgentSessionID: s.AgentSessionID,
		MsgSessionID:   s.MsgSessionID,
		Messages:       s.Messages,
		SelectedAgent:  s.SelectedAgent,
		SelectedModel:  s.SelectedModel,
		Temperature:    Float64(s.Temperature),
	}
}

// HasTarget reports whether an agent or a model is selected
func (s ChatState) HasTarget() bool {
	return s.SelectedAgent != "" || s.SelectedModel != ""
}

func (s ChatState) messageIndex(id string) int {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// withMessages copies the message slice so earlier states stay untouched
func (s ChatState) withMessages() ChatState {
	msgs := make([]Message, len(s.Messages))
	copy(msgs, s.Messages)
	s.Messages = msgs
	return s
}

// TargetKind distinguishes agent and model selection
type TargetKind int

const (
	TargetNone TargetKind = iota
	TargetAgent
	TargetModel
)

// Target is the execution target picked in the selector
type Target struct {
	Kind TargetKind
	ID   string
}

// Event is an input of the chat reducer
type Event interface {
	isEvent()
}

type (
	// Restored carries the persisted state; Found is false when nothing was stored.
	Restored struct {
		State PersistedState
		Found bool
	}
	CatalogLoaded struct {
		Models []Model
		Agents []Agent
	}
	SessionAdopted struct {
		Payload OpenSessionPayload
	}
	HistoryLoaded struct {
		SessionID string
		Messages  []Message
	}
	TargetSelected struct {
		Target Target
	}
	TemperatureChanged struct {
		Value float64
	}
	SendStarted struct {
		User          Message
		PlaceholderID string
	}
	DeltaReceived struct {
		PlaceholderID string
		Delta         string
	}
	FinalReceived struct {
		PlaceholderID string
		Content       string
	}
	SessionIdentified struct {
		ID        string
		SessionID string
	}
	StreamErrored struct {
		PlaceholderID string
		Message       string
	}
	StreamEnded struct {
		PlaceholderID string
	}
	StreamFailed struct {
		PlaceholderID string
		Err           error
	}
)

// ConversationReset clears the identities and messages, keeping the selection
type ConversationReset struct{}

// NewSessionStarted also clears the selection and temperature
type NewSessionStarted struct{}

func (Restored) isEvent()           {}
func (CatalogLoaded) isEvent()      {}
func (SessionAdopted) isEvent()     {}
func (HistoryLoaded) isEvent()      {}
func (TargetSelected) isEvent()     {}
func (TemperatureChanged) isEvent() {}
func (ConversationReset) isEvent()  {}
func (NewSessionStarted) isEvent()  {}
func (SendStarted) isEvent()        {}
func (DeltaReceived) isEvent()      {}
func (FinalReceived) isEvent()      {}
func (SessionIdentified) isEvent()  {}
func (StreamErrored) isEvent()      {}
func (StreamEnded) isEvent()        {}
func (StreamFailed) isEvent()       {}

// Effect is work requested by the reducer and carried out by the Engine
type Effect interface {
	isEffect()
}

type (
	EmitSessionActive struct {
		Payload SessionActivePayload
	}
	FetchHistory struct {
		SessionID string
	}
	Persist struct {
		Snapshot PersistedState
	}
	ReportError struct {
		Message string
	}
	// LogNote is a diagnostic for the engine's log; it never reaches the user
	LogNote struct {
		Level   LogLevel
		Message string
	}
)

func (EmitSessionActive) isEffect() {}
func (FetchHistory) isEffect()      {}
func (Persist) isEffect()           {}
func (ReportError) isEffect()       {}
func (LogNote) isEffect()           {}

// Reduce computes the next state for an event. It is pure: the input state is never
// modified and all side effects, logging included, are returned as Effects.
func Reduce(prev ChatState, evt Event) (ChatState, []Effect) {
	next, effects := reduce(prev, evt)

	_, adopted := evt.(SessionAdopted)
	pairChanged := prev.AgentSessionID != next.AgentSessionID || prev.MsgSessionID != next.MsgSessionID
	if (pairChanged || adopted) && next.AgentSessionID != "" && next.MsgSessionID != "" {
		effects = append(effects, EmitSessionActive{Payload: SessionActivePayload{
			ID:        next.AgentSessionID,
			SessionID: next.MsgSessionID,
		}})
	}

	if next.Hydrated && (!prev.Hydrated || !prev.Snapshot().Equal(next.Snapshot())) {
		if _, restored := evt.(Restored); !restored {
			effects = append(effects, Persist{Snapshot: next.Snapshot()})
		}
	}
	return next, effects
}

func reduce(s ChatState, evt Event) (ChatState, []Effect) {
	switch e := evt.(type) {
	case Restored:
		s.Hydrated = true
		if !e.Found {
			return s, nil
		}
		s.AgentSessionID = e.State.AgentSessionID
		s.MsgSessionID = e.State.MsgSessionID
		s.Messages = append([]Message(nil), e.State.Messages...)
		s.SelectedAgent = e.State.SelectedAgent
		s.SelectedModel = e.State.SelectedModel
		if s.SelectedAgent != "" {
			s.SelectedModel = ""
		}
		if e.State.Temperature != nil {
			s.Temperature = *e.State.Temperature
		}
		return s, nil

	case CatalogLoaded:
		s.Models = e.Models
		s.Agents = e.Agents
		return resolvePendingDefault(s), nil

	case SessionAdopted:
		return adoptSession(s, e.Payload)

	case HistoryLoaded:
		if e.SessionID != s.MsgSessionID {
			return s, []Effect{LogNote{
				Level:   LogLevelDebug,
				Message: fmt.Sprintf("discarding history for %s, current session is %s", e.SessionID, s.MsgSessionID),
			}}
		}
		s.Messages = append([]Message(nil), e.Messages...)
		return s, nil

	case TargetSelected:
		return selectTarget(s, e.Target), nil

	case TemperatureChanged:
		s.Temperature = e.Value
		return s, nil

	case ConversationReset:
		return resetConversation(s), nil

	case NewSessionStarted:
		s = resetConversation(s)
		s.SelectedAgent = ""
		s.SelectedModel = ""
		s.Temperature = DefaultTemperature
		s.PendingDefault = false
		return s, nil

	case SendStarted:
		s = s.withMessages()
		s.Messages = append(s.Messages,
			e.User,
			Message{ID: e.PlaceholderID, Sender: SenderAssistant},
		)
		return s, nil

	case DeltaReceived:
		s = s.withMessages()
		if i := s.messageIndex(e.PlaceholderID); i >= 0 {
			s.Messages[i].Content += e.Delta
			s.Messages[i].Failed = false
		} else {
			s.Messages = append(s.Messages, Message{ID: e.PlaceholderID, Sender: SenderAssistant, Content: e.Delta})
		}
		return s, nil

	case FinalReceived:
		s = s.withMessages()
		if i := s.messageIndex(e.PlaceholderID); i >= 0 {
			s.Messages[i].Content = e.Content
			s.Messages[i].Failed = false
		} else {
			s.Messages = append(s.Messages, Message{ID: e.PlaceholderID, Sender: SenderAssistant, Content: e.Content})
		}
		return s, nil

	case SessionIdentified:
		if e.ID != "" {
			s.AgentSessionID = e.ID
		}
		switch {
		case e.SessionID != "":
			s.MsgSessionID = e.SessionID
		case s.MsgSessionID == "" && e.ID != "":
			s.MsgSessionID = e.ID
		}
		return s, nil

	case StreamErrored:
		return markFailed(s, e.PlaceholderID), []Effect{ReportError{Message: e.Message}}

	case StreamEnded:
		if i := s.messageIndex(e.PlaceholderID); i >= 0 && s.Messages[i].Content == "" {
			return markFailed(s, e.PlaceholderID), nil
		}
		return s, nil

	case StreamFailed:
		var effects []Effect
		if e.Err != nil {
			effects = append(effects, ReportError{Message: e.Err.Error()})
		}
		return markFailed(s, e.PlaceholderID), effects
	}

	return s, []Effect{LogNote{Level: LogLevelWarn, Message: fmt.Sprintf("chat reducer: unhandled event %T", evt)}}
}

// adoptSession applies an OPEN_SESSION payload. Agent wins over model; with neither the
// selection is cleared and a default model is chosen from the catalog.
func adoptSession(s ChatState, p OpenSessionPayload) (ChatState, []Effect) {
	switch {
	case p.AgentID != "":
		s.SelectedAgent = p.AgentID
		s.SelectedModel = ""
		s.PendingDefault = false
	case p.Model != nil && p.Model.ID != "":
		s.SelectedModel = p.Model.ID
		s.SelectedAgent = ""
		s.Temperature = p.Model.TemperatureOr(DefaultTemperature)
		s.PendingDefault = false
	default:
		s.SelectedAgent = ""
		s.SelectedModel = ""
		s.PendingDefault = true
		s = resolvePendingDefault(s)
	}

	s.AgentSessionID = firstNonEmpty(p.ID, p.SessionID)
	s.MsgSessionID = firstNonEmpty(p.SessionID, p.ID)
	s.Messages = nil

	if s.MsgSessionID == "" {
		return s, nil
	}
	return s, []Effect{FetchHistory{SessionID: s.MsgSessionID}}
}

func resolvePendingDefault(s ChatState) ChatState {
	if !s.PendingDefault || len(s.Models) == 0 {
		return s
	}
	s.PendingDefault = false
	if s.HasTarget() {
		return s
	}
	s.SelectedModel = s.Models[0].ID
	s.Temperature = DefaultTemperature
	return s
}

func selectTarget(s ChatState, t Target) ChatState {
	s.PendingDefault = false
	switch t.Kind {
	case TargetModel:
		leavingAgent := s.SelectedAgent != ""
		s.SelectedModel = t.ID
		s.SelectedAgent = ""
		if leavingAgent {
			s = resetConversation(s)
		}
	case TargetAgent:
		leavingModel := s.SelectedModel != ""
		changingAgent := s.SelectedAgent != "" && s.SelectedAgent != t.ID
		s.SelectedAgent = t.ID
		s.SelectedModel = ""
		if leavingModel || changingAgent {
			s = resetConversation(s)
		}
	default:
		s.SelectedAgent = ""
		s.SelectedModel = ""
	}
	return s
}

func resetConversation(s ChatState) ChatState {
	s.AgentSessionID = ""
	s.MsgSessionID = ""
	s.Messages = nil
	return s
}

func markFailed(s ChatState, id string) ChatState {
	i := s.messageIndex(id)
	if i < 0 {
		return s
	}
	s = s.withMessages()
	s.Messages[i].Failed = true
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
