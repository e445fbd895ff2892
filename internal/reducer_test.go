package internal

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// reduceAll folds events over state and collects every effect
func reduceAll(s ChatState, events ...Event) (ChatState, []Effect) {
	var all []Effect
	for _, e := range events {
		var effects []Effect
		s, effects = Reduce(s, e)
		all = append(all, effects...)
	}
	return s, all
}

func effectsOfType[T Effect](effects []Effect) []T {
	var out []T
	for _, e := range effects {
		if v, ok := e.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

func TestReduce_DeltasConcatenateInOrder(t *testing.T) {
	s := NewChatState()
	s, _ = Reduce(s, SendStarted{User: Message{ID: "u-1", Sender: SenderUser, Content: "hi"}, PlaceholderID: "a-1"})

	deltas := []string{"Hel", "lo, ", "wor", "ld"}
	for _, d := range deltas {
		s, _ = Reduce(s, DeltaReceived{PlaceholderID: "a-1", Delta: d})
	}

	want := []Message{
		{ID: "u-1", Sender: SenderUser, Content: "hi"},
		{ID: "a-1", Sender: SenderAssistant, Content: "Hello, world"},
	}
	if diff := cmp.Diff(want, s.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestReduce_DeltaRecreatesMissingPlaceholder(t *testing.T) {
	s := NewChatState()
	s, _ = Reduce(s, SendStarted{User: Message{ID: "u-1", Sender: SenderUser, Content: "hi"}, PlaceholderID: "a-1"})
	// A history reload for another session replaces the list.
	s.MsgSessionID = "s2"
	s, _ = Reduce(s, HistoryLoaded{SessionID: "s2", Messages: []Message{{ID: "h-1", Sender: SenderUser, Content: "old"}}})

	s, _ = Reduce(s, DeltaReceived{PlaceholderID: "a-1", Delta: "late"})

	want := []Message{
		{ID: "h-1", Sender: SenderUser, Content: "old"},
		{ID: "a-1", Sender: SenderAssistant, Content: "late"},
	}
	if diff := cmp.Diff(want, s.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
}

func TestReduce_FinalReplacesContent(t *testing.T) {
	s := NewChatState()
	s, _ = reduceAll(s,
		SendStarted{User: Message{ID: "u-1", Sender: SenderUser, Content: "hi"}, PlaceholderID: "a-1"},
		DeltaReceived{PlaceholderID: "a-1", Delta: "draft "},
		DeltaReceived{PlaceholderID: "a-1", Delta: "text"},
		FinalReceived{PlaceholderID: "a-1", Content: "Final answer"},
	)
	if got := s.Messages[1].Content; got != "Final answer" {
		t.Errorf("content = %q, want %q", got, "Final answer")
	}

	// A final event for a vanished placeholder recreates it.
	s, _ = Reduce(ChatState{}, FinalReceived{PlaceholderID: "a-9", Content: "x"})
	if len(s.Messages) != 1 || s.Messages[0].ID != "a-9" || s.Messages[0].Content != "x" {
		t.Errorf("messages = %+v", s.Messages)
	}
}

func TestReduce_ReduceDoesNotMutateInput(t *testing.T) {
	s := NewChatState()
	s, _ = Reduce(s, SendStarted{User: Message{ID: "u-1", Sender: SenderUser, Content: "hi"}, PlaceholderID: "a-1"})
	before := s

	_, _ = Reduce(before, DeltaReceived{PlaceholderID: "a-1", Delta: "x"})
	_, _ = Reduce(before, StreamErrored{PlaceholderID: "a-1", Message: "boom"})

	if before.Messages[1].Content != "" || before.Messages[1].Failed {
		t.Errorf("input state was mutated: %+v", before.Messages[1])
	}
}

func TestReduce_TargetSelection(t *testing.T) {
	withConversation := func(s ChatState) ChatState {
		s.AgentSessionID = "s1"
		s.MsgSessionID = "s1"
		s.Messages = []Message{{ID: "u-1", Sender: SenderUser, Content: "hi"}}
		return s
	}

	tests := []struct {
		name      string
		start     ChatState
		target    Target
		wantAgent string
		wantModel string
		wantReset bool
	}{
		{
			name:      "model to agent resets",
			start:     ChatState{SelectedModel: "m1", Temperature: 0.7},
			target:    Target{Kind: TargetAgent, ID: "a1"},
			wantAgent: "a1",
			wantReset: true,
		},
		{
			name:      "agent to model resets",
			start:     ChatState{SelectedAgent: "a1", Temperature: 0.7},
			target:    Target{Kind: TargetModel, ID: "m1"},
			wantModel: "m1",
			wantReset: true,
		},
		{
			name:      "different agent resets",
			start:     ChatState{SelectedAgent: "a1", Temperature: 0.7},
			target:    Target{Kind: TargetAgent, ID: "a2"},
			wantAgent: "a2",
			wantReset: true,
		},
		{
			name:      "same agent keeps conversation",
			start:     ChatState{SelectedAgent: "a1", Temperature: 0.7},
			target:    Target{Kind: TargetAgent, ID: "a1"},
			wantAgent: "a1",
		},
		{
			name:      "model to other model keeps conversation",
			start:     ChatState{SelectedModel: "m1", Temperature: 0.7},
			target:    Target{Kind: TargetModel, ID: "m2"},
			wantModel: "m2",
		},
		{
			name:      "first pick keeps conversation",
			start:     ChatState{Temperature: 0.7},
			target:    Target{Kind: TargetAgent, ID: "a1"},
			wantAgent: "a1",
		},
		{
			name:   "none clears selection without reset",
			start:  ChatState{SelectedAgent: "a1", Temperature: 0.7},
			target: Target{Kind: TargetNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Reduce(withConversation(tt.start), TargetSelected{Target: tt.target})

			if got.SelectedAgent != tt.wantAgent || got.SelectedModel != tt.wantModel {
				t.Errorf("selection = agent %q model %q, want agent %q model %q",
					got.SelectedAgent, got.SelectedModel, tt.wantAgent, tt.wantModel)
			}
			reset := got.AgentSessionID == "" && got.MsgSessionID == "" && len(got.Messages) == 0
			if reset != tt.wantReset {
				t.Errorf("reset = %v, want %v (state %+v)", reset, tt.wantReset, got)
			}
		})
	}
}

func TestReduce_TemperatureDoesNotReset(t *testing.T) {
	s := ChatState{SelectedModel: "m1", Temperature: 0.7, AgentSessionID: "s1", MsgSessionID: "s1",
		Messages: []Message{{ID: "u-1"}}}
	got, _ := Reduce(s, TemperatureChanged{Value: 1.2})
	if got.Temperature != 1.2 || got.AgentSessionID != "s1" || len(got.Messages) != 1 {
		t.Errorf("state = %+v", got)
	}
}

func TestReduce_AdoptionLastWriteWins(t *testing.T) {
	s, effects := reduceAll(NewChatState(),
		SessionAdopted{Payload: OpenSessionPayload{AgentID: "a1"}},
		SessionAdopted{Payload: OpenSessionPayload{Model: &ModelRef{ID: "m1", Temperature: Float64(0.2)}}},
	)

	if s.SelectedAgent != "" || s.SelectedModel != "m1" || s.Temperature != 0.2 {
		t.Errorf("selection = agent %q model %q temp %v", s.SelectedAgent, s.SelectedModel, s.Temperature)
	}
	if n := len(effectsOfType[FetchHistory](effects)); n != 0 {
		t.Errorf("FetchHistory effects = %d, want 0 without identities", n)
	}
}

func TestReduce_AdoptionIdentitiesAndHistory(t *testing.T) {
	start := NewChatState()
	start.Messages = []Message{{ID: "u-1", Content: "previous"}}

	s, effects := Reduce(start, SessionAdopted{Payload: OpenSessionPayload{ID: "as-1", SessionID: "ms-1", AgentID: "a1"}})

	if s.AgentSessionID != "as-1" || s.MsgSessionID != "ms-1" {
		t.Errorf("identities = %q/%q", s.AgentSessionID, s.MsgSessionID)
	}
	if len(s.Messages) != 0 {
		t.Errorf("messages should be cleared, got %+v", s.Messages)
	}

	want := []Effect{
		FetchHistory{SessionID: "ms-1"},
		EmitSessionActive{Payload: SessionActivePayload{ID: "as-1", SessionID: "ms-1"}},
	}
	if diff := cmp.Diff(want, effects); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
}

func TestReduce_AdoptionSingleIdentityFillsBoth(t *testing.T) {
	s, _ := Reduce(NewChatState(), SessionAdopted{Payload: OpenSessionPayload{SessionID: "only"}})
	if s.AgentSessionID != "only" || s.MsgSessionID != "only" {
		t.Errorf("identities = %q/%q, want only/only", s.AgentSessionID, s.MsgSessionID)
	}
}

func TestReduce_AdoptionModelDefaultTemperature(t *testing.T) {
	start := NewChatState()
	start.Temperature = 1.5
	s, _ := Reduce(start, SessionAdopted{Payload: OpenSessionPayload{ID: "s1", Model: &ModelRef{ID: "m1"}}})
	if s.Temperature != DefaultTemperature {
		t.Errorf("Temperature = %v, want %v", s.Temperature, DefaultTemperature)
	}
}

func TestReduce_AdoptionKeepsZeroTemperature(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"type":"OPEN_SESSION","payload":{"id":"s1","model":{"id":"m1","temperature":0}}}`))
	if err != nil {
		t.Fatalf("DecodeEnvelope() error = %v", err)
	}
	payload, err := env.OpenSession()
	if err != nil {
		t.Fatalf("OpenSession() error = %v", err)
	}

	s, _ := Reduce(NewChatState(), SessionAdopted{Payload: payload})
	if s.SelectedModel != "m1" || s.Temperature != 0 {
		t.Errorf("selection = model %q temp %v, want m1 at 0", s.SelectedModel, s.Temperature)
	}
}

func TestReduce_RestoredTemperature(t *testing.T) {
	tests := []struct {
		name  string
		state PersistedState
		want  float64
	}{
		{name: "zero kept", state: PersistedState{SelectedModel: "m1", Temperature: Float64(0)}, want: 0},
		{name: "value kept", state: PersistedState{SelectedModel: "m1", Temperature: Float64(1.3)}, want: 1.3},
		{name: "absent uses default", state: PersistedState{SelectedModel: "m1"}, want: DefaultTemperature},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := Reduce(NewChatState(), Restored{Found: true, State: tt.state})
			if s.Temperature != tt.want {
				t.Errorf("Temperature = %v, want %v", s.Temperature, tt.want)
			}
		})
	}
}

func TestReduce_BlankSessionDefaultModel(t *testing.T) {
	catalog := CatalogLoaded{Models: []Model{{ID: "first"}, {ID: "second"}}}

	t.Run("catalog already loaded", func(t *testing.T) {
		s, _ := reduceAll(NewChatState(), catalog, SessionAdopted{Payload: OpenSessionPayload{ID: "s1"}})
		if s.SelectedModel != "first" || s.SelectedAgent != "" || s.PendingDefault {
			t.Errorf("state = %+v", s)
		}
	})

	t.Run("catalog loads later", func(t *testing.T) {
		s, _ := Reduce(ChatState{SelectedAgent: "a1"}, SessionAdopted{Payload: OpenSessionPayload{ID: "s1"}})
		if s.SelectedAgent != "" || !s.PendingDefault {
			t.Fatalf("state = %+v", s)
		}
		s, _ = Reduce(s, catalog)
		if s.SelectedModel != "first" {
			t.Errorf("SelectedModel = %q, want first", s.SelectedModel)
		}
	})

	t.Run("explicit pick is not clobbered", func(t *testing.T) {
		s, _ := reduceAll(NewChatState(),
			SessionAdopted{Payload: OpenSessionPayload{ID: "s1"}},
			TargetSelected{Target: Target{Kind: TargetAgent, ID: "a7"}},
			catalog,
		)
		if s.SelectedAgent != "a7" || s.SelectedModel != "" {
			t.Errorf("state = %+v", s)
		}
	})
}

func TestReduce_HistoryForStaleSessionDiscarded(t *testing.T) {
	s, _ := Reduce(NewChatState(), SessionAdopted{Payload: OpenSessionPayload{ID: "s2"}})
	s, _ = Reduce(s, HistoryLoaded{SessionID: "s1", Messages: []Message{{ID: "x"}}})
	if len(s.Messages) != 0 {
		t.Errorf("stale history applied: %+v", s.Messages)
	}
	s, _ = Reduce(s, HistoryLoaded{SessionID: "s2", Messages: []Message{{ID: "y"}}})
	if len(s.Messages) != 1 || s.Messages[0].ID != "y" {
		t.Errorf("current history not applied: %+v", s.Messages)
	}
}

func TestReduce_StaleHistoryReturnsLogNote(t *testing.T) {
	buf := captureLog(t)
	original := logLevel
	SetLogLevel(LogLevelDebug)
	defer SetLogLevel(original)

	s, _ := Reduce(NewChatState(), SessionAdopted{Payload: OpenSessionPayload{ID: "s2"}})
	_, effects := Reduce(s, HistoryLoaded{SessionID: "s1"})

	want := []Effect{LogNote{Level: LogLevelDebug, Message: "discarding history for s1, current session is s2"}}
	if diff := cmp.Diff(want, effects); diff != "" {
		t.Errorf("effects mismatch (-want +got):\n%s", diff)
	}
	if buf.Len() != 0 {
		t.Errorf("Reduce wrote to the log: %q", buf.String())
	}
}

func TestReduce_SessionIdentified(t *testing.T) {
	tests := []struct {
		name      string
		start     ChatState
		evt       SessionIdentified
		wantAgent string
		wantMsg   string
		wantEmit  bool
	}{
		{
			name:      "both identities",
			evt:       SessionIdentified{ID: "s1", SessionID: "m1"},
			wantAgent: "s1", wantMsg: "m1", wantEmit: true,
		},
		{
			name:      "id only falls back for message session",
			evt:       SessionIdentified{ID: "s1"},
			wantAgent: "s1", wantMsg: "s1", wantEmit: true,
		},
		{
			name:      "id only keeps known message session",
			start:     ChatState{AgentSessionID: "s1", MsgSessionID: "m1"},
			evt:       SessionIdentified{ID: "s2"},
			wantAgent: "s2", wantMsg: "m1", wantEmit: true,
		},
		{
			name:      "unchanged pair does not re-announce",
			start:     ChatState{AgentSessionID: "s1", MsgSessionID: "s1"},
			evt:       SessionIdentified{ID: "s1", SessionID: "s1"},
			wantAgent: "s1", wantMsg: "s1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, effects := Reduce(tt.start, tt.evt)
			if got.AgentSessionID != tt.wantAgent || got.MsgSessionID != tt.wantMsg {
				t.Errorf("identities = %q/%q, want %q/%q", got.AgentSessionID, got.MsgSessionID, tt.wantAgent, tt.wantMsg)
			}
			emits := effectsOfType[EmitSessionActive](effects)
			if (len(emits) == 1) != tt.wantEmit {
				t.Errorf("EmitSessionActive effects = %+v, want emit %v", emits, tt.wantEmit)
			}
		})
	}
}

func TestReduce_FailureMarking(t *testing.T) {
	sent, _ := Reduce(NewChatState(), SendStarted{User: Message{ID: "u-1", Sender: SenderUser, Content: "hi"}, PlaceholderID: "a-1"})

	t.Run("error event reports and marks failed", func(t *testing.T) {
		s, effects := Reduce(sent, StreamErrored{PlaceholderID: "a-1", Message: "quota exceeded"})
		if !s.Messages[1].Failed {
			t.Error("placeholder should be marked failed")
		}
		if len(s.Messages) != 2 {
			t.Error("error should not remove messages")
		}
		if diff := cmp.Diff([]Effect{ReportError{Message: "quota exceeded"}}, effects); diff != "" {
			t.Errorf("effects mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("stream ended empty", func(t *testing.T) {
		s, _ := Reduce(sent, StreamEnded{PlaceholderID: "a-1"})
		if !s.Messages[1].Failed {
			t.Error("empty placeholder should be marked failed at end of stream")
		}
	})

	t.Run("stream ended with content", func(t *testing.T) {
		s, _ := reduceAll(sent, DeltaReceived{PlaceholderID: "a-1", Delta: "ok"}, StreamEnded{PlaceholderID: "a-1"})
		if s.Messages[1].Failed {
			t.Error("placeholder with content should not be failed")
		}
	})

	t.Run("call failed keeps partial content", func(t *testing.T) {
		s, effects := reduceAll(sent,
			DeltaReceived{PlaceholderID: "a-1", Delta: "part"},
			StreamFailed{PlaceholderID: "a-1", Err: errors.New("SSE request failed: 502 Bad Gateway")},
		)
		if s.Messages[1].Content != "part" || !s.Messages[1].Failed {
			t.Errorf("placeholder = %+v", s.Messages[1])
		}
		if len(effectsOfType[ReportError](effects)) != 1 {
			t.Errorf("effects = %+v", effects)
		}
	})
}

func TestReduce_Resets(t *testing.T) {
	busy := ChatState{
		AgentSessionID: "s1", MsgSessionID: "s1",
		SelectedModel: "m1", Temperature: 1.1,
		Messages: []Message{{ID: "u-1"}},
	}

	s, _ := Reduce(busy, ConversationReset{})
	want := ChatState{SelectedModel: "m1", Temperature: 1.1}
	if diff := cmp.Diff(want, s, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("ConversationReset mismatch (-want +got):\n%s", diff)
	}

	s, _ = Reduce(busy, NewSessionStarted{})
	want = ChatState{Temperature: DefaultTemperature}
	if diff := cmp.Diff(want, s, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("NewSessionStarted mismatch (-want +got):\n%s", diff)
	}
}

func TestReduce_PersistOnlyAfterHydration(t *testing.T) {
	s, effects := Reduce(NewChatState(), TargetSelected{Target: Target{Kind: TargetModel, ID: "m1"}})
	if len(effectsOfType[Persist](effects)) != 0 {
		t.Error("no Persist effect expected before the state was restored")
	}

	s, effects = Reduce(s, Restored{Found: false})
	if len(effectsOfType[Persist](effects)) != 0 {
		t.Error("Restored itself should not persist")
	}

	s, effects = Reduce(s, TemperatureChanged{Value: 0.3})
	persists := effectsOfType[Persist](effects)
	if len(persists) != 1 || *persists[0].Snapshot.Temperature != 0.3 || persists[0].Snapshot.SelectedModel != "m1" {
		t.Errorf("Persist effects = %+v", persists)
	}

	_, effects = Reduce(s, TemperatureChanged{Value: 0.3})
	if len(effectsOfType[Persist](effects)) != 0 {
		t.Error("unchanged snapshot should not persist again")
	}
}

func TestReduce_RestoredAnnouncesSession(t *testing.T) {
	s, effects := Reduce(NewChatState(), Restored{Found: true, State: PersistedState{
		AgentSessionID: "s1", MsgSessionID: "s1", SelectedAgent: "a1", Temperature: Float64(0.7),
		Messages: []Message{{ID: "u-1", Sender: SenderUser, Content: "hi"}},
	}})
	if s.SelectedAgent != "a1" || len(s.Messages) != 1 || !s.Hydrated {
		t.Errorf("state = %+v", s)
	}
	emits := effectsOfType[EmitSessionActive](effects)
	if len(emits) != 1 || emits[0].Payload != (SessionActivePayload{ID: "s1", SessionID: "s1"}) {
		t.Errorf("EmitSessionActive effects = %+v", emits)
	}
}

func TestReduce_EndToEndModelSend(t *testing.T) {
	s, _ := reduceAll(NewChatState(),
		TargetSelected{Target: Target{Kind: TargetModel, ID: "m1"}},
		SendStarted{User: Message{ID: "u-1", Sender: SenderUser, Content: "hi"}, PlaceholderID: "a-1"},
	)
	if s.Messages[1].Content != "" {
		t.Fatalf("placeholder should start empty")
	}

	s, effects := reduceAll(s,
		DeltaReceived{PlaceholderID: "a-1", Delta: "He"},
		DeltaReceived{PlaceholderID: "a-1", Delta: "llo"},
		SessionIdentified{ID: "s1", SessionID: "s1"},
		StreamEnded{PlaceholderID: "a-1"},
	)

	if s.Messages[1].Content != "Hello" || s.Messages[1].Failed {
		t.Errorf("assistant message = %+v", s.Messages[1])
	}
	if s.AgentSessionID != "s1" {
		t.Errorf("AgentSessionID = %q, want s1", s.AgentSessionID)
	}
	if len(effectsOfType[EmitSessionActive](effects)) != 1 {
		t.Errorf("expected one SESSION_ACTIVE announcement, got %+v", effects)
	}
}
