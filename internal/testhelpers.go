package internal

import (
	"time"
)

// CreateTestAgentSession creates an agent session listing entry with sample data
func CreateTestAgentSession(id string) AgentSession {
	return AgentSession{
		ID:        id,
		SessionID: id,
		AgentID:   "agent-" + id,
		Meta:      &AgentMeta{Name: "Test Conversation"},
		Updated:   time.Now().UTC().Format(time.RFC3339),
	}
}

// CreateTestTranscript creates a transcript with a short exchange
func CreateTestTranscript(id string) *Transcript {
	return &Transcript{
		ID:        id,
		Label:     id + " Test Conversation",
		AgentID:   "agent-" + id,
		FetchedAt: time.Now().UTC().Format(time.RFC3339),
		Messages: []Message{
			{ID: "u-1", Sender: SenderUser, Content: "Hello, how are you?"},
			{ID: "a-1", Sender: SenderAssistant, Content: "I'm doing well, thank you!"},
		},
	}
}

// CreateTestTranscriptWithMessages creates a transcript with custom messages
func CreateTestTranscriptWithMessages(id string, messages []Message) *Transcript {
	return &Transcript{
		ID:       id,
		Messages: messages,
	}
}
