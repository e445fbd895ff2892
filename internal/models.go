package internal

import (
	"strings"
	"time"
)

// Sender identifies who wrote a message
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Message is one turn of the displayed conversation.
// IDs are generated locally and do not have to match the backend.
type Message struct {
	ID      string `json:"id" yaml:"id"`
	Sender  Sender `json:"sender" yaml:"sender"`
	Content string `json:"content" yaml:"content"`
	// Failed marks an assistant placeholder whose stream errored or ended empty.
	Failed bool `json:"failed,omitempty" yaml:"failed,omitempty"`
}

// Model is a raw backend model usable with a temperature
type Model struct {
	ID   string `json:"id"`
	Icon string `json:"icon,omitempty"`
}

// AgentMeta describes a server-defined agent
type AgentMeta struct {
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// Agent is a named conversational persona with its own run/continue endpoints
type Agent struct {
	ID   string     `json:"id"`
	Meta *AgentMeta `json:"meta,omitempty"`
}

// DisplayName returns the agent name, falling back to its id
func (a Agent) DisplayName() string {
	if a.Meta != nil && a.Meta.Name != "" {
		return a.Meta.Name
	}
	return a.ID
}

// ModelRef selects a model and its temperature.
// A nil Temperature means the sender did not set one; 0 is a valid temperature.
type ModelRef struct {
	ID          string   `json:"id" yaml:"id"`
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// TemperatureOr returns the temperature, or def when none was set
func (m ModelRef) TemperatureOr(def float64) float64 {
	if m.Temperature == nil {
		return def
	}
	return *m.Temperature
}

// Float64 returns a pointer to v
func Float64(v float64) *float64 {
	return &v
}

// AgentSession is one entry of the session directory
type AgentSession struct {
	ID        string     `json:"id" yaml:"id"`
	SessionID string     `json:"sessionId,omitempty" yaml:"session_id,omitempty"`
	AgentID   string     `json:"agentId,omitempty" yaml:"agent_id,omitempty"`
	Meta      *AgentMeta `json:"meta,omitempty" yaml:"meta,omitempty"`
	Model     *ModelRef  `json:"model,omitempty" yaml:"model,omitempty"`
	Updated   string     `json:"updated,omitempty" yaml:"updated,omitempty"`
	Created   string     `json:"created,omitempty" yaml:"created,omitempty"`
}

// Label returns the list label: id followed by the trimmed name
func (s AgentSession) Label() string {
	if s.Meta == nil {
		return s.ID
	}
	name := strings.TrimSpace(s.Meta.Name)
	if name == "" {
		return s.ID
	}
	return s.ID + " " + name
}

// GetUpdatedAt parses the updated timestamp, falling back to created
func (s AgentSession) GetUpdatedAt() time.Time {
	for _, ts := range []string{s.Updated, s.Created} {
		if ts == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Document is a user document addressable by an @title placeholder
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content,omitempty"`
}

// User is the authenticated account
type User struct {
	ID       string `json:"id"`
	UserName string `json:"userName"`
}

// Transcript is a session with its normalized history, as shown and exported
type Transcript struct {
	ID           string    `json:"id" yaml:"id"`
	MsgSessionID string    `json:"msg_session_id,omitempty" yaml:"msg_session_id,omitempty"`
	Label        string    `json:"label,omitempty" yaml:"label,omitempty"`
	AgentID      string    `json:"agent_id,omitempty" yaml:"agent_id,omitempty"`
	Model        *ModelRef `json:"model,omitempty" yaml:"model,omitempty"`
	FetchedAt    string    `json:"fetched_at,omitempty" yaml:"fetched_at,omitempty"`
	Messages     []Message `json:"messages" yaml:"messages"`
}
