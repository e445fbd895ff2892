package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// Deduplicator removes duplicate sessions from a listing
type Deduplicator struct{}

// NewDeduplicator creates a new Deduplicator
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Deduplicate keeps the first entry of every session identity, preserving order
func (d *Deduplicator) Deduplicate(sessions []AgentSession) []AgentSession {
	seen := make(map[string]bool)
	unique := make([]AgentSession, 0, len(sessions))

	for _, session := range sessions {
		hash := d.hashSessionIdentity(session)
		if !seen[hash] {
			seen[hash] = true
			unique = append(unique, session)
		}
	}

	return unique
}

// hashSessionIdentity hashes the agent-session id and its message-session id
func (d *Deduplicator) hashSessionIdentity(session AgentSession) string {
	h := sha256.New()

	h.Write([]byte(session.ID))
	h.Write([]byte{0})
	h.Write([]byte(firstNonEmpty(session.SessionID, session.ID)))

	return hex.EncodeToString(h.Sum(nil))
}
