package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/iksnae/wize-panels/internal"
)

// historySource is the part of the backend transcripts are built from
type historySource interface {
	Sessions(ctx context.Context, limit int) ([]internal.AgentSession, error)
	SessionMessages(ctx context.Context, sessionID string) ([]internal.HistoryRecord, error)
}

// fetchTranscript loads the history of the session id (or sessionId) found in the listing.
// Ids missing from the listing are fetched as message session ids.
func fetchTranscript(ctx context.Context, api historySource, id string, limit int) (*internal.Transcript, error) {
	sessions, err := api.Sessions(ctx, limit)
	if err != nil {
		internal.LogWarn("Session list unavailable, fetching %s directly: %v", id, err)
	}
	session, err := pickSession(sessions, id)
	if err != nil {
		session = internal.AgentSession{ID: id, SessionID: id}
	}
	return transcriptFor(ctx, api, session)
}

func transcriptFor(ctx context.Context, api historySource, session internal.AgentSession) (*internal.Transcript, error) {
	msgSessionID := internal.OpenSessionPayloadFor(session).SessionID
	records, err := api.SessionMessages(ctx, msgSessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages of %s: %w", session.ID, err)
	}

	return &internal.Transcript{
		ID:           session.ID,
		MsgSessionID: msgSessionID,
		Label:        session.Label(),
		AgentID:      session.AgentID,
		Model:        session.Model,
		FetchedAt:    time.Now().UTC().Format(time.RFC3339),
		Messages:     internal.NewNormalizer().NormalizeHistory(records),
	}, nil
}
