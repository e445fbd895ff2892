package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenSource yields the current bearer token; an empty token means "not logged in".
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// APIClient talks to the assistant backend. REST calls use a bounded timeout,
// streaming calls run until the server closes the body.
type APIClient struct {
	baseURL string
	tokens  TokenSource
	rest    *http.Client
	stream  *http.Client
}

// NewAPIClient creates a client for baseURL
func NewAPIClient(baseURL string, tokens TokenSource, timeout time.Duration) *APIClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		rest:    &http.Client{Timeout: timeout},
		stream:  &http.Client{},
	}
}

// Token returns the current token
func (c *APIClient) Token(ctx context.Context) (string, error) {
	if c.tokens == nil {
		return "", nil
	}
	return c.tokens.Token(ctx)
}

// Models lists the raw models
func (c *APIClient) Models(ctx context.Context) ([]Model, error) {
	var models []Model
	if err := c.getJSON(ctx, "/models", &models); err != nil {
		return nil, err
	}
	return models, nil
}

// Agents lists the server-defined agents
func (c *APIClient) Agents(ctx context.Context) ([]Agent, error) {
	var agents []Agent
	if err := c.getJSON(ctx, "/ai-agents", &agents); err != nil {
		return nil, err
	}
	return agents, nil
}

// Sessions lists at most limit sessions
func (c *APIClient) Sessions(ctx context.Context, limit int) ([]AgentSession, error) {
	var sessions []AgentSession
	if err := c.getJSON(ctx, fmt.Sprintf("/ai-agents/sessions?limit=%d", limit), &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// SessionMessages returns the raw message history of a session
func (c *APIClient) SessionMessages(ctx context.Context, sessionID string) ([]HistoryRecord, error) {
	var records []HistoryRecord
	path := "/ai-agents/sessions/" + url.PathEscape(sessionID) + "/messages"
	if err := c.getJSON(ctx, path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Documents lists the user's documents without content
func (c *APIClient) Documents(ctx context.Context, limit int) ([]Document, error) {
	var docs []Document
	if err := c.getJSON(ctx, fmt.Sprintf("/simple-documents?skip=0&limit=%d", limit), &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// Document fetches one document with its content
func (c *APIClient) Document(ctx context.Context, id string) (Document, error) {
	var doc Document
	if err := c.getJSON(ctx, "/simple-documents/"+url.PathEscape(id), &doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// CurrentUser returns the authenticated account
func (c *APIClient) CurrentUser(ctx context.Context) (User, error) {
	var user User
	if err := c.getJSON(ctx, "/user", &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// Stream posts body to path and delivers the response events to onEvent
func (c *APIClient) Stream(ctx context.Context, path string, body interface{}, onEvent func(StreamEvent)) error {
	if c.baseURL == "" {
		return ErrBaseURLNotSet
	}
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return err
	}
	return StreamSSE(ctx, c.stream, c.baseURL+path, body, headers, onEvent)
}

func (c *APIClient) authHeaders(ctx context.Context) (map[string]string, error) {
	token, err := c.Token(ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

func (c *APIClient) getJSON(ctx context.Context, path string, out interface{}) error {
	if c.baseURL == "" {
		return ErrBaseURLNotSet
	}
	headers, err := c.authHeaders(ctx)
	if err != nil {
		return err
	}

	target := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.rest.Do(req)
	if err != nil {
		return &TransportError{Op: "get", URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{URL: target, Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
