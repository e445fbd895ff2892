package testutil

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// CreateSQLiteFixture creates a SQLite state database file holding one chat_state document
func CreateSQLiteFixture(t *testing.T, dbPath string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		t.Fatalf("Failed to create fixture directory: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(documentsTableSQL); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	InsertDocument(t, db, "fixture-1", "chat_state",
		`{"agentSessionId":"s1","msgSessionId":"s1","selectedAgent":"a1","temperature":0.7,"messages":[{"id":"u-1","sender":"user","content":"Hello"},{"id":"a-1","sender":"assistant","content":"Hi there"}]}`)
}

// CreateTokenFixture writes the auth token file into filesDir
func CreateTokenFixture(t *testing.T, filesDir, token string) string {
	t.Helper()
	if err := os.MkdirAll(filesDir, 0755); err != nil {
		t.Fatalf("Failed to create files directory: %v", err)
	}
	path := filepath.Join(filesDir, "aiwize-token.txt")
	if err := os.WriteFile(path, []byte(token), 0600); err != nil {
		t.Fatalf("Failed to write token fixture: %v", err)
	}
	return path
}

// SampleSessionsJSON is a session list as returned by GET /ai-agents/sessions
const SampleSessionsJSON = `[
	{"id":"s1","sessionId":"s1","agentId":"a1","meta":{"name":"  Research  "},"updated":"2025-01-02T10:00:00Z"},
	{"id":"s2","sessionId":"m-s2","model":{"id":"m1","temperature":0.2},"updated":"2025-01-03T10:00:00Z"},
	{"id":"s1","sessionId":"s1","agentId":"a1","meta":{"name":"duplicate"}}
]`
