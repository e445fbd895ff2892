package testutil

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

const documentsTableSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

// CreateInMemoryDB creates an in-memory SQLite database with the documents table
func CreateInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	// every connection would get its own empty in-memory database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(documentsTableSQL); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to create documents table: %v", err)
	}

	return db
}

// CreateTestDB creates a test database with sample documents:
// doc-1 and doc-2 in chat_state, doc-3 in settings.
func CreateTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db := CreateInMemoryDB(t)

	docs := []struct {
		id, collection, body string
	}{
		{"doc-1", "chat_state", `{"agentSessionId":"old","messages":[]}`},
		{"doc-2", "chat_state", `{"agentSessionId":"s1","msgSessionId":"s1","selectedModel":"m1","temperature":0.2,"messages":[{"id":"u-1","sender":"user","content":"hi"}]}`},
		{"doc-3", "settings", `{"theme":"dark"}`},
	}
	for _, d := range docs {
		InsertDocument(t, db, d.id, d.collection, d.body)
	}

	return db
}

// InsertDocument inserts a raw document row
func InsertDocument(t *testing.T, db *sql.DB, id, collection, body string) {
	t.Helper()
	ts := time.Now().UnixMilli()
	_, err := db.Exec("INSERT INTO documents (id, collection, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		id, collection, body, ts, ts)
	if err != nil {
		t.Fatalf("Failed to insert document %s: %v", id, err)
	}
}
