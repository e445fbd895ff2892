package internal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DocumentStore is the key-value document store behind the persistence sidecar
type DocumentStore interface {
	List(ctx context.Context, collection string) ([]StoredDocument, error)
	Create(ctx context.Context, collection string, doc interface{}) (StoredDocument, error)
	Update(ctx context.Context, collection, id string, doc interface{}) error
}

// StoredDocument is a document with its opaque id
type StoredDocument struct {
	ID   string
	Body json.RawMessage
}

// Storage is the SQLite DocumentStore
type Storage struct {
	db  *sql.DB
	now func() time.Time
}

// NewStorage creates a new Storage instance
func NewStorage(db *sql.DB) *Storage {
	return &Storage{db: db, now: time.Now}
}

// List returns the documents of a collection, oldest first
func (s *Storage) List(ctx context.Context, collection string) ([]StoredDocument, error) {
	rows, err := queryDocuments(ctx, s.db, collection)
	if err != nil {
		return nil, &PersistenceError{Collection: collection, Op: "list", Err: err}
	}

	docs := make([]StoredDocument, 0, len(rows))
	for _, row := range rows {
		if !json.Valid([]byte(row.Body)) {
			LogWarn("skipping malformed document %s in %s", row.ID, collection)
			continue
		}
		docs = append(docs, StoredDocument{ID: row.ID, Body: json.RawMessage(row.Body)})
	}
	return docs, nil
}

// Create stores doc under a fresh id
func (s *Storage) Create(ctx context.Context, collection string, doc interface{}) (StoredDocument, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return StoredDocument{}, &PersistenceError{Collection: collection, Op: "create", Err: err}
	}

	id := uuid.NewString()
	ts := s.now().UnixMilli()
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (id, collection, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		id, collection, string(body), ts, ts)
	if err != nil {
		return StoredDocument{}, &PersistenceError{Collection: collection, Op: "create", Err: err}
	}
	return StoredDocument{ID: id, Body: body}, nil
}

// Update replaces the body of an existing document
func (s *Storage) Update(ctx context.Context, collection, id string, doc interface{}) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return &PersistenceError{Collection: collection, Op: "update", Err: err}
	}

	res, err := s.db.ExecContext(ctx,
		"UPDATE documents SET body = ?, updated_at = ? WHERE collection = ? AND id = ?",
		string(body), s.now().UnixMilli(), collection, id)
	if err != nil {
		return &PersistenceError{Collection: collection, Op: "update", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return &PersistenceError{Collection: collection, Op: "update", Err: fmt.Errorf("document %s not found", id)}
	}
	return nil
}
