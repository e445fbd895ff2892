package internal

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const documentsSchema = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	collection TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
)`

// OpenDatabase opens (creating when needed) the sidecar SQLite database.
// path may be ":memory:".
func OpenDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Writes are serialized by the mirror and an in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := db.Exec(documentsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create documents table: %w", err)
	}

	return db, nil
}

// queryDocuments returns the documents of a collection in insertion order
func queryDocuments(ctx context.Context, db *sql.DB, collection string) ([]DocumentRow, error) {
	query := "SELECT id, body, created_at, updated_at FROM documents WHERE collection = ? ORDER BY rowid"
	rows, err := db.QueryContext(ctx, query, collection)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var docs []DocumentRow
	for rows.Next() {
		var row DocumentRow
		var body sql.NullString
		if err := rows.Scan(&row.ID, &body, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if body.Valid {
			row.Body = body.String
			docs = append(docs, row)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return docs, nil
}

// DocumentRow is one stored document as kept in the documents table
type DocumentRow struct {
	ID        string
	Body      string
	CreatedAt int64
	UpdatedAt int64
}
