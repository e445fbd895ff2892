package internal

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/iksnae/wize-panels/testutil"
)

func TestNewStorage(t *testing.T) {
	db := testutil.CreateInMemoryDB(t)
	defer func() { _ = db.Close() }()

	storage := NewStorage(db)
	if storage == nil {
		t.Fatal("NewStorage() returned nil")
	}
	if storage.db != db {
		t.Error("NewStorage() did not set database correctly")
	}
}

func TestStorage_CreateListUpdate(t *testing.T) {
	db := testutil.CreateInMemoryDB(t)
	defer func() { _ = db.Close() }()
	storage := NewStorage(db)
	ctx := context.Background()

	created, err := storage.Create(ctx, "chat_state", map[string]string{"selectedModel": "m1"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.ID == "" {
		t.Fatal("Create() returned empty id")
	}

	if err := storage.Update(ctx, "chat_state", created.ID, map[string]string{"selectedModel": "m2"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	docs, err := storage.List(ctx, "chat_state")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("List() returned %d documents, want 1", len(docs))
	}

	var body map[string]string
	if err := json.Unmarshal(docs[0].Body, &body); err != nil {
		t.Fatalf("stored body is not JSON: %v", err)
	}
	if body["selectedModel"] != "m2" {
		t.Errorf("selectedModel = %q, want m2", body["selectedModel"])
	}
}

func TestStorage_ListInsertionOrder(t *testing.T) {
	db := testutil.CreateInMemoryDB(t)
	defer func() { _ = db.Close() }()
	storage := NewStorage(db)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		doc, err := storage.Create(ctx, "chat_state", map[string]int{"n": i})
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		ids = append(ids, doc.ID)
	}

	docs, err := storage.List(ctx, "chat_state")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	for i := range ids {
		if docs[i].ID != ids[i] {
			t.Errorf("docs[%d].ID = %q, want %q", i, docs[i].ID, ids[i])
		}
	}
}

func TestStorage_UpdateMissing(t *testing.T) {
	db := testutil.CreateInMemoryDB(t)
	defer func() { _ = db.Close() }()

	err := NewStorage(db).Update(context.Background(), "chat_state", "nope", map[string]string{})
	var persistErr *PersistenceError
	if !errors.As(err, &persistErr) {
		t.Fatalf("Update() error = %v, want *PersistenceError", err)
	}
	if persistErr.Op != "update" {
		t.Errorf("Op = %q, want update", persistErr.Op)
	}
}

func TestStorage_List_SkipsMalformed(t *testing.T) {
	db := testutil.CreateInMemoryDB(t)
	defer func() { _ = db.Close() }()

	testutil.InsertDocument(t, db, "bad", "chat_state", "not valid json")
	testutil.InsertDocument(t, db, "good", "chat_state", `{"selectedAgent":"a1"}`)

	docs, err := NewStorage(db).List(context.Background(), "chat_state")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "good" {
		t.Errorf("List() = %+v, want only the valid document", docs)
	}
}
