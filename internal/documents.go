package internal

import (
	"context"
	"sync"
)

// DocumentFetcher is the part of the backend the document cache needs
type DocumentFetcher interface {
	Documents(ctx context.Context, limit int) ([]Document, error)
	Document(ctx context.Context, id string) (Document, error)
}

// DocumentCache keeps the document list and the content of referenced documents.
// Content is fetched once per document and never refreshed afterwards, so a document
// edited on the backend keeps expanding to the content seen first.
type DocumentCache struct {
	api      DocumentFetcher
	reporter ErrorReporter
	limit    int

	mu      sync.Mutex
	docs    []Document
	content map[string]string
}

// NewDocumentCache creates an empty cache
func NewDocumentCache(api DocumentFetcher, reporter ErrorReporter, limit int) *DocumentCache {
	if limit <= 0 {
		limit = 100
	}
	return &DocumentCache{
		api:      api,
		reporter: reporter,
		limit:    limit,
		content:  make(map[string]string),
	}
}

// Refresh reloads the document list. Cached content is kept.
func (c *DocumentCache) Refresh(ctx context.Context) ([]Document, error) {
	docs, err := c.api.Documents(ctx, c.limit)
	if err != nil {
		return nil, err
	}
	c.SetDocuments(docs)
	return docs, nil
}

// SetDocuments replaces the known document list
func (c *DocumentCache) SetDocuments(docs []Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.docs = append([]Document(nil), docs...)
	for _, d := range docs {
		if d.Content != "" {
			if _, ok := c.content[d.ID]; !ok {
				c.content[d.ID] = d.Content
			}
		}
	}
}

// Documents returns the known documents
func (c *DocumentCache) Documents() []Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Document(nil), c.docs...)
}

// Lookup finds a known document by title
func (c *DocumentCache) Lookup(title string) (Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.docs {
		if d.Title == title {
			return d, true
		}
	}
	return Document{}, false
}

// Expand fetches the content of every referenced document not cached yet, then expands
// the placeholders. A document with empty content expands to an empty block; fetch
// failures are reported and leave that placeholder unexpanded.
func (c *DocumentCache) Expand(ctx context.Context, text string) string {
	for _, ref := range ReferencedDocuments(text, c.Documents()) {
		if c.cached(ref.ID) {
			continue
		}
		doc, err := c.api.Document(ctx, ref.ID)
		if err != nil {
			LogWarn("failed to fetch document %s: %v", ref.ID, err)
			reportErr(c.reporter, err)
			continue
		}
		c.store(ref.ID, doc.Content)
	}
	return ExpandDocumentPlaceholders(text, c.fetched())
}

func (c *DocumentCache) cached(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.content[id]
	return ok
}

func (c *DocumentCache) store(id, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.content[id]; !ok {
		c.content[id] = content
	}
}

// fetched returns the known documents whose content is cached, even when it is empty
func (c *DocumentCache) fetched() []Document {
	c.mu.Lock()
	defer c.mu.Unlock()
	docs := make([]Document, 0, len(c.docs))
	for _, d := range c.docs {
		content, ok := c.content[d.ID]
		if !ok {
			continue
		}
		d.Content = content
		docs = append(docs, d)
	}
	return docs
}
