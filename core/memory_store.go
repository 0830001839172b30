package core

import "context"

// SearchResult is a recalled memory item with a relevance score.
type SearchResult struct {
	ID       string
	Content  string
	Score    float64
	Metadata map[string]any
}

// MemoryStore keeps per-session snippets (prior answers) and recalls the ones
// most relevant to a query.
type MemoryStore interface {
	Store(ctx context.Context, sessionID, content string, metadata map[string]any) error
	Search(ctx context.Context, sessionID, query string, limit int) ([]SearchResult, error)
}
