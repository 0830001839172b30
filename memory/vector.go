package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/hupe1980/legalmesh/core"
	"github.com/hupe1980/legalmesh/model"
)

// VectorStore is a MemoryStore backed by an in-process chromem-go database.
// Each session gets its own collection.
type VectorStore struct {
	db       *chromem.DB
	embedder model.Embedder

	mu   sync.Mutex
	seqs map[string]int
}

var _ core.MemoryStore = (*VectorStore)(nil)

// NewVectorStore creates a store embedding snippets with embedder.
func NewVectorStore(embedder model.Embedder) *VectorStore {
	return &VectorStore{
		db:       chromem.NewDB(),
		embedder: embedder,
		seqs:     make(map[string]int),
	}
}

func (s *VectorStore) collection(sessionID string) (*chromem.Collection, error) {
	return s.db.GetOrCreateCollection("memory_"+sessionID, nil, s.embed)
}

func (s *VectorStore) embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one text", len(vecs))
	}

	return vecs[0], nil
}

// Store embeds content and adds it to the session collection.
func (s *VectorStore) Store(ctx context.Context, sessionID, content string, metadata map[string]any) error {
	col, err := s.collection(sessionID)
	if err != nil {
		return fmt.Errorf("memory collection: %w", err)
	}

	s.mu.Lock()
	seq := s.seqs[sessionID]
	s.seqs[sessionID] = seq + 1
	s.mu.Unlock()

	md := make(map[string]string, len(metadata)+1)
	for k, v := range metadata {
		md[k] = fmt.Sprint(v)
	}
	md["seq"] = strconv.Itoa(seq)

	if err := col.AddDocument(ctx, chromem.Document{
		ID:       fmt.Sprintf("mem_%d", seq),
		Content:  content,
		Metadata: md,
	}); err != nil {
		return fmt.Errorf("memory store: %w", err)
	}

	return nil
}

// Search returns up to limit snippets ranked by cosine similarity to query.
func (s *VectorStore) Search(ctx context.Context, sessionID, query string, limit int) ([]core.SearchResult, error) {
	col, err := s.collection(sessionID)
	if err != nil {
		return nil, fmt.Errorf("memory collection: %w", err)
	}

	n := col.Count()
	if n == 0 {
		return []core.SearchResult{}, nil
	}

	if limit <= 0 || limit > n {
		limit = n
	}

	res, err := col.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("memory search: %w", err)
	}

	out := make([]core.SearchResult, len(res))
	for i, r := range res {
		md := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			md[k] = v
		}

		out[i] = core.SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    float64(r.Similarity),
			Metadata: md,
		}
	}

	return out, nil
}
