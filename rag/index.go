package rag

import (
	"context"
	"fmt"
	"runtime"

	"github.com/philippgille/chromem-go"

	"github.com/hupe1980/legalmesh/model"
)

// Index is a throwaway vector index over the chunks of one document.
type Index struct {
	col      *chromem.Collection
	embedder model.Embedder
}

// NewIndex embeds chunks and loads them into a fresh in-memory collection.
func NewIndex(ctx context.Context, embedder model.Embedder, chunks []string) (*Index, error) {
	ix := &Index{embedder: embedder}

	col, err := chromem.NewDB().CreateCollection("document", nil, ix.embedOne)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	ix.col = col

	if len(chunks) == 0 {
		return ix, nil
	}

	vecs, err := embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	if len(vecs) != len(chunks) {
		return nil, fmt.Errorf("embed chunks: got %d vectors for %d chunks", len(vecs), len(chunks))
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		docs[i] = chromem.Document{
			ID:        fmt.Sprintf("chunk_%d", i),
			Content:   c,
			Embedding: vecs[i],
		}
	}

	if err := col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}

	return ix, nil
}

func (ix *Index) embedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := ix.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one text", len(vecs))
	}

	return vecs[0], nil
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return ix.col.Count() }

// RetrieveMMR over-fetches min(fetchK, Len) candidates by similarity and
// returns k of them chosen by maximal marginal relevance.
func (ix *Index) RetrieveMMR(ctx context.Context, query string, k, fetchK int, lambda float64) ([]string, error) {
	n := ix.Len()
	if n == 0 || k <= 0 {
		return nil, nil
	}

	fetchK = min(max(fetchK, k), n)

	qvec, err := ix.embedOne(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	res, err := ix.col.QueryEmbedding(ctx, qvec, fetchK, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	cands := make([][]float32, len(res))
	for i, r := range res {
		cands[i] = r.Embedding
	}

	picked := MMR(qvec, cands, k, lambda)

	out := make([]string, len(picked))
	for i, idx := range picked {
		out[i] = res[idx].Content
	}

	return out, nil
}
