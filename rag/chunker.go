package rag

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/clipperhouse/uax29/sentences"

	"github.com/hupe1980/legalmesh/model"
)

// DefaultSimilarityThreshold is the cosine similarity above which adjacent
// sentences are merged into one chunk.
const DefaultSimilarityThreshold = 0.85

// SplitSentences segments text into trimmed, non-empty sentences following
// the Unicode sentence boundary rules.
func SplitSentences(text string) []string {
	seg := sentences.NewSegmenter([]byte(text))

	var out []string
	for seg.Next() {
		if s := strings.TrimSpace(seg.Text()); s != "" {
			out = append(out, s)
		}
	}

	return out
}

// SemanticChunks greedily merges adjacent sentences while the similarity of
// each sentence to its predecessor exceeds threshold.
func SemanticChunks(ctx context.Context, embedder model.Embedder, sents []string, threshold float64) ([]string, error) {
	if len(sents) == 0 {
		return nil, nil
	}

	vecs, err := embedder.Embed(ctx, sents)
	if err != nil {
		return nil, fmt.Errorf("embed sentences: %w", err)
	}

	if len(vecs) != len(sents) {
		return nil, fmt.Errorf("embed sentences: got %d vectors for %d sentences", len(vecs), len(sents))
	}

	var (
		chunks  []string
		current = []string{sents[0]}
	)

	for i := 1; i < len(sents); i++ {
		if Cosine(vecs[i-1], vecs[i]) > threshold {
			current = append(current, sents[i])
			continue
		}

		chunks = append(chunks, strings.Join(current, " "))
		current = []string{sents[i]}
	}

	chunks = append(chunks, strings.Join(current, " "))

	return chunks, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector or their lengths differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}

	if na == 0 || nb == 0 {
		return 0
	}

	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
