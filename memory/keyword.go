package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/hupe1980/legalmesh/core"
)

type storedMemory struct {
	id       string
	content  string
	metadata map[string]any
	seq      int
}

// KeywordStore is a process-local MemoryStore. Search scores each snippet by
// the fraction of query words it contains; an empty query matches
// everything with score 1 in insertion order.
type KeywordStore struct {
	mu      sync.RWMutex
	storage map[string][]storedMemory
}

var _ core.MemoryStore = (*KeywordStore)(nil)

// NewKeywordStore creates an empty store.
func NewKeywordStore() *KeywordStore {
	return &KeywordStore{storage: make(map[string][]storedMemory)}
}

// Store appends a snippet to the session.
func (m *KeywordStore) Store(_ context.Context, sessionID, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seq := len(m.storage[sessionID])
	m.storage[sessionID] = append(m.storage[sessionID], storedMemory{
		id:       fmt.Sprintf("mem_%d", seq),
		content:  content,
		metadata: maps.Clone(metadata),
		seq:      seq,
	})

	return nil
}

// Search returns up to limit snippets sharing words with query, best first.
func (m *KeywordStore) Search(_ context.Context, sessionID, query string, limit int) ([]core.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	terms := words(query)

	type scored struct {
		mem   storedMemory
		score float64
	}

	var hits []scored

	for _, mem := range m.storage[sessionID] {
		if len(terms) == 0 {
			hits = append(hits, scored{mem, 1})
			continue
		}

		have := map[string]struct{}{}
		for _, w := range words(mem.content) {
			have[w] = struct{}{}
		}

		var matched int
		for _, t := range terms {
			if _, ok := have[t]; ok {
				matched++
			}
		}

		if matched > 0 {
			hits = append(hits, scored{mem, float64(matched) / float64(len(terms))})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].mem.seq > hits[j].mem.seq
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	results := make([]core.SearchResult, len(hits))
	for i, h := range hits {
		results[i] = core.SearchResult{
			ID:       h.mem.id,
			Content:  h.mem.content,
			Score:    h.score,
			Metadata: maps.Clone(h.mem.metadata),
		}
	}

	return results, nil
}

// Delete removes a stored snippet by id.
func (m *KeywordStore) Delete(sessionID, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	mems := m.storage[sessionID]
	for i, mem := range mems {
		if mem.id == memoryID {
			m.storage[sessionID] = append(mems[:i:i], mems[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("memory %s not found", memoryID)
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
