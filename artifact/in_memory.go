package artifact

import (
	"slices"
	"sync"
)

type key struct{ session, id string }

// InMemoryStore keeps artifacts in process memory. Bytes are copied on Save
// and Get so callers cannot mutate stored content.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[key][]byte
}

// NewInMemoryStore returns an empty in-memory artifact store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{blobs: make(map[key][]byte)}
}

// Save stores or overwrites the artifact bytes.
func (s *InMemoryStore) Save(sessionID, artifactID string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key{sessionID, artifactID}] = slices.Clone(data)
	return nil
}

// Get returns a copy of the artifact bytes or ErrNotFound.
func (s *InMemoryStore) Get(sessionID, artifactID string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[key{sessionID, artifactID}]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

// List returns the sorted artifact ids stored for the session.
func (s *InMemoryStore) List(sessionID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := []string{}
	for k := range s.blobs {
		if k.session == sessionID {
			ids = append(ids, k.id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Delete removes the artifact or returns ErrNotFound.
func (s *InMemoryStore) Delete(sessionID, artifactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key{sessionID, artifactID}
	if _, ok := s.blobs[k]; !ok {
		return ErrNotFound
	}
	delete(s.blobs, k)
	return nil
}
