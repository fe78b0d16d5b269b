package state

import (
	"time"

	"github.com/google/uuid"

	"portfel/internal/cache"
)

// Store maps visitor ids to their AppState. Idle visitors are forgotten
// after the configured TTL; the least recently seen visitor is dropped when
// the store is full.
type Store struct {
	visitors *cache.LRUCache[*AppState]
}

func NewStore(maxVisitors int, idleTTL time.Duration) *Store {
	return &Store{visitors: cache.NewLRUCache[*AppState](maxVisitors, idleTTL)}
}

// Get returns the live state of visitor id.
func (s *Store) Get(id string) (*AppState, bool) {
	if id == "" {
		return nil, false
	}
	return s.visitors.Get(id)
}

// Acquire returns the state of visitor id, or a new visitor with a fresh
// random id when id is unknown or expired. Unknown ids are never adopted.
// The bool reports whether a new visitor was created.
func (s *Store) Acquire(id string) (*AppState, bool, error) {
	if st, ok := s.Get(id); ok {
		return st, false, nil
	}
	st, err := NewAppState(uuid.NewString())
	if err != nil {
		return nil, false, err
	}
	s.visitors.Set(st.ID, st)
	return st, true, nil
}

func (s *Store) Forget(id string) {
	s.visitors.Delete(id)
}

func (s *Store) Len() int {
	return s.visitors.Size()
}

// Cleaner exposes the underlying cache for periodic sweeping.
func (s *Store) Cleaner() cache.Cleaner {
	return s.visitors
}
