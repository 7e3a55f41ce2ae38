package audit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps the newest max entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	max     int
	now     func() time.Time
}

const defaultMemoryEntries = 1024

func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = defaultMemoryEntries
	}
	return &MemoryStore{max: max, now: time.Now}
}

func (s *MemoryStore) Append(_ context.Context, entry Entry) (Entry, error) {
	if s == nil {
		return Entry{}, fmt.Errorf("store is nil")
	}
	entry, err := prepare(entry, s.now())
	if err != nil {
		return Entry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	if over := len(s.entries) - s.max; over > 0 {
		s.entries = append([]Entry(nil), s.entries[over:]...)
	}
	return entry, nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]Entry, error) {
	if s == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := min(limit, len(s.entries))
	out := make([]Entry, 0, n)
	for i := len(s.entries) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.entries[i])
	}
	return out, nil
}
