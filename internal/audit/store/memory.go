package store

import (
	"context"
	"sync"

	"github.com/AshishBhandari123/bvas-project/internal/audit"
)

// Memory is the in-memory trail used in dev mode and unit tests. It
// intentionally favors clarity over performance.
type Memory struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *Memory) List(_ context.Context, q audit.Query) ([]audit.Entry, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Entry
	// Newest first, matching the postgres ORDER BY performed_at DESC.
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if q.EntityType != "" && e.EntityType != q.EntityType {
			continue
		}
		if q.EntityID != "" && e.EntityID != q.EntityID {
			continue
		}
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		matched = append(matched, e)
	}

	total := len(matched)
	start := (q.Page - 1) * q.Limit
	if start >= total {
		return nil, total, nil
	}
	end := start + q.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}
