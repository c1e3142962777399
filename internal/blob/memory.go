package blob

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/AshishBhandari123/bvas-project/pkg/platform/sentinel"
)

// Memory keeps blobs in a map. Test and dev use only.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func (s *Memory) Save(_ context.Context, originalName string, content io.Reader) (string, error) {
	data, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	handle := newHandle(originalName)
	s.mu.Lock()
	s.blobs[handle] = data
	s.mu.Unlock()
	return handle, nil
}

func (s *Memory) Open(_ context.Context, handle string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.blobs[handle]
	s.mu.RUnlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *Memory) Release(_ context.Context, handle string) error {
	s.mu.Lock()
	delete(s.blobs, handle)
	s.mu.Unlock()
	return nil
}

// Len reports the number of stored blobs. Used by tests to assert release.
func (s *Memory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
