package cookiestore

import (
	"context"
	"sync"
)

// MemoryStore keeps jars for the life of the process.
type MemoryStore struct {
	mu   sync.Mutex
	jars map[string][]Cookie
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jars: make(map[string][]Cookie)}
}

func (s *MemoryStore) Load(_ context.Context, key string) ([]Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.jars[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]Cookie(nil), c...), nil
}

func (s *MemoryStore) Save(_ context.Context, key string, cookies []Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jars[key] = append([]Cookie(nil), cookies...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jars, key)
	return nil
}
