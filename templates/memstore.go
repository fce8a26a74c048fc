package templates

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Ensure MemStore implements Store
var _ Store = (*MemStore)(nil)

// MemStore keeps template bodies in memory. It is safe for concurrent use.
type MemStore struct {
	mu        sync.RWMutex
	templates map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{templates: make(map[string]string)}
}

func (s *MemStore) Store(name, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[name] = body
}

func (s *MemStore) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.templates, name)
}

func (s *MemStore) Lookup(_ context.Context, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return body, nil
}

func (s *MemStore) List(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.templates))
	for name := range s.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
