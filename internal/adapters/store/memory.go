package store

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/dkeye/Parley/internal/domain"
)

// MemoryStore keeps messages and groups in maps. Reads and writes copy, so a
// caller can never mutate the stored entity.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[domain.MessageID]*domain.Message
	groups   map[domain.GroupID]*domain.Group
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[domain.MessageID]*domain.Message),
		groups:   make(map[domain.GroupID]*domain.Group),
	}
}

func (s *MemoryStore) CreateMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[m.ID]; ok {
		return fmt.Errorf("%w: %s", ErrMessageExists, m.ID)
	}
	s.messages[m.ID] = m.Clone()
	return nil
}

func (s *MemoryStore) FindMessage(_ context.Context, id domain.MessageID) (*domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrMessageNotFound, id)
	}
	return m.Clone(), nil
}

func (s *MemoryStore) UpdateMessage(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.messages[m.ID]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrMessageNotFound, m.ID)
	}
	s.messages[m.ID] = m.Clone()
	return nil
}

func (s *MemoryStore) FindGroup(_ context.Context, id domain.GroupID) (*domain.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrGroupNotFound, id)
	}
	cp := *g
	cp.Members = slices.Clone(g.Members)
	return &cp, nil
}

// PutGroup creates or replaces a group.
func (s *MemoryStore) PutGroup(_ context.Context, g domain.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g.Members = slices.Clone(g.Members)
	s.groups[g.ID] = &g
	return nil
}
