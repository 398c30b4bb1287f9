package persona

import (
	"context"
	"sort"
	"sync"
)

// Source resolves persona ids to profiles.
type Source interface {
	GetPersona(ctx context.Context, id string) (*Persona, error)
}

// StaticSource is an in-memory Source.
type StaticSource struct {
	mu       sync.RWMutex
	personas map[string]*Persona
}

// NewStaticSource creates a source holding the given personas.
func NewStaticSource(personas ...*Persona) *StaticSource {
	s := &StaticSource{personas: make(map[string]*Persona, len(personas))}
	for _, p := range personas {
		s.personas[p.ID] = p
	}
	return s
}

// GetPersona returns a copy so callers cannot mutate the stored profile.
func (s *StaticSource) GetPersona(_ context.Context, id string) (*Persona, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.personas[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Put validates and stores p, replacing any persona with the same id.
func (s *StaticSource) Put(p *Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.personas[p.ID] = p
	return nil
}

// IDs returns the known persona ids in sorted order.
func (s *StaticSource) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.personas))
	for id := range s.personas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
