package persona

import "fmt"

// Store exposes persona retrieval for the chat service and HTTP handlers.
type Store interface {
	List() []Summary
	Get(key string) (Persona, error)
	DefaultKey() string
}

// MemoryStore implements Store with an immutable in-memory index.
type MemoryStore struct {
	items      []Persona
	index      map[string]int
	defaultKey string
}

// NewMemoryStore returns a MemoryStore preloaded with the supplied personas.
// defaultKey must name one of them.
func NewMemoryStore(items []Persona, defaultKey string) (*MemoryStore, error) {
	s := &MemoryStore{
		items: append([]Persona(nil), items...),
		index: make(map[string]int, len(items)),
	}
	for i, item := range s.items {
		s.index[item.Key] = i
	}
	if _, ok := s.index[defaultKey]; !ok {
		return nil, fmt.Errorf("default persona %q: %w", defaultKey, ErrUnknownPersona)
	}
	s.defaultKey = defaultKey
	return s, nil
}

// NewSeedStore returns a MemoryStore holding the built-in personas.
func NewSeedStore() *MemoryStore {
	items, def := Seed()
	s, err := NewMemoryStore(items, def)
	if err != nil {
		panic(err)
	}
	return s
}

// List returns the personas in declaration order.
func (s *MemoryStore) List() []Summary {
	out := make([]Summary, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item.Summary())
	}
	return out
}

// Get looks up a persona by key.
func (s *MemoryStore) Get(key string) (Persona, error) {
	i, ok := s.index[key]
	if !ok {
		return Persona{}, fmt.Errorf("persona %q: %w", key, ErrUnknownPersona)
	}
	return s.items[i], nil
}

// DefaultKey returns the persona used when a session names none.
func (s *MemoryStore) DefaultKey() string {
	return s.defaultKey
}
