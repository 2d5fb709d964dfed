// Package session keeps conversation state in memory: which persona a session
// talks to and the sliding window of recent turns.
package session

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/zhouzirui/trailblazer/backend/internal/model/chat"
	"github.com/zhouzirui/trailblazer/backend/internal/model/persona"
)

// DefaultMaxTurns bounds the number of stored messages per session.
const DefaultMaxTurns = 12

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrInvalidRole     = errors.New("role cannot be stored in history")
)

// Options tunes a Store. Zero values select the defaults.
type Options struct {
	MaxTurns int
	// TTL evicts sessions idle for longer than this. Zero keeps sessions
	// for the lifetime of the process.
	TTL time.Duration
	Now func() time.Time
}

type entry struct {
	// turn is a one-slot semaphore held for a whole chat exchange.
	turn chan struct{}

	mu      sync.Mutex
	session chat.Session
}

func (e *entry) busy() bool {
	return len(e.turn) > 0
}

// Store owns every session record. Map access is guarded by mu; each record
// has its own lock so sessions never contend with one another.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	personas persona.Store
	maxTurns int
	ttl      time.Duration
	now      func() time.Time
}

// NewStore bootstraps an empty in-memory store.
func NewStore(personas persona.Store, opts Options) *Store {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		sessions: make(map[string]*entry),
		personas: personas,
		maxTurns: opts.MaxTurns,
		ttl:      opts.TTL,
		now:      opts.Now,
	}
}

// MaxTurns returns the history window size.
func (s *Store) MaxTurns() int {
	return s.maxTurns
}

// Create provisions a session bound to personaKey, or to the default persona
// when personaKey is empty.
func (s *Store) Create(_ context.Context, personaKey string) (chat.Session, error) {
	if personaKey == "" {
		personaKey = s.personas.DefaultKey()
	}
	if _, err := s.personas.Get(personaKey); err != nil {
		return chat.Session{}, err
	}

	id, err := newSessionID()
	if err != nil {
		return chat.Session{}, err
	}

	now := s.now().UTC()
	e := &entry{
		turn: make(chan struct{}, 1),
		session: chat.Session{
			ID:         id,
			PersonaKey: personaKey,
			History:    make([]chat.Message, 0, s.maxTurns),
			CreatedAt:  now,
			LastActive: now,
		},
	}

	s.mu.Lock()
	s.sessions[id] = e
	s.mu.Unlock()

	return snapshot(&e.session), nil
}

// Get returns a copy of the session.
func (s *Store) Get(_ context.Context, id string) (chat.Session, error) {
	e, err := s.lookup(id)
	if err != nil {
		return chat.Session{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(&e.session), nil
}

// SetPersona switches the persona used for future completions. History is
// left untouched.
func (s *Store) SetPersona(_ context.Context, id, personaKey string) error {
	e, err := s.lookup(id)
	if err != nil {
		return err
	}
	if _, err := s.personas.Get(personaKey); err != nil {
		return err
	}

	e.mu.Lock()
	e.session.PersonaKey = personaKey
	e.session.LastActive = s.now().UTC()
	e.mu.Unlock()
	return nil
}

// AppendTurn appends one message and drops the oldest messages beyond the
// window.
func (s *Store) AppendTurn(_ context.Context, id string, role chat.Role, content string) error {
	if !role.Storable() {
		return fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	e, err := s.lookup(id)
	if err != nil {
		return err
	}

	now := s.now().UTC()

	e.mu.Lock()
	defer e.mu.Unlock()

	history := append(e.session.History, chat.Message{
		ID:        ulid.Make().String(),
		Role:      role,
		Content:   content,
		CreatedAt: now,
	})
	if overflow := len(history) - s.maxTurns; overflow > 0 {
		trimmed := make([]chat.Message, s.maxTurns, s.maxTurns+1)
		copy(trimmed, history[overflow:])
		history = trimmed
	}
	e.session.History = history
	e.session.LastActive = now
	return nil
}

// Acquire serializes chat exchanges on one session. The returned release
// function must be called once the exchange is over.
func (s *Store) Acquire(ctx context.Context, id string) (func(), error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	select {
	case e.turn <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() { <-e.turn })
	}

	// The session may have been removed while we waited.
	s.mu.RLock()
	current := s.sessions[id]
	s.mu.RUnlock()
	if current != e {
		release()
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}

	e.mu.Lock()
	e.session.LastActive = s.now().UTC()
	e.mu.Unlock()

	return release, nil
}

// Delete removes a session. Missing sessions are ignored.
func (s *Store) Delete(_ context.Context, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Len reports the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many
// were evicted. Sessions with an exchange in flight are kept.
func (s *Store) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *Store) lookup(id string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("session %q: %w", id, ErrSessionNotFound)
	}

	if s.ttl > 0 && s.expired(e, s.now()) {
		s.mu.Lock()
		if s.sessions[id] == e {
			delete(s.sessions, id)
		}
		s.mu.Unlock()
		return nil, fmt.Errorf("session %q expired: %w", id, ErrSessionNotFound)
	}
	return e, nil
}

func (s *Store) expired(e *entry, now time.Time) bool {
	if s.ttl <= 0 || e.busy() {
		return false
	}
	e.mu.Lock()
	last := e.session.LastActive
	e.mu.Unlock()
	return now.Sub(last) > s.ttl
}

func snapshot(src *chat.Session) chat.Session {
	out := *src
	out.History = append([]chat.Message(nil), src.History...)
	return out
}

// newSessionID returns 128 random bits as lowercase hex.
func newSessionID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(u[:]), nil
}
