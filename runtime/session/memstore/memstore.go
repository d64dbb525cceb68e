// Package memstore is the default in-process session.Store, grounded on the
// teacher's session/inmem.Store: a concurrency-safe map guarded by a single
// RWMutex, with clone-on-read values. It adds per-entry TTL that refreshes
// on every touch and is swept lazily on access, since §4.6 requires expired
// entries to be dropped "opaquely" rather than via a background reaper.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/keyveloper/coin-news-go/runtime/query"
	"github.com/keyveloper/coin-news-go/runtime/session"
)

// DefaultTTL is the expiry used when no WithTTL option is supplied.
const DefaultTTL = 30 * time.Minute

type (
	// Clock returns the current time; overridable in tests.
	Clock func() time.Time

	// Option configures a Store.
	Option func(*Store)

	entry struct {
		ctx       *query.SessionContext
		history   []session.Message
		expiresAt time.Time
	}

	// Store is the in-process session.Store implementation.
	Store struct {
		mu      sync.RWMutex
		entries map[string]*entry
		ttl     time.Duration
		clock   Clock
	}
)

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// WithClock overrides the wall clock used for TTL bookkeeping.
func WithClock(c Clock) Option {
	return func(s *Store) { s.clock = c }
}

// New returns an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries: make(map[string]*entry),
		ttl:     DefaultTTL,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load implements session.Store.
func (s *Store) Load(_ context.Context, sessionID string) (*query.SessionContext, []session.Message, error) {
	if sessionID == "" {
		return nil, nil, session.ErrSessionIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.liveEntry(sessionID)
	if !ok {
		return &query.SessionContext{}, nil, nil
	}
	e.expiresAt = s.clock().Add(s.ttl)
	return e.ctx.Clone(), append([]session.Message(nil), e.history...), nil
}

// AppendMessage implements session.Store.
func (s *Store) AppendMessage(_ context.Context, sessionID, role, content string) error {
	if sessionID == "" {
		return session.ErrSessionIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreate(sessionID)
	e.history = append(e.history, session.Message{Role: role, Content: content, At: s.clock()})
	e.ctx.MessageCount++
	e.expiresAt = s.clock().Add(s.ttl)
	return nil
}

// UpdateContext implements session.Store.
func (s *Store) UpdateContext(_ context.Context, sessionID string, patch session.ContextPatch) error {
	if sessionID == "" {
		return session.ErrSessionIDRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrCreate(sessionID)
	patch.Apply(e.ctx)
	e.expiresAt = s.clock().Add(s.ttl)
	return nil
}

// liveEntry returns the entry for sessionID if present and not expired,
// dropping it opaquely (per §4.6) if its TTL has lapsed. Callers must hold
// s.mu for writing.
func (s *Store) liveEntry(sessionID string) (*entry, bool) {
	e, ok := s.entries[sessionID]
	if !ok {
		return nil, false
	}
	if s.clock().After(e.expiresAt) {
		delete(s.entries, sessionID)
		return nil, false
	}
	return e, true
}

func (s *Store) getOrCreate(sessionID string) *entry {
	if e, ok := s.liveEntry(sessionID); ok {
		return e
	}
	e := &entry{ctx: &query.SessionContext{}, expiresAt: s.clock().Add(s.ttl)}
	s.entries[sessionID] = e
	return e
}
