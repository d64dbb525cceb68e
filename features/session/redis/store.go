// Package redis is the multi-process session.Store backend: TTL is
// expressed natively via Redis SETEX/EXPIRE rather than reimplemented in
// application code, per §4.6.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/keyveloper/coin-news-go/runtime/query"
	"github.com/keyveloper/coin-news-go/runtime/session"
)

// DefaultTTL mirrors runtime/session/memstore.DefaultTTL so the two
// backends behave identically absent an explicit override.
const DefaultTTL = 30 * time.Minute

type (
	// Option configures a Store.
	Option func(*Store)

	// Store is the go-redis/v9-backed session.Store implementation.
	Store struct {
		client   *redis.Client
		ttl      time.Duration
		keyLocks keyMutexes
	}
)

// keyMutexes hands out one *sync.Mutex per session ID, lazily created and
// never removed. It serializes touchContext's load-mutate-SETEX sequence
// per key within this process, matching the interface contract's
// "Implementations must serialize writes per key" (runtime/session) the
// same way memstore's single mutex does for in-process callers; Redis alone
// does not serialize a GET followed by a later SETEX across goroutines.
type keyMutexes struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (k *keyMutexes) lock(sessionID string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*sync.Mutex)
	}
	l, ok := k.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		k.locks[sessionID] = l
	}
	k.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// WithTTL overrides DefaultTTL.
func WithTTL(d time.Duration) Option {
	return func(s *Store) { s.ttl = d }
}

// New wraps an existing *redis.Client. The caller owns the client's
// lifecycle (construction from REDIS_URL, Close on shutdown).
func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{client: client, ttl: DefaultTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func ctxKey(sessionID string) string  { return "coinnews:session:ctx:" + sessionID }
func histKey(sessionID string) string { return "coinnews:session:hist:" + sessionID }

// Load implements session.Store.
func (s *Store) Load(ctx context.Context, sessionID string) (*query.SessionContext, []session.Message, error) {
	if sessionID == "" {
		return nil, nil, session.ErrSessionIDRequired
	}

	raw, err := s.client.Get(ctx, ctxKey(sessionID)).Bytes()
	if err == redis.Nil {
		return &query.SessionContext{}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load session context: %w", err)
	}

	var sc query.SessionContext
	if err := json.Unmarshal(raw, &sc); err != nil {
		return nil, nil, fmt.Errorf("decode session context: %w", err)
	}

	rows, err := s.client.LRange(ctx, histKey(sessionID), 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, nil, fmt.Errorf("load session history: %w", err)
	}
	history := make([]session.Message, 0, len(rows))
	for _, row := range rows {
		var m session.Message
		if err := json.Unmarshal([]byte(row), &m); err != nil {
			continue
		}
		history = append(history, m)
	}

	pipe := s.client.TxPipeline()
	pipe.Expire(ctx, ctxKey(sessionID), s.ttl)
	pipe.Expire(ctx, histKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, nil, fmt.Errorf("refresh session ttl: %w", err)
	}

	return &sc, history, nil
}

// AppendMessage implements session.Store.
func (s *Store) AppendMessage(ctx context.Context, sessionID, role, content string) error {
	if sessionID == "" {
		return session.ErrSessionIDRequired
	}

	msg, err := json.Marshal(session.Message{Role: role, Content: content, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	return s.touchContext(ctx, sessionID, func(sc *query.SessionContext) error {
		sc.MessageCount++
		pipe := s.client.TxPipeline()
		pipe.RPush(ctx, histKey(sessionID), msg)
		pipe.Expire(ctx, histKey(sessionID), s.ttl)
		_, err := pipe.Exec(ctx)
		return err
	})
}

// UpdateContext implements session.Store.
func (s *Store) UpdateContext(ctx context.Context, sessionID string, patch session.ContextPatch) error {
	if sessionID == "" {
		return session.ErrSessionIDRequired
	}
	return s.touchContext(ctx, sessionID, func(sc *query.SessionContext) error {
		patch.Apply(sc)
		return nil
	})
}

// touchContext loads the stored SessionContext (or a fresh one), applies
// mutate, persists it with SETEX, and refreshes the companion history key's
// TTL.
func (s *Store) touchContext(ctx context.Context, sessionID string, mutate func(*query.SessionContext) error) error {
	unlock := s.keyLocks.lock(sessionID)
	defer unlock()

	raw, err := s.client.Get(ctx, ctxKey(sessionID)).Bytes()
	var sc query.SessionContext
	switch {
	case err == redis.Nil:
		sc = query.SessionContext{}
	case err != nil:
		return fmt.Errorf("load session context: %w", err)
	default:
		if err := json.Unmarshal(raw, &sc); err != nil {
			return fmt.Errorf("decode session context: %w", err)
		}
	}

	if err := mutate(&sc); err != nil {
		return err
	}

	encoded, err := json.Marshal(sc)
	if err != nil {
		return fmt.Errorf("encode session context: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.SetEx(ctx, ctxKey(sessionID), encoded, s.ttl)
	pipe.Expire(ctx, histKey(sessionID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store session context: %w", err)
	}
	return nil
}
