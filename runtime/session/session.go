// Package session defines the SessionCache contract (C6): the only place
// mutable state lives between turns. Every pipeline stage itself is
// stateless; Store implementations carry state across Ask calls.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/keyveloper/coin-news-go/runtime/query"
)

// ErrSessionIDRequired is returned by every operation given an empty
// session ID.
var ErrSessionIDRequired = errors.New("session id is required")

type (
	// Message is one turn of conversation history attached to a session.
	Message struct {
		Role    string
		Content string
		At      time.Time
	}

	// ContextPatch is the shallow-merge payload for UpdateContext, per
	// §4.6: only non-nil/flagged fields overwrite the stored
	// SessionContext; everything else is left untouched.
	ContextPatch struct {
		LastNormalizedQuery *query.NormalizedQuery
		LastPlanResult      *query.PlanResult
		Coins               []string
		SetCoins            bool
	}

	// Store persists SessionContext and message history keyed by session
	// ID, with TTL-refresh-on-touch expiry (§4.6). Implementations must
	// serialize writes per key and must not tear on concurrent reads of
	// the same key (copy-on-read or snapshot semantics), per §5.
	Store interface {
		// Load returns the session's context and message history, or a
		// fresh empty context and nil history when the session is
		// missing or its TTL has expired.
		Load(ctx context.Context, sessionID string) (*query.SessionContext, []Message, error)

		// AppendMessage appends one message to the session's history and
		// refreshes its TTL.
		AppendMessage(ctx context.Context, sessionID, role, content string) error

		// UpdateContext shallow-merges patch into the session's stored
		// SessionContext (creating it if absent) and refreshes its TTL.
		UpdateContext(ctx context.Context, sessionID string, patch ContextPatch) error
	}
)

// Apply shallow-merges patch onto ctx in place, leaving fields patch does
// not set untouched.
func (p ContextPatch) Apply(ctx *query.SessionContext) {
	if p.LastNormalizedQuery != nil {
		ctx.LastNormalizedQuery = p.LastNormalizedQuery
	}
	if p.LastPlanResult != nil {
		ctx.LastPlanResult = p.LastPlanResult
	}
	if p.SetCoins {
		ctx.Coins = p.Coins
	}
}
