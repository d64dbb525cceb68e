package memstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyveloper/coin-news-go/runtime/query"
	"github.com/keyveloper/coin-news-go/runtime/session"
	"github.com/keyveloper/coin-news-go/runtime/session/memstore"
)

func TestLoad_MissingSessionReturnsFreshEmptyContext(t *testing.T) {
	s := memstore.New()
	ctx, history, err := s.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Nil(t, history)
	assert.Equal(t, &query.SessionContext{}, ctx)
}

func TestUpdateContext_ShallowMergeLeavesUnsetFieldsUntouched(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	require.NoError(t, s.UpdateContext(ctx, "sess-1", session.ContextPatch{
		Coins: []string{"BTC"}, SetCoins: true,
	}))
	require.NoError(t, s.UpdateContext(ctx, "sess-1", session.ContextPatch{
		LastPlanResult: &query.PlanResult{OriginalQuery: "q"},
	}))

	got, _, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC"}, got.Coins)
	require.NotNil(t, got.LastPlanResult)
	assert.Equal(t, "q", got.LastPlanResult.OriginalQuery)
}

func TestAppendMessage_IncrementsMessageCountAndHistory(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "sess-1", "user", "hi"))
	require.NoError(t, s.AppendMessage(ctx, "sess-1", "assistant", "hello"))

	got, history, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
	require.Len(t, history, 2)
	assert.Equal(t, "hi", history[0].Content)
}

func TestEntryExpiresAfterTTLAndIsDroppedOpaquely(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	s := memstore.New(memstore.WithTTL(time.Minute), memstore.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "sess-1", "user", "hi"))
	now = now.Add(2 * time.Minute)

	got, history, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Nil(t, history)
	assert.Equal(t, 0, got.MessageCount)
	_ = clock
}

func TestTouchRefreshesTTL(t *testing.T) {
	now := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	s := memstore.New(memstore.WithTTL(2*time.Minute), memstore.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "sess-1", "user", "hi"))
	now = now.Add(90 * time.Second)
	_, _, err := s.Load(ctx, "sess-1") // touches, refreshing expiry
	require.NoError(t, err)
	now = now.Add(90 * time.Second)

	got, _, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.MessageCount)
}
