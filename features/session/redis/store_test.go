package redis_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyveloper/coin-news-go/features/session/redis"
	"github.com/keyveloper/coin-news-go/runtime/query"
	"github.com/keyveloper/coin-news-go/runtime/session"
)

func newTestStore(t *testing.T) *redis.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redis.New(client, redis.WithTTL(time.Minute))
}

func TestLoad_MissingSessionReturnsFreshEmptyContext(t *testing.T) {
	s := newTestStore(t)
	ctx, history, err := s.Load(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Nil(t, history)
	assert.Equal(t, &query.SessionContext{}, ctx)
}

func TestAppendMessage_PersistsHistoryAndIncrementsCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendMessage(ctx, "sess-1", "user", "hi"))
	require.NoError(t, s.AppendMessage(ctx, "sess-1", "assistant", "hello"))

	got, history, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.MessageCount)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[1].Content)
}

func TestUpdateContext_ShallowMerge(t *testing.T) {
	s := newTestStore(t)
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

// TestAppendMessage_ConcurrentWritersDoNotLoseUpdates exercises the
// load-mutate-SETEX sequence in touchContext under concurrent callers on
// the same session ID. Without per-key serialization, two goroutines can
// both GET the same MessageCount before either SETEXes, and one increment
// is lost.
func TestAppendMessage_ConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			_ = s.AppendMessage(ctx, "sess-1", "user", fmt.Sprintf("msg-%d", i))
		}(i)
	}
	wg.Wait()

	got, history, err := s.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, n, got.MessageCount)
	assert.Len(t, history, n)
}
