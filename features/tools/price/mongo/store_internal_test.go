package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/keyveloper/coin-news-go/runtime/query"
)

func TestWindow_Hour_IsFixedOneHourRegardlessOfDirection(t *testing.T) {
	lo, hi := window(1000, query.RangeHour, query.DirectionBoth)
	assert.Equal(t, int64(1000-3600), lo)
	assert.Equal(t, int64(1000+3600), hi)
}

func TestWindow_Week_Before(t *testing.T) {
	lo, hi := window(1_000_000, query.RangeWeek, query.DirectionBefore)
	assert.Equal(t, int64(1_000_000-7*86400), lo)
	assert.Equal(t, int64(1_000_000), hi)
}

func TestWindow_Week_Both(t *testing.T) {
	lo, hi := window(1_000_000, query.RangeWeek, query.DirectionBoth)
	assert.Equal(t, int64(1_000_000-7*86400), lo)
	assert.Equal(t, int64(1_000_000+7*86400), hi)
}

func TestWindow_Day_After(t *testing.T) {
	lo, hi := window(500, query.RangeDay, query.DirectionAfter)
	assert.Equal(t, int64(500), lo)
	assert.Equal(t, int64(500+86400), hi)
}
