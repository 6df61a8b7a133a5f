package marketdata

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedLatestWins(t *testing.T) {
	f := NewFeed()
	f.Set("EURUSD", decimal.RequireFromString("1.0848"), decimal.RequireFromString("1.0852"))
	f.Set("EURUSD", decimal.RequireFromString("1.0858"), decimal.RequireFromString("1.0862"))

	q, ok := f.Quote("EURUSD")
	require.True(t, ok)
	assert.Equal(t, "1.0858", q.Bid.String())
	assert.Equal(t, "1.086", q.Mid().String())
}

func TestFeedRejectsBadTicks(t *testing.T) {
	f := NewFeed()
	f.Set("", decimal.NewFromInt(1), decimal.NewFromInt(1))
	f.Set("EURUSD", decimal.Zero, decimal.NewFromInt(1))
	f.Set("EURUSD", decimal.NewFromInt(1), decimal.NewFromInt(-1))

	_, ok := f.Quote("EURUSD")
	assert.False(t, ok)
}

func TestFeedSnapshotIsolation(t *testing.T) {
	f := NewFeed()
	f.Set("BTCUSDT", decimal.NewFromInt(61000), decimal.NewFromInt(61010))

	snap := f.Snapshot()
	assert.Equal(t, "61005", snap["BTCUSDT"].String())

	f.Set("BTCUSDT", decimal.NewFromInt(62000), decimal.NewFromInt(62010))
	assert.Equal(t, "61005", snap["BTCUSDT"].String(), "snapshot must not see later ticks")
}

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBus()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < 250; i++ {
		b.Publish(Event{Type: "quote"})
	}
	assert.Equal(t, 100, len(ch), "publisher must never block on a slow subscriber")
}
