package marketdata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCandleApplyUpdatesCurrentMinute(t *testing.T) {
	c := NewCandleCache(100)
	base := time.Date(2024, 6, 3, 10, 15, 2, 0, time.UTC)

	first, ok := c.Apply("EURUSD", 1.0850, 5, base)
	require.True(t, ok)
	assert.Equal(t, "1.08500", first.Open)

	second, ok := c.Apply("EURUSD", 1.0862, 5, base.Add(10*time.Second))
	require.True(t, ok)
	assert.Equal(t, first.Time, second.Time)
	assert.Equal(t, "1.08500", second.Open)
	assert.Equal(t, "1.08620", second.High)
	assert.Equal(t, "1.08620", second.Close)

	third, ok := c.Apply("EURUSD", 1.0841, 5, base.Add(20*time.Second))
	require.True(t, ok)
	assert.Equal(t, "1.08410", third.Low)
	assert.Equal(t, "1.08620", third.High)
}

func TestCandleApplyRotatesOnMinuteBoundary(t *testing.T) {
	c := NewCandleCache(100)
	base := time.Date(2024, 6, 3, 10, 15, 59, 0, time.UTC)

	c.Apply("EURUSD", 1.0850, 5, base)
	next, ok := c.Apply("EURUSD", 1.0855, 5, base.Add(2*time.Second))
	require.True(t, ok)
	assert.Equal(t, "1.08550", next.Open, "new minute starts a fresh candle")

	got := c.Recent("EURUSD", time.Minute, 10)
	require.Len(t, got, 2)
	assert.Less(t, got[0].Time, got[1].Time)
}

func TestCandleApplyIgnoresBadTicks(t *testing.T) {
	c := NewCandleCache(100)
	_, ok := c.Apply("", 1.0, 5, time.Now())
	assert.False(t, ok)
	_, ok = c.Apply("EURUSD", 0, 5, time.Now())
	assert.False(t, ok)
}

func TestRecentAggregatesTimeframes(t *testing.T) {
	c := NewCandleCache(100)
	start := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	prices := []float64{1.10, 1.14, 1.08, 1.11, 1.12}
	for i, p := range prices {
		c.Apply("EURUSD", p, 2, start.Add(time.Duration(i)*time.Minute))
	}

	got := c.Recent("EURUSD", 5*time.Minute, 10)
	require.Len(t, got, 1)
	assert.Equal(t, "1.10", got[0].Open)
	assert.Equal(t, "1.14", got[0].High)
	assert.Equal(t, "1.08", got[0].Low)
	assert.Equal(t, "1.12", got[0].Close)
}

func TestRecentLimitKeepsNewest(t *testing.T) {
	c := NewCandleCache(100)
	start := time.Date(2024, 6, 3, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		c.Apply("EURUSD", 1.0+float64(i)*0.01, 2, start.Add(time.Duration(i)*time.Minute))
	}

	got := c.Recent("EURUSD", time.Minute, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "1.05", got[1].Close)
}

func TestParseInterval(t *testing.T) {
	assert.Equal(t, time.Minute, parseInterval("1m"))
	assert.Equal(t, time.Minute, parseInterval(""))
	assert.Equal(t, 4*time.Hour, parseInterval("4h"))
	assert.Equal(t, time.Duration(0), parseInterval("7m"))
}
