package trades

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBuildMetrics(t *testing.T) {
	m := buildMetrics(d("900"), d("100"), d("-50"))
	assert.Equal(t, "1000", m.Balance.String())
	assert.Equal(t, "950", m.Equity.String())
	assert.Equal(t, "100", m.Margin.String())
	assert.Equal(t, "850", m.FreeMargin.String())
	assert.Equal(t, "950", m.MarginLevel.String())
	assert.Equal(t, "-50", m.PnL.String())
}

func TestBuildMetricsNoMargin(t *testing.T) {
	m := buildMetrics(d("1000"), decimal.Zero, decimal.Zero)
	assert.True(t, m.MarginLevel.IsZero(), "margin level is undefined without margin in use")
	assert.Equal(t, "1000", m.FreeMargin.String())
}

func TestBuildMetricsEquityCanGoBelowMargin(t *testing.T) {
	m := buildMetrics(d("0"), d("100"), d("-85"))
	assert.Equal(t, "15", m.Equity.String())
	assert.Equal(t, "15", m.MarginLevel.String())
}

func TestParseRiskDecimal(t *testing.T) {
	v, ok := parseRiskDecimal("12.5")
	assert.True(t, ok)
	assert.Equal(t, "12.5", v.String())

	_, ok = parseRiskDecimal("0")
	assert.False(t, ok)
	_, ok = parseRiskDecimal("-3")
	assert.False(t, ok)
	_, ok = parseRiskDecimal("abc")
	assert.False(t, ok)
}

func TestDefaultRiskConfigIsCoherent(t *testing.T) {
	cfg := defaultRiskConfig
	assert.True(t, cfg.MinOrderLots.LessThan(cfg.MaxOrderLots))
	assert.True(t, cfg.StopOutLevelPercent.LessThan(cfg.MarginCallLevelPercent))
	assert.Positive(t, cfg.MaxOpenPositions)
	assert.Positive(t, cfg.MaxLeverage)
}
