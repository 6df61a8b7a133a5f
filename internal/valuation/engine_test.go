package valuation

import (
	"testing"

	"traderoom/internal/instruments"
	"traderoom/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUnrealizedPnLSignCorrectness(t *testing.T) {
	// buy profits iff current > open
	pnl := UnrealizedPnL("EURUSD", types.TradeSideBuy, d("1.1000"), d("1.1010"), d("1"))
	assert.True(t, pnl.GreaterThan(decimal.Zero))
	assert.Equal(t, "90.83", pnl.Round(2).String())

	pnl = UnrealizedPnL("EURUSD", types.TradeSideBuy, d("1.1000"), d("1.0990"), d("1"))
	assert.True(t, pnl.LessThan(decimal.Zero))

	// sell profits iff current < open
	pnl = UnrealizedPnL("EURUSD", types.TradeSideSell, d("1.1000"), d("1.0990"), d("1"))
	assert.True(t, pnl.GreaterThan(decimal.Zero))

	pnl = UnrealizedPnL("EURUSD", types.TradeSideSell, d("1.1000"), d("1.1010"), d("1"))
	assert.True(t, pnl.LessThan(decimal.Zero))

	// flat market, flat pnl
	pnl = UnrealizedPnL("EURUSD", types.TradeSideBuy, d("1.1000"), d("1.1000"), d("1"))
	assert.True(t, pnl.IsZero())
}

func TestUnrealizedPnLCryptoDirectUnits(t *testing.T) {
	// crypto settles as a direct unit difference, no pip conversion
	pnl := UnrealizedPnL("BTCUSDT", types.TradeSideBuy, d("60000"), d("60100"), d("0.01"))
	assert.Equal(t, "100", pnl.String())

	pnl = UnrealizedPnL("BTCUSDT", types.TradeSideSell, d("60000"), d("60100"), d("0.01"))
	assert.Equal(t, "-100", pnl.String())
}

func TestUnrealizedPnLMetal(t *testing.T) {
	// 1.50 move = 150 pips, pip value 0.01 * 2 lots * 100 oz = 2
	pnl := UnrealizedPnL("XAUUSD", types.TradeSideBuy, d("2000.00"), d("2001.50"), d("2"))
	assert.Equal(t, "300", pnl.String())
}

func TestUnrealizedPnLJPYCross(t *testing.T) {
	pnl := UnrealizedPnL("USDJPY", types.TradeSideBuy, d("150.000"), d("150.100"), d("1"))
	assert.Equal(t, "66.62", pnl.Round(2).String())
}

func TestPipValueClampsSubUnitPrice(t *testing.T) {
	// divisor clamps to 1 below parity, so the pip value stays bounded
	p := instruments.Resolve("AUDNZD")
	pv := PipValue(p, d("1"), d("0.9500"))
	assert.Equal(t, "10", pv.String())

	pnl := UnrealizedPnL("AUDNZD", types.TradeSideBuy, d("0.9400"), d("0.9500"), d("1"))
	assert.Equal(t, "1000", pnl.String())
}

func TestUnrealizedPnLDegenerateInput(t *testing.T) {
	assert.True(t, UnrealizedPnL("EURUSD", types.TradeSideBuy, d("1.1"), decimal.Zero, d("1")).IsZero())
	assert.True(t, UnrealizedPnL("EURUSD", types.TradeSideBuy, decimal.Zero, d("1.1"), d("1")).IsZero())
	assert.True(t, UnrealizedPnL("EURUSD", types.TradeSideBuy, d("1.1"), d("1.2"), decimal.Zero).IsZero())
	assert.True(t, UnrealizedPnL("EURUSD", types.TradeSide("hold"), d("1.1"), d("1.2"), d("1")).IsZero())
}

func TestRequiredMargin(t *testing.T) {
	// forex: price * lots * contract / leverage
	m := RequiredMargin("EURUSD", d("1.1"), d("1"), 100)
	assert.Equal(t, "1100", m.String())

	// crypto: no contract multiplier
	m = RequiredMargin("BTCUSDT", d("60000"), d("0.02"), 10)
	assert.Equal(t, "120", m.String())

	// JPY crosses run at double effective leverage
	m = RequiredMargin("USDJPY", d("150"), d("1"), 100)
	assert.Equal(t, "75000", m.String())

	// metal uses its own contract size
	m = RequiredMargin("XAUUSD", d("2000"), d("1"), 100)
	assert.Equal(t, "2000", m.String())
}

func TestRequiredMarginMonotonicity(t *testing.T) {
	price, lots := d("1.1"), d("1")
	lowLev := RequiredMargin("EURUSD", price, lots, 50)
	highLev := RequiredMargin("EURUSD", price, lots, 500)
	assert.True(t, highLev.LessThan(lowLev))

	small := RequiredMargin("EURUSD", price, d("1"), 100)
	big := RequiredMargin("EURUSD", price, d("3"), 100)
	assert.True(t, big.GreaterThan(small))
}

func TestRequiredMarginDegenerateInput(t *testing.T) {
	assert.True(t, RequiredMargin("EURUSD", d("1.1"), d("1"), 0).IsZero())
	assert.True(t, RequiredMargin("EURUSD", d("1.1"), d("1"), -5).IsZero())
	assert.True(t, RequiredMargin("EURUSD", decimal.Zero, d("1"), 100).IsZero())
	assert.True(t, RequiredMargin("EURUSD", d("1.1"), decimal.Zero, 100).IsZero())
	// never negative
	assert.False(t, RequiredMargin("EURUSD", d("1.1"), d("1"), 100).IsNegative())
}

func TestNotional(t *testing.T) {
	assert.Equal(t, "110000", Notional("EURUSD", d("1.1"), d("1")).String())
	assert.Equal(t, "1200", Notional("BTCUSDT", d("60000"), d("0.02")).String())
	assert.True(t, Notional("EURUSD", decimal.Zero, d("1")).IsZero())
}
