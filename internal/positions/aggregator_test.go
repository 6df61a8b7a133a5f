package positions

import (
	"testing"
	"time"

	"traderoom/internal/model"
	"traderoom/internal/types"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openTrade(id, symbol string, side types.TradeSide, lots, openPrice, margin string, openedAt time.Time) model.Trade {
	return model.Trade{
		ID:           id,
		UserID:       "u1",
		Symbol:       symbol,
		Side:         side,
		Status:       types.TradeStatusOpen,
		Lots:         d(lots),
		OpenPrice:    d(openPrice),
		Leverage:     100,
		MarginAmount: d(margin),
		OpenedAt:     openedAt,
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	assert.Empty(t, Aggregate(nil, nil))
	assert.Empty(t, Aggregate([]model.Trade{}, map[string]decimal.Decimal{}))
}

func TestAggregateHedgeDetection(t *testing.T) {
	now := time.Now().UTC()
	trades := []model.Trade{
		openTrade("t1", "EURUSD", types.TradeSideBuy, "1.0", "1.1000", "1100", now),
		openTrade("t2", "EURUSD", types.TradeSideSell, "0.4", "1.1020", "440", now),
		openTrade("t3", "GBPUSD", types.TradeSideBuy, "0.5", "1.2500", "625", now),
	}
	groups := Aggregate(trades, map[string]decimal.Decimal{
		"EURUSD": d("1.1010"),
		"GBPUSD": d("1.2510"),
	})
	require.Len(t, groups, 3)

	byKey := map[string]Group{}
	for _, g := range groups {
		byKey[g.Symbol+"|"+string(g.Side)] = g
	}

	eurBuy := byKey["EURUSD|buy"]
	eurSell := byKey["EURUSD|sell"]
	gbpBuy := byKey["GBPUSD|buy"]

	assert.Equal(t, "0.4", eurBuy.HedgedLots.String())
	assert.Equal(t, "0.4", eurSell.HedgedLots.String())
	assert.True(t, eurBuy.Hedged)
	assert.True(t, eurSell.Hedged)
	assert.False(t, gbpBuy.Hedged)
	assert.True(t, gbpBuy.HedgedLots.IsZero())

	// per-trade allocation: the 1.0-lot buy exceeds the 0.4 budget,
	// the 0.4-lot sell fits it exactly
	require.Len(t, eurBuy.Trades, 1)
	require.Len(t, eurSell.Trades, 1)
	assert.False(t, eurBuy.Trades[0].Hedged)
	assert.True(t, eurSell.Trades[0].Hedged)
}

func TestAggregateHedgeAllocationFollowsInputOrder(t *testing.T) {
	now := time.Now().UTC()
	trades := []model.Trade{
		openTrade("t1", "EURUSD", types.TradeSideBuy, "0.3", "1.1000", "330", now),
		openTrade("t2", "EURUSD", types.TradeSideBuy, "0.3", "1.1000", "330", now),
		openTrade("t3", "EURUSD", types.TradeSideSell, "0.5", "1.1000", "550", now),
	}
	groups := Aggregate(trades, nil)

	var buy Group
	for _, g := range groups {
		if g.Side == types.TradeSideBuy {
			buy = g
		}
	}
	require.Len(t, buy.Trades, 2)
	// budget is 0.5: first buy (cum 0.3) fits, second (cum 0.6) does not
	assert.True(t, buy.Trades[0].Hedged)
	assert.False(t, buy.Trades[1].Hedged)
}

func TestAggregateWeightedOpenPrice(t *testing.T) {
	now := time.Now().UTC()
	trades := []model.Trade{
		openTrade("t1", "EURUSD", types.TradeSideBuy, "1", "1.1000", "1100", now),
		openTrade("t2", "EURUSD", types.TradeSideBuy, "3", "1.1040", "3312", now),
	}
	groups := Aggregate(trades, map[string]decimal.Decimal{"EURUSD": d("1.1050")})
	require.Len(t, groups, 1)
	assert.Equal(t, "1.103", groups[0].WeightedOpenPrice.String())
	assert.Equal(t, "4", groups[0].TotalLots.String())
	assert.Equal(t, "4412", groups[0].TotalMargin.String())
}

func TestAggregateEarliestOpenedAt(t *testing.T) {
	early := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	late := early.Add(4 * time.Hour)
	trades := []model.Trade{
		openTrade("t1", "EURUSD", types.TradeSideBuy, "1", "1.1000", "1100", late),
		openTrade("t2", "EURUSD", types.TradeSideBuy, "1", "1.1010", "1101", early),
	}
	groups := Aggregate(trades, nil)
	require.Len(t, groups, 1)
	assert.Equal(t, early, groups[0].EarliestOpenedAt)
}

func TestAggregateMissingPriceFallsBackToOpenPrice(t *testing.T) {
	now := time.Now().UTC()
	trades := []model.Trade{
		openTrade("t1", "EURUSD", types.TradeSideBuy, "1", "1.1000", "1100", now),
	}
	groups := Aggregate(trades, map[string]decimal.Decimal{})
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Trades, 1)
	assert.True(t, groups[0].TotalUnrealizedPnL.IsZero())
	assert.Equal(t, "1.1", groups[0].Trades[0].MarkPrice.String())
}

func TestAggregateIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	trades := []model.Trade{
		openTrade("t1", "EURUSD", types.TradeSideBuy, "1.0", "1.1000", "1100", now),
		openTrade("t2", "EURUSD", types.TradeSideSell, "0.4", "1.1020", "440", now),
		openTrade("t3", "BTCUSDT", types.TradeSideBuy, "0.01", "60000", "120", now),
	}
	prices := map[string]decimal.Decimal{
		"EURUSD":  d("1.1010"),
		"BTCUSDT": d("60100"),
	}
	first := Aggregate(trades, prices)
	second := Aggregate(trades, prices)
	assert.Equal(t, first, second)
}

func TestAggregateSkipsAndNeverMutatesClosedTrades(t *testing.T) {
	now := time.Now().UTC()
	closedAt := now.Add(-time.Hour)
	closePrice := d("1.0950")
	storedPnL := d("-50")
	closed := model.Trade{
		ID:         "t9",
		Symbol:     "EURUSD",
		Side:       types.TradeSideBuy,
		Status:     types.TradeStatusClosed,
		Lots:       d("1"),
		OpenPrice:  d("1.1000"),
		ClosePrice: &closePrice,
		PnL:        &storedPnL,
		ClosedAt:   &closedAt,
		OpenedAt:   now.Add(-2 * time.Hour),
	}
	open := openTrade("t1", "EURUSD", types.TradeSideBuy, "1", "1.1000", "1100", now)

	for i := 0; i < 3; i++ {
		groups := Aggregate([]model.Trade{closed, open}, map[string]decimal.Decimal{"EURUSD": d("1.2000")})
		require.Len(t, groups, 1)
		require.Len(t, groups[0].Trades, 1)
		assert.Equal(t, "t1", groups[0].Trades[0].Trade.ID)
	}

	// the closed trade's settlement is untouched by any number of calls
	assert.Equal(t, "-50", closed.PnL.String())
	assert.Equal(t, "1.095", closed.ClosePrice.String())
	assert.Equal(t, closedAt, *closed.ClosedAt)
}

func TestAggregateCryptoGroupPnL(t *testing.T) {
	now := time.Now().UTC()
	trades := []model.Trade{
		openTrade("t1", "BTCUSDT", types.TradeSideBuy, "0.01", "60000", "120", now),
	}
	groups := Aggregate(trades, map[string]decimal.Decimal{"BTCUSDT": d("60100")})
	require.Len(t, groups, 1)
	assert.Equal(t, "100", groups[0].TotalUnrealizedPnL.String())
}

func TestTotalUnrealizedPnL(t *testing.T) {
	groups := []Group{
		{TotalUnrealizedPnL: d("12.5")},
		{TotalUnrealizedPnL: d("-4.5")},
	}
	assert.Equal(t, "8", TotalUnrealizedPnL(groups).String())
}
