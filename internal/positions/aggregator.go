// Package positions folds raw open trades into per-(symbol, side) position
// groups with live valuation and hedge annotations. Aggregation is a pure
// function of its inputs: it is recomputed from scratch on every call, holds
// no state between calls and never mutates the trades or the price snapshot
// it is given.
package positions

import (
	"time"

	"traderoom/internal/instruments"
	"traderoom/internal/model"
	"traderoom/internal/types"
	"traderoom/internal/valuation"

	"github.com/shopspring/decimal"
)

// Mark is one open trade annotated with its live valuation. Hedged is a
// display flag: the trade fits inside the symbol's hedge budget given the
// greedy first-come allocation over the input order. No settlement depends
// on it.
type Mark struct {
	Trade         model.Trade     `json:"trade"`
	MarkPrice     decimal.Decimal `json:"mark_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Hedged        bool            `json:"hedged"`
}

// Group is the aggregate of all open trades on one (symbol, side).
type Group struct {
	Symbol             string          `json:"symbol"`
	Side               types.TradeSide `json:"side"`
	TotalLots          decimal.Decimal `json:"total_lots"`
	TotalMargin        decimal.Decimal `json:"total_margin"`
	TotalUnrealizedPnL decimal.Decimal `json:"total_unrealized_pnl"`
	WeightedOpenPrice  decimal.Decimal `json:"weighted_open_price"`
	EarliestOpenedAt   time.Time       `json:"earliest_opened_at"`
	// HedgedLots is min(long lots, short lots) for the symbol and is shared
	// by both side-groups of that symbol.
	HedgedLots decimal.Decimal `json:"hedged_lots"`
	Hedged     bool            `json:"hedged"`
	Trades     []Mark          `json:"trades"`
}

type sideLots struct {
	long  decimal.Decimal
	short decimal.Decimal
}

// Aggregate groups open trades by (symbol, side) and values each against the
// price snapshot. Trades whose symbol has no entry in prices are valued at
// their own open price, which renders as zero P&L until a tick arrives.
// Output order follows first appearance in the input; callers sort for
// presentation. Non-open trades are ignored and never touched.
func Aggregate(trades []model.Trade, prices map[string]decimal.Decimal) []Group {
	if len(trades) == 0 {
		return nil
	}

	exposure := make(map[string]sideLots, 4)
	for _, t := range trades {
		if !t.IsOpen() {
			continue
		}
		e := exposure[t.Symbol]
		switch t.Side {
		case types.TradeSideBuy:
			e.long = e.long.Add(t.Lots)
		case types.TradeSideSell:
			e.short = e.short.Add(t.Lots)
		}
		exposure[t.Symbol] = e
	}

	profiles := make(map[string]instruments.Profile, len(exposure))
	groups := make(map[string]*Group, len(exposure))
	order := make([]string, 0, len(exposure))
	weighted := make(map[string]decimal.Decimal, len(exposure))
	// running same-side allocation against the symbol's hedge budget
	allocated := make(map[string]decimal.Decimal, len(exposure))

	for _, t := range trades {
		if !t.IsOpen() {
			continue
		}
		if t.Side != types.TradeSideBuy && t.Side != types.TradeSideSell {
			continue
		}
		if _, ok := profiles[t.Symbol]; !ok {
			profiles[t.Symbol] = instruments.Resolve(t.Symbol)
		}

		mark := t.OpenPrice
		if p, ok := prices[t.Symbol]; ok && p.GreaterThan(decimal.Zero) {
			mark = p
		}
		pnl := valuation.UnrealizedPnL(t.Symbol, t.Side, t.OpenPrice, mark, t.Lots)

		e := exposure[t.Symbol]
		hedgeBudget := decimal.Min(e.long, e.short)

		key := t.Symbol + "|" + string(t.Side)
		g, ok := groups[key]
		if !ok {
			g = &Group{
				Symbol:           t.Symbol,
				Side:             t.Side,
				EarliestOpenedAt: t.OpenedAt,
				HedgedLots:       hedgeBudget,
				Hedged:           e.long.GreaterThan(decimal.Zero) && e.short.GreaterThan(decimal.Zero),
				Trades:           make([]Mark, 0, 4),
			}
			groups[key] = g
			order = append(order, key)
		}

		cum := allocated[key].Add(t.Lots)
		allocated[key] = cum
		hedged := g.Hedged && cum.LessThanOrEqual(hedgeBudget)

		g.TotalLots = g.TotalLots.Add(t.Lots)
		g.TotalMargin = g.TotalMargin.Add(t.MarginAmount)
		g.TotalUnrealizedPnL = g.TotalUnrealizedPnL.Add(pnl)
		weighted[key] = weighted[key].Add(t.Lots.Mul(t.OpenPrice))
		if t.OpenedAt.Before(g.EarliestOpenedAt) {
			g.EarliestOpenedAt = t.OpenedAt
		}
		g.Trades = append(g.Trades, Mark{
			Trade:         t,
			MarkPrice:     mark,
			UnrealizedPnL: pnl,
			Hedged:        hedged,
		})
	}

	out := make([]Group, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if g.TotalLots.GreaterThan(decimal.Zero) {
			g.WeightedOpenPrice = weighted[key].Div(g.TotalLots)
		}
		out = append(out, *g)
	}
	return out
}

// TotalUnrealizedPnL sums the live P&L across all groups.
func TotalUnrealizedPnL(groups []Group) decimal.Decimal {
	var sum decimal.Decimal
	for _, g := range groups {
		sum = sum.Add(g.TotalUnrealizedPnL)
	}
	return sum
}
