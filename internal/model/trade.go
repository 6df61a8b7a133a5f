package model

import (
	"time"

	"traderoom/internal/types"

	"github.com/shopspring/decimal"
)

// Trade is a single leveraged position. ClosePrice, PnL and ClosedAt are set
// exactly once, when the trade settles; they are never recomputed afterwards.
type Trade struct {
	ID           string            `json:"id"`
	UserID       string            `json:"user_id"`
	Symbol       string            `json:"symbol"`
	Side         types.TradeSide   `json:"side"`
	Status       types.TradeStatus `json:"status"`
	Lots         decimal.Decimal   `json:"lots"`
	OpenPrice    decimal.Decimal   `json:"open_price"`
	ClosePrice   *decimal.Decimal  `json:"close_price,omitempty"`
	Leverage     int64             `json:"leverage"`
	MarginAmount decimal.Decimal   `json:"margin_amount"`
	PnL          *decimal.Decimal  `json:"pnl,omitempty"`
	OpenedAt     time.Time         `json:"opened_at"`
	ClosedAt     *time.Time        `json:"closed_at,omitempty"`
}

// IsOpen reports whether the trade still carries live exposure.
func (t Trade) IsOpen() bool {
	return t.Status == types.TradeStatusOpen
}
