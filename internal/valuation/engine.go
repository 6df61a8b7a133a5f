// Package valuation computes unrealized P&L and required margin for open
// positions. All functions are pure and total over well-formed input;
// degenerate input (zero price, zero lots, leverage below 1) yields zero
// rather than an error, so a missing tick renders as flat P&L instead of
// breaking the caller.
package valuation

import (
	"traderoom/internal/instruments"
	"traderoom/internal/types"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// UnrealizedPnL values an open position against the current price, in quote
// currency units (treated as USD-equivalent for display).
//
// Crypto pairs settle as a direct unit difference between current and open
// price. Everything else goes through pip math: the price move in pips times
// the pip value of the position.
func UnrealizedPnL(symbol string, side types.TradeSide, openPrice, currentPrice, lots decimal.Decimal) decimal.Decimal {
	if openPrice.LessThanOrEqual(decimal.Zero) || currentPrice.LessThanOrEqual(decimal.Zero) || lots.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if side != types.TradeSideBuy && side != types.TradeSideSell {
		return decimal.Zero
	}

	diff := currentPrice.Sub(openPrice)
	if side == types.TradeSideSell {
		diff = openPrice.Sub(currentPrice)
	}

	p := instruments.Resolve(symbol)
	if p.Class == types.AssetClassCrypto {
		return diff
	}

	pips := diff.Div(p.PipSize)
	return pips.Mul(PipValue(p, lots, currentPrice))
}

// PipValue returns the quote-currency value of one pip for a position of the
// given size. For metals the pip value is fixed per lot; for forex it is
// normalized by the current price, clamped to 1 from below so a degenerate
// quote can never blow up the division.
func PipValue(p instruments.Profile, lots, currentPrice decimal.Decimal) decimal.Decimal {
	if lots.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	if p.Class == types.AssetClassMetal {
		return p.PipSize.Mul(lots).Mul(p.ContractSize)
	}
	divisor := currentPrice
	if divisor.LessThan(one) {
		divisor = one
	}
	return p.PipSize.Mul(p.ContractSize).Mul(lots).Div(divisor)
}

// RequiredMargin returns the capital to reserve for a position of the given
// size at the given leverage. Leverage below 1 is invalid input and yields
// zero; callers validate before reserving. The per-symbol size multiplier and
// the asset-class leverage multiplier come from the instruments tables.
func RequiredMargin(symbol string, price, lots decimal.Decimal, leverage int64) decimal.Decimal {
	if price.LessThanOrEqual(decimal.Zero) || lots.LessThanOrEqual(decimal.Zero) || leverage < 1 {
		return decimal.Zero
	}
	p := instruments.Resolve(symbol)
	positionSize := price.Mul(lots)
	if p.Class != types.AssetClassCrypto {
		positionSize = positionSize.Mul(p.ContractSize)
	}
	positionSize = positionSize.Mul(instruments.MarginSizeMultiplier(symbol))

	effectiveLeverage := decimal.NewFromInt(leverage).Mul(instruments.LeverageMultiplier(symbol))
	if effectiveLeverage.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return positionSize.Div(effectiveLeverage)
}

// Notional returns the quote-currency exposure of a position, before
// leverage. Used for risk caps on order entry.
func Notional(symbol string, price, lots decimal.Decimal) decimal.Decimal {
	if price.LessThanOrEqual(decimal.Zero) || lots.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	p := instruments.Resolve(symbol)
	if p.Class == types.AssetClassCrypto {
		return price.Mul(lots)
	}
	return price.Mul(lots).Mul(p.ContractSize)
}
