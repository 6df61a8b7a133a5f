// Package instruments is the single source of truth for per-symbol trading
// economics: pip size, contract size and price precision. Every call site that
// needs pip or contract math resolves a Profile here instead of hardcoding the
// numbers.
package instruments

import (
	"strings"

	"traderoom/internal/types"

	"github.com/shopspring/decimal"
)

// Profile carries the economics of one instrument. Pip and contract size are
// keyed strictly on asset class; display precision may be overridden per
// symbol (see displayDecimalOverrides).
type Profile struct {
	Symbol          string
	Class           types.AssetClass
	PipSize         decimal.Decimal
	ContractSize    decimal.Decimal
	DisplayDecimals int32
}

const (
	stablecoinSuffix = "USDT"
	jpySuffix        = "JPY"
	goldSymbol       = "XAUUSD"
)

var (
	pipForex  = decimal.RequireFromString("0.0001")
	pipJPY    = decimal.RequireFromString("0.01")
	pipMetal  = decimal.RequireFromString("0.01")
	pipCrypto = decimal.NewFromInt(1)

	contractForex  = decimal.NewFromInt(100000)
	contractMetal  = decimal.NewFromInt(100)
	contractCrypto = decimal.NewFromInt(1)
)

// displayDecimalOverrides adjusts price precision for small-unit crypto
// tickers whose quote would be unreadable at the class default of 2.
var displayDecimalOverrides = map[string]int32{
	"DOGEUSDT": 5,
	"XRPUSDT":  4,
	"SHIBUSDT": 8,
}

// marginSizeMultipliers scales the notional used for margin on specific
// symbols. Empty by default; entries are data, not engine logic.
var marginSizeMultipliers = map[string]decimal.Decimal{}

// leverageMultipliers inflates the effective leverage per asset class.
// JPY crosses trade at twice the requested leverage.
var leverageMultipliers = map[types.AssetClass]decimal.Decimal{
	types.AssetClassForexJPY: decimal.NewFromInt(2),
}

// Resolve maps a symbol to its Profile. It is total: unknown symbols get the
// default forex profile. Classification order matters — the stablecoin suffix
// is checked before the JPY suffix so e.g. a hypothetical JPYUSDT stays crypto.
func Resolve(symbol string) Profile {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasSuffix(sym, stablecoinSuffix):
		return Profile{
			Symbol:          sym,
			Class:           types.AssetClassCrypto,
			PipSize:         pipCrypto,
			ContractSize:    contractCrypto,
			DisplayDecimals: displayDecimals(sym, 2),
		}
	case sym == goldSymbol:
		return Profile{
			Symbol:          sym,
			Class:           types.AssetClassMetal,
			PipSize:         pipMetal,
			ContractSize:    contractMetal,
			DisplayDecimals: 2,
		}
	case strings.HasSuffix(sym, jpySuffix):
		return Profile{
			Symbol:          sym,
			Class:           types.AssetClassForexJPY,
			PipSize:         pipJPY,
			ContractSize:    contractForex,
			DisplayDecimals: 3,
		}
	default:
		return Profile{
			Symbol:          sym,
			Class:           types.AssetClassForex,
			PipSize:         pipForex,
			ContractSize:    contractForex,
			DisplayDecimals: 5,
		}
	}
}

func displayDecimals(symbol string, def int32) int32 {
	if v, ok := displayDecimalOverrides[symbol]; ok {
		return v
	}
	return def
}

// MarginSizeMultiplier returns the per-symbol notional multiplier applied in
// the margin formula, 1 when the symbol has no override.
func MarginSizeMultiplier(symbol string) decimal.Decimal {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if v, ok := marginSizeMultipliers[sym]; ok && v.GreaterThan(decimal.Zero) {
		return v
	}
	return decimal.NewFromInt(1)
}

// LeverageMultiplier returns the effective-leverage multiplier for the
// symbol's asset class, 1 when the class has no override.
func LeverageMultiplier(symbol string) decimal.Decimal {
	p := Resolve(symbol)
	if v, ok := leverageMultipliers[p.Class]; ok && v.GreaterThan(decimal.Zero) {
		return v
	}
	return decimal.NewFromInt(1)
}
