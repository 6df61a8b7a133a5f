package instruments

import (
	"testing"

	"traderoom/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestResolveClassification(t *testing.T) {
	tests := []struct {
		symbol       string
		class        types.AssetClass
		pipSize      string
		contractSize string
		decimals     int32
	}{
		{"EURUSD", types.AssetClassForex, "0.0001", "100000", 5},
		{"GBPUSD", types.AssetClassForex, "0.0001", "100000", 5},
		{"USDJPY", types.AssetClassForexJPY, "0.01", "100000", 3},
		{"EURJPY", types.AssetClassForexJPY, "0.01", "100000", 3},
		{"XAUUSD", types.AssetClassMetal, "0.01", "100", 2},
		{"BTCUSDT", types.AssetClassCrypto, "1", "1", 2},
		{"ETHUSDT", types.AssetClassCrypto, "1", "1", 2},
		// unmapped symbols fall back to the forex profile
		{"ZZZAAA", types.AssetClassForex, "0.0001", "100000", 5},
	}
	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			p := Resolve(tt.symbol)
			assert.Equal(t, tt.class, p.Class)
			assert.Equal(t, tt.pipSize, p.PipSize.String())
			assert.Equal(t, tt.contractSize, p.ContractSize.String())
			assert.Equal(t, tt.decimals, p.DisplayDecimals)
		})
	}
}

func TestResolveNormalizesSymbol(t *testing.T) {
	p := Resolve(" btcusdt ")
	assert.Equal(t, "BTCUSDT", p.Symbol)
	assert.Equal(t, types.AssetClassCrypto, p.Class)
}

func TestResolveStablecoinSuffixWinsOverJPY(t *testing.T) {
	// a symbol ending in USDT is crypto even if it contains JPY
	p := Resolve("JPYUSDT")
	assert.Equal(t, types.AssetClassCrypto, p.Class)
}

func TestDisplayDecimalOverrides(t *testing.T) {
	assert.Equal(t, int32(5), Resolve("DOGEUSDT").DisplayDecimals)
	assert.Equal(t, int32(8), Resolve("SHIBUSDT").DisplayDecimals)
	// overrides touch display precision only, never economics
	assert.Equal(t, "1", Resolve("DOGEUSDT").PipSize.String())
	assert.Equal(t, "1", Resolve("DOGEUSDT").ContractSize.String())
}

func TestLeverageMultiplier(t *testing.T) {
	assert.Equal(t, "2", LeverageMultiplier("USDJPY").String())
	assert.Equal(t, "1", LeverageMultiplier("EURUSD").String())
	assert.Equal(t, "1", LeverageMultiplier("BTCUSDT").String())
	assert.Equal(t, "1", LeverageMultiplier("XAUUSD").String())
}

func TestMarginSizeMultiplierDefault(t *testing.T) {
	assert.Equal(t, "1", MarginSizeMultiplier("BTCUSDT").String())
}
