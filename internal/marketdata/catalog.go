package marketdata

import (
	"traderoom/internal/instruments"
)

// CatalogEntry seeds the simulator for one tradable symbol: starting price,
// per-tick volatility (fraction of price) and quoted spread (fraction of
// price). Unknown symbols get conservative forex-like defaults.
type CatalogEntry struct {
	Symbol     string
	Profile    instruments.Profile
	SeedPrice  float64
	Volatility float64
	SpreadFrac float64
}

var seedCatalog = map[string]CatalogEntry{
	"EURUSD":  {SeedPrice: 1.0850, Volatility: 0.00004, SpreadFrac: 0.00012},
	"GBPUSD":  {SeedPrice: 1.2700, Volatility: 0.00005, SpreadFrac: 0.00014},
	"USDJPY":  {SeedPrice: 150.20, Volatility: 0.00005, SpreadFrac: 0.00012},
	"EURJPY":  {SeedPrice: 162.90, Volatility: 0.00006, SpreadFrac: 0.00015},
	"XAUUSD":  {SeedPrice: 2320.0, Volatility: 0.00009, SpreadFrac: 0.00020},
	"BTCUSDT": {SeedPrice: 61500, Volatility: 0.00030, SpreadFrac: 0.00040},
	"ETHUSDT": {SeedPrice: 3050.0, Volatility: 0.00035, SpreadFrac: 0.00050},
	"DOGEUSDT": {SeedPrice: 0.145, Volatility: 0.00060, SpreadFrac: 0.00080},
}

// Catalog resolves the configured symbol list into simulator entries.
func Catalog(symbols []string) []CatalogEntry {
	out := make([]CatalogEntry, 0, len(symbols))
	for _, sym := range symbols {
		e, ok := seedCatalog[sym]
		if !ok {
			e = CatalogEntry{SeedPrice: 1.0, Volatility: 0.00005, SpreadFrac: 0.00015}
		}
		e.Symbol = sym
		e.Profile = instruments.Resolve(sym)
		out = append(out, e)
	}
	return out
}
