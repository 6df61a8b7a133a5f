package marketdata

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the latest bid/ask seen for one symbol. Latest wins; there is no
// history here.
type Quote struct {
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	At     time.Time
}

// Mid returns the midpoint price used for display valuation.
func (q Quote) Mid() decimal.Decimal {
	return q.Bid.Add(q.Ask).Div(decimal.NewFromInt(2))
}

// Feed is the live tick cache. The simulator (or any upstream feed) writes
// it; readers take immutable snapshots. The valuation engine never reads the
// feed directly — it is handed a Snapshot per call.
type Feed struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewFeed() *Feed {
	return &Feed{quotes: make(map[string]Quote)}
}

func (f *Feed) Set(symbol string, bid, ask decimal.Decimal) {
	if symbol == "" || bid.LessThanOrEqual(decimal.Zero) || ask.LessThanOrEqual(decimal.Zero) {
		return
	}
	f.mu.Lock()
	f.quotes[symbol] = Quote{Symbol: symbol, Bid: bid, Ask: ask, At: time.Now().UTC()}
	f.mu.Unlock()
}

// Quote returns the latest quote for symbol, if any tick has arrived.
func (f *Feed) Quote(symbol string) (Quote, bool) {
	f.mu.RLock()
	q, ok := f.quotes[symbol]
	f.mu.RUnlock()
	return q, ok
}

// Snapshot returns a fresh symbol->mid map. The map is owned by the caller;
// later ticks never show through it.
func (f *Feed) Snapshot() map[string]decimal.Decimal {
	f.mu.RLock()
	out := make(map[string]decimal.Decimal, len(f.quotes))
	for sym, q := range f.quotes {
		out[sym] = q.Mid()
	}
	f.mu.RUnlock()
	return out
}
