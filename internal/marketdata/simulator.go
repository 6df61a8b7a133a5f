package marketdata

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteMsg is the wire shape of a quote event on the bus.
type QuoteMsg struct {
	Symbol    string `json:"symbol"`
	Bid       string `json:"bid"`
	Ask       string `json:"ask"`
	Spread    string `json:"spread"`
	Timestamp int64  `json:"ts"`
}

// Control is the admin-tunable behaviour of one simulated symbol.
type Control struct {
	Trend         string  `json:"trend"` // up, down, flat
	VolMultiplier float64 `json:"vol_multiplier"`
}

// Simulator drives a random-walk quote stream per catalog entry into the
// feed and the event bus. It stands in for a real upstream price provider;
// the rest of the system only ever sees the Feed and the Bus.
type Simulator struct {
	feed    *Feed
	bus     *Bus
	candles *CandleCache
	entries []CatalogEntry
	rng     *rand.Rand

	mu       sync.RWMutex
	prices   map[string]float64
	controls map[string]Control
}

const tickInterval = 250 * time.Millisecond

func NewSimulator(feed *Feed, bus *Bus, candles *CandleCache, entries []CatalogEntry) *Simulator {
	s := &Simulator{
		feed:     feed,
		bus:      bus,
		candles:  candles,
		entries:  entries,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		prices:   make(map[string]float64, len(entries)),
		controls: make(map[string]Control, len(entries)),
	}
	for _, e := range entries {
		s.prices[e.Symbol] = e.SeedPrice
		s.controls[e.Symbol] = Control{Trend: "flat", VolMultiplier: 1}
	}
	return s
}

// Start launches the tick loop. It publishes an initial quote per symbol
// immediately so the feed is never empty after startup.
func (s *Simulator) Start(ctx context.Context) {
	log.Printf("[simulator] starting quote stream for %d symbols", len(s.entries))
	s.tick()
	go func() {
		t := time.NewTicker(tickInterval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.tick()
			}
		}
	}()
}

func (s *Simulator) tick() {
	now := time.Now().UTC()
	for _, e := range s.entries {
		s.mu.Lock()
		price := s.prices[e.Symbol]
		ctl := s.controls[e.Symbol]

		vol := e.Volatility * ctl.VolMultiplier
		step := s.rng.NormFloat64() * vol * price
		switch ctl.Trend {
		case "up":
			step += vol * price * 0.3
		case "down":
			step -= vol * price * 0.3
		}
		price += step
		if min := e.SeedPrice * 0.2; price < min {
			price = min
		}
		s.prices[e.Symbol] = price
		s.mu.Unlock()

		half := price * e.SpreadFrac / 2
		bid := price - half
		ask := price + half
		prec := int(e.Profile.DisplayDecimals)

		bidDec := decimal.NewFromFloat(bid).Round(e.Profile.DisplayDecimals)
		askDec := decimal.NewFromFloat(ask).Round(e.Profile.DisplayDecimals)
		s.feed.Set(e.Symbol, bidDec, askDec)

		if s.candles != nil {
			if candle, fresh := s.candles.Apply(e.Symbol, price, prec, now); fresh {
				s.bus.Publish(Event{Type: "candle", Data: CandleUpdate{Symbol: e.Symbol, Candle: candle}})
			}
		}
		s.bus.Publish(Event{Type: "quote", Data: QuoteMsg{
			Symbol:    e.Symbol,
			Bid:       formatFloat(bid, prec),
			Ask:       formatFloat(ask, prec),
			Spread:    formatFloat(ask-bid, prec),
			Timestamp: now.UnixMilli(),
		}})
	}
}

// SetControl updates trend/volatility for one symbol (admin market console).
func (s *Simulator) SetControl(symbol, trend string, volMultiplier float64) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	trend = strings.ToLower(strings.TrimSpace(trend))
	if trend != "up" && trend != "down" && trend != "flat" {
		return errors.New("trend must be up, down or flat")
	}
	if volMultiplier <= 0 || volMultiplier > 50 {
		return errors.New("vol_multiplier must be in (0, 50]")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.controls[symbol]; !ok {
		return errors.New("unknown symbol")
	}
	s.controls[symbol] = Control{Trend: trend, VolMultiplier: volMultiplier}
	return nil
}

// Controls returns the current per-symbol controls keyed by symbol.
func (s *Simulator) Controls() map[string]Control {
	s.mu.RLock()
	out := make(map[string]Control, len(s.controls))
	for k, v := range s.controls {
		out[k] = v
	}
	s.mu.RUnlock()
	return out
}

func formatFloat(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}
