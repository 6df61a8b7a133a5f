package marketdata

import (
	"strconv"
	"sync"
	"time"
)

type Candle struct {
	Time  int64  `json:"time"`
	Open  string `json:"open"`
	High  string `json:"high"`
	Low   string `json:"low"`
	Close string `json:"close"`
}

// CandleCache keeps an in-memory ring of 1m candles per symbol, built from
// ticks. Higher timeframes are re-aggregated from the 1m base on demand.
type CandleCache struct {
	mu    sync.Mutex
	items map[string][]Candle
	max   int
}

func NewCandleCache(max int) *CandleCache {
	if max <= 0 {
		max = 5000
	}
	return &CandleCache{items: make(map[string][]Candle), max: max}
}

// Apply folds one tick into the symbol's current 1m candle, rotating to a
// new candle on minute boundaries. The returned candle is the live one.
func (c *CandleCache) Apply(symbol string, price float64, prec int, now time.Time) (Candle, bool) {
	if symbol == "" || price <= 0 {
		return Candle{}, false
	}
	bucket := now.Unix() - now.Unix()%60
	px := formatFloat(price, prec)

	c.mu.Lock()
	defer c.mu.Unlock()
	base := c.items[symbol]
	if len(base) > 0 && base[len(base)-1].Time == bucket {
		last := &base[len(base)-1]
		last.Close = px
		if high, _ := strconv.ParseFloat(last.High, 64); price > high {
			last.High = px
		}
		if low, _ := strconv.ParseFloat(last.Low, 64); price < low {
			last.Low = px
		}
		return *last, true
	}
	next := Candle{Time: bucket, Open: px, High: px, Low: px, Close: px}
	base = append(base, next)
	if len(base) > c.max {
		base = base[len(base)-c.max:]
	}
	c.items[symbol] = base
	return next, true
}

// Recent returns up to limit candles at the requested interval, oldest first.
func (c *CandleCache) Recent(symbol string, interval time.Duration, limit int) []Candle {
	if limit <= 0 {
		limit = 100
	}
	c.mu.Lock()
	base := make([]Candle, len(c.items[symbol]))
	copy(base, c.items[symbol])
	c.mu.Unlock()

	out := base
	if interval > time.Minute {
		out = aggregateCandles(base, interval)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

func aggregateCandles(base []Candle, interval time.Duration) []Candle {
	if len(base) == 0 {
		return nil
	}
	step := int64(interval / time.Second)
	if step <= 0 {
		return base
	}
	var out []Candle
	for _, c := range base {
		bucket := c.Time - c.Time%step
		if len(out) > 0 && out[len(out)-1].Time == bucket {
			last := &out[len(out)-1]
			last.Close = c.Close
			if cmpPx(c.High, last.High) > 0 {
				last.High = c.High
			}
			if cmpPx(c.Low, last.Low) < 0 {
				last.Low = c.Low
			}
			continue
		}
		out = append(out, Candle{Time: bucket, Open: c.Open, High: c.High, Low: c.Low, Close: c.Close})
	}
	return out
}

func cmpPx(a, b string) int {
	fa, _ := strconv.ParseFloat(a, 64)
	fb, _ := strconv.ParseFloat(b, 64)
	switch {
	case fa > fb:
		return 1
	case fa < fb:
		return -1
	default:
		return 0
	}
}

func parseInterval(tf string) time.Duration {
	switch tf {
	case "", "1m":
		return time.Minute
	case "5m":
		return 5 * time.Minute
	case "15m":
		return 15 * time.Minute
	case "30m":
		return 30 * time.Minute
	case "1h":
		return time.Hour
	case "4h":
		return 4 * time.Hour
	case "1d":
		return 24 * time.Hour
	default:
		return 0
	}
}
