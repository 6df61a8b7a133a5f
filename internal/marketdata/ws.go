package marketdata

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// QuoteWS streams live quotes to a client over WebSocket. Clients may pass
// ?symbol=EURUSD to subscribe to one symbol; omitting it streams everything.
type QuoteWS struct {
	origin   string
	bus      *Bus
	upgrader websocket.Upgrader
}

func NewQuoteWS(origin string, bus *Bus) *QuoteWS {
	return &QuoteWS{
		origin:   origin,
		bus:      bus,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) }},
	}
}

func (h *QuoteWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if evt.Type != "quote" {
				continue
			}
			q, ok := evt.Data.(QuoteMsg)
			if !ok {
				continue
			}
			if symbol != "" && q.Symbol != symbol {
				continue
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// CandleUpdate is the bus payload for a live candle tick.
type CandleUpdate struct {
	Symbol string `json:"symbol"`
	Candle Candle `json:"candle"`
}

type CandleMessage struct {
	Type      string   `json:"type"`
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Candles   []Candle `json:"candles,omitempty"`
	Candle    *Candle  `json:"candle,omitempty"`
	Timestamp int64    `json:"ts"`
}

// CandleWS sends the recent candle history once, then live updates as they
// arrive on the bus. Non-1m timeframes are re-aggregated per update.
type CandleWS struct {
	origin   string
	bus      *Bus
	candles  *CandleCache
	upgrader websocket.Upgrader
}

func NewCandleWS(origin string, bus *Bus, candles *CandleCache) *CandleWS {
	return &CandleWS{
		origin:   origin,
		bus:      bus,
		candles:  candles,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) }},
	}
}

func (h *CandleWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		return
	}
	tf := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("timeframe")))
	interval := parseInterval(tf)
	if interval == 0 {
		return
	}
	if tf == "" {
		tf = "1m"
	}
	limit := 200
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	snapshot := h.candles.Recent(symbol, interval, limit)
	init := CandleMessage{Type: "snapshot", Symbol: symbol, Timeframe: tf, Candles: snapshot, Timestamp: time.Now().UTC().Unix()}
	if err := conn.WriteJSON(init); err != nil {
		return
	}

	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for {
		select {
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if evt.Type != "candle" {
				continue
			}
			upd, ok := evt.Data.(CandleUpdate)
			if !ok || upd.Symbol != symbol {
				continue
			}
			latest := upd.Candle
			if interval > time.Minute {
				recent := h.candles.Recent(symbol, interval, 1)
				if len(recent) == 0 {
					continue
				}
				latest = recent[len(recent)-1]
			}
			msg := CandleMessage{Type: "candle", Symbol: symbol, Timeframe: tf, Candle: &latest, Timestamp: time.Now().UTC().Unix()}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	return strings.EqualFold(r.Header.Get("Origin"), origin)
}
