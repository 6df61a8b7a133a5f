package marketdata

import (
	"net/http"
	"strconv"
	"strings"

	"traderoom/internal/httputil"
)

type Handler struct {
	entries []CatalogEntry
	candles *CandleCache
	feed    *Feed
}

func NewHandler(entries []CatalogEntry, candles *CandleCache, feed *Feed) *Handler {
	return &Handler{entries: entries, candles: candles, feed: feed}
}

type symbolInfo struct {
	Symbol          string `json:"symbol"`
	AssetClass      string `json:"asset_class"`
	PipSize         string `json:"pip_size"`
	ContractSize    string `json:"contract_size"`
	DisplayDecimals int32  `json:"display_decimals"`
}

// Config lists the tradable symbols with their economic parameters. The
// trading station uses this to render prices and size tickets.
func (h *Handler) Config(w http.ResponseWriter, r *http.Request) {
	out := make([]symbolInfo, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, symbolInfo{
			Symbol:          e.Symbol,
			AssetClass:      string(e.Profile.Class),
			PipSize:         e.Profile.PipSize.String(),
			ContractSize:    e.Profile.ContractSize.String(),
			DisplayDecimals: e.Profile.DisplayDecimals,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"symbols": out})
}

type quoteView struct {
	Symbol string `json:"symbol"`
	Bid    string `json:"bid"`
	Ask    string `json:"ask"`
	Mid    string `json:"mid"`
	At     int64  `json:"ts"`
}

// Quotes returns the latest tick per configured symbol.
func (h *Handler) Quotes(w http.ResponseWriter, r *http.Request) {
	out := make([]quoteView, 0, len(h.entries))
	for _, e := range h.entries {
		q, ok := h.feed.Quote(e.Symbol)
		if !ok {
			continue
		}
		out = append(out, quoteView{
			Symbol: e.Symbol,
			Bid:    q.Bid.StringFixed(e.Profile.DisplayDecimals),
			Ask:    q.Ask.StringFixed(e.Profile.DisplayDecimals),
			Mid:    q.Mid().StringFixed(e.Profile.DisplayDecimals),
			At:     q.At.Unix(),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"quotes": out})
}

// Candles serves candle history at any supported timeframe, aggregated from
// the in-memory 1m base. No history is generated beyond what ticks produced.
func (h *Handler) Candles(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("symbol")))
	if symbol == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "symbol is required"})
		return
	}
	interval := parseInterval(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("timeframe"))))
	if interval == 0 {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid timeframe"})
		return
	}
	limit := 500
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	out := h.candles.Recent(symbol, interval, limit)
	var before int64
	if v := r.URL.Query().Get("before"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			before = n
		}
	}
	if before > 0 {
		filtered := make([]Candle, 0, len(out))
		for _, c := range out {
			if c.Time < before {
				filtered = append(filtered, c)
			}
		}
		out = filtered
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}
