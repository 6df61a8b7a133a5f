package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"traderoom/internal/auth"
	"traderoom/internal/marketdata"
	"traderoom/internal/trades"
)

// WSHandler is the authenticated account stream: it forwards market events
// and, on request, interleaves throttled account snapshots so the trading
// station can keep its equity header live without polling.
type WSHandler struct {
	bus      *marketdata.Bus
	authSvc  *auth.Service
	tradeSvc *trades.Service
	origin   string
	upgrader websocket.Upgrader
}

func NewWSHandler(bus *marketdata.Bus, authSvc *auth.Service, tradeSvc *trades.Service, origin string) *WSHandler {
	return &WSHandler{
		bus:      bus,
		authSvc:  authSvc,
		tradeSvc: tradeSvc,
		origin:   origin,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) },
		},
	}
}

type wsControlMessage struct {
	Type    string `json:"type"`
	Enabled *bool  `json:"enabled,omitempty"`
}

type accountSnapshotWS struct {
	Balance     string `json:"balance"`
	Equity      string `json:"equity"`
	Margin      string `json:"margin"`
	FreeMargin  string `json:"free_margin"`
	MarginLevel string `json:"margin_level"`
	PnL         string `json:"pnl"`
	OpenCount   int    `json:"open_count"`
	TS          int64  `json:"ts"`
}

func (h *WSHandler) collectAccountSnapshot(ctx context.Context, userID string) (accountSnapshotWS, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	metrics, err := h.tradeSvc.AccountMetrics(ctx, userID)
	if err != nil {
		return accountSnapshotWS{}, err
	}
	groups, err := h.tradeSvc.ListPositions(ctx, userID)
	if err != nil {
		return accountSnapshotWS{}, err
	}
	openCount := 0
	for _, g := range groups {
		openCount += len(g.Trades)
	}
	return accountSnapshotWS{
		Balance:     metrics.Balance.String(),
		Equity:      metrics.Equity.String(),
		Margin:      metrics.Margin.String(),
		FreeMargin:  metrics.FreeMargin.String(),
		MarginLevel: metrics.MarginLevel.String(),
		PnL:         metrics.PnL.String(),
		OpenCount:   openCount,
		TS:          time.Now().UnixMilli(),
	}, nil
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	reqOrigin := r.Header.Get("Origin")
	if strings.Contains(origin, "localhost") || strings.Contains(origin, "127.0.0.1") {
		if strings.Contains(reqOrigin, "localhost") || strings.Contains(reqOrigin, "127.0.0.1") {
			return true
		}
	}
	return strings.EqualFold(reqOrigin, origin)
}

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on WS upgrades, so the token rides the
	// query string.
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}
	userID, err := h.authSvc.ParseToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	sub := h.bus.Subscribe()
	defer h.bus.Unsubscribe(sub)

	var snapshotsMu sync.RWMutex
	snapshotsEnabled := false
	lastSnapshotAt := time.Time{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var ctrl wsControlMessage
			if err := json.Unmarshal(payload, &ctrl); err != nil {
				continue
			}
			switch strings.ToLower(strings.TrimSpace(ctrl.Type)) {
			case "account_snapshot_subscribe":
				next := true
				if ctrl.Enabled != nil {
					next = *ctrl.Enabled
				}
				snapshotsMu.Lock()
				snapshotsEnabled = next
				snapshotsMu.Unlock()
			case "account_snapshot_unsubscribe":
				snapshotsMu.Lock()
				snapshotsEnabled = false
				snapshotsMu.Unlock()
			}
		}
	}()
	for {
		select {
		case evt, ok := <-sub:
			if !ok {
				return
			}
			if err := conn.WriteJSON(evt); err != nil {
				return
			}
			if evt.Type != "quote" {
				continue
			}
			snapshotsMu.RLock()
			enabled := snapshotsEnabled
			snapshotsMu.RUnlock()
			if !enabled {
				continue
			}
			if !lastSnapshotAt.IsZero() && time.Since(lastSnapshotAt) < 200*time.Millisecond {
				continue
			}
			snapshot, err := h.collectAccountSnapshot(context.Background(), userID)
			if err == nil {
				if err := conn.WriteJSON(marketdata.Event{Type: "account_snapshot", Data: snapshot}); err != nil {
					return
				}
				lastSnapshotAt = time.Now()
			}
		case <-done:
			return
		}
	}
}
