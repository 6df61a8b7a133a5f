package health

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"traderoom/internal/httputil"
	"traderoom/internal/marketdata"
)

type Handler struct {
	pool *pgxpool.Pool
	feed *marketdata.Feed
}

func NewHandler(pool *pgxpool.Pool, feed *marketdata.Feed) *Handler {
	return &Handler{pool: pool, feed: feed}
}

// Live answers as long as the process is up.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready checks the database and whether quotes are flowing.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{"db": "ok", "feed": "ok"}
	status := http.StatusOK
	if err := h.pool.Ping(ctx); err != nil {
		checks["db"] = err.Error()
		status = http.StatusServiceUnavailable
	}
	if len(h.feed.Snapshot()) == 0 {
		checks["feed"] = "no quotes yet"
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, checks)
}
