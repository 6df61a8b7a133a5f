package trades

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"traderoom/internal/httputil"
	"traderoom/internal/types"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type openPositionRequest struct {
	Symbol   string `json:"symbol"`
	Side     string `json:"side"`
	Lots     string `json:"lots"`
	Leverage int64  `json:"leverage"`
}

func (h *Handler) Open(w http.ResponseWriter, r *http.Request, userID string) {
	var req openPositionRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	lots, err := decimal.NewFromString(req.Lots)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid lots"})
		return
	}
	res, err := h.svc.OpenPosition(r.Context(), OpenPositionRequest{
		UserID:   userID,
		Symbol:   req.Symbol,
		Side:     types.TradeSide(strings.ToLower(strings.TrimSpace(req.Side))),
		Lots:     lots,
		Leverage: req.Leverage,
	})
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, res)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request, userID string) {
	tradeID := chi.URLParam(r, "tradeID")
	if tradeID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "trade id is required"})
		return
	}
	res, err := h.svc.ClosePosition(r.Context(), userID, tradeID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

type closeScopeRequest struct {
	Scope string `json:"scope"`
}

func (h *Handler) CloseScope(w http.ResponseWriter, r *http.Request, userID string) {
	var req closeScopeRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	res, err := h.svc.CloseByScope(r.Context(), userID, req.Scope)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, res)
}

func (h *Handler) Positions(w http.ResponseWriter, r *http.Request, userID string) {
	groups, err := h.svc.ListPositions(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"positions": groups})
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request, userID string) {
	var before *time.Time
	if v := r.URL.Query().Get("before"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid before timestamp"})
			return
		}
		before = &ts
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	trades, err := h.svc.ListHistory(r.Context(), userID, before, limit)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

// Metrics serves the account health numbers and triggers stop-out
// enforcement first so callers never see a level the engine would not allow
// to persist.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request, userID string) {
	if _, err := h.svc.EnforceStopOut(r.Context(), userID); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	metrics, err := h.svc.AccountMetrics(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, metrics)
}
