package admin

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"traderoom/internal/httputil"
	"traderoom/internal/kyc"
	"traderoom/internal/ledger"
	"traderoom/internal/marketdata"
	"traderoom/internal/trades"
)

// Handler is the admin console backend: operator login plus the management
// surfaces (users, KYC review, risk limits, market controls, ledger audit).
type Handler struct {
	pool      *pgxpool.Pool
	jwtSecret []byte
	kycSvc    *kyc.Service
	tradeSvc  *trades.Service
	ledgerSvc *ledger.Service
	simulator *marketdata.Simulator
}

func NewHandler(pool *pgxpool.Pool, jwtSecret string, kycSvc *kyc.Service, tradeSvc *trades.Service, ledgerSvc *ledger.Service, simulator *marketdata.Simulator) *Handler {
	return &Handler{
		pool:      pool,
		jwtSecret: []byte(jwtSecret),
		kycSvc:    kycSvc,
		tradeSvc:  tradeSvc,
		ledgerSvc: ledgerSvc,
		simulator: simulator,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request"})
		return
	}
	var id int
	var passwordHash, role string
	var rights []string
	err := h.pool.QueryRow(r.Context(),
		"select id, password_hash, role, coalesce(rights, '{}') from admin_users where username = $1", req.Username,
	).Scan(&id, &passwordHash, &role, &rights)
	if err != nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid credentials"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid credentials"})
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":      id,
		"username": req.Username,
		"role":     role,
		"rights":   rights,
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
	})
	tokenStr, err := token.SignedString(h.jwtSecret)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: "token generation failed"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"token":    tokenStr,
		"username": req.Username,
		"role":     role,
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	username, _ := r.Context().Value(adminUsernameKey).(string)
	role, _ := r.Context().Value(adminRoleKey).(string)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"username": username,
		"role":     role,
	})
}

type userRow struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	KYCState    string `json:"kyc_state"`
	CreatedAt   string `json:"created_at"`
}

// ListUsers pages registered users with their latest KYC state.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}
	rows, err := h.pool.Query(r.Context(), `
		select u.id, u.email, coalesce(u.display_name, ''), coalesce(k.state, 'none'), u.created_at
		from users u
		left join lateral (
			select state from kyc_requests where user_id = u.id order by submitted_at desc limit 1
		) k on true
		order by u.created_at desc
		limit $1 offset $2`, limit, offset)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	defer rows.Close()
	out := make([]userRow, 0, limit)
	for rows.Next() {
		var u userRow
		var createdAt time.Time
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &u.KYCState, &createdAt); err != nil {
			httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
			return
		}
		u.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		out = append(out, u)
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"users": out})
}

// UserBalances shows one user's ledger balances (support tooling).
func (h *Handler) UserBalances(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	balances, err := h.ledgerSvc.BalancesByUser(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if balances == nil {
		balances = []ledger.Balance{}
	}
	httputil.WriteJSON(w, http.StatusOK, balances)
}

func (h *Handler) KYCQueue(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	queue, err := h.kycSvc.PendingQueue(r.Context(), limit)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if queue == nil {
		queue = []kyc.Request{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"requests": queue})
}

type kycReviewRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note"`
}

func (h *Handler) KYCReview(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	var req kycReviewRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.kycSvc.Review(r.Context(), requestID, req.Approve, req.Note); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reviewed"})
}

func (h *Handler) GetTradingRisk(w http.ResponseWriter, r *http.Request) {
	if !requireOwner(w, r) {
		return
	}
	cfg, err := h.tradeSvc.GetRiskConfig(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, cfg)
}

type riskUpdateRequest struct {
	MaxOpenPositions       int    `json:"max_open_positions"`
	MinOrderLots           string `json:"min_order_lots"`
	MaxOrderLots           string `json:"max_order_lots"`
	MaxOrderNotionalUSD    string `json:"max_order_notional_usd"`
	MaxLeverage            int64  `json:"max_leverage"`
	MarginCallLevelPercent string `json:"margin_call_level_pct"`
	StopOutLevelPercent    string `json:"stop_out_level_pct"`
}

func (h *Handler) UpdateTradingRisk(w http.ResponseWriter, r *http.Request) {
	if !requireOwner(w, r) {
		return
	}
	var req riskUpdateRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid request"})
		return
	}
	cfg := trades.RiskConfig{
		MaxOpenPositions: req.MaxOpenPositions,
		MaxLeverage:      req.MaxLeverage,
	}
	var ok bool
	if cfg.MinOrderLots, ok = parsePositive(req.MinOrderLots); !ok {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "min_order_lots must be a positive number"})
		return
	}
	if cfg.MaxOrderLots, ok = parsePositive(req.MaxOrderLots); !ok {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "max_order_lots must be a positive number"})
		return
	}
	if cfg.MaxOrderNotionalUSD, ok = parsePositive(req.MaxOrderNotionalUSD); !ok {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "max_order_notional_usd must be a positive number"})
		return
	}
	if cfg.MarginCallLevelPercent, ok = parsePositive(req.MarginCallLevelPercent); !ok {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "margin_call_level_pct must be a positive number"})
		return
	}
	if cfg.StopOutLevelPercent, ok = parsePositive(req.StopOutLevelPercent); !ok {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "stop_out_level_pct must be a positive number"})
		return
	}
	if err := h.tradeSvc.UpdateRiskConfig(r.Context(), cfg); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	h.GetTradingRisk(w, r)
}

// MarketControls reports the simulator trend/volatility per symbol.
func (h *Handler) MarketControls(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.simulator.Controls())
}

type marketControlRequest struct {
	Trend         string  `json:"trend"`
	VolMultiplier float64 `json:"vol_multiplier"`
}

// SetMarketControl tunes one symbol's simulated trend and volatility.
func (h *Handler) SetMarketControl(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	var req marketControlRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if err := h.simulator.SetControl(symbol, req.Trend, req.VolMultiplier); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// LedgerAudit recomputes the full entry hash chain.
func (h *Handler) LedgerAudit(w http.ResponseWriter, r *http.Request) {
	if !requireOwner(w, r) {
		return
	}
	checked, err := h.ledgerSvc.VerifyChain(r.Context())
	if err != nil {
		httputil.WriteJSON(w, http.StatusConflict, map[string]any{"checked": checked, "error": err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"checked": checked, "status": "ok"})
}

// AdminAuthMiddleware validates the operator JWT and loads role and rights
// into the request context.
func AdminAuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	secret := []byte(jwtSecret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "missing authorization"})
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid authorization format"})
				return
			}
			token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "invalid token"})
				return
			}
			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid claims"})
				return
			}
			role, _ := claims["role"].(string)
			if role != "admin" && role != "owner" {
				httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "admin access required"})
				return
			}
			username, _ := claims["username"].(string)
			rightsMap := map[string]bool{}
			if rightsRaw, ok := claims["rights"].([]interface{}); ok {
				for _, raw := range rightsRaw {
					if right, ok := raw.(string); ok && right != "" {
						rightsMap[right] = true
					}
				}
			}
			if role == "owner" {
				for _, right := range allAdminRights {
					rightsMap[right] = true
				}
			}
			ctx := context.WithValue(r.Context(), adminUsernameKey, username)
			ctx = context.WithValue(ctx, adminRoleKey, role)
			ctx = context.WithValue(ctx, adminRightsKey, rightsMap)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type contextKey string

const adminUsernameKey contextKey = "admin_username"
const adminRoleKey contextKey = "admin_role"
const adminRightsKey contextKey = "admin_rights"

var allAdminRights = []string{"users", "kyc", "risk", "market", "ledger"}

func requireOwner(w http.ResponseWriter, r *http.Request) bool {
	role, _ := r.Context().Value(adminRoleKey).(string)
	if role != "owner" {
		httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "owner access required"})
		return false
	}
	return true
}

// RequireRight gates a route on one admin right; owners pass everything.
func RequireRight(right string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, _ := r.Context().Value(adminRoleKey).(string)
			if role == "owner" {
				next.ServeHTTP(w, r)
				return
			}
			rights, _ := r.Context().Value(adminRightsKey).(map[string]bool)
			if rights == nil || !rights[right] {
				httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "missing right: " + right})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parsePositive(raw string) (decimal.Decimal, bool) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil || !v.GreaterThan(decimal.Zero) {
		return decimal.Zero, false
	}
	return v, true
}
