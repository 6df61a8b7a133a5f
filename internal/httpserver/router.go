package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"traderoom/internal/admin"
	"traderoom/internal/auth"
	"traderoom/internal/health"
	"traderoom/internal/httputil"
	"traderoom/internal/kyc"
	"traderoom/internal/ledger"
	"traderoom/internal/marketdata"
	"traderoom/internal/trades"
)

type RouterDeps struct {
	AuthHandler   *auth.Handler
	KYCHandler    *kyc.Handler
	LedgerHandler *ledger.Handler
	TradeHandler  *trades.Handler
	MarketHandler *marketdata.Handler
	AdminHandler  *admin.Handler
	HealthHandler *health.Handler
	AuthService   *auth.Service
	InternalToken string
	JWTSecret     string
	WSHandler     http.Handler
	QuoteWS       http.Handler
	CandleWS      http.Handler
}

// withUser adapts a userID-taking handler to chi, rejecting requests where
// the auth middleware did not run.
func withUser(h func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		h(w, r, userID)
	}
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS for the trading station and admin console dev servers.
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				origin = "*"
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.Use(SecurityHeaders)
	r.Use(RateLimitMiddleware)

	r.Get("/health", d.HealthHandler.Live)
	r.Get("/ready", d.HealthHandler.Ready)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})

		r.Get("/ws", d.WSHandler.ServeHTTP)
		r.Get("/market/config", d.MarketHandler.Config)
		r.Get("/market/quotes", d.MarketHandler.Quotes)
		r.Get("/market/candles", d.MarketHandler.Candles)
		r.Get("/market/ws", d.QuoteWS.ServeHTTP)
		r.Get("/market/candles/ws", d.CandleWS.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))
			r.Get("/me", withUser(d.AuthHandler.Me))
			r.Get("/balances", withUser(d.LedgerHandler.Balances))
			r.Post("/faucet", withUser(d.LedgerHandler.Faucet))

			r.Post("/kyc", withUser(d.KYCHandler.Submit))
			r.Get("/kyc/status", withUser(d.KYCHandler.Status))

			r.Get("/positions", withUser(d.TradeHandler.Positions))
			r.Post("/positions", withUser(d.TradeHandler.Open))
			r.Post("/positions/close", withUser(d.TradeHandler.CloseScope))
			r.Post("/positions/{tradeID}/close", withUser(d.TradeHandler.Close))
			r.Get("/positions/history", withUser(d.TradeHandler.History))
			r.Get("/metrics", withUser(d.TradeHandler.Metrics))
		})

		r.Group(func(r chi.Router) {
			r.Use(InternalAuth(d.InternalToken))
			r.Post("/internal/deposits", d.LedgerHandler.Deposit)
			r.Post("/internal/withdrawals", d.LedgerHandler.Withdraw)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/login", d.AdminHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(admin.AdminAuthMiddleware(d.JWTSecret))
				r.Get("/me", d.AdminHandler.Me)
				r.With(admin.RequireRight("users")).Get("/users", d.AdminHandler.ListUsers)
				r.With(admin.RequireRight("users")).Get("/users/{userID}/balances", d.AdminHandler.UserBalances)
				r.With(admin.RequireRight("kyc")).Get("/kyc/queue", d.AdminHandler.KYCQueue)
				r.With(admin.RequireRight("kyc")).Post("/kyc/{requestID}/review", d.AdminHandler.KYCReview)
				r.Get("/trading/risk", d.AdminHandler.GetTradingRisk)
				r.Post("/trading/risk", d.AdminHandler.UpdateTradingRisk)
				r.With(admin.RequireRight("market")).Get("/market/controls", d.AdminHandler.MarketControls)
				r.With(admin.RequireRight("market")).Post("/market/controls/{symbol}", d.AdminHandler.SetMarketControl)
				r.Get("/ledger/audit", d.AdminHandler.LedgerAudit)
			})
		})
	})

	return r
}
