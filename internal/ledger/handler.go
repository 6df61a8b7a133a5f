package ledger

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"traderoom/internal/httputil"
	"traderoom/internal/types"
)

// Verifier reports whether a user has passed identity verification.
// Withdrawals are blocked until they have.
type Verifier interface {
	IsApproved(ctx context.Context, userID string) (bool, error)
}

type Handler struct {
	svc           *Service
	verifier      Verifier
	faucetEnabled bool
	faucetMax     decimal.Decimal
}

func NewHandler(svc *Service, verifier Verifier, faucetEnabled bool, faucetMax decimal.Decimal) *Handler {
	return &Handler{svc: svc, verifier: verifier, faucetEnabled: faucetEnabled, faucetMax: faucetMax}
}

type movementRequest struct {
	UserID    string `json:"user_id"`
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
}

type faucetRequest struct {
	Amount    string `json:"amount"`
	Reference string `json:"reference"`
}

// Deposit credits a user from the system book. It sits behind the internal
// API token; the public cashier calls it after its own checks pass.
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	if req.UserID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "user_id is required"})
		return
	}
	tx, err := h.svc.pool.BeginTx(r.Context(), pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	defer tx.Rollback(r.Context())
	systemAccount, err := h.svc.EnsureSystemAccount(r.Context(), tx, types.AccountKindAvailable)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	userAccount, err := h.svc.EnsureAccount(r.Context(), tx, req.UserID, types.AccountKindAvailable)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	_, err = h.svc.Transfer(r.Context(), tx, systemAccount, userAccount, amount, types.LedgerEntryTypeDeposit, req.Reference)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Withdraw debits a user's available balance back to the system book. Fails
// when the available balance does not cover the amount; reserved margin is
// never touched.
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req movementRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	if req.UserID == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "user_id is required"})
		return
	}
	if h.verifier != nil {
		approved, err := h.verifier.IsApproved(r.Context(), req.UserID)
		if err != nil {
			httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
			return
		}
		if !approved {
			httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "user has not passed verification"})
			return
		}
	}
	tx, err := h.svc.pool.BeginTx(r.Context(), pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	defer tx.Rollback(r.Context())
	userAccount, err := h.svc.EnsureAccount(r.Context(), tx, req.UserID, types.AccountKindAvailable)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	balance, err := h.svc.GetBalance(r.Context(), tx, userAccount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if balance.LessThan(amount) {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "insufficient balance"})
		return
	}
	systemAccount, err := h.svc.EnsureSystemAccount(r.Context(), tx, types.AccountKindAvailable)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	_, err = h.svc.Transfer(r.Context(), tx, userAccount, systemAccount, amount, types.LedgerEntryTypeWithdraw, req.Reference)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Faucet tops up the caller's own balance with play money, capped per call.
func (h *Handler) Faucet(w http.ResponseWriter, r *http.Request, userID string) {
	if !h.faucetEnabled {
		httputil.WriteJSON(w, http.StatusForbidden, httputil.ErrorResponse{Error: "faucet disabled"})
		return
	}
	var req faucetRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "amount must be positive"})
		return
	}
	if h.faucetMax.GreaterThan(decimal.Zero) && amount.GreaterThan(h.faucetMax) {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "amount exceeds faucet limit"})
		return
	}
	tx, err := h.svc.pool.BeginTx(r.Context(), pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	defer tx.Rollback(r.Context())
	systemAccount, err := h.svc.EnsureSystemAccount(r.Context(), tx, types.AccountKindAvailable)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	userAccount, err := h.svc.EnsureAccount(r.Context(), tx, userID, types.AccountKindAvailable)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	ref := req.Reference
	if ref == "" {
		ref = "faucet"
	}
	_, err = h.svc.Transfer(r.Context(), tx, systemAccount, userAccount, amount, types.LedgerEntryTypeFaucet, ref)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if err := tx.Commit(r.Context()); err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Balances lists the caller's per-kind USD balances.
func (h *Handler) Balances(w http.ResponseWriter, r *http.Request, userID string) {
	balances, err := h.svc.BalancesByUser(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if balances == nil {
		balances = []Balance{}
	}
	httputil.WriteJSON(w, http.StatusOK, balances)
}
