package kyc

import (
	"errors"
	"net/http"

	"traderoom/internal/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request, userID string) {
	var sub Submission
	if err := httputil.ReadJSON(r, &sub); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	id, err := h.svc.Submit(r.Context(), userID, sub)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, ErrPendingReview) {
			status = http.StatusConflict
		}
		httputil.WriteJSON(w, status, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{"request_id": id, "status": "pending"})
}

func (h *Handler) Status(w http.ResponseWriter, r *http.Request, userID string) {
	st, err := h.svc.Current(r.Context(), userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}
