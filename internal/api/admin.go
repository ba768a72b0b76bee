package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"storefront-bff/internal/apiclient"
	"storefront-bff/internal/auth"
	"storefront-bff/internal/models"
)

// adminToken forwards the caller's JWT to the backend when configured.
func (h *Handler) adminToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.forwardToken {
			if tok := auth.Token(r.Context()); tok != "" {
				r = r.WithContext(apiclient.WithToken(r.Context(), tok))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	list, err := h.sf.Orders(r.Context(), models.OrderFilter{
		Status: r.URL.Query().Get("status"),
		Page:   page,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	d, err := h.sf.OrderDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (h *Handler) ApproveOrder(w http.ResponseWriter, r *http.Request) {
	oc, err := h.sf.Decide(r.Context(), chi.URLParam(r, "id"), models.ActionApprove, "", auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, oc)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) RejectOrder(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	oc, err := h.sf.Decide(r.Context(), chi.URLParam(r, "id"), models.ActionReject, req.Reason, auth.UserID(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, oc)
}

func (h *Handler) SalesReport(w http.ResponseWriter, r *http.Request) {
	rep, err := h.sf.Sales(r.Context(), r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		writeErrorStatus(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sf.Dashboard(r.Context()))
}
