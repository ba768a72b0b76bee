package api

import (
	"log/slog"
	"net/http"
	"strings"

	"storefront-bff/internal/freight"
	"storefront-bff/internal/models"
	"storefront-bff/internal/validation"
)

func (h *Handler) GetAddress(w http.ResponseWriter, r *http.Request) {
	addr, ok := h.sessions.Address(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no delivery address"})
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

// PutAddress stores the delivery address. A freight choice quoted for
// another CEP is dropped.
func (h *Handler) PutAddress(w http.ResponseWriter, r *http.Request) {
	var addr models.Address
	if !decodeJSON(w, r, &addr) {
		return
	}
	if fields := h.sf.Validator().Struct(addr); fields != nil {
		writeError(w, r, fields)
		return
	}

	addr.CEP = validation.FormatCEP(addr.CEP)
	addr.State = strings.ToUpper(strings.TrimSpace(addr.State))
	if err := h.sessions.SetAddress(w, addr); err != nil {
		slog.Error("Failed to set address cookie", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "could not store address"})
		return
	}

	if f, ok := h.sessions.Freight(r); ok && validation.OnlyDigits(f.CEP) != validation.OnlyDigits(addr.CEP) {
		h.sessions.ClearFreight(w)
	}
	writeJSON(w, http.StatusOK, addr)
}

func (h *Handler) DeleteAddress(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearAddress(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetFreight(w http.ResponseWriter, r *http.Request) {
	f, ok := h.sessions.Freight(r)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no freight selected"})
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type freightRequest struct {
	Service string         `json:"service"`
	CEP     string         `json:"cep"`
	Items   []freight.Item `json:"items"`
}

// PutFreight stores the chosen service re-quoted for the cart, so the
// cookie only ever carries a backend price.
func (h *Handler) PutFreight(w http.ResponseWriter, r *http.Request) {
	var req freightRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sel, err := h.sf.SelectFreight(r.Context(), req.Service, req.CEP, req.Items)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.sessions.SetFreight(w, *sel); err != nil {
		slog.Error("Failed to set freight cookie", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "could not store freight"})
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func (h *Handler) DeleteFreight(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearFreight(w)
	w.WriteHeader(http.StatusNoContent)
}
