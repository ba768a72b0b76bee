package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"storefront-bff/internal/freight"
	"storefront-bff/internal/models"
)

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))

	res, err := h.sf.Products(r.Context(), models.ProductQuery{
		Search:   q.Get("q"),
		Category: q.Get("category"),
		Page:     page,
		PageSize: size,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.sf.Product(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) LookupCEP(w http.ResponseWriter, r *http.Request) {
	addr, err := h.sf.LookupCEP(r.Context(), chi.URLParam(r, "cep"))
	if err != nil {
		writeErrorStatus(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, addr)
}

type validateRequest struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.sf.Validate(strings.ToLower(strings.TrimSpace(req.Kind)), req.Value)
	if err != nil {
		writeErrorStatus(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type packageRequest struct {
	Items []freight.Item `json:"items"`
}

func (h *Handler) FreightPackage(w http.ResponseWriter, r *http.Request) {
	var req packageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	pkg, err := h.sf.MountPackage(req.Items)
	if err != nil {
		writeErrorStatus(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

type quoteRequest struct {
	CEP   string         `json:"cep"`
	Items []freight.Item `json:"items"`
}

func (h *Handler) FreightQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, err := h.sf.QuoteFreight(r.Context(), req.CEP, req.Items)
	if err != nil {
		writeErrorStatus(w, r, err, http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

// Checkout places the order. Delivery address and freight fall back to the
// session cookies; the freight cookie is cleared once the order exists.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var (
		addr *models.Address
		fr   *models.FreightSelection
	)
	if a, ok := h.sessions.Address(r); ok {
		addr = &a
	}
	if f, ok := h.sessions.Freight(r); ok {
		fr = &f
	}

	oc, err := h.sf.Checkout(r.Context(), req, addr, fr, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.sessions.ClearFreight(w)
	writeJSON(w, http.StatusCreated, oc)
}
