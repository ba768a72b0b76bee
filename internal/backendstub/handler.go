package backendstub

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"storefront-bff/internal/models"
	"storefront-bff/internal/ordercontext"
	"storefront-bff/internal/validation"
)

// Routes builds the backend router.
func (b *Backend) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(b.requireToken)

	r.Route("/products", func(r chi.Router) {
		r.Get("/", b.handleListProducts)
		r.Get("/{id}", b.handleGetProduct)
	})
	r.Get("/addresses/{cep}", b.handleAddress)
	r.Post("/freight/quote", b.handleQuote)

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", b.handleListOrders)
		r.Post("/", b.handlePlaceOrder)
		r.Get("/{id}", b.handleGetOrder)
		r.Post("/{id}/approve", b.handleDecide(ordercontext.StatusApproved))
		r.Post("/{id}/reject", b.handleDecide(ordercontext.StatusRejected))
	})

	r.Get("/reports/sales", b.handleSales)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	return r
}

func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.token != "" && r.URL.Path != "/health" && r.Header.Get("Authorization") != "Bearer "+b.token {
			writeError(w, http.StatusUnauthorized, "invalid backend token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("Stub encode response", "error", err)
		code = http.StatusInternalServerError
		body = []byte(`{"error":"internal error"}`)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}

func queryInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(key))
	return n
}

func (b *Backend) handleListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, b.listProducts(models.ProductQuery{
		Search:   q.Get("q"),
		Category: q.Get("category"),
		Page:     queryInt(r, "page"),
		PageSize: queryInt(r, "page_size"),
	}))
}

func (b *Backend) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := b.product(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (b *Backend) handleAddress(w http.ResponseWriter, r *http.Request) {
	cep := chi.URLParam(r, "cep")
	if !validation.IsCEP(cep) {
		writeError(w, http.StatusBadRequest, "invalid CEP")
		return
	}
	a, ok := b.address(cep)
	if !ok {
		writeError(w, http.StatusNotFound, "CEP not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (b *Backend) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req models.FreightQuoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if !validation.IsCEP(req.DestinationCEP) || req.Weight <= 0 {
		writeError(w, http.StatusUnprocessableEntity, "destination_cep and weight are required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"options": b.quote(req)})
}

func (b *Backend) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var rec models.OrderRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if rec.BuyerName == "" || rec.BuyerDocument == "" || len(rec.Items) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "buyer_name, buyer_document and items are required")
		return
	}

	key := r.Header.Get("Idempotency-Key")
	placed, created := b.place(rec, key)
	if !created {
		writeJSON(w, http.StatusOK, placed)
		return
	}
	slog.Info("Stub order placed", "order_id", placed.ID, "idempotency_key", key)
	writeJSON(w, http.StatusCreated, placed)
}

func (b *Backend) handleListOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, b.listOrders(r.URL.Query().Get("status"), queryInt(r, "page")))
}

func (b *Backend) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, ok := b.order(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (b *Backend) handleDecide(status string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, ok, err := b.transition(chi.URLParam(r, "id"), status)
		switch {
		case !ok:
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, errNotPending):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeJSON(w, http.StatusOK, o)
		}
	}
}

func (b *Backend) handleSales(w http.ResponseWriter, r *http.Request) {
	from, err := time.Parse("2006-01-02", r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from")
		return
	}
	to, err := time.Parse("2006-01-02", r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to")
		return
	}
	writeJSON(w, http.StatusOK, b.sales(from, to))
}
