package api

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storefront-bff/internal/auth"
	"storefront-bff/internal/config"
	"storefront-bff/internal/session"
	"storefront-bff/internal/storefront"
	"storefront-bff/internal/telemetry"
)

type Handler struct {
	sf           *storefront.Storefront
	sessions     *session.Store
	auth         *auth.Middleware
	limit        config.RateLimitConfig
	forwardToken bool
}

func NewHandler(sf *storefront.Storefront, sessions *session.Store, authMW *auth.Middleware, cfg *config.Config) *Handler {
	return &Handler{
		sf:           sf,
		sessions:     sessions,
		auth:         authMW,
		limit:        cfg.RateLimit,
		forwardToken: cfg.Backend.ForwardAdminToken,
	}
}

// NewRouter wires the JSON API, health and metrics endpoints. Extra route
// groups (the server-rendered pages) are registered on the same router.
func NewRouter(h *Handler, extra ...func(chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(telemetry.RequestIDMiddleware)
	r.Use(telemetry.Middleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.rateLimit)

			r.Get("/products", h.ListProducts)
			r.Get("/products/{id}", h.GetProduct)
			r.Get("/cep/{cep}", h.LookupCEP)
			r.Post("/validate", h.Validate)
			r.Post("/freight/package", h.FreightPackage)
			r.Post("/freight/quote", h.FreightQuote)

			r.Route("/session", func(r chi.Router) {
				r.Get("/address", h.GetAddress)
				r.Put("/address", h.PutAddress)
				r.Delete("/address", h.DeleteAddress)
				r.Get("/freight", h.GetFreight)
				r.Put("/freight", h.PutFreight)
				r.Delete("/freight", h.DeleteFreight)
			})

			r.Post("/checkout", h.Checkout)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(h.auth.RequireRole(auth.RoleAdmin))
			r.Use(h.adminToken)

			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{id}", h.GetOrder)
			r.Post("/orders/{id}/approve", h.ApproveOrder)
			r.Post("/orders/{id}/reject", h.RejectOrder)
			r.Get("/reports/sales", h.SalesReport)
			r.Get("/dashboard", h.Dashboard)
		})

		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
		})
	})

	for _, register := range extra {
		register(r)
	}

	return r
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientIP := ClientIP(r)
		if h.sf.RateLimited(r.Context(), clientIP, h.limit.Requests, h.limit.Window) {
			slog.Warn("Rate limit exceeded", "ip", clientIP, "path", r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(int(h.limit.Window.Seconds())))
			writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "Too many requests"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP returns the remote host without the port.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	clientIP := r.RemoteAddr
	if idx := strings.LastIndex(clientIP, ":"); idx != -1 {
		clientIP = clientIP[:idx]
	}
	return clientIP
}
