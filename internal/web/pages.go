// Package web serves the server-rendered storefront and admin pages.
package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"storefront-bff/internal/apiclient"
	"storefront-bff/internal/auth"
	"storefront-bff/internal/ordercontext"
	"storefront-bff/internal/session"
	"storefront-bff/internal/storefront"
	"storefront-bff/internal/validation"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"catalog", "product", "checkout", "confirmation",
	"admin_orders", "admin_order", "reports", "error",
}

type Pages struct {
	sf       *storefront.Storefront
	sessions *session.Store
	auth     *auth.Middleware
	tpl      map[string]*template.Template
}

func New(sf *storefront.Storefront, sessions *session.Store, authMW *auth.Middleware) (*Pages, error) {
	funcs := template.FuncMap{
		"money":       FormatBRL,
		"datetime":    formatDateTime,
		"kg":          func(f float64) string { return fmt.Sprintf("%.3f kg", f) },
		"statusLabel": ordercontext.StatusLabel,
		"fieldError":  fieldError,
	}

	tpl := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		tpl[name] = t
	}

	return &Pages{sf: sf, sessions: sessions, auth: authMW, tpl: tpl}, nil
}

// Register mounts the pages on r.
func (p *Pages) Register(r chi.Router) {
	r.Get("/", p.Catalog)
	r.Get("/products/{id}", p.Product)
	r.Get("/checkout", p.CheckoutForm)
	r.Post("/checkout", p.CheckoutSubmit)

	r.Route("/admin", func(r chi.Router) {
		r.Use(p.auth.RequireRole(auth.RoleAdmin))
		r.Use(sameOrigin)

		r.Get("/orders", p.AdminOrders)
		r.Get("/orders/{id}", p.AdminOrder)
		r.Post("/orders/{id}/approve", p.AdminDecide(true))
		r.Post("/orders/{id}/reject", p.AdminDecide(false))
		r.Get("/reports", p.Reports)
	})
}

// sameOrigin refuses state-changing requests whose Origin, or Referer
// when Origin is absent, names another host. Requests carrying neither pass.
func sameOrigin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		source := r.Header.Get("Origin")
		if source == "" {
			source = r.Header.Get("Referer")
		}
		if source != "" {
			u, err := url.Parse(source)
			if err != nil || !strings.EqualFold(u.Host, r.Host) {
				slog.Warn("Cross-origin admin request refused", "path", r.URL.Path, "origin", source)
				http.Error(w, "cross-origin request refused", http.StatusForbidden)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type page struct {
	Title  string
	Admin  bool
	Data   any
	Errors validation.FieldErrors
	Notice string
}

func (p *Pages) render(w http.ResponseWriter, status int, name string, pg page) {
	var buf bytes.Buffer
	if err := p.tpl[name].ExecuteTemplate(&buf, "layout", pg); err != nil {
		slog.Error("Template render error", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (p *Pages) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := apiclient.StatusOf(err)
	msg := apiclient.MessageOf(err)

	var fields validation.FieldErrors
	switch {
	case errors.As(err, &fields):
		status, msg = http.StatusBadRequest, "Some fields are invalid."
	case errors.Is(err, storefront.ErrNotPending):
		status, msg = http.StatusConflict, "This order was already decided."
	case status >= http.StatusInternalServerError:
		slog.Error("Page failed", "path", r.URL.Path, "status", status, "error", err)
		msg = "The store is temporarily unavailable. Please try again."
	}

	p.render(w, status, "error", page{Title: http.StatusText(status), Data: msg, Errors: fields})
}

// FormatBRL renders d as Brazilian currency, e.g. R$ 1.234,56.
func FormatBRL(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}

	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + "R$ " + b.String() + "," + frac
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("02/01/2006 15:04")
}

func fieldError(errs validation.FieldErrors, key string) string {
	return errs[key]
}
