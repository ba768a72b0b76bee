package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-bff/internal/auth"
	"storefront-bff/internal/backendstub"
	"storefront-bff/internal/cache"
	"storefront-bff/internal/config"
	"storefront-bff/internal/models"
	"storefront-bff/internal/ordercontext"
	"storefront-bff/internal/services"
	"storefront-bff/internal/session"
	"storefront-bff/internal/store"
	"storefront-bff/internal/storefront"
)

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.data[key]; ok {
		return b, nil
	}
	return nil, cache.ErrMiss
}

func (c *memCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	return nil
}

func (c *memCache) IsRateLimited(context.Context, string, int, time.Duration) bool { return false }

type pagesEnv struct {
	router   http.Handler
	sf       *storefront.Storefront
	auth     *auth.Middleware
	sessions *session.Store
}

func newPagesEnv(t *testing.T) *pagesEnv {
	t.Helper()
	server := httptest.NewServer(backendstub.New().Routes())
	t.Cleanup(server.Close)

	cfg := config.NewConfig()
	cfg.Backend.URL = server.URL
	cfg.Backend.Token = ""
	cfg.Backend.RetryDelay = time.Millisecond

	sf := storefront.New(services.NewServiceClient(cfg), &memCache{data: map[string][]byte{}}, store.NewMemoryApprovals(), storefront.Options{
		ProductsTTL: time.Minute,
		FreightTTL:  time.Minute,
		OriginCEP:   "01310-100",
	})
	authMW := auth.NewMiddleware("test-secret")
	sessions := session.NewStore("cookie-secret", false, time.Hour)

	pages, err := New(sf, sessions, authMW)
	require.NoError(t, err)

	r := chi.NewRouter()
	pages.Register(r)
	return &pagesEnv{router: r, sf: sf, auth: authMW, sessions: sessions}
}

func (e *pagesEnv) get(t *testing.T, path string, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, fn := range mutate {
		fn(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *pagesEnv) post(t *testing.T, path string, form url.Values, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, fn := range mutate {
		fn(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *pagesEnv) asAdmin(t *testing.T) func(*http.Request) {
	t.Helper()
	tok, err := e.auth.Issue("admin-1", auth.RoleAdmin, time.Hour)
	require.NoError(t, err)
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: auth.TokenCookie, Value: tok})
	}
}

func checkoutForm() url.Values {
	return url.Values{
		"product":          {"1"},
		"qty":              {"2"},
		"idempotency_key":  {"form-key-1"},
		"name":             {"Maria Souza"},
		"document":         {"529.982.247-25"},
		"email":            {"maria@example.com"},
		"phone":            {"11912345678"},
		"billing_cep":      {"01310-100"},
		"billing_street":   {"Avenida Paulista"},
		"billing_number":   {"1000"},
		"billing_district": {"Bela Vista"},
		"billing_city":     {"São Paulo"},
		"billing_state":    {"SP"},
		"payment_method":   {models.PaymentPix},
		"freight_service":  {"PAC"},
	}
}

func TestFormatBRL(t *testing.T) {
	tests := map[string]string{
		"0":       "R$ 0,00",
		"39.9":    "R$ 39,90",
		"1234.56": "R$ 1.234,56",
		"1000000": "R$ 1.000.000,00",
		"-15.5":   "-R$ 15,50",
		"999.999": "R$ 1.000,00",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatBRL(decimal.RequireFromString(in)), in)
	}
}

func TestCatalogPage(t *testing.T) {
	e := newPagesEnv(t)

	rec := e.get(t, "/?q=mug")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "Ceramic Mug")
	assert.Contains(t, body, "R$ 39,90")
	assert.NotContains(t, body, "Leather Boot")
}

func TestProductPage_WithFreight(t *testing.T) {
	e := newPagesEnv(t)

	rec := e.get(t, "/products/1?cep=20040-002")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Ceramic Mug")
	assert.Contains(t, body, "PAC")
	assert.Contains(t, body, "SEDEX")

	rec = e.get(t, "/products/1?cep=123")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid CEP")

	rec = e.get(t, "/products/999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckoutForm_UsesAddressCookie(t *testing.T) {
	e := newPagesEnv(t)

	w := httptest.NewRecorder()
	require.NoError(t, e.sessions.SetAddress(w, models.Address{
		CEP: "20040-002", Street: "Rua da Assembleia", Number: "10",
		District: "Centro", City: "Rio de Janeiro", State: "RJ",
	}))
	cookies := w.Result().Cookies()

	rec := e.get(t, "/checkout?product=1&qty=2", func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Ceramic Mug")
	assert.Contains(t, body, "Rua da Assembleia")
	assert.Contains(t, body, `name="freight_service" value="PAC"`)
}

func TestCheckoutSubmit(t *testing.T) {
	e := newPagesEnv(t)

	rec := e.post(t, "/checkout", checkoutForm())
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Contains(t, body, "Thank you, Maria Souza!")
	assert.Contains(t, body, "Awaiting approval")
	assert.Contains(t, body, "R$ 79,80")

	list, err := e.sf.Orders(context.Background(), models.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)

	// The same idempotency key does not place a second order.
	rec = e.post(t, "/checkout", checkoutForm())
	require.Equal(t, http.StatusOK, rec.Code)
	list, err = e.sf.Orders(context.Background(), models.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, list.Total)
}

func TestCheckoutSubmit_FieldErrors(t *testing.T) {
	e := newPagesEnv(t)

	form := checkoutForm()
	form.Set("document", "111.111.111-11")
	form.Del("freight_service")

	rec := e.post(t, "/checkout", form)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `class="error"`)
	assert.Contains(t, body, "select a freight option")
	assert.Contains(t, body, `value="Maria Souza"`)
}

func TestAdminPages_RequireRole(t *testing.T) {
	e := newPagesEnv(t)

	rec := e.get(t, "/admin/orders")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")

	tok, err := e.auth.Issue("someone", "customer", time.Hour)
	require.NoError(t, err)
	rec = e.get(t, "/admin/orders", func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: auth.TokenCookie, Value: tok})
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminApproveRedirects(t *testing.T) {
	e := newPagesEnv(t)
	admin := e.asAdmin(t)

	require.Equal(t, http.StatusOK, e.post(t, "/checkout", checkoutForm()).Code)
	list, err := e.sf.Orders(context.Background(), models.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	id := list.Items[0].ID

	rec := e.get(t, "/admin/orders", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/admin/orders/"+id)

	rec = e.post(t, "/admin/orders/"+id+"/approve", url.Values{}, admin)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/admin/orders/"+id+"?done=approve", rec.Header().Get("Location"))

	rec = e.get(t, "/admin/orders/"+id+"?done=approve", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Order approved.")
	assert.Contains(t, body, "admin-1")
	assert.NotContains(t, body, `action="/admin/orders/`+id+`/approve"`)

	rec = e.post(t, "/admin/orders/"+id+"/reject", url.Values{"reason": {"late"}}, admin)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminDecide_RefusesCrossOrigin(t *testing.T) {
	e := newPagesEnv(t)
	admin := e.asAdmin(t)

	require.Equal(t, http.StatusOK, e.post(t, "/checkout", checkoutForm()).Code)
	list, err := e.sf.Orders(context.Background(), models.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	path := "/admin/orders/" + list.Items[0].ID + "/approve"

	rec := e.post(t, path, url.Values{}, admin, func(r *http.Request) {
		r.Header.Set("Origin", "https://evil.example")
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = e.post(t, path, url.Values{}, admin, func(r *http.Request) {
		r.Header.Set("Referer", "https://evil.example/admin/orders")
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	detail, err := e.sf.OrderDetail(context.Background(), list.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, ordercontext.StatusPendingApproval, detail.Order.Status)
	assert.Empty(t, detail.Approvals)

	rec = e.post(t, path, url.Values{}, admin, func(r *http.Request) {
		r.Header.Set("Origin", "http://example.com")
	})
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestAdminReject_RequiresReason(t *testing.T) {
	e := newPagesEnv(t)
	admin := e.asAdmin(t)

	require.Equal(t, http.StatusOK, e.post(t, "/checkout", checkoutForm()).Code)
	list, err := e.sf.Orders(context.Background(), models.OrderFilter{})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)

	rec := e.post(t, "/admin/orders/"+list.Items[0].ID+"/reject", url.Values{}, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "reason")
}

func TestReportsPage(t *testing.T) {
	e := newPagesEnv(t)
	admin := e.asAdmin(t)

	rec := e.get(t, "/admin/reports", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Sales report")

	rec = e.get(t, "/admin/reports?from=2026-03-10&to=2026-03-01", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
