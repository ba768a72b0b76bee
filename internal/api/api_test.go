package api

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"storefront-bff/internal/auth"
	"storefront-bff/internal/backendstub"
	"storefront-bff/internal/cache"
	"storefront-bff/internal/config"
	"storefront-bff/internal/freight"
	"storefront-bff/internal/models"
	"storefront-bff/internal/ordercontext"
	"storefront-bff/internal/services"
	"storefront-bff/internal/session"
	"storefront-bff/internal/store"
	"storefront-bff/internal/storefront"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreAnyFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreAnyFunction("net/http.(*persistConn).writeLoop"),
	)
}

type mapCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	limited bool
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b, ok := c.data[key]; ok {
		return b, nil
	}
	return nil, cache.ErrMiss
}

func (c *mapCache) Set(_ context.Context, key string, data []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
	return nil
}

func (c *mapCache) IsRateLimited(context.Context, string, int, time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.limited
}

func (c *mapCache) keys(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

type testEnv struct {
	router    http.Handler
	cache     *mapCache
	approvals *store.MemoryApprovals
	auth      *auth.Middleware
	jar       map[string]*http.Cookie
}

func newTestEnv(t *testing.T, backend http.Handler, tweak ...func(*config.Config)) *testEnv {
	t.Helper()
	if backend == nil {
		backend = backendstub.New().Routes()
	}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	cfg := config.NewConfig()
	cfg.Backend.URL = server.URL
	cfg.Backend.Token = ""
	cfg.Backend.RetryDelay = time.Millisecond
	cfg.Freight.OriginCEP = "01310-100"
	cfg.RateLimit = config.RateLimitConfig{Requests: 100, Window: time.Minute}
	for _, fn := range tweak {
		fn(cfg)
	}

	c := &mapCache{data: map[string][]byte{}}
	approvals := store.NewMemoryApprovals()
	sf := storefront.New(services.NewServiceClient(cfg), c, approvals, storefront.Options{
		ProductsTTL: time.Minute,
		FreightTTL:  time.Minute,
		CEPTTL:      time.Hour,
		OriginCEP:   cfg.Freight.OriginCEP,
	})
	authMW := auth.NewMiddleware(cfg.Auth.JWTSecret)
	sessions := session.NewStore(cfg.Cookies.Secret, false, time.Hour)

	return &testEnv{
		router:    NewRouter(NewHandler(sf, sessions, authMW, cfg)),
		cache:     c,
		approvals: approvals,
		auth:      authMW,
		jar:       map[string]*http.Cookie{},
	}
}

// do sends a request carrying the env's cookies and stores the cookies the
// response sets.
func (e *testEnv) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	for _, c := range e.jar {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 || c.Value == "" {
			delete(e.jar, c.Name)
			continue
		}
		e.jar[c.Name] = c
	}
	return rec
}

func (e *testEnv) token(t *testing.T, subject, role string) string {
	t.Helper()
	tok, err := e.auth.Issue(subject, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func checkoutBody() models.CheckoutRequest {
	return models.CheckoutRequest{
		Customer: models.CheckoutCustomer{
			Name:     "Maria Souza",
			Document: "529.982.247-25",
			Email:    "maria@example.com",
			Phone:    "11912345678",
		},
		Billing: models.Address{
			CEP:      "01310-100",
			Street:   "Avenida Paulista",
			Number:   "1000",
			District: "Bela Vista",
			City:     "São Paulo",
			State:    "SP",
		},
		Payment: models.CheckoutPayment{
			Method:       models.PaymentCreditCard,
			Installments: 2,
			CardNumber:   "4111 1111 1111 1111",
			CardHolder:   "MARIA SOUZA",
			CardExpiry:   "12/2099",
			CardCVV:      "123",
		},
		Items: []models.CheckoutItem{
			{SKU: "MUG-001", Name: "Ceramic Mug", Quantity: 2, UnitPrice: decimal.RequireFromString("39.90")},
		},
	}
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = e.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "http_requests_total")

	rec = e.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not found", decode[errorBody](t, rec).Error)
}

func TestProducts(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/api/products?category=shoes", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[models.ProductPage](t, rec)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, e.cache.keys("products:"))

	rec = e.do(t, http.MethodGet, "/api/products/3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "BOOT-42", decode[models.Product](t, rec).SKU)

	rec = e.do(t, http.MethodGet, "/api/products/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "product not found", decode[errorBody](t, rec).Error)
}

func TestLookupCEP(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/api/cep/123", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid CEP", decode[errorBody](t, rec).Fields["cep"])

	rec = e.do(t, http.MethodGet, "/api/cep/20040002", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	addr := decode[models.Address](t, rec)
	assert.Equal(t, "20040-002", addr.CEP)
	assert.Equal(t, "RJ", addr.State)

	rec = e.do(t, http.MethodGet, "/api/cep/11111111", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestValidateEndpoint(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodPost, "/api/validate", map[string]string{"kind": "CPF", "value": "52998224725"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[storefront.ValidateResult](t, rec)
	assert.True(t, res.Valid)
	assert.Equal(t, "529.982.247-25", res.Formatted)

	rec = e.do(t, http.MethodPost, "/api/validate", map[string]string{"kind": "phone", "value": "123"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[storefront.ValidateResult](t, rec).Valid)

	rec = e.do(t, http.MethodPost, "/api/validate", map[string]string{"kind": "iban", "value": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/validate", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid JSON body", decode[errorBody](t, rec).Error)
}

func TestFreightPackage(t *testing.T) {
	e := newTestEnv(t, nil)

	body := `{"items":[{"sku":"A","quantity":2,"height":"10","width":10,"length":"10,0","weight":"0,5","price":"19.90"}]}`
	rec := e.do(t, http.MethodPost, "/api/freight/package", body)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[freight.Package](t, rec)
	want := freight.Mount([]freight.Item{{SKU: "A", Quantity: 2, Height: 10, Width: 10, Length: 10, Weight: 0.5, Price: decimal.RequireFromString("19.90")}})
	assert.Equal(t, want.Height, got.Height)
	assert.Equal(t, want.Length, got.Length)
	assert.Equal(t, want.BillableWeight, got.BillableWeight)
	assert.True(t, want.DeclaredValue.Equal(got.DeclaredValue))

	rec = e.do(t, http.MethodPost, "/api/freight/package", `{"items":[{"sku":"A","quantity":1,"height":1e200,"width":1e200,"length":1,"weight":1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Fields, "items[0].height")
}

func TestFreightQuote(t *testing.T) {
	e := newTestEnv(t, nil)
	items := []freight.Item{{SKU: "MUG-001", Quantity: 1, Height: 10, Width: 8, Length: 12, Weight: 0.35, Price: decimal.RequireFromString("39.90")}}

	rec := e.do(t, http.MethodPost, "/api/freight/quote", map[string]any{"cep": "2004", "items": items})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/freight/quote", map[string]any{"cep": "20040-002", "items": items})
	require.Equal(t, http.StatusOK, rec.Code)
	q := decode[storefront.FreightQuote](t, rec)
	assert.Len(t, q.Options, 2)
	assert.Equal(t, freight.MinLength, q.Package.Length)
	assert.Equal(t, 1, e.cache.keys("freight:"))
}

func TestSessionState(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/api/session/address", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/session/address", models.Address{CEP: "1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Fields, "street")

	rec = e.do(t, http.MethodPut, "/api/session/freight", freightBody("PAC", "20040002", "0.01"))
	require.Equal(t, http.StatusOK, rec.Code)
	sel := decode[models.FreightSelection](t, rec)
	assert.Equal(t, "20040-002", sel.CEP)
	assert.Equal(t, "22.62", sel.Value.StringFixed(2))
	require.Contains(t, e.jar, session.FreightCookie)

	rec = e.do(t, http.MethodPut, "/api/session/freight", freightBody("", "x", ""))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, http.MethodPut, "/api/session/freight", freightBody("TELEPORT", "20040002", ""))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Fields, "service")

	addr := models.Address{CEP: "01310100", Street: "Avenida Paulista", Number: "1000", District: "Bela Vista", City: "São Paulo", State: "sp"}
	rec = e.do(t, http.MethodPut, "/api/session/address", addr)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, e.jar, session.FreightCookie)

	rec = e.do(t, http.MethodGet, "/api/session/address", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[models.Address](t, rec)
	assert.Equal(t, "01310-100", got.CEP)
	assert.Equal(t, "SP", got.State)

	rec = e.do(t, http.MethodDelete, "/api/session/address", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, e.jar)
}

// freightBody selects service for two mugs; value is what a client might
// claim the freight costs.
func freightBody(service, cep, value string) map[string]any {
	body := map[string]any{
		"service": service,
		"cep":     cep,
		"items": []freight.Item{
			{SKU: "MUG-001", Quantity: 2, Height: 10, Width: 8, Length: 12, Weight: 0.35, Price: decimal.RequireFromString("39.90")},
		},
	}
	if value != "" {
		body["value"] = value
	}
	return body
}

func placeOrder(t *testing.T, e *testEnv, key string) models.OrderContext {
	t.Helper()
	addr := models.Address{CEP: "20040-002", Street: "Rua do Ouvidor", Number: "50", District: "Centro", City: "Rio de Janeiro", State: "RJ"}
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/api/session/address", addr).Code)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/api/session/freight", freightBody("PAC", "20040-002", "")).Code)

	rec := e.do(t, http.MethodPost, "/api/checkout", checkoutBody(), "Idempotency-Key", key)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[models.OrderContext](t, rec)
}

func TestCheckout(t *testing.T) {
	e := newTestEnv(t, nil)

	oc := placeOrder(t, e, "key-1")
	assert.Equal(t, ordercontext.StatusPendingApproval, oc.Status)
	assert.Equal(t, "Awaiting approval", oc.StatusLabel)
	assert.Equal(t, "20040-002", oc.Delivery.CEP)
	assert.Equal(t, "Maria Souza", oc.Delivery.Recipient)
	assert.Equal(t, "**** **** **** 1111", oc.Payment.CardMasked)
	assert.Equal(t, "102.42", oc.Total.StringFixed(2))
	assert.NotContains(t, e.jar, session.FreightCookie)
	assert.Contains(t, e.jar, session.AddressCookie)

	again := placeOrder(t, e, "key-1")
	assert.Equal(t, oc.OrderID, again.OrderID)

	rec := e.do(t, http.MethodPost, "/api/checkout", checkoutBody())
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "select a freight option", decode[errorBody](t, rec).Fields["freight"])

	bad := checkoutBody()
	bad.Payment.CardCVV = "1"
	bad.Freight = &models.FreightSelection{Service: "PAC", Value: decimal.NewFromInt(10)}
	rec = e.do(t, http.MethodPost, "/api/checkout", bad)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decode[errorBody](t, rec).Fields, "payment.card_cvv")
}

func TestWriteJSON_EncodeFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]float64{"v": math.Inf(1)})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal error"}`, rec.Body.String())
}

func TestCheckout_IgnoresClientPrices(t *testing.T) {
	e := newTestEnv(t, nil)

	body := checkoutBody()
	body.Items[0].UnitPrice = decimal.RequireFromString("0.01")
	body.Freight = &models.FreightSelection{Service: "SEDEX", CEP: "01310-100", Value: decimal.Zero}

	rec := e.do(t, http.MethodPost, "/api/checkout", body, "Idempotency-Key", "tampered")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	oc := decode[models.OrderContext](t, rec)
	assert.Equal(t, "79.80", oc.ItemsTotal.StringFixed(2))
	assert.Equal(t, "39.90", oc.Items[0].UnitPrice.StringFixed(2))
	assert.Equal(t, "32.08", oc.Freight.Value.StringFixed(2))
	assert.Equal(t, "111.88", oc.Total.StringFixed(2))

	// A forged freight cookie carries no price either.
	forged := httptest.NewRecorder()
	require.NoError(t, session.NewStore(config.NewConfig().Cookies.Secret, false, time.Hour).SetFreight(forged,
		models.FreightSelection{Service: "PAC", CEP: "01310-100", Value: decimal.Zero}))
	for _, c := range forged.Result().Cookies() {
		e.jar[c.Name] = c
	}
	rec = e.do(t, http.MethodPost, "/api/checkout", checkoutBody(), "Idempotency-Key", "cookie")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "17.82", decode[models.OrderContext](t, rec).Freight.Value.StringFixed(2))

	unknown := checkoutBody()
	unknown.Items[0].SKU = "NOPE-1"
	unknown.Freight = &models.FreightSelection{Service: "PAC", CEP: "01310-100"}
	rec = e.do(t, http.MethodPost, "/api/checkout", unknown)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "unknown product", decode[errorBody](t, rec).Fields["items[0].sku"])
}

func TestAdmin_RequiresAdminRole(t *testing.T) {
	e := newTestEnv(t, nil)

	rec := e.do(t, http.MethodGet, "/api/admin/orders", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/admin/orders", nil, "Authorization", e.token(t, "bob", "customer"))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdmin_ApprovalFlow(t *testing.T) {
	e := newTestEnv(t, nil)
	admin := e.token(t, "alice", auth.RoleAdmin)
	oc := placeOrder(t, e, "key-1")

	rec := e.do(t, http.MethodGet, "/api/admin/orders", nil, "Authorization", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[models.OrderList](t, rec)
	require.Equal(t, 1, list.Total)
	assert.Equal(t, oc.OrderID, list.Items[0].ID)

	rec = e.do(t, http.MethodPost, "/api/admin/orders/"+oc.OrderID+"/reject", map[string]string{"reason": ""}, "Authorization", admin)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = e.do(t, http.MethodPost, "/api/admin/orders/"+oc.OrderID+"/approve", nil, "Authorization", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ordercontext.StatusApproved, decode[models.OrderContext](t, rec).Status)

	rec = e.do(t, http.MethodPost, "/api/admin/orders/"+oc.OrderID+"/approve", nil, "Authorization", admin)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/admin/orders/"+oc.OrderID, nil, "Authorization", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[storefront.OrderDetail](t, rec)
	require.Len(t, detail.Approvals, 1)
	assert.Equal(t, "alice", detail.Approvals[0].Actor)
	assert.Equal(t, "529.982.247-25", detail.Order.Customer.Document)

	rec = e.do(t, http.MethodGet, "/api/admin/orders/missing", nil, "Authorization", admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/admin/reports/sales?from=31-01-2026", nil, "Authorization", admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = e.do(t, http.MethodGet, "/api/admin/reports/sales", nil, "Authorization", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	rep := decode[models.SalesReport](t, rec)
	assert.Equal(t, 1, rep.OrdersCount)
	assert.Equal(t, "102.42", rep.Revenue.StringFixed(2))

	rec = e.do(t, http.MethodGet, "/api/admin/dashboard", nil, "Authorization", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[models.DashboardResponse](t, rec)
	assert.Empty(t, dash.PendingOrders)
	assert.Len(t, dash.RecentApprovals, 1)
	require.NotNil(t, dash.Sales)
}

func TestRateLimit(t *testing.T) {
	e := newTestEnv(t, nil)
	e.cache.limited = true

	rec := e.do(t, http.MethodGet, "/api/products", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	rec = e.do(t, http.MethodGet, "/api/admin/dashboard", nil, "Authorization", e.token(t, "alice", auth.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdmin_ForwardsToken(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	backend := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		w.Write([]byte(`{"items":[],"total":0}`))
	})
	e := newTestEnv(t, backend, func(cfg *config.Config) {
		cfg.Backend.Token = "service-token"
		cfg.Backend.ForwardAdminToken = true
	})
	admin := e.token(t, "alice", auth.RoleAdmin)

	rec := e.do(t, http.MethodGet, "/api/admin/orders", nil, "Authorization", admin)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = e.do(t, http.MethodGet, "/api/products", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{admin, "Bearer service-token"}, seen)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.1.2.3:5555"
	assert.Equal(t, "10.1.2.3", ClientIP(r))
	r.RemoteAddr = "[::1]:80"
	assert.Equal(t, "::1", ClientIP(r))
}
