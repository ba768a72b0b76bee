package backendstub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-bff/internal/apiclient"
	"storefront-bff/internal/config"
	"storefront-bff/internal/models"
	"storefront-bff/internal/ordercontext"
	"storefront-bff/internal/services"
)

var fixedNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func newClient(t *testing.T, token string) *services.ServiceClient {
	t.Helper()
	b := New(WithToken("svc"), WithClock(func() time.Time { return fixedNow }))
	server := httptest.NewServer(b.Routes())
	t.Cleanup(server.Close)

	cfg := config.NewConfig()
	cfg.Backend.URL = server.URL
	cfg.Backend.Token = token
	cfg.Backend.RetryDelay = time.Millisecond
	return services.NewServiceClient(cfg)
}

func sampleOrder() models.OrderRecord {
	name := "Ceramic Mug"
	total := decimal.RequireFromString("105.30")
	return models.OrderRecord{
		BuyerName:     "Maria Souza",
		BuyerDocument: "52998224725",
		Total:         &total,
		Items: []models.OrderItemRecord{
			{SKU: "MUG-001", Name: &name, Quantity: 2, UnitPrice: decimal.RequireFromString("39.90")},
		},
	}
}

func TestRequiresToken(t *testing.T) {
	s := newClient(t, "wrong")

	_, err := s.ListProducts(context.Background(), models.ProductQuery{})
	assert.Equal(t, http.StatusUnauthorized, apiclient.StatusOf(err))
}

func TestCatalog(t *testing.T) {
	s := newClient(t, "svc")
	ctx := context.Background()

	page, err := s.ListProducts(ctx, models.ProductQuery{Category: "shoes"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = s.ListProducts(ctx, models.ProductQuery{Search: "mug"})
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "MUG-001", page.Items[0].SKU)

	page, err = s.ListProducts(ctx, models.ProductQuery{Page: 2, PageSize: 4})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, 6, page.Total)

	p, err := s.GetProduct(ctx, "2")
	require.NoError(t, err)
	require.NotNil(t, p.OldPrice)

	_, err = s.GetProduct(ctx, "99")
	assert.True(t, apiclient.IsNotFound(err))
}

func TestAddressAndQuote(t *testing.T) {
	s := newClient(t, "svc")
	ctx := context.Background()

	addr, err := s.LookupCEP(ctx, "20040-002")
	require.NoError(t, err)
	assert.Equal(t, "20040-002", addr.CEP)
	assert.Equal(t, "RJ", addr.State)

	_, err = s.LookupCEP(ctx, "11111111")
	assert.True(t, apiclient.IsNotFound(err))

	opts, err := s.QuoteFreight(ctx, models.FreightQuoteRequest{
		OriginCEP:      "01310100",
		DestinationCEP: "20040002",
		Height:         16,
		Width:          16,
		Length:         16,
		Weight:         1,
		DeclaredValue:  decimal.NewFromInt(100),
	})
	require.NoError(t, err)
	require.Len(t, opts, 2)
	// 12 + 1*3.75 + 3 zones*2.40 + 1.00
	assert.Equal(t, "23.95", opts[0].Price.StringFixed(2))
	assert.Equal(t, 6, opts[0].Days)
	assert.True(t, opts[1].Price.GreaterThan(opts[0].Price))
}

func TestOrdersLifecycle(t *testing.T) {
	s := newClient(t, "svc")
	ctx := context.Background()

	first, err := s.PlaceOrder(ctx, sampleOrder(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, ordercontext.StatusPendingApproval, first.Status)
	require.NotNil(t, first.Number)
	assert.Equal(t, "SB-000001", *first.Number)

	again, err := s.PlaceOrder(ctx, sampleOrder(), "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	second, err := s.PlaceOrder(ctx, sampleOrder(), "key-2")
	require.NoError(t, err)

	list, err := s.ListOrders(ctx, models.OrderFilter{Status: ordercontext.StatusPendingApproval})
	require.NoError(t, err)
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, second.ID, list.Items[0].ID)

	approved, err := s.ApproveOrder(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, ordercontext.StatusApproved, approved.Status)

	_, err = s.RejectOrder(ctx, first.ID, "too late")
	assert.Equal(t, http.StatusConflict, apiclient.StatusOf(err))

	_, err = s.RejectOrder(ctx, second.ID, "fraud")
	require.NoError(t, err)

	_, err = s.ApproveOrder(ctx, "missing")
	assert.True(t, apiclient.IsNotFound(err))

	rep, err := s.SalesReport(ctx, "2026-05-01", "2026-05-10")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.OrdersCount)
	assert.Equal(t, "105.30", rep.Revenue.StringFixed(2))
	assert.Equal(t, "105.30", rep.AvgTicket.StringFixed(2))
	assert.Equal(t, map[string]int{"approved": 1, "rejected": 1}, rep.ByStatus)
	require.Len(t, rep.ByDay, 1)
	assert.Equal(t, "2026-05-10", rep.ByDay[0].Date)
	require.Len(t, rep.TopProducts, 1)
	assert.Equal(t, 2, rep.TopProducts[0].Quantity)

	rep, err = s.SalesReport(ctx, "2026-04-01", "2026-04-30")
	require.NoError(t, err)
	assert.Zero(t, rep.OrdersCount)
}

func TestPlaceOrder_Invalid(t *testing.T) {
	s := newClient(t, "svc")

	_, err := s.PlaceOrder(context.Background(), models.OrderRecord{BuyerName: "x"}, "")
	assert.Equal(t, http.StatusUnprocessableEntity, apiclient.StatusOf(err))
}
