package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"storefront-bff/internal/apiclient"
	"storefront-bff/internal/config"
	"storefront-bff/internal/models"
	"storefront-bff/internal/resilience"
	"storefront-bff/internal/validation"
)

// ServiceClient wraps the commerce backend endpoints the storefront uses.
type ServiceClient struct {
	api *apiclient.Client
}

func NewServiceClient(cfg *config.Config) *ServiceClient {
	api := apiclient.New(apiclient.Config{
		Name:       "commerce",
		BaseURL:    cfg.Backend.URL,
		Timeout:    cfg.Backend.Timeout,
		Token:      cfg.Backend.Token,
		UserAgent:  "storefront-bff",
		Retries:    cfg.Backend.Retries,
		RetryDelay: cfg.Backend.RetryDelay,
	}, apiclient.WithCircuitBreaker(
		resilience.NewCircuitBreaker("commerce", cfg.Backend.BreakerThreshold, cfg.Backend.BreakerTimeout),
	))
	return NewWithClient(api)
}

func NewWithClient(api *apiclient.Client) *ServiceClient {
	return &ServiceClient{api: api}
}

func (s *ServiceClient) ListProducts(ctx context.Context, q models.ProductQuery) (*models.ProductPage, error) {
	params := url.Values{}
	if q.Search != "" {
		params.Set("q", q.Search)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Page > 0 {
		params.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		params.Set("page_size", strconv.Itoa(q.PageSize))
	}

	var page models.ProductPage
	if err := s.api.Get(ctx, "/products", params, &page); err != nil {
		return nil, err
	}
	if page.Items == nil {
		page.Items = []models.Product{}
	}
	return &page, nil
}

func (s *ServiceClient) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	var p models.Product
	if err := s.api.Get(ctx, "/products/"+url.PathEscape(id), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// LookupCEP resolves a postal code into a partial address.
func (s *ServiceClient) LookupCEP(ctx context.Context, cep string) (*models.Address, error) {
	var addr models.Address
	if err := s.api.Get(ctx, "/addresses/"+validation.OnlyDigits(cep), nil, &addr); err != nil {
		return nil, err
	}
	addr.CEP = validation.FormatCEP(addr.CEP)
	return &addr, nil
}

func (s *ServiceClient) QuoteFreight(ctx context.Context, req models.FreightQuoteRequest) ([]models.FreightOption, error) {
	req.DestinationCEP = validation.OnlyDigits(req.DestinationCEP)
	req.OriginCEP = validation.OnlyDigits(req.OriginCEP)

	var out struct {
		Options []models.FreightOption `json:"options"`
	}
	if err := s.api.Post(ctx, "/freight/quote", req, &out); err != nil {
		return nil, err
	}
	if out.Options == nil {
		out.Options = []models.FreightOption{}
	}
	return out.Options, nil
}

// PlaceOrder submits an order. The backend deduplicates on idempotencyKey.
func (s *ServiceClient) PlaceOrder(ctx context.Context, rec models.OrderRecord, idempotencyKey string) (*models.OrderRecord, error) {
	var created models.OrderRecord
	err := s.api.Post(ctx, "/orders", rec, &created, apiclient.WithHeader("Idempotency-Key", idempotencyKey))
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *ServiceClient) ListOrders(ctx context.Context, f models.OrderFilter) (*models.OrderList, error) {
	params := url.Values{}
	if f.Status != "" {
		params.Set("status", f.Status)
	}
	if f.Page > 0 {
		params.Set("page", strconv.Itoa(f.Page))
	}

	var list models.OrderList
	if err := s.api.Get(ctx, "/orders", params, &list); err != nil {
		return nil, err
	}
	if list.Items == nil {
		list.Items = []models.OrderRecord{}
	}
	return &list, nil
}

func (s *ServiceClient) GetOrder(ctx context.Context, id string) (*models.OrderRecord, error) {
	var rec models.OrderRecord
	if err := s.api.Get(ctx, "/orders/"+url.PathEscape(id), nil, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *ServiceClient) ApproveOrder(ctx context.Context, id string) (*models.OrderRecord, error) {
	return s.decide(ctx, id, "approve", nil)
}

func (s *ServiceClient) RejectOrder(ctx context.Context, id, reason string) (*models.OrderRecord, error) {
	return s.decide(ctx, id, "reject", map[string]string{"reason": reason})
}

func (s *ServiceClient) decide(ctx context.Context, id, action string, body any) (*models.OrderRecord, error) {
	var rec models.OrderRecord
	path := fmt.Sprintf("/orders/%s/%s", url.PathEscape(id), action)
	if err := s.api.Post(ctx, path, body, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// SalesReport fetches the summary for [from, to], dates as YYYY-MM-DD.
func (s *ServiceClient) SalesReport(ctx context.Context, from, to string) (*models.SalesReport, error) {
	params := url.Values{"from": {from}, "to": {to}}

	var rep models.SalesReport
	if err := s.api.Get(ctx, "/reports/sales", params, &rep); err != nil {
		return nil, err
	}
	if rep.ByStatus == nil {
		rep.ByStatus = map[string]int{}
	}
	return &rep, nil
}
