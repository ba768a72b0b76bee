// Package storefront implements the storefront and admin operations on top
// of the commerce backend, the cache and the approvals audit store. Both the
// JSON API and the server-rendered pages call into it.
package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"storefront-bff/internal/models"
	"storefront-bff/internal/telemetry"
	"storefront-bff/internal/validation"
)

// ErrNotPending is returned when an admin decides on an order that already
// left the approval queue.
var ErrNotPending = errors.New("order is not awaiting approval")

type Backend interface {
	ListProducts(ctx context.Context, q models.ProductQuery) (*models.ProductPage, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	LookupCEP(ctx context.Context, cep string) (*models.Address, error)
	QuoteFreight(ctx context.Context, req models.FreightQuoteRequest) ([]models.FreightOption, error)
	PlaceOrder(ctx context.Context, rec models.OrderRecord, idempotencyKey string) (*models.OrderRecord, error)
	ListOrders(ctx context.Context, f models.OrderFilter) (*models.OrderList, error)
	GetOrder(ctx context.Context, id string) (*models.OrderRecord, error)
	ApproveOrder(ctx context.Context, id string) (*models.OrderRecord, error)
	RejectOrder(ctx context.Context, id, reason string) (*models.OrderRecord, error)
	SalesReport(ctx context.Context, from, to string) (*models.SalesReport, error)
}

type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	IsRateLimited(ctx context.Context, key string, maxRequests int, window time.Duration) bool
}

type ApprovalStore interface {
	Record(ctx context.Context, a models.Approval) (models.Approval, error)
	ListByOrder(ctx context.Context, orderID string) ([]models.Approval, error)
	Recent(ctx context.Context, limit int) ([]models.Approval, error)
}

type Options struct {
	ProductsTTL time.Duration
	FreightTTL  time.Duration
	CEPTTL      time.Duration
	OriginCEP   string
}

type Storefront struct {
	backend   Backend
	cache     Cache
	approvals ApprovalStore
	validate  *validation.Validator
	opts      Options
	now       func() time.Time
}

func New(backend Backend, cache Cache, approvals ApprovalStore, opts Options) *Storefront {
	return &Storefront{
		backend:   backend,
		cache:     cache,
		approvals: approvals,
		validate:  validation.New(),
		opts:      opts,
		now:       time.Now,
	}
}

func (s *Storefront) Validator() *validation.Validator {
	return s.validate
}

// RateLimited reports whether key exceeded maxRequests in window.
func (s *Storefront) RateLimited(ctx context.Context, key string, maxRequests int, window time.Duration) bool {
	return s.cache.IsRateLimited(ctx, key, maxRequests, window)
}

// cached serves key from the cache or calls fetch and stores its result.
// Cache failures only cost a backend round trip.
func cached[T any](ctx context.Context, s *Storefront, kind, key string, ttl time.Duration, fetch func() (T, error)) (T, error) {
	if data, err := s.cache.Get(ctx, key); err == nil {
		var v T
		if err := json.Unmarshal(data, &v); err == nil {
			telemetry.CacheLookup(kind, true)
			return v, nil
		}
	}
	telemetry.CacheLookup(kind, false)

	v, err := fetch()
	if err != nil {
		return v, err
	}

	if ttl > 0 {
		if data, err := json.Marshal(v); err == nil {
			if err := s.cache.Set(ctx, key, data, ttl); err != nil {
				slog.Warn("Cache write failed", "key", key, "error", err)
			}
		}
	}
	return v, nil
}
