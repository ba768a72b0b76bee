// Package backendstub is an in-memory commerce backend serving the paths the
// storefront calls. It backs local development and end-to-end tests.
package backendstub

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront-bff/internal/models"
	"storefront-bff/internal/ordercontext"
	"storefront-bff/internal/validation"
)

const (
	defaultPageSize = 24
	ordersPageSize  = 20
	topProducts     = 5
)

// Backend holds the catalog, known addresses and placed orders.
type Backend struct {
	mu        sync.RWMutex
	token     string
	products  []models.Product
	addresses map[string]models.Address
	orders    map[string]models.OrderRecord
	placedIDs []string
	byKey     map[string]string
	seq       int
	now       func() time.Time
}

type Option func(*Backend)

// WithToken makes every request require "Authorization: Bearer <token>".
func WithToken(token string) Option {
	return func(b *Backend) { b.token = token }
}

func WithClock(now func() time.Time) Option {
	return func(b *Backend) { b.now = now }
}

func New(opts ...Option) *Backend {
	b := &Backend{
		products:  seedProducts(),
		addresses: seedAddresses(),
		orders:    map[string]models.OrderRecord{},
		byKey:     map[string]string{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) listProducts(q models.ProductQuery) models.ProductPage {
	b.mu.RLock()
	defer b.mu.RUnlock()

	search := strings.ToLower(strings.TrimSpace(q.Search))
	matches := []models.Product{}
	for _, p := range b.products {
		if q.Category != "" && !strings.EqualFold(p.Category, q.Category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.SKU), search) {
			continue
		}
		matches = append(matches, p)
	}

	page, size := q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = defaultPageSize
	}
	return models.ProductPage{
		Items:    paginate(matches, page, size),
		Total:    len(matches),
		Page:     page,
		PageSize: size,
	}
}

func (b *Backend) product(id string) (models.Product, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, p := range b.products {
		if p.ID == id {
			return p, true
		}
	}
	return models.Product{}, false
}

func (b *Backend) address(cep string) (models.Address, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	a, ok := b.addresses[validation.OnlyDigits(cep)]
	return a, ok
}

// quote prices two services from billable weight and the distance between
// the first digits of origin and destination.
func (b *Backend) quote(req models.FreightQuoteRequest) []models.FreightOption {
	zones := 1
	if len(req.OriginCEP) > 0 && len(req.DestinationCEP) > 0 {
		d := int(req.OriginCEP[0]) - int(req.DestinationCEP[0])
		if d < 0 {
			d = -d
		}
		zones += d
	}

	weight := decimal.NewFromFloat(req.Weight)
	base := decimal.NewFromInt(12).
		Add(weight.Mul(decimal.RequireFromString("3.75"))).
		Add(decimal.NewFromInt(int64(zones)).Mul(decimal.RequireFromString("2.40"))).
		Add(req.DeclaredValue.Mul(decimal.RequireFromString("0.01")))

	return []models.FreightOption{
		{Service: "PAC", Carrier: "Correios", Price: base.Round(2), Days: 3 + zones},
		{Service: "SEDEX", Carrier: "Correios", Price: base.Mul(decimal.RequireFromString("1.8")).Round(2), Days: 1 + zones/2},
	}
}

// place stores rec once per idempotency key. The second return is false
// when the key was already used.
func (b *Backend) place(rec models.OrderRecord, key string) (models.OrderRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if key != "" {
		if id, ok := b.byKey[key]; ok {
			return b.orders[id], false
		}
	}

	b.seq++
	now := b.now().UTC()
	number := fmt.Sprintf("SB-%06d", b.seq)
	rec.ID = uuid.NewString()
	rec.Number = &number
	rec.Status = ordercontext.StatusPendingApproval
	rec.CreatedAt = &now

	b.orders[rec.ID] = rec
	b.placedIDs = append(b.placedIDs, rec.ID)
	if key != "" {
		b.byKey[key] = rec.ID
	}
	return rec, true
}

func (b *Backend) listOrders(status string, page int) models.OrderList {
	b.mu.RLock()
	defer b.mu.RUnlock()

	matches := []models.OrderRecord{}
	for i := len(b.placedIDs) - 1; i >= 0; i-- {
		o := b.orders[b.placedIDs[i]]
		if status == "" || o.Status == status {
			matches = append(matches, o)
		}
	}
	if page < 1 {
		page = 1
	}
	return models.OrderList{Items: paginate(matches, page, ordersPageSize), Total: len(matches)}
}

func (b *Backend) order(id string) (models.OrderRecord, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[id]
	return o, ok
}

var errNotPending = errors.New("order is not pending approval")

func (b *Backend) transition(id, status string) (models.OrderRecord, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok {
		return o, false, nil
	}
	if o.Status != ordercontext.StatusPendingApproval {
		return o, true, errNotPending
	}
	o.Status = status
	b.orders[id] = o
	return o, true, nil
}

// sales aggregates orders created within [from, to], both inclusive days.
// Rejected and cancelled orders count by status but not as revenue.
func (b *Backend) sales(from, to time.Time) models.SalesReport {
	b.mu.RLock()
	defer b.mu.RUnlock()

	rep := models.SalesReport{
		From:     from.Format("2006-01-02"),
		To:       to.Format("2006-01-02"),
		Revenue:  decimal.Zero,
		ByStatus: map[string]int{},
	}
	end := to.AddDate(0, 0, 1)

	days := map[string]*models.SalesDay{}
	products := map[string]*models.SalesProduct{}

	for _, id := range b.placedIDs {
		o := b.orders[id]
		if o.CreatedAt == nil || o.CreatedAt.Before(from) || !o.CreatedAt.Before(end) {
			continue
		}
		rep.ByStatus[o.Status]++
		if o.Status == ordercontext.StatusRejected || o.Status == ordercontext.StatusCancelled {
			continue
		}

		total := decimal.Zero
		if o.Total != nil {
			total = *o.Total
		}
		rep.OrdersCount++
		rep.Revenue = rep.Revenue.Add(total)

		day := o.CreatedAt.Format("2006-01-02")
		if days[day] == nil {
			days[day] = &models.SalesDay{Date: day, Revenue: decimal.Zero}
		}
		days[day].Orders++
		days[day].Revenue = days[day].Revenue.Add(total)

		for _, it := range o.Items {
			sp := products[it.SKU]
			if sp == nil {
				sp = &models.SalesProduct{SKU: it.SKU, Revenue: decimal.Zero}
				products[it.SKU] = sp
			}
			if it.Name != nil {
				sp.Name = *it.Name
			}
			sp.Quantity += it.Quantity
			sp.Revenue = sp.Revenue.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}

	rep.AvgTicket = decimal.Zero
	if rep.OrdersCount > 0 {
		rep.AvgTicket = rep.Revenue.Div(decimal.NewFromInt(int64(rep.OrdersCount))).Round(2)
	}

	for _, d := range days {
		rep.ByDay = append(rep.ByDay, *d)
	}
	sort.Slice(rep.ByDay, func(i, j int) bool { return rep.ByDay[i].Date < rep.ByDay[j].Date })

	for _, p := range products {
		rep.TopProducts = append(rep.TopProducts, *p)
	}
	sort.Slice(rep.TopProducts, func(i, j int) bool {
		if !rep.TopProducts[i].Revenue.Equal(rep.TopProducts[j].Revenue) {
			return rep.TopProducts[i].Revenue.GreaterThan(rep.TopProducts[j].Revenue)
		}
		return rep.TopProducts[i].SKU < rep.TopProducts[j].SKU
	})
	if len(rep.TopProducts) > topProducts {
		rep.TopProducts = rep.TopProducts[:topProducts]
	}
	return rep
}

func paginate[T any](items []T, page, size int) []T {
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := min(start+size, len(items))
	return items[start:end]
}

func seedProducts() []models.Product {
	price := decimal.RequireFromString
	old := price("249.90")
	return []models.Product{
		{ID: "1", SKU: "MUG-001", Name: "Ceramic Mug", Category: "kitchen", Brand: "Casa", Price: price("39.90"), Stock: 120, Height: 10, Width: 8, Length: 12, Weight: 0.35},
		{ID: "2", SKU: "KTL-010", Name: "Electric Kettle", Category: "kitchen", Brand: "Casa", Price: price("189.90"), OldPrice: &old, Stock: 15, Height: 25, Width: 18, Length: 22, Weight: 1.4},
		{ID: "3", SKU: "BOOT-42", Name: "Leather Boot", Category: "shoes", Brand: "Trilha", Price: price("349.00"), Stock: 8, Height: 14, Width: 20, Length: 33, Weight: 1.8},
		{ID: "4", SKU: "SNK-38", Name: "Running Sneaker", Category: "shoes", Brand: "Trilha", Price: price("279.50"), Stock: 30, Height: 13, Width: 19, Length: 31, Weight: 0.9},
		{ID: "5", SKU: "LMP-200", Name: "Desk Lamp", Category: "home", Brand: "Luz", Price: price("129.00"), Stock: 42, Height: 45, Width: 15, Length: 15, Weight: 1.1},
		{ID: "6", SKU: "RUG-160", Name: "Cotton Rug 1.6m", Category: "home", Brand: "Luz", Price: price("219.90"), Stock: 5, Height: 20, Width: 20, Length: 160, Weight: 3.2},
	}
}

func seedAddresses() map[string]models.Address {
	return map[string]models.Address{
		"01310100": {CEP: "01310100", Street: "Avenida Paulista", District: "Bela Vista", City: "São Paulo", State: "SP"},
		"20040002": {CEP: "20040002", Street: "Rua do Ouvidor", District: "Centro", City: "Rio de Janeiro", State: "RJ"},
		"30130010": {CEP: "30130010", Street: "Avenida Afonso Pena", District: "Centro", City: "Belo Horizonte", State: "MG"},
		"70040010": {CEP: "70040010", Street: "Esplanada dos Ministérios", District: "Zona Cívico-Administrativa", City: "Brasília", State: "DF"},
		"90010150": {CEP: "90010150", Street: "Rua dos Andradas", District: "Centro Histórico", City: "Porto Alegre", State: "RS"},
	}
}
