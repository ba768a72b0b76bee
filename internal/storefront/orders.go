package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"storefront-bff/internal/freight"
	"storefront-bff/internal/models"
	"storefront-bff/internal/ordercontext"
	"storefront-bff/internal/validation"
)

const (
	dateLayout       = "2006-01-02"
	defaultSalesDays = 30
	maxSalesDays     = 366
	recentApprovals  = 10
)

// Checkout validates the form, resolves delivery address and freight
// (request body first, then the session cookies) and places the order.
// Item prices come from the catalog and the freight value from a fresh
// quote; the client only picks products, quantities and a service.
// An empty idempotency key gets a generated one.
func (s *Storefront) Checkout(ctx context.Context, req models.CheckoutRequest, cookieAddr *models.Address, cookieFreight *models.FreightSelection, idempotencyKey string) (*models.OrderContext, error) {
	delivery := req.Delivery
	if (delivery == nil || delivery.IsZero()) && cookieAddr != nil && !cookieAddr.IsZero() {
		delivery = cookieAddr
		req.Delivery = cookieAddr
	}

	fields := s.validate.Struct(req)
	if fields == nil {
		fields = validation.FieldErrors{}
	}

	target := req.Billing.CEP
	if delivery != nil && !delivery.IsZero() {
		target = delivery.CEP
	}

	fr := req.Freight
	if fr == nil {
		fr = cookieFreight
	}
	switch {
	case fr == nil || strings.TrimSpace(fr.Service) == "":
		fields["freight"] = "select a freight option"
	case strings.TrimSpace(fr.CEP) == "":
		fields["freight"] = "freight CEP is required"
	case validation.OnlyDigits(fr.CEP) != validation.OnlyDigits(target):
		fields["freight"] = "freight was quoted for a different CEP"
	}
	if len(fields) > 0 {
		return nil, fields
	}

	items := make([]freight.Item, 0, len(req.Items))
	for i, it := range req.Items {
		prod, ok, err := s.productBySKU(ctx, it.SKU)
		if err != nil {
			return nil, fmt.Errorf("price item %s: %w", it.SKU, err)
		}
		if !ok {
			fields[fmt.Sprintf("items[%d].sku", i)] = "unknown product"
			continue
		}
		req.Items[i].SKU = prod.SKU
		req.Items[i].Name = prod.Name
		req.Items[i].UnitPrice = prod.Price
		items = append(items, ItemFor(prod, it.Quantity))
	}
	if len(fields) > 0 {
		return nil, fields
	}

	sel, err := s.SelectFreight(ctx, fr.Service, target, items)
	if err != nil {
		var fe validation.FieldErrors
		if errors.As(err, &fe) {
			return nil, validation.FieldErrors{"freight": "freight service not available for this CEP"}
		}
		return nil, fmt.Errorf("quote freight: %w", err)
	}

	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	oc := ordercontext.FromCheckout(req, delivery, *sel)
	placed, err := s.backend.PlaceOrder(ctx, ordercontext.ToRecord(oc), idempotencyKey)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}

	out := ordercontext.FromRecord(*placed)
	if out.Status == "" {
		out.Status = ordercontext.StatusPendingApproval
		out.StatusLabel = ordercontext.StatusLabel(out.Status)
	}
	slog.Info("Order placed", "order_id", out.OrderID, "idempotency_key", idempotencyKey, "total", out.Total.StringFixed(2))
	return &out, nil
}

// Orders lists backend orders; the status defaults to the approval queue.
func (s *Storefront) Orders(ctx context.Context, f models.OrderFilter) (*models.OrderList, error) {
	if f.Status == "" {
		f.Status = ordercontext.StatusPendingApproval
	}
	if f.Page < 1 {
		f.Page = 1
	}
	return s.backend.ListOrders(ctx, f)
}

type OrderDetail struct {
	Order     models.OrderContext `json:"order"`
	Approvals []models.Approval   `json:"approvals"`
}

// OrderDetail loads an order and its approval history concurrently. A
// failing history read leaves the history empty.
func (s *Storefront) OrderDetail(ctx context.Context, id string) (*OrderDetail, error) {
	var (
		rec     *models.OrderRecord
		history []models.Approval
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		rec, err = s.backend.GetOrder(gctx, id)
		return err
	})
	g.Go(func() error {
		list, err := s.approvals.ListByOrder(gctx, id)
		if err != nil {
			slog.Warn("Approval history fallback", "order_id", id, "error", err)
			return nil
		}
		history = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if history == nil {
		history = []models.Approval{}
	}
	return &OrderDetail{Order: ordercontext.FromRecord(*rec), Approvals: history}, nil
}

// Decide approves or rejects a pending order and records the decision.
// Rejections need a reason.
func (s *Storefront) Decide(ctx context.Context, id, action, reason, actor string) (*models.OrderContext, error) {
	reason = strings.TrimSpace(reason)
	switch action {
	case models.ActionApprove:
	case models.ActionReject:
		if reason == "" {
			return nil, validation.FieldErrors{"reason": "is required"}
		}
	default:
		return nil, validation.FieldErrors{"action": "must be one of: approve reject"}
	}

	current, err := s.backend.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status != ordercontext.StatusPendingApproval {
		return nil, fmt.Errorf("%w: order %s is %s", ErrNotPending, id, current.Status)
	}

	var updated *models.OrderRecord
	if action == models.ActionApprove {
		updated, err = s.backend.ApproveOrder(ctx, id)
	} else {
		updated, err = s.backend.RejectOrder(ctx, id, reason)
	}
	if err != nil {
		return nil, err
	}

	if updated == nil || updated.ID == "" {
		rec := *current
		rec.Status = ordercontext.StatusApproved
		if action == models.ActionReject {
			rec.Status = ordercontext.StatusRejected
		}
		updated = &rec
	}

	if actor == "" {
		actor = "unknown"
	}
	if _, err := s.approvals.Record(ctx, models.Approval{OrderID: id, Action: action, Reason: reason, Actor: actor}); err != nil {
		slog.Error("Failed to record approval", "order_id", id, "action", action, "error", err)
	}

	slog.Info("Order decided", "order_id", id, "action", action, "actor", actor)
	oc := ordercontext.FromRecord(*updated)
	return &oc, nil
}

// SalesRange parses the report window. Empty bounds default to the last
// 30 days ending today.
func (s *Storefront) SalesRange(from, to string) (string, string, error) {
	fields := validation.FieldErrors{}

	end := s.now().UTC()
	if to != "" {
		t, err := time.Parse(dateLayout, to)
		if err != nil {
			fields["to"] = "must be a date (YYYY-MM-DD)"
		}
		end = t
	}

	start := end.AddDate(0, 0, -defaultSalesDays)
	if from != "" {
		t, err := time.Parse(dateLayout, from)
		if err != nil {
			fields["from"] = "must be a date (YYYY-MM-DD)"
		}
		start = t
	}

	if len(fields) == 0 {
		switch {
		case start.After(end):
			fields["from"] = "must not be after to"
		case end.Sub(start) > maxSalesDays*24*time.Hour:
			fields["from"] = fmt.Sprintf("range must not exceed %d days", maxSalesDays)
		}
	}
	if len(fields) > 0 {
		return "", "", fields
	}
	return start.Format(dateLayout), end.Format(dateLayout), nil
}

func (s *Storefront) Sales(ctx context.Context, from, to string) (*models.SalesReport, error) {
	from, to, err := s.SalesRange(from, to)
	if err != nil {
		return nil, err
	}
	report, err := s.backend.SalesReport(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if report.From == "" {
		report.From, report.To = from, to
	}
	if report.ByStatus == nil {
		report.ByStatus = map[string]int{}
	}
	return report, nil
}

// Dashboard fans out to the approval queue, the sales report and the audit
// trail. Each branch falls back to an empty value on failure.
func (s *Storefront) Dashboard(ctx context.Context) *models.DashboardResponse {
	var (
		wg        sync.WaitGroup
		pending   []models.OrderRecord
		sales     *models.SalesReport
		approvals []models.Approval
	)

	wg.Add(3)

	go func() {
		defer wg.Done()
		res, err := s.Orders(ctx, models.OrderFilter{Status: ordercontext.StatusPendingApproval})
		if err != nil {
			slog.Error("Pending orders fetch error", "error", err)
			pending = []models.OrderRecord{}
			return
		}
		pending = res.Items
	}()

	go func() {
		defer wg.Done()
		res, err := s.Sales(ctx, "", "")
		if err != nil {
			slog.Warn("Sales report fallback", "error", err)
			return
		}
		sales = res
	}()

	go func() {
		defer wg.Done()
		res, err := s.approvals.Recent(ctx, recentApprovals)
		if err != nil {
			slog.Warn("Recent approvals fallback", "error", err)
			approvals = []models.Approval{}
			return
		}
		approvals = res
	}()

	wg.Wait()

	if pending == nil {
		pending = []models.OrderRecord{}
	}
	if approvals == nil {
		approvals = []models.Approval{}
	}
	return &models.DashboardResponse{
		PendingOrders:   pending,
		Sales:           sales,
		RecentApprovals: approvals,
	}
}
