package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"storefront-bff/internal/models"
)

// MemoryApprovals keeps the audit trail in process. Used when no database
// is configured and in tests.
type MemoryApprovals struct {
	mu     sync.RWMutex
	nextID int64
	items  []models.Approval
	now    func() time.Time
}

func NewMemoryApprovals() *MemoryApprovals {
	return &MemoryApprovals{nextID: 1, now: time.Now}
}

func (m *MemoryApprovals) Record(_ context.Context, a models.Approval) (models.Approval, error) {
	if err := checkAction(a.Action); err != nil {
		return a, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.nextID
	m.nextID++
	a.CreatedAt = m.now().UTC()
	m.items = append(m.items, a)
	return a, nil
}

func (m *MemoryApprovals) ListByOrder(_ context.Context, orderID string) ([]models.Approval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []models.Approval{}
	for _, a := range m.items {
		if a.OrderID == orderID {
			out = append(out, a)
		}
	}
	newestFirst(out)
	return out, nil
}

func (m *MemoryApprovals) Recent(_ context.Context, limit int) ([]models.Approval, error) {
	if limit <= 0 {
		limit = 10
	}

	m.mu.RLock()
	out := make([]models.Approval, len(m.items))
	copy(out, m.items)
	m.mu.RUnlock()

	newestFirst(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newestFirst(a []models.Approval) {
	sort.SliceStable(a, func(i, j int) bool {
		if !a[i].CreatedAt.Equal(a[j].CreatedAt) {
			return a[i].CreatedAt.After(a[j].CreatedAt)
		}
		return a[i].ID > a[j].ID
	})
}
