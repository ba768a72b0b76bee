package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront-bff/internal/models"
)

var ErrInvalidAction = errors.New("invalid approval action")

type ApprovalRepo struct {
	db *sql.DB
}

func NewApprovalRepo(db *sql.DB) *ApprovalRepo {
	return &ApprovalRepo{db: db}
}

func (r *ApprovalRepo) Record(ctx context.Context, a models.Approval) (models.Approval, error) {
	if err := checkAction(a.Action); err != nil {
		return a, err
	}

	query := `
		INSERT INTO approvals (order_id, action, reason, actor)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query, a.OrderID, a.Action, a.Reason, a.Actor).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return a, fmt.Errorf("insert approval: %w", err)
	}
	return a, nil
}

func (r *ApprovalRepo) ListByOrder(ctx context.Context, orderID string) ([]models.Approval, error) {
	query := `
		SELECT id, order_id, action, reason, actor, created_at
		FROM approvals
		WHERE order_id = $1
		ORDER BY created_at DESC, id DESC
	`
	return r.list(ctx, query, orderID)
}

func (r *ApprovalRepo) Recent(ctx context.Context, limit int) ([]models.Approval, error) {
	if limit <= 0 {
		limit = 10
	}
	query := `
		SELECT id, order_id, action, reason, actor, created_at
		FROM approvals
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`
	return r.list(ctx, query, limit)
}

func (r *ApprovalRepo) list(ctx context.Context, query string, args ...any) ([]models.Approval, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	defer rows.Close()

	out := []models.Approval{}
	for rows.Next() {
		var a models.Approval
		if err := rows.Scan(&a.ID, &a.OrderID, &a.Action, &a.Reason, &a.Actor, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func checkAction(action string) error {
	if action != models.ActionApprove && action != models.ActionReject {
		return fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
	return nil
}
