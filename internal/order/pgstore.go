package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgStore persists orders in Postgres.
type PgStore struct {
	Pool *pgxpool.Pool
}

var _ Store = (*PgStore)(nil)

// Get fetches an order by id.
func (s *PgStore) Get(ctx context.Context, id string) (LocalOrder, error) {
	const q = `
SELECT id, customer_name, customer_email, items, subtotal, total, currency,
       payment_status, status, notes, created_at, updated_at
FROM orders WHERE id = $1`
	var (
		o        LocalOrder
		itemsRaw []byte
	)
	err := s.Pool.QueryRow(ctx, q, id).Scan(
		&o.ID, &o.CustomerName, &o.CustomerEmail, &itemsRaw, &o.Subtotal, &o.Total,
		&o.Currency, &o.PaymentStatus, &o.Status, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LocalOrder{}, ErrNotFound
		}
		return LocalOrder{}, fmt.Errorf("order: get %s: %w", id, err)
	}
	if len(itemsRaw) > 0 {
		if err := json.Unmarshal(itemsRaw, &o.Items); err != nil {
			return LocalOrder{}, fmt.Errorf("order: decode items for %s: %w", id, err)
		}
	}
	return o, nil
}

// Create inserts a new order in the unpaid/pending state.
func (s *PgStore) Create(ctx context.Context, o LocalOrder) (LocalOrder, error) {
	if strings.TrimSpace(o.ID) == "" {
		o.ID = uuid.NewString()
	}
	if o.PaymentStatus == "" {
		o.PaymentStatus = PaymentUnpaid
	}
	if o.Status == "" {
		o.Status = StatusPending
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return LocalOrder{}, fmt.Errorf("order: encode items: %w", err)
	}
	const q = `
INSERT INTO orders (id, customer_name, customer_email, items, subtotal, total, currency,
                    payment_status, status, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING created_at, updated_at`
	err = s.Pool.QueryRow(ctx, q,
		o.ID, o.CustomerName, o.CustomerEmail, items, o.Subtotal, o.Total, o.Currency,
		o.PaymentStatus, o.Status, o.Notes,
	).Scan(&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return LocalOrder{}, fmt.Errorf("order: create: %w", err)
	}
	return o, nil
}

// UpdatePaymentOutcome applies the reconciliation outcome with a conditional
// update: an order that is already paid is never rewritten. The audit note is
// appended to the existing notes.
func (s *PgStore) UpdatePaymentOutcome(ctx context.Context, id string, out PaymentOutcome) (bool, error) {
	const q = `
UPDATE orders
SET payment_status = $2,
    status = $3,
    notes = trim(both ' ' from coalesce(notes, '') || ' ' || $4),
    updated_at = now()
WHERE id = $1 AND payment_status <> 'paid'`
	tag, err := s.Pool.Exec(ctx, q, id, out.PaymentStatus, out.Status, out.Note)
	if err != nil {
		return false, fmt.Errorf("order: update payment outcome for %s: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	// No row updated: either the order is already paid or it does not exist.
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}
