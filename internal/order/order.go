package order

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus tracks whether an order has been paid for.
type PaymentStatus string

// Status tracks the fulfilment lifecycle of an order.
type Status string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
	PaymentFailed PaymentStatus = "failed"

	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Item is a single order line.
type Item struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// LocalOrder is the persisted order record. It is created by the checkout
// flow before any provider interaction; its payment fields are mutated only
// through Store.UpdatePaymentOutcome.
type LocalOrder struct {
	ID            string
	CustomerName  string
	CustomerEmail string
	Items         []Item
	Subtotal      decimal.Decimal
	Total         decimal.Decimal
	Currency      string
	PaymentStatus PaymentStatus
	Status        Status
	Notes         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// PaymentOutcome describes the single write applied by a reconciliation.
type PaymentOutcome struct {
	PaymentStatus PaymentStatus
	Status        Status
	Note          string
}

// ErrNotFound is returned when the referenced order does not exist.
var ErrNotFound = errors.New("order: not found")

// Store is the single write path for order payment fields.
//
// UpdatePaymentOutcome applies the outcome only when the order is not
// already paid and reports whether the write was applied. A false return
// with a nil error means the order was already paid and the call was a
// no-op, which keeps reconciliation safe under at-least-once delivery.
type Store interface {
	Get(ctx context.Context, id string) (LocalOrder, error)
	Create(ctx context.Context, o LocalOrder) (LocalOrder, error)
	UpdatePaymentOutcome(ctx context.Context, id string, out PaymentOutcome) (bool, error)
}
