package order_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/auroragems/backend-aurora/internal/order"
)

func TestMemoryStoreCreateDefaults(t *testing.T) {
	store := order.NewMemoryStore()
	created, err := store.Create(context.Background(), order.LocalOrder{
		CustomerName: "Grace",
		Total:        decimal.NewFromInt(200),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected generated id")
	}
	if created.PaymentStatus != order.PaymentUnpaid || created.Status != order.StatusPending {
		t.Fatalf("unexpected defaults: %s/%s", created.PaymentStatus, created.Status)
	}
	if created.CreatedAt.IsZero() || created.UpdatedAt.IsZero() {
		t.Fatal("timestamps not set")
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	store := order.NewMemoryStore()
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdatePaymentOutcomeAppliesOnce(t *testing.T) {
	store := order.NewMemoryStore()
	created, _ := store.Create(context.Background(), order.LocalOrder{})

	applied, err := store.UpdatePaymentOutcome(context.Background(), created.ID, order.PaymentOutcome{
		PaymentStatus: order.PaymentPaid,
		Status:        order.StatusConfirmed,
		Note:          "payment captured via paypal, transaction CAP-1",
	})
	if err != nil || !applied {
		t.Fatalf("first update: applied=%v err=%v", applied, err)
	}

	applied, err = store.UpdatePaymentOutcome(context.Background(), created.ID, order.PaymentOutcome{
		PaymentStatus: order.PaymentPaid,
		Status:        order.StatusConfirmed,
		Note:          "duplicate",
	})
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if applied {
		t.Fatal("paid order must not be updated again")
	}

	got, _ := store.Get(context.Background(), created.ID)
	if strings.Contains(got.Notes, "duplicate") {
		t.Fatalf("duplicate note written: %q", got.Notes)
	}
}

func TestUpdatePaymentOutcomeFailedThenPaid(t *testing.T) {
	store := order.NewMemoryStore()
	created, _ := store.Create(context.Background(), order.LocalOrder{})

	applied, err := store.UpdatePaymentOutcome(context.Background(), created.ID, order.PaymentOutcome{
		PaymentStatus: order.PaymentFailed,
		Status:        order.StatusPending,
		Note:          "payment failed via razorpay, provider status failed",
	})
	if err != nil || !applied {
		t.Fatalf("mark failed: applied=%v err=%v", applied, err)
	}

	// A retried payment may still succeed after a recorded failure.
	applied, err = store.UpdatePaymentOutcome(context.Background(), created.ID, order.PaymentOutcome{
		PaymentStatus: order.PaymentPaid,
		Status:        order.StatusConfirmed,
		Note:          "payment captured via razorpay, transaction pay_2",
	})
	if err != nil || !applied {
		t.Fatalf("recover to paid: applied=%v err=%v", applied, err)
	}

	got, _ := store.Get(context.Background(), created.ID)
	if got.PaymentStatus != order.PaymentPaid {
		t.Fatalf("expected paid, got %s", got.PaymentStatus)
	}
	if !strings.Contains(got.Notes, "failed") || !strings.Contains(got.Notes, "pay_2") {
		t.Fatalf("audit trail incomplete: %q", got.Notes)
	}
}

func TestUpdatePaymentOutcomeMissingOrder(t *testing.T) {
	store := order.NewMemoryStore()
	_, err := store.UpdatePaymentOutcome(context.Background(), "missing", order.PaymentOutcome{
		PaymentStatus: order.PaymentPaid,
	})
	if !errors.Is(err, order.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
