package payment

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/auroragems/backend-aurora/internal/obs"
	"github.com/auroragems/backend-aurora/internal/order"
)

// Result classifies the outcome of a reconciliation attempt. Only
// ResultCompleted moves money state; verification_failed and not_completed
// are ordinary outcomes the storefront may poll past, not hard errors.
type Result string

const (
	ResultCompleted          Result = "completed"
	ResultAlreadyPaid        Result = "already_paid"
	ResultNotCompleted       Result = "not_completed"
	ResultVerificationFailed Result = "verification_failed"
)

// Outcome is the authoritative answer of one reconciliation attempt.
type Outcome struct {
	Result         Result
	ProviderStatus string
	TransactionID  string
	PayerEmail     string
}

// Confirmation carries everything the notification dispatcher needs to send
// an order confirmation.
type Confirmation struct {
	OrderID       string
	CustomerName  string
	CustomerEmail string
	Items         []order.Item
	Subtotal      decimal.Decimal
	Total         decimal.Decimal
	Currency      string
	PaymentMethod string
	TransactionID string
}

// ConfirmationDispatcher is notified after a successful reconciliation.
// Dispatch is best-effort: a failure is logged and counted, never propagated
// into the reconciliation result.
type ConfirmationDispatcher interface {
	OrderConfirmed(ctx context.Context, c Confirmation) error
}

// Reconciler applies a provider-reported completion signal to the local
// order record exactly once. The pipeline is strict: verify, then capture,
// then write, then notify; each step only runs when the previous succeeded.
type Reconciler struct {
	Store      order.Store
	Dispatcher ConfirmationDispatcher
	Logger     zerolog.Logger
}

// Reconcile runs the state machine for one completion signal.
func (rc *Reconciler) Reconcile(ctx context.Context, p Provider, c Completion) (Outcome, error) {
	ctx, span := otel.Tracer("payment.Reconciler").Start(ctx, "Reconciler.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("payment.provider", p.Name()))

	outcome, err := rc.reconcile(ctx, p, c)
	label := string(outcome.Result)
	if err != nil {
		span.RecordError(err)
		label = "error"
	}
	if obs.PaymentReconcileTotal != nil {
		obs.PaymentReconcileTotal.WithLabelValues(p.Name(), label).Inc()
	}
	return outcome, err
}

func (rc *Reconciler) reconcile(ctx context.Context, p Provider, c Completion) (Outcome, error) {
	if strings.TrimSpace(c.ProviderOrderID) == "" {
		return Outcome{}, errMissingReference()
	}

	verification, err := p.Verify(ctx, c)
	if err != nil {
		return Outcome{}, err
	}
	if !verification.Verified {
		// Not refund-worthy: the payment may simply not have happened.
		// The local order stays untouched.
		rc.Logger.Warn().
			Str("provider", p.Name()).
			Str("provider_order_id", c.ProviderOrderID).
			Msg("payment verification failed")
		return Outcome{Result: ResultVerificationFailed}, nil
	}

	capture := verification.Capture
	if !verification.CaptureDone {
		capture, err = p.Capture(ctx, c)
		if err != nil {
			return Outcome{}, err
		}
	}

	if !capture.Completed {
		if capture.ExplicitFailure {
			rc.markFailed(ctx, p, c, capture)
		}
		return Outcome{Result: ResultNotCompleted, ProviderStatus: capture.Status}, nil
	}

	outcome := Outcome{
		Result:         ResultCompleted,
		ProviderStatus: capture.Status,
		TransactionID:  capture.TransactionID,
		PayerEmail:     capture.PayerEmail,
	}
	if strings.TrimSpace(c.LocalOrderID) == "" {
		rc.Logger.Warn().
			Str("provider", p.Name()).
			Str("transaction_id", capture.TransactionID).
			Msg("payment captured without local order reference")
		return outcome, nil
	}

	note := fmt.Sprintf("payment captured via %s, transaction %s", p.Name(), capture.TransactionID)
	applied, err := rc.Store.UpdatePaymentOutcome(ctx, c.LocalOrderID, order.PaymentOutcome{
		PaymentStatus: order.PaymentPaid,
		Status:        order.StatusConfirmed,
		Note:          note,
	})
	if err != nil {
		rc.Logger.Error().Err(err).
			Str("order_id", c.LocalOrderID).
			Str("provider", p.Name()).
			Str("transaction_id", capture.TransactionID).
			Msg("payment captured but order update failed")
		return Outcome{}, errOrderUpdateFailed(c.LocalOrderID, capture.TransactionID, err)
	}
	if !applied {
		// Duplicate delivery of an already reconciled payment: no second
		// audit note, no second confirmation email.
		outcome.Result = ResultAlreadyPaid
		return outcome, nil
	}

	rc.dispatchConfirmation(ctx, p, c, capture)
	return outcome, nil
}

// markFailed records an explicit provider-reported failure. Best-effort: the
// conditional update never downgrades a paid order, and a store error here
// does not change the reconciliation outcome.
func (rc *Reconciler) markFailed(ctx context.Context, p Provider, c Completion, capture CaptureResult) {
	if strings.TrimSpace(c.LocalOrderID) == "" {
		return
	}
	note := fmt.Sprintf("payment failed via %s, provider status %s", p.Name(), capture.Status)
	if _, err := rc.Store.UpdatePaymentOutcome(ctx, c.LocalOrderID, order.PaymentOutcome{
		PaymentStatus: order.PaymentFailed,
		Status:        order.StatusPending,
		Note:          note,
	}); err != nil {
		rc.Logger.Error().Err(err).
			Str("order_id", c.LocalOrderID).
			Str("provider", p.Name()).
			Msg("record payment failure")
	}
}

func (rc *Reconciler) dispatchConfirmation(ctx context.Context, p Provider, c Completion, capture CaptureResult) {
	if rc.Dispatcher == nil {
		return
	}
	result := "sent"
	if err := rc.Dispatcher.OrderConfirmed(ctx, rc.buildConfirmation(ctx, p, c, capture)); err != nil {
		result = "error"
		rc.Logger.Error().Err(err).
			Str("order_id", c.LocalOrderID).
			Str("transaction_id", capture.TransactionID).
			Msg("order confirmation dispatch failed")
	}
	if obs.OrderConfirmationTotal != nil {
		obs.OrderConfirmationTotal.WithLabelValues(result).Inc()
	}
}

func (rc *Reconciler) buildConfirmation(ctx context.Context, p Provider, c Completion, capture CaptureResult) Confirmation {
	conf := Confirmation{
		OrderID:       c.LocalOrderID,
		CustomerEmail: capture.PayerEmail,
		PaymentMethod: p.Name(),
		TransactionID: capture.TransactionID,
	}
	ord, err := rc.Store.Get(ctx, c.LocalOrderID)
	if err != nil {
		rc.Logger.Warn().Err(err).Str("order_id", c.LocalOrderID).Msg("load order for confirmation")
		return conf
	}
	conf.CustomerName = ord.CustomerName
	if ord.CustomerEmail != "" {
		conf.CustomerEmail = ord.CustomerEmail
	}
	conf.Items = ord.Items
	conf.Subtotal = ord.Subtotal
	conf.Total = ord.Total
	conf.Currency = ord.Currency
	return conf
}
