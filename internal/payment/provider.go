package payment

import (
	"context"

	"github.com/shopspring/decimal"
)

// LineItem is a cart line forwarded to the provider during order creation.
type LineItem struct {
	Name     string
	Price    decimal.Decimal
	Quantity int
}

// CreateOrderRequest captures the information required to open a
// provider-hosted order.
type CreateOrderRequest struct {
	Amount    decimal.Decimal
	Currency  string
	Reference string
	Items     []LineItem
	ReturnURL string
	CancelURL string
}

// OrderIntent is the provider's answer to order creation: an opaque order id
// plus either a redirect target (PayPal approval URL) or the client-side key
// needed to open the hosted checkout widget (Razorpay).
type OrderIntent struct {
	Provider        string
	ProviderOrderID string
	ApprovalURL     string
	KeyID           string
	Amount          int64
	Currency        string
}

// Completion is a provider-reported payment completion signal, as relayed by
// the storefront after the customer returns from the hosted payment page.
type Completion struct {
	ProviderOrderID string
	PaymentID       string
	Signature       string
	LocalOrderID    string
}

// CaptureResult is the authoritative provider-side outcome of a capture or
// status call. Completed is true only for the provider's terminal success
// status; anything else leaves the local order unpaid.
type CaptureResult struct {
	Completed       bool
	ExplicitFailure bool
	Status          string
	TransactionID   string
	PayerEmail      string
}

// Verification is the result of authenticating a completion signal.
// Unverified is an ordinary result, not an error; the reason for a mismatch
// is never reported. CaptureDone marks strategies where verification itself
// performed the capture call.
type Verification struct {
	Verified    bool
	CaptureDone bool
	Capture     CaptureResult
}

// Provider abstracts a payment gateway. Credentials are injected at
// construction and used server-side only.
type Provider interface {
	Name() string
	CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderIntent, error)
	Verify(ctx context.Context, c Completion) (Verification, error)
	Capture(ctx context.Context, c Completion) (CaptureResult, error)
}
