package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/auroragems/backend-aurora/internal/resilience"
)

// Razorpay implements the Provider interface against the Razorpay v1 API.
// Completion signals are authenticated with the HMAC signature Razorpay
// attaches to its hosted checkout callback; capture is a separate
// credentialed call.
type Razorpay struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	HTTP      *resilience.Client
	Logger    zerolog.Logger
}

// Name identifies the provider in logs, metrics and routes.
func (r *Razorpay) Name() string { return "razorpay" }

func (r *Razorpay) configured() bool {
	return strings.TrimSpace(r.KeyID) != "" && strings.TrimSpace(r.KeySecret) != ""
}

func (r *Razorpay) base() string {
	host := strings.TrimRight(strings.TrimSpace(r.BaseURL), "/")
	if host == "" {
		host = "https://api.razorpay.com"
	}
	return host
}

// CreateOrder opens a Razorpay order. The response carries the key id the
// storefront needs to open the hosted checkout widget in-page; there is no
// redirect URL for this provider.
func (r *Razorpay) CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderIntent, error) {
	if !r.configured() {
		return OrderIntent{}, errMisconfigured(r.Name())
	}
	minor := MinorUnits(req.Amount)
	body := map[string]any{
		"amount":   minor,
		"currency": req.Currency,
	}
	if strings.TrimSpace(req.Reference) != "" {
		body["receipt"] = req.Reference
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return OrderIntent{}, errUpstreamOrderCreation(r.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base()+"/v1/orders", bytes.NewReader(encoded))
	if err != nil {
		return OrderIntent{}, errUpstreamOrderCreation(r.Name(), err)
	}
	httpReq.SetBasicAuth(r.KeyID, r.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.HTTP.Do(ctx, httpReq)
	if err != nil {
		return OrderIntent{}, errUpstreamUnavailable(r.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusUnauthorized {
		return OrderIntent{}, errUpstreamAuth(r.Name(), fmt.Errorf("order endpoint returned %s", resp.Status))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := readErrorBody(resp.Body)
		return OrderIntent{}, errUpstreamOrderCreation(r.Name(), fmt.Errorf("order endpoint returned %s: %s", resp.Status, detail))
	}

	var created struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return OrderIntent{}, errUpstreamOrderCreation(r.Name(), err)
	}
	return OrderIntent{
		Provider:        r.Name(),
		ProviderOrderID: created.ID,
		KeyID:           r.KeyID,
		Amount:          created.Amount,
		Currency:        created.Currency,
	}, nil
}

// SignCompletion computes the callback signature for an order/payment pair:
// hex(HMAC-SHA256(secret, orderId + "|" + paymentId)).
func SignCompletion(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the caller-supplied signature against the locally computed
// digest. A mismatch yields an unverified result, never an error, and no
// reason is reported.
func (r *Razorpay) Verify(_ context.Context, c Completion) (Verification, error) {
	if !r.configured() {
		return Verification{}, errMisconfigured(r.Name())
	}
	var missing []string
	if strings.TrimSpace(c.ProviderOrderID) == "" {
		missing = append(missing, "razorpay_order_id")
	}
	if strings.TrimSpace(c.PaymentID) == "" {
		missing = append(missing, "razorpay_payment_id")
	}
	if strings.TrimSpace(c.Signature) == "" {
		missing = append(missing, "razorpay_signature")
	}
	if len(missing) > 0 {
		return Verification{}, errMissingFields(strings.Join(missing, ", "))
	}

	expected := SignCompletion(r.KeySecret, c.ProviderOrderID, c.PaymentID)
	provided := strings.TrimSpace(c.Signature)
	if !hmac.Equal([]byte(expected), []byte(provided)) {
		return Verification{Verified: false}, nil
	}
	return Verification{Verified: true}, nil
}

type razorpayPayment struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Email    string `json:"email"`
}

// Capture confirms the payment with Razorpay. Payments arriving through the
// hosted checkout are usually captured already; authorized payments get an
// explicit capture call for the full amount.
func (r *Razorpay) Capture(ctx context.Context, c Completion) (CaptureResult, error) {
	if !r.configured() {
		return CaptureResult{}, errMisconfigured(r.Name())
	}
	payment, err := r.fetchPayment(ctx, c.PaymentID)
	if err != nil {
		return CaptureResult{}, err
	}
	if strings.EqualFold(payment.Status, "authorized") {
		payment, err = r.capturePayment(ctx, payment)
		if err != nil {
			return CaptureResult{}, err
		}
	}
	result := CaptureResult{
		Status:        payment.Status,
		Completed:     strings.EqualFold(payment.Status, "captured"),
		TransactionID: payment.ID,
		PayerEmail:    payment.Email,
	}
	if strings.EqualFold(payment.Status, "failed") {
		result.ExplicitFailure = true
	}
	return result, nil
}

func (r *Razorpay) fetchPayment(ctx context.Context, paymentID string) (razorpayPayment, error) {
	endpoint := fmt.Sprintf("%s/v1/payments/%s", r.base(), url.PathEscape(paymentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return razorpayPayment{}, errUpstreamUnavailable(r.Name(), err)
	}
	req.SetBasicAuth(r.KeyID, r.KeySecret)
	return r.doPayment(ctx, req)
}

func (r *Razorpay) capturePayment(ctx context.Context, p razorpayPayment) (razorpayPayment, error) {
	body, err := json.Marshal(map[string]any{"amount": p.Amount, "currency": p.Currency})
	if err != nil {
		return razorpayPayment{}, errUpstreamUnavailable(r.Name(), err)
	}
	endpoint := fmt.Sprintf("%s/v1/payments/%s/capture", r.base(), url.PathEscape(p.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return razorpayPayment{}, errUpstreamUnavailable(r.Name(), err)
	}
	req.SetBasicAuth(r.KeyID, r.KeySecret)
	req.Header.Set("Content-Type", "application/json")
	return r.doPayment(ctx, req)
}

func (r *Razorpay) doPayment(ctx context.Context, req *http.Request) (razorpayPayment, error) {
	resp, err := r.HTTP.Do(ctx, req)
	if err != nil {
		return razorpayPayment{}, errUpstreamUnavailable(r.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()
	switch {
	case resp.StatusCode >= 500:
		return razorpayPayment{}, errUpstreamUnavailable(r.Name(), fmt.Errorf("payment endpoint returned %s", resp.Status))
	case resp.StatusCode >= 400:
		detail := readErrorBody(resp.Body)
		return razorpayPayment{}, errUpstreamRejected(r.Name(), fmt.Errorf("payment endpoint returned %s: %s", resp.Status, detail))
	}
	var payment razorpayPayment
	if err := json.NewDecoder(resp.Body).Decode(&payment); err != nil {
		return razorpayPayment{}, errUpstreamUnavailable(r.Name(), err)
	}
	return payment, nil
}
