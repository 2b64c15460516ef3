package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/auroragems/backend-aurora/internal/resilience"
)

// PayPal implements the Provider interface against the PayPal Orders v2 API.
// Verification is capture-based: the credentialed capture call is itself the
// proof that the completion signal is authentic.
type PayPal struct {
	ClientID string
	Secret   string
	BaseURL  string
	HTTP     *resilience.Client
	Logger   zerolog.Logger
}

// Name identifies the provider in logs, metrics and routes.
func (p *PayPal) Name() string { return "paypal" }

func (p *PayPal) configured() bool {
	return strings.TrimSpace(p.ClientID) != "" && strings.TrimSpace(p.Secret) != ""
}

func (p *PayPal) base() string {
	host := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if host == "" {
		host = "https://api-m.sandbox.paypal.com"
	}
	return host
}

// token performs the client-credentials exchange. The client id and secret
// never leave this method.
func (p *PayPal) token(ctx context.Context) (string, error) {
	form := url.Values{"grant_type": {"client_credentials"}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base()+"/v1/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", errUpstreamAuth(p.Name(), err)
	}
	req.SetBasicAuth(p.ClientID, p.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.HTTP.Do(ctx, req)
	if err != nil {
		return "", errUpstreamAuth(p.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errUpstreamAuth(p.Name(), fmt.Errorf("token endpoint returned %s", resp.Status))
	}
	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errUpstreamAuth(p.Name(), err)
	}
	if payload.AccessToken == "" {
		return "", errUpstreamAuth(p.Name(), fmt.Errorf("token endpoint returned no access token"))
	}
	return payload.AccessToken, nil
}

type paypalMoney struct {
	CurrencyCode string `json:"currency_code"`
	Value        string `json:"value"`
}

type paypalItem struct {
	Name       string      `json:"name"`
	UnitAmount paypalMoney `json:"unit_amount"`
	Quantity   string      `json:"quantity"`
}

// CreateOrder opens a PayPal-hosted order and returns its id plus the
// approval URL the customer must be redirected to.
func (p *PayPal) CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderIntent, error) {
	if !p.configured() {
		return OrderIntent{}, errMisconfigured(p.Name())
	}
	token, err := p.token(ctx)
	if err != nil {
		return OrderIntent{}, err
	}

	amount := map[string]any{
		"currency_code": req.Currency,
		"value":         MajorString(req.Amount),
	}
	unit := map[string]any{"amount": amount}
	if strings.TrimSpace(req.Reference) != "" {
		unit["reference_id"] = req.Reference
		unit["custom_id"] = req.Reference
	}
	// PayPal rejects orders whose item total disagrees with the amount, so
	// items are forwarded only when the sums line up.
	if len(req.Items) > 0 {
		itemTotal := decimal.Zero
		items := make([]paypalItem, 0, len(req.Items))
		for _, it := range req.Items {
			qty := it.Quantity
			if qty < 1 {
				qty = 1
			}
			itemTotal = itemTotal.Add(it.Price.Mul(decimal.NewFromInt(int64(qty))))
			items = append(items, paypalItem{
				Name:       TruncateItemName(it.Name),
				UnitAmount: paypalMoney{CurrencyCode: req.Currency, Value: MajorString(it.Price)},
				Quantity:   strconv.Itoa(qty),
			})
		}
		if itemTotal.Equal(req.Amount) {
			unit["items"] = items
			amount["breakdown"] = map[string]any{
				"item_total": paypalMoney{CurrencyCode: req.Currency, Value: MajorString(itemTotal)},
			}
		}
	}
	body := map[string]any{
		"intent":         "CAPTURE",
		"purchase_units": []map[string]any{unit},
		"application_context": map[string]any{
			"return_url": req.ReturnURL,
			"cancel_url": req.CancelURL,
		},
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return OrderIntent{}, errUpstreamOrderCreation(p.Name(), err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base()+"/v2/checkout/orders", bytes.NewReader(encoded))
	if err != nil {
		return OrderIntent{}, errUpstreamOrderCreation(p.Name(), err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTP.Do(ctx, httpReq)
	if err != nil {
		return OrderIntent{}, errUpstreamUnavailable(p.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := readErrorBody(resp.Body)
		return OrderIntent{}, errUpstreamOrderCreation(p.Name(), fmt.Errorf("order endpoint returned %s: %s", resp.Status, detail))
	}

	var created struct {
		ID    string `json:"id"`
		Links []struct {
			Href string `json:"href"`
			Rel  string `json:"rel"`
		} `json:"links"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return OrderIntent{}, errUpstreamOrderCreation(p.Name(), err)
	}
	intent := OrderIntent{
		Provider:        p.Name(),
		ProviderOrderID: created.ID,
		Currency:        req.Currency,
	}
	for _, link := range created.Links {
		if link.Rel == "approve" || link.Rel == "payer-action" {
			intent.ApprovalURL = link.Href
			break
		}
	}
	return intent, nil
}

// Verify authenticates the completion by capturing the order: a 2xx answer
// from the credentialed capture endpoint is the verification signal. The
// capture outcome is carried along so the reconciler does not repeat the call.
func (p *PayPal) Verify(ctx context.Context, c Completion) (Verification, error) {
	result, err := p.Capture(ctx, c)
	if err != nil {
		return Verification{}, err
	}
	return Verification{Verified: true, CaptureDone: true, Capture: result}, nil
}

// Capture finalises the authorized payment.
func (p *PayPal) Capture(ctx context.Context, c Completion) (CaptureResult, error) {
	if !p.configured() {
		return CaptureResult{}, errMisconfigured(p.Name())
	}
	token, err := p.token(ctx)
	if err != nil {
		return CaptureResult{}, err
	}

	captureURL := fmt.Sprintf("%s/v2/checkout/orders/%s/capture", p.base(), url.PathEscape(c.ProviderOrderID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, captureURL, strings.NewReader("{}"))
	if err != nil {
		return CaptureResult{}, errUpstreamUnavailable(p.Name(), err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.HTTP.Do(ctx, req)
	if err != nil {
		return CaptureResult{}, errUpstreamUnavailable(p.Name(), err)
	}
	defer func() { _ = resp.Body.Close() }()
	switch {
	case resp.StatusCode >= 500:
		return CaptureResult{}, errUpstreamUnavailable(p.Name(), fmt.Errorf("capture endpoint returned %s", resp.Status))
	case resp.StatusCode >= 400:
		detail := readErrorBody(resp.Body)
		return CaptureResult{}, errUpstreamRejected(p.Name(), fmt.Errorf("capture endpoint returned %s: %s", resp.Status, detail))
	}

	var captured struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Payer  struct {
			EmailAddress string `json:"email_address"`
		} `json:"payer"`
		PurchaseUnits []struct {
			Payments struct {
				Captures []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
				} `json:"captures"`
			} `json:"payments"`
		} `json:"purchase_units"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&captured); err != nil {
		return CaptureResult{}, errUpstreamUnavailable(p.Name(), err)
	}

	result := CaptureResult{
		Status:        captured.Status,
		Completed:     strings.EqualFold(captured.Status, "COMPLETED"),
		PayerEmail:    captured.Payer.EmailAddress,
		TransactionID: captured.ID,
	}
	for _, pu := range captured.PurchaseUnits {
		if len(pu.Payments.Captures) > 0 {
			result.TransactionID = pu.Payments.Captures[0].ID
			break
		}
	}
	switch strings.ToUpper(strings.TrimSpace(captured.Status)) {
	case "DECLINED", "FAILED", "VOIDED":
		result.ExplicitFailure = true
	}
	return result, nil
}

// readErrorBody extracts a bounded amount of the provider error payload for
// diagnostics. Credentials never appear in provider error bodies.
func readErrorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
