package payment_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/auroragems/backend-aurora/internal/common"
	"github.com/auroragems/backend-aurora/internal/payment"
)

func newPayPal(srv *httptest.Server) *payment.PayPal {
	return &payment.PayPal{
		ClientID: "pp_client",
		Secret:   "pp_secret",
		BaseURL:  srv.URL,
		HTTP:     testHTTPClient(srv),
		Logger:   zerolog.Nop(),
	}
}

func paypalTokenHandler(t *testing.T, mux *http.ServeMux) {
	t.Helper()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "pp_client", user)
		require.Equal(t, "pp_secret", pass)
		require.NoError(t, r.ParseForm())
		require.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-1"})
	})
}

func TestPayPalCreateOrder(t *testing.T) {
	var gotOrder map[string]any
	mux := http.NewServeMux()
	paypalTokenHandler(t, mux)
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotOrder))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": "PP-ORDER-1",
			"links": []map[string]string{
				{"rel": "self", "href": "https://example.com/self"},
				{"rel": "approve", "href": "https://example.com/approve"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pp := newPayPal(srv)
	intent, err := pp.CreateOrder(context.Background(), payment.CreateOrderRequest{
		Amount:    decimal.RequireFromString("1500.00"),
		Currency:  "USD",
		Reference: "local-7",
		Items: []payment.LineItem{
			{Name: strings.Repeat("Diamond Necklace ", 20), Price: decimal.NewFromInt(750), Quantity: 2},
		},
		ReturnURL: "https://shop.example/checkout/success",
		CancelURL: "https://shop.example/checkout/cancel",
	})
	require.NoError(t, err)
	require.Equal(t, "PP-ORDER-1", intent.ProviderOrderID)
	require.Equal(t, "https://example.com/approve", intent.ApprovalURL)

	require.Equal(t, "CAPTURE", gotOrder["intent"])
	units := gotOrder["purchase_units"].([]any)
	require.Len(t, units, 1)
	unit := units[0].(map[string]any)
	require.Equal(t, "local-7", unit["reference_id"])
	amount := unit["amount"].(map[string]any)
	require.Equal(t, "1500.00", amount["value"])
	require.Contains(t, amount, "breakdown")
	items := unit["items"].([]any)
	require.Len(t, items, 1)
	name := items[0].(map[string]any)["name"].(string)
	require.Len(t, []rune(name), 127)
	appCtx := gotOrder["application_context"].(map[string]any)
	require.Equal(t, "https://shop.example/checkout/success", appCtx["return_url"])
}

func TestPayPalCreateOrderDropsMismatchedItems(t *testing.T) {
	var gotOrder map[string]any
	mux := http.NewServeMux()
	paypalTokenHandler(t, mux)
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotOrder))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "PP-ORDER-2"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pp := newPayPal(srv)
	_, err := pp.CreateOrder(context.Background(), payment.CreateOrderRequest{
		Amount:   decimal.NewFromInt(100),
		Currency: "USD",
		Items: []payment.LineItem{
			{Name: "Pendant", Price: decimal.NewFromInt(30), Quantity: 1},
		},
	})
	require.NoError(t, err)
	unit := gotOrder["purchase_units"].([]any)[0].(map[string]any)
	require.NotContains(t, unit, "items")
	require.NotContains(t, unit["amount"].(map[string]any), "breakdown")
}

func TestPayPalVerifyCapturesOrder(t *testing.T) {
	mux := http.NewServeMux()
	paypalTokenHandler(t, mux)
	mux.HandleFunc("/v2/checkout/orders/PP-ORDER-3/capture", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "PP-ORDER-3",
			"status": "COMPLETED",
			"payer":  map[string]any{"email_address": "buyer@example.com"},
			"purchase_units": []map[string]any{
				{"payments": map[string]any{"captures": []map[string]any{
					{"id": "CAP-9", "status": "COMPLETED"},
				}}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pp := newPayPal(srv)
	v, err := pp.Verify(context.Background(), payment.Completion{ProviderOrderID: "PP-ORDER-3"})
	require.NoError(t, err)
	require.True(t, v.Verified)
	require.True(t, v.CaptureDone)
	require.True(t, v.Capture.Completed)
	require.Equal(t, "CAP-9", v.Capture.TransactionID)
	require.Equal(t, "buyer@example.com", v.Capture.PayerEmail)
}

func TestPayPalCapturePending(t *testing.T) {
	mux := http.NewServeMux()
	paypalTokenHandler(t, mux)
	mux.HandleFunc("/v2/checkout/orders/PP-ORDER-4/capture", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "PP-ORDER-4", "status": "PENDING"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pp := newPayPal(srv)
	result, err := pp.Capture(context.Background(), payment.Completion{ProviderOrderID: "PP-ORDER-4"})
	require.NoError(t, err)
	require.False(t, result.Completed)
	require.False(t, result.ExplicitFailure)
	require.Equal(t, "PENDING", result.Status)
}

func TestPayPalCaptureDeclined(t *testing.T) {
	mux := http.NewServeMux()
	paypalTokenHandler(t, mux)
	mux.HandleFunc("/v2/checkout/orders/PP-ORDER-5/capture", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "PP-ORDER-5", "status": "DECLINED"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pp := newPayPal(srv)
	result, err := pp.Capture(context.Background(), payment.Completion{ProviderOrderID: "PP-ORDER-5"})
	require.NoError(t, err)
	require.False(t, result.Completed)
	require.True(t, result.ExplicitFailure)
}

func TestPayPalCaptureRejected(t *testing.T) {
	mux := http.NewServeMux()
	paypalTokenHandler(t, mux)
	mux.HandleFunc("/v2/checkout/orders/PP-ORDER-6/capture", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"name":"UNPROCESSABLE_ENTITY"}`, http.StatusUnprocessableEntity)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pp := newPayPal(srv)
	_, err := pp.Capture(context.Background(), payment.Completion{ProviderOrderID: "PP-ORDER-6"})
	app, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, payment.CodeUpstreamRejected, app.Code)
	require.Equal(t, http.StatusBadRequest, app.HTTPStatus)
}

func TestPayPalCaptureUpstreamDown(t *testing.T) {
	mux := http.NewServeMux()
	paypalTokenHandler(t, mux)
	mux.HandleFunc("/v2/checkout/orders/PP-ORDER-7/capture", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pp := newPayPal(srv)
	_, err := pp.Capture(context.Background(), payment.Completion{ProviderOrderID: "PP-ORDER-7"})
	app, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, payment.CodeUpstreamUnavailable, app.Code)
}

func TestPayPalMisconfigured(t *testing.T) {
	pp := &payment.PayPal{Logger: zerolog.Nop()}
	_, err := pp.CreateOrder(context.Background(), payment.CreateOrderRequest{
		Amount: decimal.NewFromInt(10), Currency: "USD",
	})
	app, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, payment.CodeGatewayMisconfigured, app.Code)
}

func TestPayPalTokenFailureSurfacesAsAuthError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	pp := newPayPal(srv)
	_, err := pp.CreateOrder(context.Background(), payment.CreateOrderRequest{
		Amount: decimal.NewFromInt(10), Currency: "USD",
	})
	app, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, payment.CodeUpstreamAuthFailure, app.Code)
}
