package payment

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/auroragems/backend-aurora/internal/common"
	"github.com/auroragems/backend-aurora/internal/obs"
	"github.com/auroragems/backend-aurora/internal/order"
)

// Handler exposes the payment endpoints consumed by the storefront.
type Handler struct {
	PayPal     Provider
	Razorpay   Provider
	Reconciler *Reconciler
	Orders     order.Store
	Validate   *validator.Validate
	Replay     ReplayGuard

	DefaultCurrency string
	ReturnURL       string
	CancelURL       string
	Logger          zerolog.Logger
}

// Mount registers the payment routes on the provided router.
func (h *Handler) Mount(r chi.Router) {
	r.Post("/paypal/orders", h.CreatePayPalOrder)
	r.Post("/paypal/capture", h.CapturePayPal)
	r.Post("/razorpay/orders", h.CreateRazorpayOrder)
	r.Post("/razorpay/verify", h.VerifyRazorpay)
	r.Get("/orders/{orderId}/status", h.Status)
}

type createOrderReq struct {
	Amount   any       `json:"amount"`
	Currency string    `json:"currency"`
	OrderID  string    `json:"orderId"`
	Items    []itemReq `json:"items" validate:"dive"`
}

type itemReq struct {
	Name     string      `json:"name" validate:"required"`
	Price    json.Number `json:"price"`
	Quantity int         `json:"quantity" validate:"omitempty,min=1"`
}

// CreatePayPalOrder opens a PayPal-hosted order and returns the approval URL.
func (h *Handler) CreatePayPalOrder(w http.ResponseWriter, r *http.Request) {
	h.createOrder(w, r, h.PayPal)
}

// CreateRazorpayOrder opens a Razorpay order and returns the widget config.
func (h *Handler) CreateRazorpayOrder(w http.ResponseWriter, r *http.Request) {
	h.createOrder(w, r, h.Razorpay)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request, p Provider) {
	if h == nil || p == nil {
		common.JSONError(w, http.StatusInternalServerError, "PAYMENT_NOT_CONFIGURED", "payment handler unavailable", nil)
		return
	}
	var req createOrderReq
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(req); err != nil {
			common.JSONError(w, http.StatusBadRequest, CodeMissingFields, "invalid order payload", nil)
			return
		}
	}
	amount, err := ParseAmount(amountString(req.Amount))
	if err != nil {
		h.writeError(w, err)
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = h.DefaultCurrency
	}
	items := make([]LineItem, 0, len(req.Items))
	for _, it := range req.Items {
		price := decimal.Zero
		if raw := it.Price.String(); raw != "" {
			var perr error
			price, perr = decimal.NewFromString(raw)
			if perr != nil || price.IsNegative() {
				common.JSONError(w, http.StatusBadRequest, CodeInvalidAmount, "item price must be a non-negative number", nil)
				return
			}
		}
		items = append(items, LineItem{Name: it.Name, Price: price, Quantity: it.Quantity})
	}
	returnURL, cancelURL := h.returnTargets(r)

	ctx, span := otel.Tracer("payment.Handler").Start(r.Context(), "Provider.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.String("payment.provider", p.Name()))

	intent, err := p.CreateOrder(ctx, CreateOrderRequest{
		Amount:    amount,
		Currency:  currency,
		Reference: strings.TrimSpace(req.OrderID),
		Items:     items,
		ReturnURL: returnURL,
		CancelURL: cancelURL,
	})
	result := "success"
	if err != nil {
		result = "error"
		span.RecordError(err)
	}
	if obs.PaymentIntentTotal != nil {
		obs.PaymentIntentTotal.WithLabelValues(p.Name(), result).Inc()
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := map[string]any{"orderId": intent.ProviderOrderID}
	if intent.ApprovalURL != "" {
		resp["approvalUrl"] = intent.ApprovalURL
	}
	if intent.KeyID != "" {
		resp["keyId"] = intent.KeyID
		resp["amount"] = intent.Amount
		resp["currency"] = intent.Currency
	}
	common.JSON(w, http.StatusOK, resp)
}

type paypalCaptureReq struct {
	PayPalOrderID string `json:"paypalOrderId" validate:"required"`
	DBOrderID     string `json:"dbOrderId"`
}

// CapturePayPal finalises a PayPal payment after the customer returns from
// the approval redirect and reconciles it against the local order.
func (h *Handler) CapturePayPal(w http.ResponseWriter, r *http.Request) {
	var req paypalCaptureReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	if strings.TrimSpace(req.PayPalOrderID) == "" {
		h.writeError(w, errMissingFields("paypalOrderId"))
		return
	}
	completion := Completion{
		ProviderOrderID: strings.TrimSpace(req.PayPalOrderID),
		LocalOrderID:    strings.TrimSpace(req.DBOrderID),
	}

	outcome, err := h.Reconciler.Reconcile(r.Context(), h.PayPal, completion)
	if err != nil {
		h.writeError(w, err)
		return
	}
	switch outcome.Result {
	case ResultCompleted, ResultAlreadyPaid:
		if !h.firstDelivery(r, h.PayPal.Name(), completion) {
			common.JSONError(w, http.StatusConflict, CodeReplay, "duplicate completion signal", nil)
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"status":        outcome.ProviderStatus,
			"transactionId": outcome.TransactionID,
			"payerEmail":    outcome.PayerEmail,
		})
	case ResultNotCompleted:
		common.JSON(w, http.StatusOK, map[string]any{
			"success": false,
			"status":  outcome.ProviderStatus,
		})
	default:
		common.JSONError(w, http.StatusBadRequest, CodeVerificationFailed, "payment verification failed",
			map[string]any{"verified": false})
	}
}

type razorpayVerifyReq struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required"`
	DBOrderID string `json:"orderId"`
}

// VerifyRazorpay authenticates a Razorpay checkout callback via its HMAC
// signature, confirms the capture and reconciles the local order.
func (h *Handler) VerifyRazorpay(w http.ResponseWriter, r *http.Request) {
	var req razorpayVerifyReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body", nil)
		return
	}
	var missing []string
	if strings.TrimSpace(req.OrderID) == "" {
		missing = append(missing, "razorpay_order_id")
	}
	if strings.TrimSpace(req.PaymentID) == "" {
		missing = append(missing, "razorpay_payment_id")
	}
	if strings.TrimSpace(req.Signature) == "" {
		missing = append(missing, "razorpay_signature")
	}
	if len(missing) > 0 {
		h.writeError(w, errMissingFields(strings.Join(missing, ", ")))
		return
	}
	completion := Completion{
		ProviderOrderID: strings.TrimSpace(req.OrderID),
		PaymentID:       strings.TrimSpace(req.PaymentID),
		Signature:       strings.TrimSpace(req.Signature),
		LocalOrderID:    strings.TrimSpace(req.DBOrderID),
	}

	outcome, err := h.Reconciler.Reconcile(r.Context(), h.Razorpay, completion)
	if err != nil {
		h.writeError(w, err)
		return
	}
	switch outcome.Result {
	case ResultCompleted, ResultAlreadyPaid:
		if !h.firstDelivery(r, h.Razorpay.Name(), completion) {
			common.JSONError(w, http.StatusConflict, CodeReplay, "duplicate completion signal", nil)
			return
		}
		common.JSON(w, http.StatusOK, map[string]any{
			"verified":  true,
			"orderId":   req.OrderID,
			"paymentId": req.PaymentID,
		})
	case ResultNotCompleted:
		common.JSON(w, http.StatusOK, map[string]any{
			"verified": true,
			"captured": false,
			"status":   outcome.ProviderStatus,
		})
	default:
		common.JSONError(w, http.StatusBadRequest, CodeVerificationFailed, "payment verification failed",
			map[string]any{"verified": false})
	}
}

// Status reports the consolidated payment state of a local order so the
// storefront can poll after returning from a hosted payment page.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderId"))
	if orderID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "orderId is required", nil)
		return
	}
	ord, err := h.Orders.Get(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			common.JSONError(w, http.StatusNotFound, "ORDER_NOT_FOUND", "order not found", nil)
			return
		}
		h.Logger.Error().Err(err).Str("order_id", orderID).Msg("load order status")
		common.JSONError(w, http.StatusInternalServerError, "STATUS_ERROR", "could not load order", nil)
		return
	}
	common.JSON(w, http.StatusOK, map[string]string{
		"paymentStatus": string(ord.PaymentStatus),
		"status":        string(ord.Status),
	})
}

// firstDelivery runs the replay guard. It is consulted only once a signal
// has settled, so failed or pending attempts never consume the marker and a
// legitimate retry still goes through. The guard fails open: when the marker
// store is unreachable the conditional order update still protects against
// double settlement.
func (h *Handler) firstDelivery(r *http.Request, provider string, c Completion) bool {
	if h.Replay == nil {
		return true
	}
	first, err := h.Replay.Once(r.Context(), replayKey(provider, c))
	if err != nil {
		h.Logger.Warn().Err(err).Str("provider", provider).Msg("replay guard unavailable")
		return true
	}
	return first
}

// returnTargets derives the success/cancel redirect targets from the
// request's originating host, falling back to the configured defaults.
func (h *Handler) returnTargets(r *http.Request) (string, string) {
	origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")
	if origin == "" || origin == "null" {
		return h.ReturnURL, h.CancelURL
	}
	return origin + "/checkout/success", origin + "/checkout/cancel"
}

// writeError maps an error onto the canonical error body. The message stays
// generic; the wrapped detail goes to the logs only.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if app, ok := common.AsAppError(err); ok {
		evt := h.Logger.Warn()
		if app.HTTPStatus >= http.StatusInternalServerError {
			evt = h.Logger.Error()
		}
		evt.Err(err).Str("code", app.Code).Msg("payment request failed")
		common.JSONError(w, app.HTTPStatus, app.Code, app.Message, nil)
		return
	}
	h.Logger.Error().Err(err).Msg("payment request failed")
	common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "internal error", nil)
}

func amountString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		d := decimal.NewFromFloat(t)
		return d.String()
	default:
		return ""
	}
}
