package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/auroragems/backend-aurora/internal/payment"
)

// TaskOrderConfirmation is the asynq task type for confirmation emails.
const TaskOrderConfirmation = "email:order_confirmation"

// OrderConfirmation is the task payload carried from the API process to the
// worker. Monetary fields are pre-rendered strings so the worker never does
// arithmetic on them.
type OrderConfirmation struct {
	OrderID       string     `json:"order_id"`
	CustomerName  string     `json:"customer_name"`
	CustomerEmail string     `json:"customer_email"`
	Items         []LineItem `json:"items,omitempty"`
	Subtotal      string     `json:"subtotal,omitempty"`
	Total         string     `json:"total,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	TransactionID string     `json:"transaction_id,omitempty"`
}

// LineItem is one purchased item as rendered in the confirmation email.
type LineItem struct {
	Name     string `json:"name"`
	Price    string `json:"price"`
	Quantity int    `json:"quantity"`
}

// Dispatcher enqueues confirmation emails onto the task queue. It implements
// the reconciler's ConfirmationDispatcher contract.
type Dispatcher struct {
	Client *asynq.Client
	Logger zerolog.Logger
}

// OrderConfirmed enqueues one confirmation email for the order. The task id
// is derived from the order id so a duplicate enqueue within the retention
// window collapses into the first.
func (d *Dispatcher) OrderConfirmed(ctx context.Context, c payment.Confirmation) error {
	if d == nil || d.Client == nil {
		return errors.New("notify: dispatcher not configured")
	}
	body, err := json.Marshal(fromConfirmation(c))
	if err != nil {
		return fmt.Errorf("notify: encode confirmation: %w", err)
	}
	opts := []asynq.Option{
		asynq.Queue("mail"),
		asynq.MaxRetry(5),
		asynq.Timeout(30 * time.Second),
		asynq.Retention(24 * time.Hour),
	}
	if c.OrderID != "" {
		opts = append(opts, asynq.TaskID("order-confirmation:"+c.OrderID))
	}
	info, err := d.Client.EnqueueContext(ctx, asynq.NewTask(TaskOrderConfirmation, body), opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			d.Logger.Debug().Str("order_id", c.OrderID).Msg("confirmation already queued")
			return nil
		}
		return fmt.Errorf("notify: enqueue confirmation: %w", err)
	}
	d.Logger.Info().
		Str("order_id", c.OrderID).
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Msg("order confirmation enqueued")
	return nil
}

func fromConfirmation(c payment.Confirmation) OrderConfirmation {
	out := OrderConfirmation{
		OrderID:       c.OrderID,
		CustomerName:  c.CustomerName,
		CustomerEmail: c.CustomerEmail,
		Currency:      c.Currency,
		PaymentMethod: c.PaymentMethod,
		TransactionID: c.TransactionID,
	}
	if !c.Subtotal.IsZero() {
		out.Subtotal = c.Subtotal.StringFixed(2)
	}
	if !c.Total.IsZero() {
		out.Total = c.Total.StringFixed(2)
	}
	for _, it := range c.Items {
		out.Items = append(out.Items, LineItem{
			Name:     it.Name,
			Price:    it.Price.StringFixed(2),
			Quantity: it.Quantity,
		})
	}
	return out
}
