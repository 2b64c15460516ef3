package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// EmailWorker consumes confirmation tasks and sends the emails.
type EmailWorker struct {
	Mail   Mailer
	Logger zerolog.Logger
}

// Register attaches the worker's handlers to the mux.
func (w *EmailWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TaskOrderConfirmation, w.HandleOrderConfirmation)
}

// HandleOrderConfirmation renders and sends one confirmation email.
func (w *EmailWorker) HandleOrderConfirmation(ctx context.Context, t *asynq.Task) error {
	var c OrderConfirmation
	if err := json.Unmarshal(t.Payload(), &c); err != nil {
		// Malformed payloads never succeed on retry.
		return fmt.Errorf("decode confirmation payload: %w: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(c.CustomerEmail) == "" {
		w.Logger.Warn().Str("order_id", c.OrderID).Msg("confirmation has no recipient, dropping")
		return nil
	}
	if err := w.Mail.Send(c.CustomerEmail, ConfirmationSubject(c), ConfirmationBody(c)); err != nil {
		return fmt.Errorf("send confirmation for order %s: %w", c.OrderID, err)
	}
	w.Logger.Info().
		Str("order_id", c.OrderID).
		Str("recipient", c.CustomerEmail).
		Msg("order confirmation sent")
	return nil
}
