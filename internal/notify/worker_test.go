package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/auroragems/backend-aurora/internal/notify"
)

func confirmationTask(t *testing.T, c notify.OrderConfirmation) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return asynq.NewTask(notify.TaskOrderConfirmation, payload)
}

func TestEmailWorkerSendsConfirmation(t *testing.T) {
	mail := &notify.InMemoryMailer{}
	w := &notify.EmailWorker{Mail: mail, Logger: zerolog.Nop()}

	err := w.HandleOrderConfirmation(context.Background(), confirmationTask(t, sampleConfirmation()))
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(mail.Outbox) != 1 {
		t.Fatalf("expected 1 email, got %d", len(mail.Outbox))
	}
	if mail.Outbox[0].To != "ada@example.com" {
		t.Fatalf("unexpected recipient %q", mail.Outbox[0].To)
	}
}

func TestEmailWorkerDropsMissingRecipient(t *testing.T) {
	mail := &notify.InMemoryMailer{}
	w := &notify.EmailWorker{Mail: mail, Logger: zerolog.Nop()}

	c := sampleConfirmation()
	c.CustomerEmail = ""
	if err := w.HandleOrderConfirmation(context.Background(), confirmationTask(t, c)); err != nil {
		t.Fatalf("missing recipient must not retry: %v", err)
	}
	if len(mail.Outbox) != 0 {
		t.Fatal("no email expected without a recipient")
	}
}

func TestEmailWorkerSkipsRetryOnBadPayload(t *testing.T) {
	w := &notify.EmailWorker{Mail: &notify.InMemoryMailer{}, Logger: zerolog.Nop()}
	task := asynq.NewTask(notify.TaskOrderConfirmation, []byte("not json"))

	err := w.HandleOrderConfirmation(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

type failingMailer struct{}

func (failingMailer) Send(string, string, string) error { return errors.New("relay down") }

func TestEmailWorkerPropagatesSendFailure(t *testing.T) {
	w := &notify.EmailWorker{Mail: failingMailer{}, Logger: zerolog.Nop()}
	err := w.HandleOrderConfirmation(context.Background(), confirmationTask(t, sampleConfirmation()))
	if err == nil {
		t.Fatal("send failure must be retried by the queue")
	}
}
