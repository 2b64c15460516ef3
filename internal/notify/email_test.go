package notify_test

import (
	"strings"
	"testing"

	"github.com/auroragems/backend-aurora/internal/notify"
)

func sampleConfirmation() notify.OrderConfirmation {
	return notify.OrderConfirmation{
		OrderID:       "ord-1",
		CustomerName:  "Ada",
		CustomerEmail: "ada@example.com",
		Items: []notify.LineItem{
			{Name: "Sapphire Ring", Price: "1200.00", Quantity: 1},
			{Name: "Silver Chain", Price: "150.00", Quantity: 2},
		},
		Subtotal:      "1500.00",
		Total:         "1500.00",
		Currency:      "USD",
		PaymentMethod: "paypal",
		TransactionID: "CAP-1",
	}
}

func TestConfirmationSubject(t *testing.T) {
	subject := notify.ConfirmationSubject(sampleConfirmation())
	if !strings.Contains(subject, "ord-1") {
		t.Fatalf("subject missing order id: %q", subject)
	}
}

func TestConfirmationBody(t *testing.T) {
	body := notify.ConfirmationBody(sampleConfirmation())
	for _, want := range []string{
		"Hi Ada",
		"ord-1",
		"Sapphire Ring",
		"2x Silver Chain",
		"Total: 1500.00 USD",
		"Paid via: paypal",
		"Transaction: CAP-1",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("body missing %q:\n%s", want, body)
		}
	}
}

func TestConfirmationBodyWithoutName(t *testing.T) {
	c := sampleConfirmation()
	c.CustomerName = "  "
	body := notify.ConfirmationBody(c)
	if !strings.Contains(body, "Hi there") {
		t.Fatalf("expected fallback greeting:\n%s", body)
	}
}

func TestInMemoryMailerRecords(t *testing.T) {
	m := &notify.InMemoryMailer{}
	if err := m.Send("to@example.com", "subject", "body"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(m.Outbox) != 1 {
		t.Fatalf("expected 1 message, got %d", len(m.Outbox))
	}
	if m.Outbox[0].To != "to@example.com" {
		t.Fatalf("unexpected recipient %q", m.Outbox[0].To)
	}
}

func TestSMTPSenderRequiresHost(t *testing.T) {
	s := notify.SMTPSender{From: "orders@example.com"}
	if err := s.Send("to@example.com", "s", "b"); err == nil {
		t.Fatal("expected error without smtp host")
	}
}
