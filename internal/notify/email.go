package notify

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Mailer is the contract for sending transactional email.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPSender delivers mail through a plain SMTP relay.
type SMTPSender struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Send submits a single text message to the relay.
func (s SMTPSender) Send(to, subject, body string) error {
	if strings.TrimSpace(s.Host) == "" {
		return fmt.Errorf("notify: smtp host not configured")
	}
	addr := fmt.Sprintf("%s:%d", s.Host, s.Port)
	var auth smtp.Auth
	if s.Username != "" {
		auth = smtp.PlainAuth("", s.Username, s.Password, s.Host)
	}
	msg := strings.Join([]string{
		"From: " + s.From,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(addr, auth, s.From, []string{to}, []byte(msg))
}

// InMemoryMailer records messages for tests.
type InMemoryMailer struct {
	Outbox []Message
}

// Message is a single captured email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Send records the message in memory.
func (m *InMemoryMailer) Send(to, subject, body string) error {
	m.Outbox = append(m.Outbox, Message{To: to, Subject: subject, Body: body})
	return nil
}

// NopMailer implements Mailer without performing any action.
type NopMailer struct{}

// Send implements Mailer.
func (NopMailer) Send(string, string, string) error { return nil }

// ConfirmationSubject renders the subject line for an order confirmation.
func ConfirmationSubject(c OrderConfirmation) string {
	return fmt.Sprintf("Your Aurora Gems order %s is confirmed", c.OrderID)
}

// ConfirmationBody renders the plain-text order confirmation.
func ConfirmationBody(c OrderConfirmation) string {
	var b strings.Builder
	name := strings.TrimSpace(c.CustomerName)
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\n", name)
	fmt.Fprintf(&b, "We received your payment and your order %s is confirmed.\n\n", c.OrderID)
	if len(c.Items) > 0 {
		b.WriteString("Items:\n")
		for _, it := range c.Items {
			fmt.Fprintf(&b, "  %dx %s (%s %s)\n", it.Quantity, it.Name, it.Price, c.Currency)
		}
		b.WriteString("\n")
	}
	if c.Subtotal != "" {
		fmt.Fprintf(&b, "Subtotal: %s %s\n", c.Subtotal, c.Currency)
	}
	if c.Total != "" {
		fmt.Fprintf(&b, "Total: %s %s\n", c.Total, c.Currency)
	}
	if c.PaymentMethod != "" {
		fmt.Fprintf(&b, "Paid via: %s\n", c.PaymentMethod)
	}
	if c.TransactionID != "" {
		fmt.Fprintf(&b, "Transaction: %s\n", c.TransactionID)
	}
	b.WriteString("\nThank you for shopping with Aurora Gems.\n")
	return b.String()
}
