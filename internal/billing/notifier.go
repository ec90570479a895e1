package billing

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type NoticeKind string

const (
	NoticePaymentFailed     NoticeKind = "payment_failed"
	NoticeSubscriptionEnded NoticeKind = "subscription_ended"
)

type Notice struct {
	Kind  NoticeKind
	Email string
	Name  string
}

// Notifier delivers billing notices. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

type NoopNotifier struct{}

func (NoopNotifier) Notify(context.Context, Notice) error { return nil }

type mailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// MailNotifier sends notices through SendGrid.
type MailNotifier struct {
	client  mailSender
	from    *mail.Email
	baseURL string
}

// NewNotifier returns a SendGrid notifier, or a no-op one when no API key is
// configured.
func NewNotifier(apiKey, fromAddr, fromName, baseURL string, log zerolog.Logger) Notifier {
	if apiKey == "" {
		log.Info().Msg("SENDGRID_API_KEY not set, billing notices disabled")
		return NoopNotifier{}
	}
	return &MailNotifier{client: sendgrid.NewSendClient(apiKey), from: mail.NewEmail(fromName, fromAddr), baseURL: baseURL}
}

func (m *MailNotifier) Notify(_ context.Context, n Notice) error {
	subject, body := m.compose(n)
	if subject == "" {
		return nil
	}
	to := mail.NewEmail(n.Name, n.Email)
	htmlBody := strings.ReplaceAll(html.EscapeString(body), "\n", "<br>")
	message := mail.NewSingleEmail(m.from, subject, to, body, htmlBody)

	resp, err := m.client.Send(message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("sendgrid: status %d", resp.StatusCode)
	}
	return nil
}

func (m *MailNotifier) compose(n Notice) (subject, body string) {
	greeting := "Hello"
	if n.Name != "" {
		greeting = "Hello " + n.Name
	}
	switch n.Kind {
	case NoticePaymentFailed:
		return "Your Workblix payment failed",
			fmt.Sprintf("%s,\n\nwe could not collect your latest subscription payment. Please update your payment method:\n%s/billing\n\nYour Pro features stay available while we retry.\n", greeting, m.baseURL)
	case NoticeSubscriptionEnded:
		return "Your Workblix subscription has ended",
			fmt.Sprintf("%s,\n\nyour Pro subscription has ended and your account is back on the free plan. Exports now carry a watermark.\nYou can upgrade again at any time:\n%s/pricing\n", greeting, m.baseURL)
	}
	return "", ""
}
