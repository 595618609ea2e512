package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/wolfman30/sms-dispatch-gateway/pkg/logging"
)

const defaultFromName = "SMS Gateway"

// Mail is a plain-text operator message.
type Mail struct {
	To      string
	Subject string
	Text    string
}

// Mailer delivers operator mail. SendGrid and SES implement it.
type Mailer interface {
	Deliver(ctx context.Context, m Mail) error
}

type sendgridClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridMailer delivers through the SendGrid v3 API.
type SendGridMailer struct {
	client sendgridClient
	from   *mail.Email
	logger *logging.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridMailer returns nil without an API key.
func NewSendGridMailer(cfg SendGridConfig, logger *logging.Logger) *SendGridMailer {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	return &SendGridMailer{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   mail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger,
	}
}

func (s *SendGridMailer) Deliver(ctx context.Context, m Mail) error {
	msg := mail.NewV3MailInit(s.from, m.Subject, mail.NewEmail("", m.To), mail.NewContent("text/plain", m.Text))
	resp, err := s.client.SendWithContext(ctx, msg)
	if err != nil {
		return fmt.Errorf("notify: sendgrid: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		s.logger.Warn("sendgrid rejected summary mail", "status", resp.StatusCode, "body", resp.Body)
		return fmt.Errorf("notify: sendgrid status %d", resp.StatusCode)
	}
	return nil
}
