package mailer

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/arjun-mehta/school-erp-api/pkg/config"
)

var (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

// Sendgrid delivers messages through the SendGrid v3 mail API.
type Sendgrid struct {
	key        string
	from       *sgmail.Email
	subjPrefix string
	logger     *zap.Logger
}

var _ Mailer = (*Sendgrid)(nil)

// NewSendgrid builds the SendGrid mailer from mail configuration.
func NewSendgrid(cfg config.MailConfig, logger *zap.Logger) *Sendgrid {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sendgrid{
		key:        cfg.SendgridKey,
		from:       sgmail.NewEmail(cfg.FromName, cfg.FromAddress),
		subjPrefix: "[" + cfg.AppName + "] ",
		logger:     logger,
	}
}

// Send delivers one message, returning an error for non-2xx responses.
func (m *Sendgrid) Send(_ context.Context, msg Message) error {
	p := sgmail.NewPersonalization()
	p.Subject = m.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail(msg.ToName, msg.ToAddress))

	mail := sgmail.NewV3Mail()
	mail.SetFrom(m.from)
	mail.AddPersonalizations(p)
	mail.AddContent(
		sgmail.NewContent("text/plain", msg.TextBody),
		sgmail.NewContent("text/html", msg.HTMLBody),
	)

	req := sendgrid.GetRequest(m.key, sendgridEndpoint, sendgridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(mail)

	res, err := sendgrid.API(req)
	if err != nil {
		return fmt.Errorf("sendgrid request: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		m.logger.Warn("sendgrid rejected message",
			zap.Int("status", res.StatusCode),
			zap.String("to", msg.ToAddress),
		)
		return fmt.Errorf("sendgrid status %d", res.StatusCode)
	}
	return nil
}
