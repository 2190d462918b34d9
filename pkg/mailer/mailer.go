package mailer

import (
	"context"

	"go.uber.org/zap"

	"github.com/arjun-mehta/school-erp-api/pkg/config"
)

// Message is a single outbound email.
type Message struct {
	ToName    string
	ToAddress string
	Subject   string
	HTMLBody  string
	TextBody  string
}

// Mailer delivers email messages. Implementations are expected to be safe
// for concurrent use; delivery is best-effort and callers treat a returned
// error as an observability signal, not a business failure.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New selects a mailer implementation from configuration.
func New(cfg config.MailConfig, logger *zap.Logger) Mailer {
	if cfg.Provider == "sendgrid" && cfg.SendgridKey != "" {
		return NewSendgrid(cfg, logger)
	}
	return NewConsole(logger)
}

// Console logs messages instead of delivering them. Used in development
// and as the fallback when no provider is configured.
type Console struct {
	logger *zap.Logger
}

// NewConsole builds the logging mailer.
func NewConsole(logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{logger: logger}
}

// Send logs the message and reports success.
func (m *Console) Send(_ context.Context, msg Message) error {
	m.logger.Info("email (console)",
		zap.String("to", msg.ToAddress),
		zap.String("subject", msg.Subject),
	)
	return nil
}
