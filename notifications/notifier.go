package notifications

import (
	"context"
	"log/slog"

	config "github.com/anjiri1684/lesson_billing/configs"
)

// Notifier delivers a message to a single recipient.
type Notifier interface {
	SendEmail(ctx context.Context, toName, toEmail, subject, htmlContent string) error
}

// New returns a Brevo notifier when credentials are configured and a log-only one otherwise.
func New(cfg *config.Config) Notifier {
	if cfg.BrevoAPIKey == "" || cfg.EmailSender == "" || cfg.EmailSenderName == "" {
		slog.Warn("Email service not configured, notifications will only be logged")
		return LogNotifier{}
	}
	slog.Info("Email service initialized", "sender", cfg.EmailSender)
	return NewBrevoService(cfg.BrevoAPIKey, cfg.EmailSender, cfg.EmailSenderName)
}

// LogNotifier writes notifications to the log instead of sending them.
type LogNotifier struct{}

func (LogNotifier) SendEmail(_ context.Context, toName, toEmail, subject, _ string) error {
	slog.Info("Notification", "to_name", toName, "to_email", toEmail, "subject", subject)
	return nil
}
