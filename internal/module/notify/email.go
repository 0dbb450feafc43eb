package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/veralix/server/internal/module/payment"
	"go.uber.org/zap"
)

// SMTPConfig holds SMTP configuration.
type SMTPConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	FromAddress  string
	FromName     string
	DashboardURL string // Linked from confirmation emails
}

// SMTPNotifier sends purchase confirmation emails via SMTP.
type SMTPNotifier struct {
	config *SMTPConfig
	logger *zap.Logger
}

// NewSMTPNotifier creates a new SMTP notifier.
func NewSMTPNotifier(config *SMTPConfig, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{
		config: config,
		logger: logger,
	}
}

// PurchaseConfirmation sends a confirmation email for a settled purchase.
func (s *SMTPNotifier) PurchaseConfirmation(ctx context.Context, purchase *payment.SettledPurchase) error {
	if purchase.CustomerEmail == "" {
		s.logger.Debug("settled purchase has no customer email, skipping confirmation",
			zap.String("reference", purchase.OrderReference),
		)
		return nil
	}

	subject := fmt.Sprintf("Payment confirmed for order %s", purchase.OrderReference)
	body, err := s.renderTemplate(purchaseConfirmationTemplate, map[string]string{
		"Reference":    purchase.OrderReference,
		"Amount":       fmt.Sprintf("%d %s", purchase.Amount, purchase.Currency),
		"Description":  purchase.Description,
		"DashboardURL": s.config.DashboardURL,
	})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	return s.sendEmail(purchase.CustomerEmail, subject, body)
}

func (s *SMTPNotifier) sendEmail(to, subject, body string) error {
	from := s.config.FromAddress
	if s.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.FromName, s.config.FromAddress)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		from, to, subject, body)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	var auth smtp.Auth
	if s.config.User != "" && s.config.Password != "" {
		auth = smtp.PlainAuth("", s.config.User, s.config.Password, s.config.Host)
	}

	if err := smtp.SendMail(addr, auth, s.config.FromAddress, []string{to}, []byte(msg)); err != nil {
		s.logger.Error("failed to send email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	s.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func (s *SMTPNotifier) renderTemplate(tmpl string, data map[string]string) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

const purchaseConfirmationTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .details { background-color: #F9FAFB; border-radius: 6px; padding: 16px; }
        .button { display: inline-block; padding: 12px 24px; background-color: #059669; color: white; text-decoration: none; border-radius: 6px; }
        .footer { margin-top: 30px; font-size: 12px; color: #666; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Payment confirmed</h1>
        <p>We received your payment. Here are the details:</p>
        <div class="details">
            <p><strong>Order:</strong> {{.Reference}}</p>
            <p><strong>Amount:</strong> {{.Amount}}</p>
            {{if .Description}}<p><strong>Description:</strong> {{.Description}}</p>{{end}}
        </div>
        {{if .DashboardURL}}<p><a href="{{.DashboardURL}}" class="button">Go to your account</a></p>{{end}}
        <div class="footer">
            <p>If you did not make this purchase, please contact support.</p>
        </div>
    </div>
</body>
</html>
`

// NoOpNotifier logs confirmations without sending email. Used when SMTP
// is not configured.
type NoOpNotifier struct {
	logger *zap.Logger
}

// NewNoOpNotifier creates a no-op notifier.
func NewNoOpNotifier(logger *zap.Logger) *NoOpNotifier {
	return &NoOpNotifier{logger: logger}
}

// PurchaseConfirmation logs but doesn't send.
func (s *NoOpNotifier) PurchaseConfirmation(ctx context.Context, purchase *payment.SettledPurchase) error {
	s.logger.Info("purchase confirmation (no-op)",
		zap.String("reference", purchase.OrderReference),
		zap.String("email", purchase.CustomerEmail),
	)
	return nil
}
