package client

import (
	"context"
	"fmt"
	"time"

	"github.com/resend/resend-go/v2"
	"github.com/wenwu/saas-platform/panel-fulfillment-service/internal/metrics"
	"go.uber.org/zap"
)

// EmailResult is the uniform outcome of one send. It never carries a Go error
// so callers cannot accidentally abort on delivery problems.
type EmailResult struct {
	Success bool
	Data    *resend.SendEmailResponse
	Error   string
}

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// MailClient sends transactional email through Resend
type MailClient struct {
	sender  emailSender
	from    string
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewMailClient creates a Resend-backed mail client with a fixed sender identity
func NewMailClient(apiKey, from string, m *metrics.Metrics, log *zap.Logger) *MailClient {
	return &MailClient{
		sender:  resend.NewClient(apiKey).Emails,
		from:    from,
		metrics: m,
		log:     log.Named("mail"),
	}
}

// SendEmail sends a fully rendered HTML email to one recipient
func (c *MailClient) SendEmail(ctx context.Context, to, subject, html string) (result EmailResult) {
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("email send panicked", zap.String("to", to), zap.Any("panic", r))
			observe(c.metrics, "resend", "emails.send", 0, fmt.Errorf("panic"), start)
			result = EmailResult{Success: false, Error: fmt.Sprint(r)}
		}
	}()

	params := &resend.SendEmailRequest{
		From:    c.from,
		To:      []string{to},
		Subject: subject,
		Html:    html,
	}

	sent, err := c.sender.SendWithContext(ctx, params)
	if err != nil {
		observe(c.metrics, "resend", "emails.send", 0, err, start)
		c.log.Error("email provider error", zap.String("to", to), zap.String("subject", subject), zap.Error(err))
		return EmailResult{Success: false, Error: err.Error()}
	}
	observe(c.metrics, "resend", "emails.send", 200, nil, start)
	if sent == nil {
		c.log.Error("email provider returned empty response", zap.String("to", to))
		return EmailResult{Success: false, Error: "empty provider response"}
	}

	c.log.Info("email sent", zap.String("to", to), zap.String("id", sent.Id))
	return EmailResult{Success: true, Data: sent}
}
