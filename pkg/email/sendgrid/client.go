// Package sendgrid wraps the SendGrid v3 mail API for the email-delivery worker (§4.5). The
// platform's own examples only reach SendGrid over plain SMTP (MisterLobo-ebs's
// apps/api/src/lib/smtp.go); this pipeline's config carries an APIKey rather than SMTP
// credentials, so it goes through SendGrid's REST client instead, which is the natural fit for
// that shape and gives back a message id the worker can log for delivery tracing.
package sendgrid

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	sg "github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/s8nclone/receipt-pipeline/pkg/config"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
)

// Client sends transactional email through the SendGrid v3 API.
type Client struct {
	rest        *sg.Client
	defaultFrom string
	logg        *logger.Logger
}

func NewClient(cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	if cfg.DefaultFrom == "" {
		return nil, errors.New("sendgrid default from address is required")
	}
	return &Client{
		rest:        sg.NewSendClient(cfg.APIKey),
		defaultFrom: cfg.DefaultFrom,
		logg:        logg,
	}, nil
}

// Attachment is a single file attached to the message (the rendered receipt PDF, §4.5).
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// SendInput describes one outbound message (§6's email capability contract).
type SendInput struct {
	To          string
	Subject     string
	PlainText   string
	HTML        string
	Attachments []Attachment
}

// SendResult carries the provider message id for delivery-tracing logs.
type SendResult struct {
	MessageID string
}

// Send dispatches one message and reports the SendGrid message id on success. A non-2xx response
// is surfaced as an error string containing the status code so the caller's classifier
// (§7 TransientError vs PermanentError) can key off it.
func (c *Client) Send(ctx context.Context, in SendInput) (SendResult, error) {
	from := mail.NewEmail("", c.defaultFrom)
	to := mail.NewEmail("", in.To)
	message := mail.NewV3MailInit(from, in.Subject, to)

	content := message.Content
	if in.PlainText != "" {
		content = append(content, mail.NewContent("text/plain", in.PlainText))
	}
	if in.HTML != "" {
		content = append(content, mail.NewContent("text/html", in.HTML))
	}
	message.Content = content

	for _, att := range in.Attachments {
		a := mail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(att.Content))
		a.SetType(att.ContentType)
		a.SetFilename(att.Filename)
		a.SetDisposition("attachment")
		message.AddAttachment(a)
	}

	resp, err := c.rest.SendWithContext(ctx, message)
	if err != nil {
		return SendResult{}, fmt.Errorf("sending email via sendgrid: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResult{}, fmt.Errorf("sendgrid send failed: status %d: %s", resp.StatusCode, resp.Body)
	}

	messageID := resp.Headers["X-Message-Id"]
	if len(messageID) > 0 {
		return SendResult{MessageID: messageID[0]}, nil
	}
	return SendResult{}, nil
}
