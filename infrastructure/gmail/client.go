package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"drive-media-compressor/domain/notification"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// SendScope is the OAuth scope needed to send summary emails
const SendScope = gmail.GmailSendScope

// GmailService defines the interface for Gmail API operations
// This allows mocking the Gmail API in tests
type GmailService interface {
	SendMessage(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error)
}

// GoogleGmailService is the production implementation using the Gmail API
type GoogleGmailService struct {
	service *gmail.Service
}

// SendMessage sends an email via Gmail API
func (s *GoogleGmailService) SendMessage(ctx context.Context, userID string, message *gmail.Message) (*gmail.Message, error) {
	return s.service.Users.Messages.Send(userID, message).Context(ctx).Do()
}

// Client implements notification.EmailSender using Gmail API
type Client struct {
	gmailService GmailService
	from         notification.Recipient
	template     notification.EmailTemplate
	now          func() time.Time
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithGmailService sets a custom Gmail service (for testing)
func WithGmailService(svc GmailService) ClientOption {
	return func(c *Client) {
		c.gmailService = svc
	}
}

// WithTemplate sets a custom email template
func WithTemplate(tmpl notification.EmailTemplate) ClientOption {
	return func(c *Client) {
		c.template = tmpl
	}
}

// WithClock sets the time source used for relative dates (for testing)
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.now = now
	}
}

// NewClient creates a new Gmail client
func NewClient(from notification.Recipient, opts ...ClientOption) *Client {
	c := &Client{
		from:     from,
		template: notification.DefaultTemplate,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClientWithTokenSource creates a Gmail client backed by the real API
func NewClientWithTokenSource(ctx context.Context, tokens oauth2.TokenSource, from notification.Recipient, opts ...ClientOption) (*Client, error) {
	srv, err := gmail.NewService(ctx, option.WithTokenSource(tokens))
	if err != nil {
		return nil, fmt.Errorf("unable to create gmail service: %w", err)
	}
	opts = append([]ClientOption{WithGmailService(&GoogleGmailService{service: srv})}, opts...)
	return NewClient(from, opts...), nil
}

// Send sends a batch summary email using the Gmail API
func (c *Client) Send(ctx context.Context, req *notification.SummaryRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid email request: %w", err)
	}
	if c.gmailService == nil {
		return fmt.Errorf("%w: gmail service not configured", notification.ErrSendFailed)
	}

	data := notification.NewTemplateData(req, c.now())

	// Render templates
	subject, err := c.template.RenderSubject(data)
	if err != nil {
		return fmt.Errorf("failed to render subject: %w", err)
	}

	plainText, err := c.template.RenderPlainText(data)
	if err != nil {
		return fmt.Errorf("failed to render plain text: %w", err)
	}

	htmlBody, err := c.template.RenderHTML(data)
	if err != nil {
		return fmt.Errorf("failed to render HTML: %w", err)
	}

	// Build MIME message
	rawMessage := c.buildMIMEMessage(req, subject, plainText, htmlBody)

	// Encode for Gmail API
	message := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(rawMessage)),
	}

	// Send via Gmail API
	_, err = c.gmailService.SendMessage(ctx, "me", message)
	if err != nil {
		return fmt.Errorf("%w: %v", notification.ErrSendFailed, err)
	}

	return nil
}

// buildMIMEMessage builds a RFC 2822 MIME message
func (c *Client) buildMIMEMessage(req *notification.SummaryRequest, subject, plainText, htmlBody string) string {
	var msg strings.Builder

	// Headers
	msg.WriteString(fmt.Sprintf("From: %s\r\n", formatAddress(c.from)))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", formatAddressList(req.To)))
	if len(req.CC) > 0 {
		msg.WriteString(fmt.Sprintf("Cc: %s\r\n", formatAddressList(req.CC)))
	}

	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: multipart/alternative; boundary=\"boundary42\"\r\n\r\n")

	// Plain text part
	msg.WriteString("--boundary42\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(plainText)
	msg.WriteString("\r\n\r\n")

	// HTML part
	msg.WriteString("--boundary42\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(htmlBody)
	msg.WriteString("\r\n\r\n")

	msg.WriteString("--boundary42--\r\n")

	return msg.String()
}

func formatAddress(r notification.Recipient) string {
	if r.Name != "" {
		return fmt.Sprintf("%s <%s>", r.Name, r.Address)
	}
	return r.Address
}

func formatAddressList(rs []notification.Recipient) string {
	addrs := make([]string, len(rs))
	for i, r := range rs {
		addrs[i] = formatAddress(r)
	}
	return strings.Join(addrs, ", ")
}

// Ensure Client implements notification.EmailSender
var _ notification.EmailSender = (*Client)(nil)
