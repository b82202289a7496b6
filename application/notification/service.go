package notification

import (
	"context"
	"fmt"
	"time"

	"drive-media-compressor/domain/notification"
	"drive-media-compressor/domain/transfer"
)

// RecipientSource resolves who receives batch summaries
type RecipientSource interface {
	SummaryRecipients() ([]notification.Recipient, error)
	CopyRecipients() []notification.Recipient
}

// Service handles email notification operations
type Service struct {
	sender     notification.EmailSender
	recipients RecipientSource
	senderName string
}

// NewService creates a new notification service
func NewService(sender notification.EmailSender, recipients RecipientSource, senderName string) *Service {
	return &Service{
		sender:     sender,
		recipients: recipients,
		senderName: senderName,
	}
}

// SendRequest contains the parameters for sending a batch summary
type SendRequest struct {
	To           []notification.Recipient // overrides the configured recipients when set
	Summary      transfer.Summary
	FolderName   string
	AccountEmail string
	FinishedAt   time.Time
}

// Send emails the summary of a finished batch
func (s *Service) Send(ctx context.Context, req SendRequest) error {
	to := req.To
	if len(to) == 0 {
		resolved, err := s.recipients.SummaryRecipients()
		if err != nil {
			return fmt.Errorf("failed to resolve summary recipients: %w", err)
		}
		to = resolved
	}

	emailReq := &notification.SummaryRequest{
		To:           to,
		CC:           s.recipients.CopyRecipients(),
		Summary:      req.Summary,
		FolderName:   req.FolderName,
		AccountEmail: req.AccountEmail,
		FinishedAt:   req.FinishedAt,
		SenderName:   s.senderName,
	}
	if err := emailReq.Validate(); err != nil {
		return err
	}

	return s.sender.Send(ctx, emailReq)
}
