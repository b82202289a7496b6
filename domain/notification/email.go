package notification

import (
	"context"
	"time"

	"drive-media-compressor/domain/transfer"
)

// Recipient represents an email recipient with name and address
type Recipient struct {
	Name    string
	Address string
}

// SummaryRequest contains all the data needed to send a batch summary notification
type SummaryRequest struct {
	To           []Recipient // Primary recipients
	CC           []Recipient // Carbon copy recipients
	Summary      transfer.Summary
	FolderName   string    // Folder the batch ran in, e.g. "My Drive / Photos"
	AccountEmail string    // Drive account the batch ran against
	FinishedAt   time.Time // When the batch ended
	SenderName   string    // Name to sign the email
}

// Validate checks that the request has all required fields
func (r *SummaryRequest) Validate() error {
	if len(r.To) == 0 {
		return ErrNoRecipients
	}
	for _, to := range r.To {
		if to.Address == "" {
			return ErrInvalidRecipient
		}
	}
	if r.Summary.Operation == "" {
		return ErrNoOperation
	}
	if r.Summary.Total() == 0 {
		return ErrEmptyBatch
	}
	if r.FinishedAt.IsZero() {
		return ErrNoFinishTime
	}
	return nil
}

// EmailSender defines the interface for sending emails
type EmailSender interface {
	Send(ctx context.Context, req *SummaryRequest) error
}
