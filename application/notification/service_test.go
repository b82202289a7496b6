package notification

import (
	"context"
	"errors"
	"testing"
	"time"

	"drive-media-compressor/domain/notification"
	"drive-media-compressor/domain/transfer"
)

// mockSender records the last request
type mockSender struct {
	last       *notification.SummaryRequest
	shouldFail bool
	failError  error
}

func (m *mockSender) Send(ctx context.Context, req *notification.SummaryRequest) error {
	if m.shouldFail {
		return m.failError
	}
	m.last = req
	return nil
}

type mockRecipients struct {
	to  []notification.Recipient
	cc  []notification.Recipient
	err error
}

func (m *mockRecipients) SummaryRecipients() ([]notification.Recipient, error) {
	return m.to, m.err
}

func (m *mockRecipients) CopyRecipients() []notification.Recipient {
	return m.cc
}

func finishedSummary() transfer.Summary {
	return transfer.Summary{Operation: transfer.OperationReplace, Succeeded: 2, BytesSaved: 1024}
}

func TestService_Send(t *testing.T) {
	sender := &mockSender{}
	recipients := &mockRecipients{
		to: []notification.Recipient{{Name: "Jane Doe", Address: "jane@example.com"}},
		cc: []notification.Recipient{{Name: "Admin", Address: "admin@example.com"}},
	}
	svc := NewService(sender, recipients, "Drive Bot")

	finished := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	err := svc.Send(context.Background(), SendRequest{
		Summary:      finishedSummary(),
		FolderName:   "My Drive / Photos",
		AccountEmail: "owner@example.com",
		FinishedAt:   finished,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if sender.last == nil {
		t.Fatal("expected email to be sent")
	}
	if len(sender.last.To) != 1 || sender.last.To[0].Address != "jane@example.com" {
		t.Errorf("unexpected recipients: %+v", sender.last.To)
	}
	if len(sender.last.CC) != 1 {
		t.Errorf("expected default CC, got %+v", sender.last.CC)
	}
	if sender.last.SenderName != "Drive Bot" {
		t.Errorf("expected sender name, got %q", sender.last.SenderName)
	}
	if !sender.last.FinishedAt.Equal(finished) {
		t.Errorf("unexpected finish time %v", sender.last.FinishedAt)
	}
}

func TestService_ExplicitRecipientsWin(t *testing.T) {
	sender := &mockSender{}
	recipients := &mockRecipients{err: notification.ErrNoRecipients}
	svc := NewService(sender, recipients, "")

	err := svc.Send(context.Background(), SendRequest{
		To:         []notification.Recipient{{Name: "Ops", Address: "ops@example.com"}},
		Summary:    finishedSummary(),
		FinishedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sender.last.To[0].Address != "ops@example.com" {
		t.Errorf("unexpected recipients: %+v", sender.last.To)
	}
}

func TestService_Errors(t *testing.T) {
	tests := []struct {
		name       string
		recipients *mockRecipients
		sender     *mockSender
		summary    transfer.Summary
		wantErr    error
	}{
		{
			name:       "no recipients configured",
			recipients: &mockRecipients{err: notification.ErrNoRecipients},
			sender:     &mockSender{},
			summary:    finishedSummary(),
			wantErr:    notification.ErrNoRecipients,
		},
		{
			name:       "empty batch",
			recipients: &mockRecipients{to: []notification.Recipient{{Address: "a@example.com"}}},
			sender:     &mockSender{},
			summary:    transfer.Summary{Operation: transfer.OperationLocal},
			wantErr:    notification.ErrEmptyBatch,
		},
		{
			name:       "sender failure",
			recipients: &mockRecipients{to: []notification.Recipient{{Address: "a@example.com"}}},
			sender:     &mockSender{shouldFail: true, failError: notification.ErrSendFailed},
			summary:    finishedSummary(),
			wantErr:    notification.ErrSendFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.sender, tt.recipients, "")
			err := svc.Send(context.Background(), SendRequest{Summary: tt.summary, FinishedAt: time.Now()})
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Send() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
