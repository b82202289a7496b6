package config

import (
	"errors"
	"testing"

	"drive-media-compressor/domain/notification"
)

func audienceConfig(sendTo ...string) *Config {
	return &Config{
		Notification: NotificationConfig{
			SendTo: sendTo,
			Recipients: map[string]RecipientConfig{
				"jonathan": {Name: "Jonathan White", Address: "jonathan@example.com"},
				"jane":     {Name: "Jane Doe", Address: "jane@example.com"},
				"janes":    {Name: "Jane Smith", Address: "jane.smith@example.com"},
			},
		},
	}
}

func TestSummaryAudience_SummaryRecipients(t *testing.T) {
	tests := []struct {
		name      string
		sendTo    []string
		wantAddrs []string
		wantErr   error
	}{
		{
			name:      "by key",
			sendTo:    []string{"jonathan"},
			wantAddrs: []string{"jonathan@example.com"},
		},
		{
			name:      "key wins over an ambiguous first name",
			sendTo:    []string{"jane"},
			wantAddrs: []string{"jane@example.com"},
		},
		{
			name:      "by last name, case insensitive",
			sendTo:    []string{"SMITH"},
			wantAddrs: []string{"jane.smith@example.com"},
		},
		{
			name:      "by full name",
			sendTo:    []string{"Jonathan White"},
			wantAddrs: []string{"jonathan@example.com"},
		},
		{
			name:      "keeps order and drops repeated addresses",
			sendTo:    []string{"White", "jane", "jonathan"},
			wantAddrs: []string{"jonathan@example.com", "jane@example.com"},
		},
		{
			name:    "unknown entry",
			sendTo:  []string{"unknown"},
			wantErr: notification.ErrRecipientNotFound,
		},
		{
			name:    "empty entry",
			sendTo:  []string{" "},
			wantErr: notification.ErrRecipientNotFound,
		},
		{
			name:    "nothing configured",
			wantErr: notification.ErrNoRecipients,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewSummaryAudience(audienceConfig(tt.sendTo...)).SummaryRecipients()

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("SummaryRecipients() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SummaryRecipients() error = %v", err)
			}
			if len(got) != len(tt.wantAddrs) {
				t.Fatalf("SummaryRecipients() = %+v, want %v", got, tt.wantAddrs)
			}
			for i, want := range tt.wantAddrs {
				if got[i].Address != want {
					t.Errorf("recipient %d address = %q, want %q", i, got[i].Address, want)
				}
			}
		})
	}
}

func TestSummaryAudience_AmbiguousName(t *testing.T) {
	cfg := audienceConfig("Doe")
	cfg.Notification.Recipients["jd"] = RecipientConfig{Name: "John Doe", Address: "john@example.com"}

	_, err := NewSummaryAudience(cfg).SummaryRecipients()
	if !errors.Is(err, notification.ErrAmbiguousRecipient) {
		t.Errorf("SummaryRecipients() error = %v, want ErrAmbiguousRecipient", err)
	}
}

func TestSummaryAudience_CopyRecipients(t *testing.T) {
	cfg := &Config{
		Notification: NotificationConfig{
			DefaultCC: []RecipientConfig{
				{Name: "Admin", Address: "admin@example.com"},
			},
		},
	}

	cc := NewSummaryAudience(cfg).CopyRecipients()
	if len(cc) != 1 {
		t.Fatalf("CopyRecipients() got %d, want 1", len(cc))
	}
	if cc[0].Name != "Admin" || cc[0].Address != "admin@example.com" {
		t.Errorf("CopyRecipients() = %+v, unexpected", cc[0])
	}
}
