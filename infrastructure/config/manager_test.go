package config

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestConfigManager_Recipients(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Defaults()
	cfg.Notification.SendTo = []string{"jane", "john"}
	m := NewConfigManager(cfg, path)

	if err := m.AddRecipient("Jane", "Jane Doe", "jane@example.com"); err != nil {
		t.Fatalf("AddRecipient() error = %v", err)
	}
	if err := m.AddRecipient("john", "John Smith", "john@example.com"); err != nil {
		t.Fatalf("AddRecipient() error = %v", err)
	}

	if err := m.AddRecipient("jane", "Jane Again", "jane2@example.com"); !errors.Is(err, ErrDuplicateKey) {
		t.Errorf("expected ErrDuplicateKey, got %v", err)
	}
	if err := m.AddRecipient("bad", "Bad", "not-an-email"); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("expected ErrInvalidEmail, got %v", err)
	}

	list := m.ListRecipients()
	if len(list) != 2 || list[0].Key != "jane" || list[1].Key != "john" {
		t.Fatalf("unexpected recipients: %+v", list)
	}

	if err := m.RemoveRecipient("JANE"); err != nil {
		t.Fatalf("RemoveRecipient() error = %v", err)
	}
	if err := m.RemoveRecipient("jane"); !errors.Is(err, ErrRecipientNotFound) {
		t.Errorf("expected ErrRecipientNotFound, got %v", err)
	}

	saved, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(saved.Notification.Recipients) != 1 {
		t.Errorf("expected 1 saved recipient, got %d", len(saved.Notification.Recipients))
	}
	if len(saved.Notification.SendTo) != 1 || saved.Notification.SendTo[0] != "john" {
		t.Errorf("removed recipient should leave send_to, got %v", saved.Notification.SendTo)
	}
}

func TestIsValidEmail(t *testing.T) {
	tests := map[string]bool{
		"jane@example.com": true,
		"":                 false,
		"@example.com":     false,
		"jane@example":     false,
		"jane@.com":        false,
		"jane@example.":    false,
	}
	for email, want := range tests {
		if got := isValidEmail(email); got != want {
			t.Errorf("isValidEmail(%q) = %v, want %v", email, got, want)
		}
	}
}
