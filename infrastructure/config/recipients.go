package config

import (
	"fmt"
	"sort"
	"strings"

	"drive-media-compressor/domain/notification"
)

// SummaryAudience resolves who receives batch summary mails. Entries in
// notification.send_to name a configured recipient by key or by name;
// notification.default_cc is copied on every summary.
type SummaryAudience struct {
	config *Config
}

// NewSummaryAudience creates a resolver over the notification section
func NewSummaryAudience(cfg *Config) *SummaryAudience {
	return &SummaryAudience{config: cfg}
}

// SummaryRecipients resolves send_to in order, dropping repeated addresses
func (a *SummaryAudience) SummaryRecipients() ([]notification.Recipient, error) {
	entries := a.config.Notification.SendTo
	if len(entries) == 0 {
		return nil, notification.ErrNoRecipients
	}

	var out []notification.Recipient
	seen := make(map[string]bool)
	for _, entry := range entries {
		r, err := a.resolve(entry)
		if err != nil {
			return nil, fmt.Errorf("send_to %q: %w", entry, err)
		}
		addr := strings.ToLower(r.Address)
		if seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, r)
	}
	return out, nil
}

// CopyRecipients returns the default_cc list
func (a *SummaryAudience) CopyRecipients() []notification.Recipient {
	cc := make([]notification.Recipient, len(a.config.Notification.DefaultCC))
	for i, rc := range a.config.Notification.DefaultCC {
		cc[i] = notification.Recipient{Name: rc.Name, Address: rc.Address}
	}
	return cc
}

// resolve matches one send_to entry. A recipient key always wins; otherwise
// the entry must match exactly one recipient's full, first or last name.
func (a *SummaryAudience) resolve(entry string) (notification.Recipient, error) {
	query := strings.ToLower(strings.TrimSpace(entry))
	if query == "" {
		return notification.Recipient{}, notification.ErrRecipientNotFound
	}

	recipients := a.config.Notification.Recipients
	keys := make([]string, 0, len(recipients))
	for key := range recipients {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var matches []string
	for _, key := range keys {
		rc := recipients[key]
		if strings.ToLower(key) == query {
			return notification.Recipient{Name: rc.Name, Address: rc.Address}, nil
		}
		if nameMatches(rc.Name, query) {
			matches = append(matches, key)
		}
	}

	switch len(matches) {
	case 0:
		return notification.Recipient{}, notification.ErrRecipientNotFound
	case 1:
		rc := recipients[matches[0]]
		return notification.Recipient{Name: rc.Name, Address: rc.Address}, nil
	default:
		return notification.Recipient{}, fmt.Errorf("%w: use one of the keys %s",
			notification.ErrAmbiguousRecipient, strings.Join(matches, ", "))
	}
}

func nameMatches(name, query string) bool {
	name = strings.ToLower(name)
	if name == query {
		return true
	}
	parts := strings.Fields(name)
	return len(parts) > 0 && (parts[0] == query || parts[len(parts)-1] == query)
}
