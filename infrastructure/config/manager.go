package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Errors for config management
var (
	ErrRecipientNotFound = errors.New("recipient not found")
	ErrDuplicateKey      = errors.New("key already exists")
	ErrInvalidEmail      = errors.New("invalid email format")
)

// ConfigManager provides CRUD operations for config entries
type ConfigManager struct {
	config     *Config
	configPath string
}

// NewConfigManager creates a new config manager
func NewConfigManager(cfg *Config, configPath string) *ConfigManager {
	return &ConfigManager{
		config:     cfg,
		configPath: configPath,
	}
}

// Recipient represents a recipient entry
type Recipient struct {
	Key     string
	Name    string
	Address string
}

// AddRecipient adds a new summary recipient to config
func (m *ConfigManager) AddRecipient(key, name, email string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if key == "" {
		return fmt.Errorf("recipient key is required")
	}
	if name == "" {
		return fmt.Errorf("recipient name is required")
	}
	if !isValidEmail(email) {
		return fmt.Errorf("%w: %q", ErrInvalidEmail, email)
	}

	if m.config.Notification.Recipients == nil {
		m.config.Notification.Recipients = make(map[string]RecipientConfig)
	}

	if _, exists := m.config.Notification.Recipients[key]; exists {
		return fmt.Errorf("%w: recipient %q", ErrDuplicateKey, key)
	}

	m.config.Notification.Recipients[key] = RecipientConfig{Name: name, Address: email}
	return Save(m.config, m.configPath)
}

// ListRecipients returns all recipients sorted by key
func (m *ConfigManager) ListRecipients() []Recipient {
	result := make([]Recipient, 0, len(m.config.Notification.Recipients))
	for key, rc := range m.config.Notification.Recipients {
		result = append(result, Recipient{
			Key:     key,
			Name:    rc.Name,
			Address: rc.Address,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// RemoveRecipient removes a recipient by key and drops it from send_to
func (m *ConfigManager) RemoveRecipient(key string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	if _, exists := m.config.Notification.Recipients[key]; !exists {
		return fmt.Errorf("%w: %q", ErrRecipientNotFound, key)
	}

	delete(m.config.Notification.Recipients, key)

	kept := m.config.Notification.SendTo[:0]
	for _, q := range m.config.Notification.SendTo {
		if strings.ToLower(strings.TrimSpace(q)) != key {
			kept = append(kept, q)
		}
	}
	m.config.Notification.SendTo = kept

	return Save(m.config, m.configPath)
}

// isValidEmail performs basic email validation
func isValidEmail(email string) bool {
	if email == "" {
		return false
	}
	// Basic check: contains @ and at least one . after @
	atIdx := strings.Index(email, "@")
	if atIdx < 1 {
		return false
	}
	domain := email[atIdx+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return false
	}
	return true
}
