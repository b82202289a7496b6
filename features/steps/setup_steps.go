//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"drive-media-compressor/cmd"
	"drive-media-compressor/infrastructure/config"

	"github.com/cucumber/godog"
)

type setupContext struct {
	tempDir         string
	configPath      string
	setupCancelled  bool
	originalContent string
	output          *bytes.Buffer
	err             error
}

var SharedSetupContext = &setupContext{}

// MockPrompter implements cmd.Prompter for testing
type MockPrompter struct {
	inputResponses   []string
	confirmResponses []bool
	selectResponses  []string
	inputIndex       int
	confirmIndex     int
	selectIndex      int
}

func NewMockPrompter(inputs []string, confirms []bool) *MockPrompter {
	return &MockPrompter{
		inputResponses:   inputs,
		confirmResponses: confirms,
	}
}

func (m *MockPrompter) Input(message string, defaultValue string) (string, error) {
	if m.inputIndex >= len(m.inputResponses) {
		if defaultValue != "" {
			return defaultValue, nil
		}
		return "", fmt.Errorf("no more input responses available for message: %s", message)
	}
	response := m.inputResponses[m.inputIndex]
	m.inputIndex++
	return response, nil
}

func (m *MockPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	if m.confirmIndex >= len(m.confirmResponses) {
		return defaultValue, nil
	}
	response := m.confirmResponses[m.confirmIndex]
	m.confirmIndex++
	return response, nil
}

func (m *MockPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	if m.selectIndex >= len(m.selectResponses) {
		if defaultValue != "" {
			return defaultValue, nil
		}
		return "", fmt.Errorf("no more select responses available for message: %s", message)
	}
	response := m.selectResponses[m.selectIndex]
	m.selectIndex++
	return response, nil
}

func (m *MockPrompter) MultiSelect(message string, options []string) ([]string, error) {
	return nil, fmt.Errorf("no multi-select responses available for message: %s", message)
}

func InitializeSetupScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedSetupContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		// Create temp directory for each scenario
		tempDir, err := os.MkdirTemp("", "setup-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.configPath = filepath.Join(tempDir, "config", "config.yaml")
		testCtx.setupCancelled = false
		testCtx.originalContent = ""
		testCtx.output = &bytes.Buffer{}
		testCtx.err = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		// Cleanup temp directory
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^no config file exists for setup$`, testCtx.noConfigFileExistsForSetup)
	ctx.Step(`^a config file already exists for setup$`, testCtx.aConfigFileAlreadyExistsForSetup)
	ctx.Step(`^I run the setup command with inputs:$`, testCtx.iRunTheSetupCommandWithInputs)
	ctx.Step(`^I run the setup command with confirmation "([^"]*)"$`, testCtx.iRunTheSetupCommandWithConfirmation)
	ctx.Step(`^a config file should exist$`, testCtx.aConfigFileShouldExist)
	ctx.Step(`^the config should have default_folder_id "([^"]*)"$`, testCtx.theConfigShouldHaveDefaultFolderID)
	ctx.Step(`^the config should have image_quality (\d+)$`, testCtx.theConfigShouldHaveImageQuality)
	ctx.Step(`^the config should have image_engine "([^"]*)"$`, testCtx.theConfigShouldHaveImageEngine)
	ctx.Step(`^summary emails should be (enabled|disabled)$`, testCtx.summaryEmailsShouldBe)
	ctx.Step(`^the config should send summaries to "([^"]*)"$`, testCtx.theConfigShouldSendSummariesTo)
	ctx.Step(`^the setup should fail with "([^"]*)"$`, testCtx.theSetupShouldFailWith)
	ctx.Step(`^the setup should be cancelled$`, testCtx.theSetupShouldBeCancelled)
	ctx.Step(`^the existing config should be unchanged$`, testCtx.theExistingConfigShouldBeUnchanged)
}

func (s *setupContext) noConfigFileExistsForSetup() error {
	// Just ensure the config path directory exists but no config file
	return os.MkdirAll(filepath.Dir(s.configPath), 0755)
}

func (s *setupContext) aConfigFileAlreadyExistsForSetup() error {
	if err := os.MkdirAll(filepath.Dir(s.configPath), 0755); err != nil {
		return err
	}

	content := `google:
  credentials_file: "original-creds.json"
  default_folder_id: "original-folder"
compression:
  image_quality: 70
`
	s.originalContent = content
	return os.WriteFile(s.configPath, []byte(content), 0644)
}

func (s *setupContext) iRunTheSetupCommandWithInputs(table *godog.Table) error {
	prompter := parseInputTable(table)
	s.err = cmd.RunSetupWithPrompter(prompter, s.configPath, s.output)
	return nil
}

func (s *setupContext) iRunTheSetupCommandWithConfirmation(confirmation string) error {
	confirm := strings.ToLower(confirmation) == "y"
	prompter := NewMockPrompter([]string{}, []bool{confirm})

	s.err = cmd.RunSetupWithPrompter(prompter, s.configPath, s.output)
	if !confirm {
		s.setupCancelled = true
	}
	return nil
}

// parseInputTable sorts prompt answers by kind: prompts starting with
// "Add" or "Email a summary" are confirmations, "Image engine" is a
// selection, everything else is text input.
func parseInputTable(table *godog.Table) *MockPrompter {
	m := &MockPrompter{}
	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		prompt := strings.ToLower(row.Cells[0].Value)
		value := row.Cells[1].Value

		switch {
		case strings.HasPrefix(prompt, "add"), strings.HasPrefix(prompt, "email a summary"):
			m.confirmResponses = append(m.confirmResponses, strings.ToLower(value) == "y")
		case strings.HasPrefix(prompt, "image engine"):
			m.selectResponses = append(m.selectResponses, value)
		default:
			m.inputResponses = append(m.inputResponses, value)
		}
	}
	return m
}

func (s *setupContext) load() (*config.Config, error) {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func (s *setupContext) aConfigFileShouldExist() error {
	if s.err != nil {
		return fmt.Errorf("setup command failed: %w", s.err)
	}
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist at %s", s.configPath)
	}
	return nil
}

func (s *setupContext) theConfigShouldHaveDefaultFolderID(expected string) error {
	cfg, err := s.load()
	if err != nil {
		return err
	}
	if cfg.Google.DefaultFolderID != expected {
		return fmt.Errorf("expected default_folder_id %q, got %q", expected, cfg.Google.DefaultFolderID)
	}
	return nil
}

func (s *setupContext) theConfigShouldHaveImageQuality(expected int) error {
	cfg, err := s.load()
	if err != nil {
		return err
	}
	if cfg.Compression.ImageQuality != expected {
		return fmt.Errorf("expected image_quality %d, got %d", expected, cfg.Compression.ImageQuality)
	}
	return nil
}

func (s *setupContext) theConfigShouldHaveImageEngine(expected string) error {
	cfg, err := s.load()
	if err != nil {
		return err
	}
	if cfg.Compression.ImageEngine != expected {
		return fmt.Errorf("expected image_engine %q, got %q", expected, cfg.Compression.ImageEngine)
	}
	return nil
}

func (s *setupContext) summaryEmailsShouldBe(state string) error {
	cfg, err := s.load()
	if err != nil {
		return err
	}
	if cfg.Notification.Enabled != (state == "enabled") {
		return fmt.Errorf("expected summary emails %s, got enabled=%v", state, cfg.Notification.Enabled)
	}
	return nil
}

func (s *setupContext) theConfigShouldSendSummariesTo(nickname string) error {
	cfg, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := cfg.Notification.Recipients[nickname]; !ok {
		return fmt.Errorf("recipient %q not found in %v", nickname, cfg.Notification.Recipients)
	}
	for _, k := range cfg.Notification.SendTo {
		if k == nickname {
			return nil
		}
	}
	return fmt.Errorf("recipient %q not in send_to %v", nickname, cfg.Notification.SendTo)
}

func (s *setupContext) theSetupShouldFailWith(expected string) error {
	if s.err == nil {
		return fmt.Errorf("expected setup to fail with %q", expected)
	}
	if !strings.Contains(s.err.Error(), expected) {
		return fmt.Errorf("expected error containing %q, got: %v", expected, s.err)
	}
	return nil
}

func (s *setupContext) theSetupShouldBeCancelled() error {
	if !s.setupCancelled {
		return fmt.Errorf("expected setup to be cancelled")
	}
	if !strings.Contains(s.output.String(), "Setup cancelled.") {
		return fmt.Errorf("expected cancellation message, got: %s", s.output.String())
	}
	return nil
}

func (s *setupContext) theExistingConfigShouldBeUnchanged() error {
	content, err := os.ReadFile(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if string(content) != s.originalContent {
		return fmt.Errorf("config content was changed")
	}
	return nil
}
