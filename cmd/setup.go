package cmd

import (
	"fmt"
	"os"
	"strconv"

	"drive-media-compressor/infrastructure/config"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// Prompter interface for interactive prompts (allows mocking in tests)
type Prompter interface {
	Input(message string, defaultValue string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
	Select(message string, options []string, defaultValue string) (string, error)
	MultiSelect(message string, options []string) ([]string, error)
}

// SurveyPrompter implements Prompter using the survey library
type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

func (p *SurveyPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Select{
		Message:  message,
		Options:  options,
		PageSize: 15,
	}
	if defaultValue != "" {
		prompt.Default = defaultValue
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) MultiSelect(message string, options []string) ([]string, error) {
	var result []string
	prompt := &survey.MultiSelect{
		Message:  message,
		Options:  options,
		PageSize: 15,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// DefaultPrompter is the prompter used in production
var DefaultPrompter Prompter = &SurveyPrompter{}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create configuration file interactively",
	Long: `Prompts for configuration values and creates config.yaml.

This command guides you through setting up your Google credentials,
compression settings, and optional batch summary emails.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	return RunSetupWithPrompter(DefaultPrompter, cfgFile, os.Stdout)
}

// RunSetupWithPrompter runs the setup with a given prompter (for testing)
func RunSetupWithPrompter(prompter Prompter, configPath string, out OutputWriter) error {
	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		overwrite, err := prompter.Confirm("config.yaml already exists. Overwrite?", false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !overwrite {
			fmt.Fprintln(out, "Setup cancelled.")
			return nil
		}
	}

	fmt.Fprintln(out, "Welcome to drive-media-compressor setup!")
	fmt.Fprintln(out)

	cfg := config.Defaults()

	if err := promptGoogle(prompter, cfg); err != nil {
		return err
	}

	if err := promptCompression(prompter, cfg); err != nil {
		return err
	}

	if err := promptNotification(prompter, cfg); err != nil {
		return err
	}

	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Configuration saved to %s\n", configPath)
	fmt.Fprintln(out, "Run 'drive-media-compressor auth' to connect your Google account.")
	return nil
}

func promptGoogle(prompter Prompter, cfg *config.Config) error {
	credentials, err := prompter.Input("Path to Google OAuth credentials file?", cfg.Google.CredentialsFile)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if credentials != "" {
		cfg.Google.CredentialsFile = credentials
	}

	token, err := prompter.Input("Where should the OAuth token be stored?", cfg.Google.TokenFile)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if token != "" {
		cfg.Google.TokenFile = token
	}

	folder, err := prompter.Input("Default Drive folder ID?", cfg.Google.DefaultFolderID)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if folder != "" {
		cfg.Google.DefaultFolderID = folder
	}

	return nil
}

func promptCompression(prompter Prompter, cfg *config.Config) error {
	quality, err := promptInt(prompter, "JPEG quality (1-100)?", cfg.Compression.ImageQuality, 1, 100)
	if err != nil {
		return err
	}
	cfg.Compression.ImageQuality = quality

	dim, err := promptInt(prompter, "Longest image side in pixels?", cfg.Compression.MaxDimension, 1, 1<<15)
	if err != nil {
		return err
	}
	cfg.Compression.MaxDimension = dim

	crf, err := promptInt(prompter, "Video CRF (0-51, higher is smaller)?", cfg.Compression.VideoCRF, 0, 51)
	if err != nil {
		return err
	}
	cfg.Compression.VideoCRF = crf

	engine, err := prompter.Select("Image engine?", []string{"imaging", "opencv"}, cfg.Compression.ImageEngine)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if engine != "" {
		cfg.Compression.ImageEngine = engine
	}

	return nil
}

func promptInt(prompter Prompter, message string, defaultValue, lo, hi int) (int, error) {
	raw, err := prompter.Input(message, strconv.Itoa(defaultValue))
	if err != nil {
		return 0, fmt.Errorf("prompt cancelled")
	}
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("%q must be a number between %d and %d", raw, lo, hi)
	}
	return n, nil
}

func promptNotification(prompter Prompter, cfg *config.Config) error {
	enabled, err := prompter.Confirm("Email a summary after each batch?", false)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Notification.Enabled = enabled
	if !enabled {
		return nil
	}

	fromName, err := prompter.Input("Display name for outgoing emails?", "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if fromName == "" {
		return fmt.Errorf("from name is required")
	}
	cfg.Notification.FromName = fromName

	fromAddress, err := prompter.Input("Gmail address to send from?", "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if fromAddress == "" {
		return fmt.Errorf("from address is required")
	}
	cfg.Notification.FromAddress = fromAddress

	// Quick-lookup recipients
	cfg.Notification.Recipients = make(map[string]config.RecipientConfig)
	for {
		addRecipient, err := prompter.Confirm("Add a summary recipient?", len(cfg.Notification.Recipients) == 0)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !addRecipient {
			break
		}

		nickname, err := prompter.Input("  Nickname:", "")
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if nickname == "" {
			return fmt.Errorf("nickname is required")
		}

		recipient, err := promptRecipientWithPrompter(prompter)
		if err != nil {
			return err
		}
		cfg.Notification.Recipients[nickname] = recipient
		cfg.Notification.SendTo = append(cfg.Notification.SendTo, nickname)
	}

	return nil
}

func promptRecipientWithPrompter(prompter Prompter) (config.RecipientConfig, error) {
	name, err := prompter.Input("  Full name:", "")
	if err != nil {
		return config.RecipientConfig{}, fmt.Errorf("prompt cancelled")
	}
	if name == "" {
		return config.RecipientConfig{}, fmt.Errorf("name is required")
	}

	address, err := prompter.Input("  Email:", "")
	if err != nil {
		return config.RecipientConfig{}, fmt.Errorf("prompt cancelled")
	}
	if address == "" {
		return config.RecipientConfig{}, fmt.Errorf("email is required")
	}

	return config.RecipientConfig{
		Name:    name,
		Address: address,
	}, nil
}
