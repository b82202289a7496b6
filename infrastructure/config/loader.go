package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AccessTokenEnv names the environment variable that carries a ready-made
// Drive access token. It takes precedence over the token file.
const AccessTokenEnv = "DRIVE_ACCESS_TOKEN"

// DefaultPath is where commands look for the configuration file
const DefaultPath = "config/config.yaml"

// Config represents the complete application configuration
type Config struct {
	Google       GoogleConfig       `yaml:"google"`
	Drive        DriveConfig        `yaml:"drive"`
	Compression  CompressionConfig  `yaml:"compression"`
	Logging      LoggingConfig      `yaml:"logging"`
	Notification NotificationConfig `yaml:"notification"`
	Metrics      MetricsConfig      `yaml:"metrics"`
}

// GoogleConfig contains Google API settings
type GoogleConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	TokenFile       string `yaml:"token_file"`
	DefaultFolderID string `yaml:"default_folder_id"`
}

// DriveConfig contains Drive API transport settings
type DriveConfig struct {
	APIBase        string        `yaml:"api_base"`
	UploadBase     string        `yaml:"upload_base"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	PageSize       int           `yaml:"page_size"`
	RetryAttempts  int           `yaml:"retry_attempts"`
}

// CompressionConfig contains compression settings
type CompressionConfig struct {
	SmallImageThreshold int64  `yaml:"small_image_threshold"` // bytes; smaller images pass through
	MaxDimension        int    `yaml:"max_dimension"`
	ImageQuality        int    `yaml:"image_quality"`
	ImageEngine         string `yaml:"image_engine"` // imaging or opencv
	VideoCRF            int    `yaml:"video_crf"`
	VideoPreset         string `yaml:"video_preset"`
	FFmpegPath          string `yaml:"ffmpeg_path"`
	TempDirectory       string `yaml:"temp_directory"`
}

// LoggingConfig contains diagnostics logging settings
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, console
	File       string `yaml:"file"`   // optional rotating log file
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// NotificationConfig contains batch summary email settings
type NotificationConfig struct {
	Enabled     bool                       `yaml:"enabled"`
	FromName    string                     `yaml:"from_name"`
	FromAddress string                     `yaml:"from_address"`
	SenderName  string                     `yaml:"sender_name"`
	SendTo      []string                   `yaml:"send_to,omitempty"` // recipient keys or names
	DefaultCC   []RecipientConfig          `yaml:"default_cc,omitempty"`
	Recipients  map[string]RecipientConfig `yaml:"recipients,omitempty"`
}

// RecipientConfig represents an email recipient
type RecipientConfig struct {
	Name    string `yaml:"name"`
	Address string `yaml:"address"`
}

// MetricsConfig contains metrics export settings
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // written after every batch when set
}

// Defaults returns a configuration with every setting at its default
func Defaults() *Config {
	return &Config{
		Google: GoogleConfig{
			CredentialsFile: "config/credentials.json",
			TokenFile:       "config/token.json",
			DefaultFolderID: "root",
		},
		Drive: DriveConfig{
			APIBase:        "https://www.googleapis.com/drive/v3/",
			UploadBase:     "https://www.googleapis.com/upload/drive/v3",
			RequestTimeout: 2 * time.Minute,
			PageSize:       100,
			RetryAttempts:  3,
		},
		Compression: CompressionConfig{
			SmallImageThreshold: 50 * 1024,
			MaxDimension:        1920,
			ImageQuality:        80,
			ImageEngine:         "imaging",
			VideoCRF:            28,
			VideoPreset:         "fast",
			FFmpegPath:          "ffmpeg",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Notification: NotificationConfig{
			SenderName: "Drive Media Compressor",
		},
	}
}

// Load reads and parses the configuration from the specified YAML file.
// Settings missing from the file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault loads the configuration file, falling back to defaults when it does not exist
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Defaults(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadEnv loads variables from .env files into the process environment.
// Missing files are ignored; variables already set are not overridden.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// AccessToken returns the access token supplied through the environment, if any
func AccessToken() string {
	return os.Getenv(AccessTokenEnv)
}
