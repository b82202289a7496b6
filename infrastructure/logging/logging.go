// Package logging builds the zap logger used for diagnostics.
//
// User-facing progress goes to the command's output writer; this logger
// carries the detail behind it (fallback steps, retries, recovered handler
// panics) to stderr and, when configured, a rotating file.
package logging

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	File       string // optional rotating log file
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	NoConsole  bool // log only to File
}

// New builds a logger from cfg. The returned closer flushes the logger and
// releases the log file.
func New(cfg Config) (*zap.Logger, func() error, error) {
	return newWithConsole(cfg, zapcore.Lock(os.Stderr))
}

func newWithConsole(cfg Config, console zapcore.WriteSyncer) (*zap.Logger, func() error, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, err
		}
	}

	encoder := newEncoder(cfg.Format)

	var cores []zapcore.Core
	if !cfg.NoConsole || cfg.File == "" {
		cores = append(cores, zapcore.NewCore(encoder, console, level))
	}

	var file *lumberjack.Logger
	if cfg.File != "" {
		file = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		// Files always get JSON so they can be shipped as is
		cores = append(cores, zapcore.NewCore(newEncoder("json"), zapcore.AddSync(file), level))
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddStacktrace(zapcore.ErrorLevel))

	closer := func() error {
		_ = logger.Sync()
		if file != nil {
			return file.Close()
		}
		return nil
	}
	return logger, closer, nil
}

// NewWriter builds a console logger that writes to w (for tests and fakes).
func NewWriter(w io.Writer, level string) *zap.Logger {
	logger, _, err := newWithConsole(Config{Level: level, Format: "json"}, zapcore.AddSync(w))
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func newEncoder(format string) zapcore.Encoder {
	if format == "json" {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}
