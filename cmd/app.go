package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"drive-media-compressor/application/compression"
	appnotify "drive-media-compressor/application/notification"
	"drive-media-compressor/application/session"
	domaincompression "drive-media-compressor/domain/compression"
	domaindrive "drive-media-compressor/domain/drive"
	"drive-media-compressor/domain/notification"
	"drive-media-compressor/domain/transfer"
	"drive-media-compressor/infrastructure/config"
	"drive-media-compressor/infrastructure/drive"
	"drive-media-compressor/infrastructure/ffmpeg"
	"drive-media-compressor/infrastructure/filesystem"
	"drive-media-compressor/infrastructure/gmail"
	"drive-media-compressor/infrastructure/imaging"
	"drive-media-compressor/infrastructure/logging"
	"drive-media-compressor/infrastructure/metrics"
	"drive-media-compressor/infrastructure/retry"

	"go.uber.org/zap"
)

// app holds everything a command needs to talk to one Drive account
type app struct {
	session  *session.Session
	gateway  domaindrive.Gateway
	recorder *metrics.Recorder
	notifier *appnotify.Service // nil when summary emails are disabled
	logger   *zap.Logger
	cfg      *config.Config
	closeLog func() error
}

// newApp builds the production dependencies from configuration
func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	logCfg := logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	}
	if verbose {
		logCfg.Level = "debug"
	}
	logger, closeLog, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure logging: %w", err)
	}

	tokens, err := drive.StaticTokenSource(config.AccessToken(), cfg.Google.TokenFile)
	if err != nil {
		closeLog()
		return nil, err
	}

	retryCfg := retry.DefaultConfig()
	if cfg.Drive.RetryAttempts > 0 {
		retryCfg.MaxAttempts = cfg.Drive.RetryAttempts
	}
	client, err := drive.NewClient(ctx, tokens,
		drive.WithEndpoints(cfg.Drive.APIBase, cfg.Drive.UploadBase),
		drive.WithTimeout(cfg.Drive.RequestTimeout),
		drive.WithPageSize(cfg.Drive.PageSize),
		drive.WithRetry(retryCfg),
		drive.WithLogger(logger),
	)
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to create Google Drive client: %w", err)
	}

	recorder := metrics.NewRecorder()
	router, err := newRouter(cfg.Compression, recorder, logger)
	if err != nil {
		closeLog()
		return nil, err
	}

	a := &app{
		gateway:  client,
		recorder: recorder,
		logger:   logger,
		cfg:      cfg,
		closeLog: closeLog,
		session: session.New(session.Dependencies{
			Gateway:    client,
			Compressor: router,
			LocalFiles: filesystem.NewChecker(),
			Recorder:   recorder,
			Output:     out,
			Logger:     logger,
		}),
	}

	if cfg.Notification.Enabled {
		from := notification.Recipient{Name: cfg.Notification.FromName, Address: cfg.Notification.FromAddress}
		sender, err := gmail.NewClientWithTokenSource(ctx, tokens, from)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create Gmail client: %w", err)
		}
		a.notifier = appnotify.NewService(sender, config.NewSummaryAudience(cfg), cfg.Notification.SenderName)
	}

	return a, nil
}

// newRouter builds the compression router from configuration
func newRouter(cc config.CompressionConfig, recorder *metrics.Recorder, logger *zap.Logger) (*compression.Router, error) {
	images, err := imaging.New(cc.ImageEngine)
	if err != nil {
		return nil, err
	}

	ffmpegOpts := []ffmpeg.CompressorOption{ffmpeg.WithTempDir(cc.TempDirectory)}
	if cc.FFmpegPath != "" {
		ffmpegOpts = append(ffmpegOpts, ffmpeg.WithFFmpegPath(cc.FFmpegPath))
	}
	videos := ffmpeg.NewCompressor(ffmpegOpts...)

	return compression.NewRouter(images, videos,
		compression.WithPolicy(domaincompression.Policy{SmallImageThreshold: cc.SmallImageThreshold}),
		compression.WithImageOptions(domaincompression.ImageOptions{MaxDimension: cc.MaxDimension, Quality: cc.ImageQuality}),
		compression.WithVideoOptions(domaincompression.VideoOptions{CRF: cc.VideoCRF, Preset: cc.VideoPreset}),
		compression.WithFailureRecorder(recorder),
		compression.WithLogger(logger),
	), nil
}

// finishBatch writes metrics and sends the summary email, if configured.
// Failures here are reported as warnings; the batch itself already ran.
func (a *app) finishBatch(ctx context.Context, summary *transfer.Summary, folderID string, out io.Writer) {
	if err := a.recorder.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		fmt.Fprintf(out, "Warning: %v\n", err)
	}
	if a.notifier == nil || summary == nil || summary.Total() == 0 {
		return
	}

	req := appnotify.SendRequest{
		Summary:    *summary,
		FolderName: a.folderName(folderID),
		FinishedAt: time.Now(),
	}
	if account, err := a.gateway.About(ctx); err == nil {
		req.AccountEmail = account.User.EmailAddress
	}
	if err := a.notifier.Send(ctx, req); err != nil {
		fmt.Fprintf(out, "Warning: summary email not sent: %v\n", err)
		return
	}
	fmt.Fprintln(out, "Summary email sent.")
}

func (a *app) folderName(folderID string) string {
	path := a.session.Browser().Path()
	if path.Current().ID == folderID {
		return path.String()
	}
	if folderID == domaindrive.RootFolderID {
		return domaindrive.RootFolderName
	}
	return folderID
}

// Close releases the session and flushes logs
func (a *app) Close() {
	a.session.Close()
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

// requireConfig returns the loaded configuration or a setup hint
func requireConfig() (*config.Config, error) {
	cfg := GetConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration could not be loaded from %s; run 'drive-media-compressor setup'", cfgFile)
	}
	return cfg, nil
}

// resolveFolder picks the folder flag, falling back to the configured default
func resolveFolder(flag string, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	if cfg != nil && cfg.Google.DefaultFolderID != "" {
		return cfg.Google.DefaultFolderID
	}
	return domaindrive.RootFolderID
}

// describeError turns credential failures into a reconnect hint
func describeError(err error) string {
	switch {
	case domaindrive.IsAuth(err), errors.Is(err, drive.ErrNoCredential):
		return fmt.Sprintf("reconnect required: run `drive-media-compressor auth` (%v)", err)
	case domaindrive.IsPermission(err):
		return fmt.Sprintf("permission denied: %v", err)
	default:
		return strings.TrimSpace(err.Error())
	}
}
