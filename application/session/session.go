// Package session wires the components that serve one Drive account: the
// listing registry, navigation, the batch pipeline, and the refresh channel.
package session

import (
	"context"
	"fmt"
	"io"

	"drive-media-compressor/application/events"
	"drive-media-compressor/application/fetch"
	"drive-media-compressor/application/registry"
	"drive-media-compressor/application/transfer"
	"drive-media-compressor/domain/drive"
	domain "drive-media-compressor/domain/transfer"

	"go.uber.org/zap"
)

// Recorder collects pipeline and fetch metrics
type Recorder interface {
	transfer.Recorder
	fetch.FallbackRecorder
}

// Dependencies are the collaborators a session is built from
type Dependencies struct {
	Gateway    drive.Gateway
	Compressor transfer.Compressor
	LocalFiles domain.LocalFileSource // optional
	Recorder   Recorder               // optional
	Output     io.Writer              // progress lines; defaults to io.Discard
	Logger     *zap.Logger
}

// Session is the state of one signed-in account
type Session struct {
	gateway  drive.Gateway
	registry *registry.Registry
	browser  *registry.Browser
	channel  *events.Channel
	queue    *transfer.Queue
	pipeline *transfer.Pipeline
	preview  *fetch.Chain
	logger   *zap.Logger

	unsubscribe func()
}

// New builds a session and subscribes the active-folder refresher
func New(deps Dependencies) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	output := deps.Output
	if output == nil {
		output = io.Discard
	}

	reg := registry.New()
	channel := events.NewChannel(logger)
	queue := transfer.NewQueue()

	fetchOpts := []fetch.ChainOption{fetch.WithLogger(logger)}
	pipelineOpts := []transfer.Option{
		transfer.WithPublisher(channel),
		transfer.WithQueue(queue),
		transfer.WithOutput(output),
		transfer.WithLogger(logger),
	}
	if deps.Recorder != nil {
		fetchOpts = append(fetchOpts, fetch.WithRecorder(deps.Recorder))
		pipelineOpts = append(pipelineOpts, transfer.WithRecorder(deps.Recorder))
	}
	if deps.LocalFiles != nil {
		pipelineOpts = append(pipelineOpts, transfer.WithLocalFiles(deps.LocalFiles))
	}
	pipelineOpts = append(pipelineOpts, transfer.WithFetcher(fetch.FullFidelity(deps.Gateway, fetchOpts...)))

	s := &Session{
		gateway:  deps.Gateway,
		registry: reg,
		browser:  registry.NewBrowser(reg),
		channel:  channel,
		queue:    queue,
		pipeline: transfer.NewPipeline(deps.Gateway, deps.Compressor, reg, pipelineOpts...),
		preview:  fetch.Preview(deps.Gateway, fetchOpts...),
		logger:   logger,
	}
	s.unsubscribe = channel.Subscribe(s.Refresh)
	return s
}

// Registry returns the listing registry
func (s *Session) Registry() *registry.Registry { return s.registry }

// Browser returns the navigation state
func (s *Session) Browser() *registry.Browser { return s.browser }

// Channel returns the refresh channel
func (s *Session) Channel() *events.Channel { return s.channel }

// Pipeline returns the batch pipeline
func (s *Session) Pipeline() *transfer.Pipeline { return s.pipeline }

// Refresh refetches the active folder
func (s *Session) Refresh(ctx context.Context) error {
	return s.RefreshFolder(ctx, s.browser.FolderID())
}

// RefreshFolder refetches one folder's listing. Outcomes applied while the
// fetch is in flight are kept.
func (s *Session) RefreshFolder(ctx context.Context, folderID string) error {
	ticket := s.registry.BeginRefresh(folderID)
	files, err := s.gateway.ListFiles(ctx, folderID)
	if err != nil {
		s.registry.AbandonRefresh(ticket)
		return fmt.Errorf("failed to list folder %s: %w", folderID, err)
	}
	if !s.registry.CompleteRefresh(ticket, files) {
		s.logger.Debug("discarded stale listing", zap.String("folder_id", folderID))
	}
	return nil
}

// Enter navigates into a folder and loads its listing if needed
func (s *Session) Enter(ctx context.Context, folderID string) error {
	if err := s.browser.Enter(folderID); err != nil {
		return err
	}
	return s.ensureLoaded(ctx)
}

// Up navigates to the parent folder and loads its listing if needed
func (s *Session) Up(ctx context.Context) error {
	s.browser.Up()
	return s.ensureLoaded(ctx)
}

// JumpTo navigates to a breadcrumb and loads its listing if needed
func (s *Session) JumpTo(ctx context.Context, index int) error {
	s.browser.JumpTo(index)
	return s.ensureLoaded(ctx)
}

func (s *Session) ensureLoaded(ctx context.Context) error {
	if s.registry.Loaded(s.browser.FolderID()) {
		return nil
	}
	return s.Refresh(ctx)
}

// Dashboard is the account overview
type Dashboard struct {
	Account drive.Account
	Path    drive.FolderPath
	Stats   drive.ListingStats
}

// Dashboard returns quota, owner, and the active folder's statistics
func (s *Session) Dashboard(ctx context.Context) (*Dashboard, error) {
	account, err := s.gateway.About(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read account: %w", err)
	}
	if err := s.ensureLoaded(ctx); err != nil {
		return nil, err
	}
	path := s.browser.Path()
	return &Dashboard{
		Account: *account,
		Path:    path,
		Stats:   s.registry.Stats(path.Current().ID),
	}, nil
}

// DeleteResult reports a delete batch
type DeleteResult struct {
	Deleted  []string
	Failures []domain.Failure
}

// Delete permanently deletes files from a folder. Files that are already
// gone count as deleted. An authentication failure stops the batch.
func (s *Session) Delete(ctx context.Context, folderID string, fileIDs []string) (*DeleteResult, error) {
	defer s.channel.Publish(context.WithoutCancel(ctx))

	result := &DeleteResult{}
	for _, id := range fileIDs {
		name := id
		if f, ok := s.registry.File(folderID, id); ok {
			name = f.Name
		}
		if err := s.gateway.Delete(ctx, id); err != nil {
			result.Failures = append(result.Failures, domain.Failure{Name: name, Reason: err.Error()})
			if drive.IsAuth(err) {
				return result, err
			}
			continue
		}
		s.registry.ApplyOutcome(registry.Outcome{Kind: registry.OutcomeDeleted, FolderID: folderID, FileID: id})
		result.Deleted = append(result.Deleted, id)
	}
	return result, nil
}

// Preview opens a file in the preview and fetches something displayable
// for it, falling back to the thumbnail or a placeholder
func (s *Session) Preview(ctx context.Context, folderID, fileID string) (drive.File, *fetch.Result, error) {
	file, err := s.registry.OpenPreview(folderID, fileID)
	if err != nil {
		return drive.File{}, nil, err
	}
	res, err := s.preview.Fetch(ctx, file)
	if err != nil {
		return file, nil, err
	}
	return file, res, nil
}

// Close detaches the session from its refresh channel
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
