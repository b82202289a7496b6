// Package transfer runs compression batches: each selected file is
// downloaded, compressed, and uploaded back to Drive one at a time.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"drive-media-compressor/application/compression"
	"drive-media-compressor/application/fetch"
	"drive-media-compressor/application/registry"
	"drive-media-compressor/domain/drive"
	domain "drive-media-compressor/domain/transfer"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

var (
	// ErrReconnectRequired marks tasks skipped after an authentication failure
	ErrReconnectRequired = errors.New("skipped: reconnect required")

	// ErrNotInListing is returned for ids that are not in the folder's listing
	ErrNotInListing = errors.New("file is not in the current listing")

	// ErrNoLocalSource is returned when local uploads are not configured
	ErrNoLocalSource = errors.New("local file source not configured")
)

// Fetcher retrieves the full-fidelity bytes of a remote file
type Fetcher interface {
	Fetch(ctx context.Context, file drive.File) (*fetch.Result, error)
}

// Compressor routes a payload to the matching compressor
type Compressor interface {
	Apply(ctx context.Context, name, mimeType string, data []byte) (compression.Result, error)
}

// Listing resolves ids and receives confirmed changes
type Listing interface {
	File(folderID, fileID string) (drive.File, bool)
	ApplyOutcome(o registry.Outcome)
}

// Publisher announces that remote state changed
type Publisher interface {
	Publish(ctx context.Context)
}

// Recorder collects pipeline metrics
type Recorder interface {
	FileProcessed(operation, status, strategy string)
	BytesSaved(n int64)
	BytesUploaded(n int64)
	BatchFinished(operation, result string, seconds float64)
}

// Pipeline orchestrates compression batches for one session
type Pipeline struct {
	gateway    drive.Gateway
	compressor Compressor
	listing    Listing
	fetcher    Fetcher
	local      domain.LocalFileSource
	publisher  Publisher
	queue      *Queue
	tasks      *domain.TaskSet
	recorder   Recorder
	output     io.Writer
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithFetcher replaces the default full-fidelity fetch chain
func WithFetcher(f Fetcher) Option {
	return func(p *Pipeline) {
		p.fetcher = f
	}
}

// WithLocalFiles enables local uploads
func WithLocalFiles(src domain.LocalFileSource) Option {
	return func(p *Pipeline) {
		p.local = src
	}
}

// WithPublisher sets where batch completion is announced
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) {
		p.publisher = pub
	}
}

// WithQueue shares a queue between pipelines of the same session
func WithQueue(q *Queue) Option {
	return func(p *Pipeline) {
		p.queue = q
	}
}

// WithRecorder sets the metrics recorder
func WithRecorder(rec Recorder) Option {
	return func(p *Pipeline) {
		p.recorder = rec
	}
}

// WithOutput sets where progress lines are written
func WithOutput(w io.Writer) Option {
	return func(p *Pipeline) {
		p.output = w
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithClock sets the time source used for timestamps and durations
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// NewPipeline creates a pipeline. Without WithFetcher, downloads use the
// authenticated download followed by the public content link.
func NewPipeline(gw drive.Gateway, compressor Compressor, listing Listing, opts ...Option) *Pipeline {
	p := &Pipeline{
		gateway:    gw,
		compressor: compressor,
		listing:    listing,
		publisher:  nopPublisher{},
		queue:      NewQueue(),
		tasks:      domain.NewTaskSet(),
		recorder:   nopRecorder{},
		output:     io.Discard,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fetcher == nil {
		p.fetcher = fetch.FullFidelity(gw, fetch.WithLogger(p.logger))
	}
	return p
}

// stepFunc processes one task that has not started yet
type stepFunc func(ctx context.Context, folderID string, t *domain.Task, prefix string) error

type batch struct {
	op       domain.Operation
	folderID string
	tasks    []*domain.Task
	prepErr  map[string]error // tasks that fail without being processed
	step     stepFunc
}

// CompressAndReplace compresses each file and uploads it under the same
// name in the same folder, then deletes the original. The registry entry
// keeps its position but takes the replacement's id.
func (p *Pipeline) CompressAndReplace(ctx context.Context, folderID string, fileIDs []string) (*domain.Summary, error) {
	return p.run(ctx, p.remoteBatch(domain.OperationReplace, folderID, fileIDs, p.replace))
}

// CompressAndUpload compresses each file and uploads it as a new file with
// the compression marker in its name. Originals are untouched.
func (p *Pipeline) CompressAndUpload(ctx context.Context, folderID string, fileIDs []string) (*domain.Summary, error) {
	return p.run(ctx, p.remoteBatch(domain.OperationUploadNew, folderID, fileIDs, p.uploadCopy))
}

// UploadLocal compresses local files and uploads them into the folder.
// Files that got smaller are named "compressed_<name>".
func (p *Pipeline) UploadLocal(ctx context.Context, folderID string, paths []string) (*domain.Summary, error) {
	b := batch{
		op:       domain.OperationLocal,
		folderID: folderID,
		prepErr:  make(map[string]error),
		step:     p.uploadLocal,
	}
	for _, path := range paths {
		if p.local == nil {
			t := domain.NewLocalTask(path, filepath.Base(path), "", 0)
			b.prepErr[t.ID] = ErrNoLocalSource
			b.tasks = append(b.tasks, t)
			continue
		}
		info, err := p.local.Stat(ctx, path)
		if err != nil {
			t := domain.NewLocalTask(path, filepath.Base(path), "", 0)
			b.prepErr[t.ID] = err
			b.tasks = append(b.tasks, t)
			continue
		}
		b.tasks = append(b.tasks, domain.NewLocalTask(info.Path, info.Name, info.MimeType, info.Size))
	}
	return p.run(ctx, b)
}

// Tasks returns the working set in the order tasks were queued
func (p *Pipeline) Tasks() []domain.Task {
	return p.tasks.List()
}

// RemoveTask drops one task from the working set
func (p *Pipeline) RemoveTask(id string) {
	p.tasks.Remove(id)
}

// ClearFinished drops completed and failed tasks from the working set
func (p *Pipeline) ClearFinished() int {
	return p.tasks.ClearFinished()
}

func (p *Pipeline) remoteBatch(op domain.Operation, folderID string, fileIDs []string, step stepFunc) batch {
	b := batch{op: op, folderID: folderID, prepErr: make(map[string]error), step: step}
	for _, id := range fileIDs {
		f, ok := p.listing.File(folderID, id)
		if !ok {
			t := domain.NewRemoteTask(drive.File{ID: id, Name: id})
			b.prepErr[t.ID] = ErrNotInListing
			b.tasks = append(b.tasks, t)
			continue
		}
		b.tasks = append(b.tasks, domain.NewRemoteTask(f))
	}
	return b
}

// run executes a batch through the queue. The refresh is published when
// the batch ends, whatever its result.
func (p *Pipeline) run(ctx context.Context, b batch) (*domain.Summary, error) {
	p.tasks.Add(b.tasks...)
	summary := &domain.Summary{Operation: b.op}
	start := p.now()
	defer p.publisher.Publish(context.WithoutCancel(ctx))

	var authErr error
	err := p.queue.Do(ctx, func(ctx context.Context) error {
		authErr = p.process(ctx, b, summary)
		return nil
	})
	if err != nil {
		// The queue was never acquired
		for _, t := range b.tasks {
			p.fail(t, fmt.Errorf("not started: %w", err))
			p.record(b.op, summary, t)
		}
	}

	result := batchResult(summary)
	elapsed := p.now().Sub(start)
	p.recorder.BatchFinished(string(b.op), result, elapsed.Seconds())
	p.logger.Info("batch finished",
		zap.String("operation", string(b.op)),
		zap.String("folder_id", b.folderID),
		zap.String("result", result),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Int64("bytes_saved", summary.BytesSaved),
		zap.Duration("elapsed", elapsed))

	if authErr != nil {
		return summary, authErr
	}
	if err != nil {
		return summary, err
	}
	return summary, nil
}

// process walks the batch in selection order. A failed file does not stop
// the batch; an authentication failure skips the files after it.
func (p *Pipeline) process(ctx context.Context, b batch, summary *domain.Summary) error {
	var authErr error
	n := len(b.tasks)
	for i, t := range b.tasks {
		prefix := fmt.Sprintf("[%d/%d] %s", i+1, n, t.File.Name)

		var err error
		switch {
		case authErr != nil:
			err = ErrReconnectRequired
		case ctx.Err() != nil:
			err = ctx.Err()
		case b.prepErr[t.ID] != nil:
			err = b.prepErr[t.ID]
		default:
			err = b.step(ctx, b.folderID, t, prefix)
		}

		if err != nil {
			p.fail(t, err)
			fmt.Fprintf(p.output, "%s: error: %v\n", prefix, err)
			p.logger.Warn("file failed",
				zap.String("operation", string(b.op)),
				zap.String("file", t.File.Name),
				zap.String("file_id", t.File.ID),
				zap.Error(err))
			if authErr == nil && drive.IsAuth(err) {
				authErr = err
				summary.Aborted = true
			}
		} else {
			fmt.Fprintf(p.output, "%s: completed\n", prefix)
		}
		p.record(b.op, summary, t)
	}
	return authErr
}

func (p *Pipeline) replace(ctx context.Context, folderID string, t *domain.Task, prefix string) error {
	original := t.File
	data, err := p.download(ctx, t, prefix)
	if err != nil {
		return err
	}
	res, err := p.route(ctx, t, prefix, data)
	if err != nil {
		return err
	}

	mimeType := mimeOrDefault(original.MimeType)
	up, err := p.gateway.Upload(ctx, drive.UploadRequest{
		Name:     original.Name,
		FolderID: folderID,
		MimeType: mimeType,
		Data:     res.Data,
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	replacement := p.uploadedFile(original.Name, mimeType, up, len(res.Data))

	if up.FileID != original.ID {
		if err := p.gateway.Delete(ctx, original.ID); err != nil {
			// The replacement exists remotely, so it is listed next to the original
			p.listing.ApplyOutcome(registry.Outcome{Kind: registry.OutcomeUploaded, FolderID: folderID, File: replacement})
			return fmt.Errorf("replacement uploaded as %s but deleting the original failed: %w", up.FileID, err)
		}
	}

	p.listing.ApplyOutcome(registry.Outcome{
		Kind:     registry.OutcomeReplaced,
		FolderID: folderID,
		FileID:   original.ID,
		File:     replacement,
	})
	return p.complete(t, replacement, up.ViewLink())
}

func (p *Pipeline) uploadCopy(ctx context.Context, folderID string, t *domain.Task, prefix string) error {
	original := t.File
	data, err := p.download(ctx, t, prefix)
	if err != nil {
		return err
	}
	res, err := p.route(ctx, t, prefix, data)
	if err != nil {
		return err
	}

	name := domain.CompressedCopyName(original.Name)
	mimeType := mimeOrDefault(original.MimeType)
	up, err := p.gateway.Upload(ctx, drive.UploadRequest{
		Name:     name,
		FolderID: folderID,
		MimeType: mimeType,
		Data:     res.Data,
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	created := p.uploadedFile(name, mimeType, up, len(res.Data))
	p.listing.ApplyOutcome(registry.Outcome{Kind: registry.OutcomeUploaded, FolderID: folderID, File: created})
	return p.complete(t, created, up.ViewLink())
}

func (p *Pipeline) uploadLocal(ctx context.Context, folderID string, t *domain.Task, prefix string) error {
	if err := p.tasks.Mutate(t, (*domain.Task).StartCompressing); err != nil {
		return err
	}
	fmt.Fprintf(p.output, "%s: compressing\n", prefix)

	data, err := p.local.ReadFile(ctx, t.LocalPath)
	if err != nil {
		return err
	}
	res, err := p.route(ctx, t, prefix, data)
	if err != nil {
		return err
	}

	name := domain.LocalUploadName(t.File.Name, res.Compressed)
	mimeType := mimeOrDefault(t.File.MimeType)
	up, err := p.gateway.Upload(ctx, drive.UploadRequest{
		Name:     name,
		FolderID: folderID,
		MimeType: mimeType,
		Data:     res.Data,
	})
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	created := p.uploadedFile(name, mimeType, up, len(res.Data))
	p.listing.ApplyOutcome(registry.Outcome{Kind: registry.OutcomeUploaded, FolderID: folderID, File: created})
	return p.complete(t, created, up.ViewLink())
}

// download moves the task to compressing and fetches the original bytes
func (p *Pipeline) download(ctx context.Context, t *domain.Task, prefix string) ([]byte, error) {
	if err := p.tasks.Mutate(t, (*domain.Task).StartCompressing); err != nil {
		return nil, err
	}
	fmt.Fprintf(p.output, "%s: compressing\n", prefix)

	fetched, err := p.fetcher.Fetch(ctx, t.File)
	if err != nil {
		return nil, fmt.Errorf("download failed: %w", err)
	}
	return fetched.Data, nil
}

// route compresses the payload and moves the task to uploading
func (p *Pipeline) route(ctx context.Context, t *domain.Task, prefix string, data []byte) (compression.Result, error) {
	res, err := p.compressor.Apply(ctx, t.File.Name, t.File.MimeType, data)
	if err != nil {
		return res, err
	}

	size := int64(len(res.Data))
	err = p.tasks.Mutate(t, func(task *domain.Task) error {
		task.Strategy = res.Strategy
		task.Notice = res.Notice
		task.OriginalSize = int64(len(data))
		return task.StartUploading(size)
	})
	if err != nil {
		return res, err
	}

	if res.Notice != "" {
		fmt.Fprintf(p.output, "%s: %s\n", prefix, res.Notice)
	}
	fmt.Fprintf(p.output, "%s: uploading %s (was %s)\n", prefix,
		humanize.Bytes(uint64(size)), humanize.Bytes(uint64(len(data))))
	return res, nil
}

func (p *Pipeline) complete(t *domain.Task, result drive.File, link string) error {
	return p.tasks.Mutate(t, func(task *domain.Task) error {
		return task.Complete(result, link)
	})
}

func (p *Pipeline) fail(t *domain.Task, err error) {
	ferr := p.tasks.Mutate(t, func(task *domain.Task) error {
		if task.Status.IsTerminal() {
			return nil
		}
		return task.Fail(err.Error())
	})
	if ferr != nil {
		p.logger.Error("failed to mark task as failed",
			zap.String("task_id", t.ID),
			zap.String("file", t.File.Name),
			zap.Error(ferr))
	}
}

// record folds the task's final state into the summary and metrics
func (p *Pipeline) record(op domain.Operation, summary *domain.Summary, t *domain.Task) {
	final := p.tasks.Snapshot(t)
	summary.Record(final)

	strategy := string(final.Strategy)
	if strategy == "" {
		strategy = "none"
	}
	p.recorder.FileProcessed(string(op), string(final.Status), strategy)
	if final.Status == domain.StatusCompleted && final.CompressedSize != nil {
		p.recorder.BytesUploaded(*final.CompressedSize)
		p.recorder.BytesSaved(final.BytesSaved())
	}
}

func (p *Pipeline) uploadedFile(name, mimeType string, up *drive.UploadResult, size int) drive.File {
	now := p.now()
	return drive.File{
		ID:             up.FileID,
		Name:           name,
		MimeType:       mimeType,
		Size:           int64(size),
		SizeKnown:      true,
		CreatedTime:    now,
		ModifiedTime:   now,
		WebViewLink:    up.ViewLink(),
		WebContentLink: up.ContentLink(),
	}
}

func batchResult(s *domain.Summary) string {
	switch {
	case s.Aborted:
		return "aborted"
	case s.Failed > 0 && s.Succeeded == 0:
		return "failed"
	case s.Failed > 0:
		return "partial"
	default:
		return "completed"
	}
}

func mimeOrDefault(mimeType string) string {
	if mimeType == "" {
		return drive.MimeTypeOctetStream
	}
	return mimeType
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context) {}

type nopRecorder struct{}

func (nopRecorder) FileProcessed(string, string, string) {}
func (nopRecorder) BytesSaved(int64) {}
func (nopRecorder) BytesUploaded(int64) {}
func (nopRecorder) BatchFinished(string, string, float64) {}
