package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"drive-media-compressor/application/compression"
	"drive-media-compressor/application/registry"
	domaincompression "drive-media-compressor/domain/compression"
	"drive-media-compressor/domain/drive"
	domain "drive-media-compressor/domain/transfer"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const folderID = "folder1"

// fakeGateway keeps remote files in memory
type fakeGateway struct {
	mu          sync.Mutex
	data        map[string][]byte
	downloadErr map[string]error
	deleteErr   map[string]error
	uploadErr   error
	uploads     []drive.UploadRequest
	deleted     []string
	nextID      int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		data:        make(map[string][]byte),
		downloadErr: make(map[string]error),
		deleteErr:   make(map[string]error),
	}
}

func (g *fakeGateway) ListFiles(ctx context.Context, folderID string) ([]drive.File, error) {
	return nil, nil
}

func (g *fakeGateway) Download(ctx context.Context, fileID string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.downloadErr[fileID]; err != nil {
		return nil, err
	}
	data, ok := g.data[fileID]
	if !ok {
		return nil, &drive.Error{Kind: drive.ErrNotFound, Op: "download", FileID: fileID, StatusCode: 404}
	}
	return data, nil
}

func (g *fakeGateway) Upload(ctx context.Context, req drive.UploadRequest) (*drive.UploadResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.uploadErr != nil {
		return nil, g.uploadErr
	}
	g.nextID++
	id := fmt.Sprintf("new%d", g.nextID)
	req.Data = append([]byte(nil), req.Data...)
	g.uploads = append(g.uploads, req)
	g.data[id] = req.Data
	return &drive.UploadResult{FileID: id}, nil
}

func (g *fakeGateway) Delete(ctx context.Context, fileID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.deleteErr[fileID]; err != nil {
		return err
	}
	g.deleted = append(g.deleted, fileID)
	delete(g.data, fileID)
	return nil
}

func (g *fakeGateway) About(ctx context.Context) (*drive.Account, error) {
	return &drive.Account{}, nil
}

func (g *fakeGateway) FetchLink(ctx context.Context, url string) ([]byte, error) {
	return nil, &drive.Error{Kind: drive.ErrTransient, Op: "fetch link", StatusCode: 503}
}

// quarterCompressor keeps the first quarter of the input
type quarterCompressor struct {
	err error
}

func (c quarterCompressor) CompressImage(ctx context.Context, data []byte, mimeType string, opts domaincompression.ImageOptions) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return data[:len(data)/4], nil
}

func (c quarterCompressor) CompressVideo(ctx context.Context, data []byte, mimeType string, opts domaincompression.VideoOptions) ([]byte, error) {
	if c.err != nil {
		return nil, c.err
	}
	return data[:len(data)/4], nil
}

type countingPublisher struct {
	mu    sync.Mutex
	count int
}

func (p *countingPublisher) Publish(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.count++
}

func (p *countingPublisher) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

type fakeRecorder struct {
	processed map[string]int
	saved     int64
	batches   map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{processed: map[string]int{}, batches: map[string]int{}}
}

func (r *fakeRecorder) FileProcessed(operation, status, strategy string) {
	r.processed[status+"/"+strategy]++
}
func (r *fakeRecorder) BytesSaved(n int64) { r.saved += n }
func (r *fakeRecorder) BytesUploaded(n int64) {}
func (r *fakeRecorder) BatchFinished(operation, result string, seconds float64) {
	r.batches[operation+"/"+result]++
}

// fakeLocal serves local files from memory
type fakeLocal map[string]domain.LocalFile

func (l fakeLocal) Stat(ctx context.Context, path string) (domain.LocalFile, error) {
	f, ok := l[path]
	if !ok {
		return domain.LocalFile{}, fmt.Errorf("file does not exist: %s", path)
	}
	return f, nil
}

func (l fakeLocal) ReadFile(ctx context.Context, path string) ([]byte, error) {
	f, ok := l[path]
	if !ok {
		return nil, fmt.Errorf("file does not exist: %s", path)
	}
	return bytes.Repeat([]byte{0x42}, int(f.Size)), nil
}

type fixture struct {
	gw        *fakeGateway
	reg       *registry.Registry
	publisher *countingPublisher
	recorder  *fakeRecorder
	out       *bytes.Buffer
	pipeline  *Pipeline
}

func newFixture(t *testing.T, files []drive.File, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		gw:        newFakeGateway(),
		reg:       registry.New(),
		publisher: &countingPublisher{},
		recorder:  newFakeRecorder(),
		out:       &bytes.Buffer{},
	}
	for _, file := range files {
		f.gw.data[file.ID] = bytes.Repeat([]byte{0x7F}, int(file.Size))
	}
	require.True(t, f.reg.CompleteRefresh(f.reg.BeginRefresh(folderID), files))

	router := compression.NewRouter(quarterCompressor{}, quarterCompressor{})
	base := []Option{
		WithPublisher(f.publisher),
		WithRecorder(f.recorder),
		WithOutput(f.out),
		WithClock(func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }),
	}
	f.pipeline = NewPipeline(f.gw, router, f.reg, append(base, opts...)...)
	return f
}

func remote(id, name, mimeType string, size int64) drive.File {
	return drive.File{ID: id, Name: name, MimeType: mimeType, Size: size, SizeKnown: true}
}

func listingIDs(reg *registry.Registry) []string {
	var out []string
	for _, f := range reg.Listing(folderID) {
		out = append(out, f.ID)
	}
	return out
}

func TestPipeline_ReplaceSmallPNGIsPassthrough(t *testing.T) {
	png := remote("p1", "icon.png", "image/png", 10*1024)
	other := remote("o1", "other.pdf", "application/pdf", 10)
	f := newFixture(t, []drive.File{other, png})
	original := append([]byte(nil), f.gw.data["p1"]...)

	summary, err := f.pipeline.CompressAndReplace(context.Background(), folderID, []string{"p1"})
	require.NoError(t, err)

	require.Len(t, f.gw.uploads, 1)
	up := f.gw.uploads[0]
	assert.Equal(t, original, up.Data)
	assert.Equal(t, "icon.png", up.Name)
	assert.Equal(t, folderID, up.FolderID)
	assert.Equal(t, "image/png", up.MimeType)
	assert.Equal(t, []string{"p1"}, f.gw.deleted)

	listing := f.reg.Listing(folderID)
	require.Len(t, listing, 2)
	assert.Equal(t, "new1", listing[1].ID)
	assert.Equal(t, int64(10*1024), listing[1].Size)

	tasks := f.pipeline.Tasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, domaincompression.Passthrough, tasks[0].Strategy)
	assert.Equal(t, domain.StatusCompleted, tasks[0].Status)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Zero(t, summary.BytesSaved)
	assert.Equal(t, 1, f.publisher.Count())
}

// clearingGateway removes the in-flight task from the working set while the
// upload is running
type clearingGateway struct {
	*fakeGateway
	pipeline *Pipeline
}

func (g *clearingGateway) Upload(ctx context.Context, req drive.UploadRequest) (*drive.UploadResult, error) {
	for _, task := range g.pipeline.Tasks() {
		g.pipeline.RemoveTask(task.ID)
	}
	return g.fakeGateway.Upload(ctx, req)
}

func TestPipeline_TaskClearedMidBatchStillCompletes(t *testing.T) {
	photo := remote("a", "a.jpg", "image/jpeg", 400*1024)
	f := newFixture(t, []drive.File{photo})
	gw := &clearingGateway{fakeGateway: f.gw}
	router := compression.NewRouter(quarterCompressor{}, quarterCompressor{})
	p := NewPipeline(gw, router, f.reg, WithPublisher(f.publisher), WithRecorder(f.recorder), WithOutput(f.out))
	gw.pipeline = p

	summary, err := p.CompressAndReplace(context.Background(), folderID, []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Equal(t, int64(300*1024), summary.BytesSaved)
	assert.Equal(t, []string{"a"}, f.gw.deleted)
	assert.Equal(t, []string{"new1"}, listingIDs(f.reg))
	assert.Empty(t, p.Tasks())
	assert.Contains(t, f.out.String(), "[1/1] a.jpg: completed")
	assert.NotContains(t, f.out.String(), "task not found")
}

func TestPipeline_ReplaceShrinksLargeImage(t *testing.T) {
	photo := remote("a", "photo.jpg", "image/jpeg", 400*1024)
	f := newFixture(t, []drive.File{photo})

	summary, err := f.pipeline.CompressAndReplace(context.Background(), folderID, []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, int64(300*1024), summary.BytesSaved)
	listing := f.reg.Listing(folderID)
	require.Len(t, listing, 1)
	assert.Equal(t, int64(100*1024), listing[0].Size)
	assert.Equal(t, "photo.jpg", listing[0].Name)
	assert.Equal(t, 1, f.recorder.processed["completed/image"])
	assert.Equal(t, int64(300*1024), f.recorder.saved)
}

func TestPipeline_BatchIsolation(t *testing.T) {
	files := []drive.File{
		remote("a", "a.jpg", "image/jpeg", 100*1024),
		remote("b", "b.jpg", "image/jpeg", 100*1024),
		remote("c", "c.mp4", "video/mp4", 100*1024),
	}
	f := newFixture(t, files)
	f.gw.downloadErr["b"] = &drive.Error{Kind: drive.ErrTransient, Op: "download", FileID: "b", StatusCode: 500}

	summary, err := f.pipeline.CompressAndUpload(context.Background(), folderID, []string{"a", "b", "c"})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, "b.jpg", summary.Failures[0].Name)
	assert.Contains(t, summary.Failures[0].Reason, "download failed")
	assert.False(t, summary.Aborted)

	var names []string
	for _, up := range f.gw.uploads {
		names = append(names, up.Name)
	}
	assert.Equal(t, []string{"a_compressed.jpg", "c_compressed.mp4"}, names)
	assert.Equal(t, []string{"a", "b", "c", "new1", "new2"}, listingIDs(f.reg))
	assert.Empty(t, f.gw.deleted)
	assert.Equal(t, 1, f.publisher.Count())
	assert.Equal(t, 1, f.recorder.batches["compress-and-upload/partial"])

	out := f.out.String()
	assert.Contains(t, out, "[1/3] a.jpg: completed")
	assert.Contains(t, out, "[2/3] b.jpg: error: download failed")
	assert.Contains(t, out, "[3/3] c.mp4: completed")
}

func TestPipeline_AuthFailureSkipsRemaining(t *testing.T) {
	files := []drive.File{
		remote("a", "a.jpg", "image/jpeg", 100*1024),
		remote("b", "b.jpg", "image/jpeg", 100*1024),
		remote("c", "c.jpg", "image/jpeg", 100*1024),
	}
	f := newFixture(t, files)
	f.gw.downloadErr["b"] = &drive.Error{Kind: drive.ErrAuth, Op: "download", FileID: "b", StatusCode: 401}

	summary, err := f.pipeline.CompressAndReplace(context.Background(), folderID, []string{"a", "b", "c"})
	require.Error(t, err)
	assert.True(t, drive.IsAuth(err))

	assert.True(t, summary.Aborted)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, ErrReconnectRequired.Error(), summary.Failures[1].Reason)
	assert.Len(t, f.gw.uploads, 1)
	assert.Equal(t, 1, f.publisher.Count())
	assert.Equal(t, 1, f.recorder.batches["compress-and-replace/aborted"])
}

func TestPipeline_ReplaceDeleteFailureKeepsBoth(t *testing.T) {
	photo := remote("a", "photo.jpg", "image/jpeg", 100*1024)
	f := newFixture(t, []drive.File{photo})
	f.gw.deleteErr["a"] = &drive.Error{Kind: drive.ErrPermission, Op: "delete", FileID: "a", StatusCode: 403}

	summary, err := f.pipeline.CompressAndReplace(context.Background(), folderID, []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Failures[0].Reason, "new1")
	assert.Equal(t, []string{"a", "new1"}, listingIDs(f.reg))
}

func TestPipeline_UploadFailure(t *testing.T) {
	f := newFixture(t, []drive.File{remote("a", "a.jpg", "image/jpeg", 100*1024)})
	f.gw.uploadErr = &drive.Error{Kind: drive.ErrTransient, Op: "upload", StatusCode: 500}

	summary, err := f.pipeline.CompressAndReplace(context.Background(), folderID, []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Contains(t, summary.Failures[0].Reason, "upload failed")
	assert.Empty(t, f.gw.deleted)
	assert.Equal(t, []string{"a"}, listingIDs(f.reg))

	tasks := f.pipeline.Tasks()
	require.Len(t, tasks, 1)
	require.NotNil(t, tasks[0].CompressedSize)
	assert.Equal(t, domain.StatusError, tasks[0].Status)
}

func TestPipeline_UnknownIDFails(t *testing.T) {
	f := newFixture(t, []drive.File{remote("a", "a.jpg", "image/jpeg", 100*1024)})

	summary, err := f.pipeline.CompressAndUpload(context.Background(), folderID, []string{"missing", "a"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, ErrNotInListing.Error(), summary.Failures[0].Reason)
}

func TestPipeline_CompressionFailureUploadsOriginal(t *testing.T) {
	photo := remote("a", "photo.webp", "image/webp", 100*1024)
	f := newFixture(t, []drive.File{photo})
	f.pipeline.compressor = compression.NewRouter(quarterCompressor{err: domaincompression.ErrUnsupportedFormat}, nil)

	summary, err := f.pipeline.CompressAndUpload(context.Background(), folderID, []string{"a"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	require.Len(t, summary.Notices, 1)
	assert.Contains(t, summary.Notices[0], "photo.webp uploaded without compression")
	require.Len(t, f.gw.uploads, 1)
	assert.Len(t, f.gw.uploads[0].Data, 100*1024)
}

func TestPipeline_UploadLocalScenario(t *testing.T) {
	local := fakeLocal{
		"/in/photo.jpg":  {Path: "/in/photo.jpg", Name: "photo.jpg", MimeType: "image/jpeg", Size: 2 * 1024 * 1024},
		"/in/clip.mp4":   {Path: "/in/clip.mp4", Name: "clip.mp4", MimeType: "video/mp4", Size: 4 * 1024 * 1024},
		"/in/report.pdf": {Path: "/in/report.pdf", Name: "report.pdf", MimeType: "application/pdf", Size: 300 * 1024},
	}
	f := newFixture(t, nil, WithLocalFiles(local))

	summary, err := f.pipeline.UploadLocal(context.Background(), folderID,
		[]string{"/in/photo.jpg", "/in/clip.mp4", "/in/report.pdf"})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Succeeded)
	require.Len(t, f.gw.uploads, 3)
	assert.Equal(t, "compressed_photo.jpg", f.gw.uploads[0].Name)
	assert.Equal(t, "compressed_clip.mp4", f.gw.uploads[1].Name)
	assert.Equal(t, "report.pdf", f.gw.uploads[2].Name)
	assert.Len(t, f.gw.uploads[2].Data, 300*1024)
	for i, up := range f.gw.uploads {
		assert.LessOrEqual(t, int64(len(up.Data)), local[[]string{"/in/photo.jpg", "/in/clip.mp4", "/in/report.pdf"}[i]].Size)
	}

	tasks := f.pipeline.Tasks()
	require.Len(t, tasks, 3)
	assert.Equal(t, domaincompression.ImageCompress, tasks[0].Strategy)
	assert.Equal(t, domaincompression.VideoCompress, tasks[1].Strategy)
	assert.Equal(t, domaincompression.Passthrough, tasks[2].Strategy)
	assert.Equal(t, []string{"new1", "new2", "new3"}, listingIDs(f.reg))
}

func TestPipeline_UploadLocalMissingFile(t *testing.T) {
	f := newFixture(t, nil, WithLocalFiles(fakeLocal{}))

	summary, err := f.pipeline.UploadLocal(context.Background(), folderID, []string{"/in/gone.jpg"})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, "gone.jpg", summary.Failures[0].Name)
}

func TestPipeline_UploadLocalWithoutSource(t *testing.T) {
	f := newFixture(t, nil)

	summary, err := f.pipeline.UploadLocal(context.Background(), folderID, []string{"/in/a.jpg"})
	require.NoError(t, err)
	assert.Equal(t, ErrNoLocalSource.Error(), summary.Failures[0].Reason)
}

func TestPipeline_CancelledBeforeStart(t *testing.T) {
	f := newFixture(t, []drive.File{remote("a", "a.jpg", "image/jpeg", 100*1024)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	summary, err := f.pipeline.CompressAndReplace(ctx, folderID, []string{"a"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, 1, summary.Failed)
	assert.Empty(t, f.gw.uploads)
	assert.Equal(t, 1, f.publisher.Count())
}

func TestPipeline_StartSurvivesCallerCancellation(t *testing.T) {
	f := newFixture(t, []drive.File{remote("a", "a.jpg", "image/jpeg", 100*1024)})
	ctx, cancel := context.WithCancel(context.Background())

	called := make(chan struct{})
	h := f.pipeline.StartCompressAndUpload(ctx, folderID, []string{"a"}, func(s *domain.Summary, err error) {
		close(called)
	})
	cancel()

	summary, err := h.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	<-called
}

func TestPipeline_DetachedHandleSkipsCallback(t *testing.T) {
	f := newFixture(t, []drive.File{remote("a", "a.jpg", "image/jpeg", 100*1024)})

	// Hold the queue so the batch cannot finish before Detach
	release := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = f.pipeline.queue.Do(context.Background(), func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	var called bool
	h := f.pipeline.StartCompressAndUpload(context.Background(), folderID, []string{"a"}, func(*domain.Summary, error) {
		called = true
	})
	h.Detach()
	close(release)

	<-h.Done()
	assert.False(t, called)
	assert.Equal(t, []string{"a", "new1"}, listingIDs(f.reg))
}

func TestPipeline_TaskWorkingSet(t *testing.T) {
	f := newFixture(t, []drive.File{remote("a", "a.jpg", "image/jpeg", 100*1024)})

	_, err := f.pipeline.CompressAndUpload(context.Background(), folderID, []string{"a", "missing"})
	require.NoError(t, err)
	require.Len(t, f.pipeline.Tasks(), 2)

	f.pipeline.RemoveTask(f.pipeline.Tasks()[0].ID)
	assert.Len(t, f.pipeline.Tasks(), 1)
	assert.Equal(t, 1, f.pipeline.ClearFinished())
	assert.Empty(t, f.pipeline.Tasks())
}

func TestPipeline_ProgressLines(t *testing.T) {
	f := newFixture(t, []drive.File{remote("a", "a.jpg", "image/jpeg", 100*1024)})

	_, err := f.pipeline.CompressAndReplace(context.Background(), folderID, []string{"a"})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(f.out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "[1/1] a.jpg: compressing", lines[0])
	assert.Equal(t, "[1/1] a.jpg: uploading 26 kB (was 102 kB)", lines[1])
	assert.Equal(t, "[1/1] a.jpg: completed", lines[2])
}

func TestQueue_Serializes(t *testing.T) {
	q := NewQueue()
	assert.False(t, q.Busy())

	inside := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = q.Do(context.Background(), func(ctx context.Context) error {
			close(inside)
			<-release
			return nil
		})
	}()
	<-inside
	assert.True(t, q.Busy())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := q.Do(ctx, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	require.Eventually(t, func() bool { return !q.Busy() }, time.Second, time.Millisecond)
}
