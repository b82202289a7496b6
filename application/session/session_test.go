package session

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"testing"

	"drive-media-compressor/application/compression"
	"drive-media-compressor/application/fetch"
	"drive-media-compressor/domain/drive"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryGateway is a tiny in-memory Drive
type memoryGateway struct {
	mu          sync.Mutex
	folders     map[string][]drive.File
	data        map[string][]byte
	listCalls   map[string]int
	listErr     error
	downloadErr error
	deleteErr   map[string]error
	nextID      int
}

func newMemoryGateway() *memoryGateway {
	return &memoryGateway{
		folders:   make(map[string][]drive.File),
		data:      make(map[string][]byte),
		listCalls: make(map[string]int),
		deleteErr: make(map[string]error),
	}
}

func (g *memoryGateway) add(folderID string, f drive.File) {
	g.folders[folderID] = append(g.folders[folderID], f)
	g.data[f.ID] = bytes.Repeat([]byte{1}, int(f.Size))
}

func (g *memoryGateway) ListFiles(ctx context.Context, folderID string) ([]drive.File, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.listCalls[folderID]++
	if g.listErr != nil {
		return nil, g.listErr
	}
	out := make([]drive.File, len(g.folders[folderID]))
	copy(out, g.folders[folderID])
	return out, nil
}

func (g *memoryGateway) Download(ctx context.Context, fileID string) ([]byte, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.downloadErr != nil {
		return nil, g.downloadErr
	}
	data, ok := g.data[fileID]
	if !ok {
		return nil, &drive.Error{Kind: drive.ErrNotFound, Op: "download", FileID: fileID}
	}
	return data, nil
}

func (g *memoryGateway) Upload(ctx context.Context, req drive.UploadRequest) (*drive.UploadResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	id := fmt.Sprintf("up%d", g.nextID)
	g.folders[req.FolderID] = append(g.folders[req.FolderID], drive.File{
		ID: id, Name: req.Name, MimeType: req.MimeType, Size: int64(len(req.Data)), SizeKnown: true,
	})
	g.data[id] = req.Data
	return &drive.UploadResult{FileID: id}, nil
}

func (g *memoryGateway) Delete(ctx context.Context, fileID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.deleteErr[fileID]; err != nil {
		return err
	}
	for folder, files := range g.folders {
		for i, f := range files {
			if f.ID == fileID {
				g.folders[folder] = append(files[:i:i], files[i+1:]...)
				break
			}
		}
	}
	delete(g.data, fileID)
	return nil
}

func (g *memoryGateway) About(ctx context.Context) (*drive.Account, error) {
	return &drive.Account{
		Quota: drive.Quota{LimitBytes: 15 << 30, UsageBytes: 1 << 30},
		User:  drive.User{DisplayName: "Jane Doe", EmailAddress: "jane@example.com"},
	}, nil
}

func (g *memoryGateway) FetchLink(ctx context.Context, url string) ([]byte, error) {
	return nil, &drive.Error{Kind: drive.ErrTransient, Op: "fetch link"}
}

func (g *memoryGateway) calls(folderID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.listCalls[folderID]
}

func newSession(t *testing.T, gw *memoryGateway) *Session {
	t.Helper()
	s := New(Dependencies{Gateway: gw, Compressor: compression.NewRouter(nil, nil)})
	t.Cleanup(s.Close)
	require.NoError(t, s.Refresh(context.Background()))
	return s
}

func TestSession_BatchPublishesRefresh(t *testing.T) {
	gw := newMemoryGateway()
	gw.add(drive.RootFolderID, drive.File{ID: "a", Name: "a.pdf", MimeType: "application/pdf", Size: 10})
	s := newSession(t, gw)
	require.Equal(t, 1, gw.calls(drive.RootFolderID))

	summary, err := s.Pipeline().CompressAndUpload(context.Background(), drive.RootFolderID, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)

	assert.Equal(t, 2, gw.calls(drive.RootFolderID))
	listing := s.Registry().Listing(drive.RootFolderID)
	require.Len(t, listing, 2)
	assert.Equal(t, "a_compressed.pdf", listing[1].Name)
}

func TestSession_CloseStopsRefreshing(t *testing.T) {
	gw := newMemoryGateway()
	s := newSession(t, gw)

	s.Close()
	s.Close()
	s.Channel().Publish(context.Background())
	assert.Equal(t, 1, gw.calls(drive.RootFolderID))
	assert.Zero(t, s.Channel().Len())
}

func TestSession_RefreshFailureKeepsListing(t *testing.T) {
	gw := newMemoryGateway()
	gw.add(drive.RootFolderID, drive.File{ID: "a", Name: "a.pdf"})
	s := newSession(t, gw)

	gw.listErr = &drive.Error{Kind: drive.ErrTransient, Op: "list"}
	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, drive.IsTransient(err))
	assert.Len(t, s.Registry().Listing(drive.RootFolderID), 1)
}

func TestSession_EnterLoadsFolder(t *testing.T) {
	gw := newMemoryGateway()
	gw.add(drive.RootFolderID, drive.File{ID: "f1", Name: "Photos", MimeType: drive.MimeTypeFolder})
	gw.add("f1", drive.File{ID: "p", Name: "p.jpg", MimeType: "image/jpeg", Size: 5})
	s := newSession(t, gw)

	require.NoError(t, s.Enter(context.Background(), "f1"))
	assert.Equal(t, "f1", s.Browser().FolderID())
	assert.Len(t, s.Browser().Listing(), 1)
	assert.Equal(t, 1, gw.calls("f1"))

	require.NoError(t, s.Up(context.Background()))
	assert.Equal(t, 1, gw.calls(drive.RootFolderID))
}

func TestSession_JumpToBreadcrumb(t *testing.T) {
	gw := newMemoryGateway()
	gw.add(drive.RootFolderID, drive.File{ID: "f1", Name: "Photos", MimeType: drive.MimeTypeFolder})
	gw.add("f1", drive.File{ID: "f2", Name: "2026", MimeType: drive.MimeTypeFolder})
	s := newSession(t, gw)
	ctx := context.Background()

	require.NoError(t, s.Enter(ctx, "f1"))
	require.NoError(t, s.Enter(ctx, "f2"))
	assert.Equal(t, "My Drive / Photos / 2026", s.Browser().Path().String())

	require.NoError(t, s.JumpTo(ctx, 0))
	assert.Equal(t, drive.RootFolderID, s.Browser().FolderID())
	assert.Equal(t, 1, gw.calls(drive.RootFolderID))
}

func TestSession_Dashboard(t *testing.T) {
	gw := newMemoryGateway()
	gw.add(drive.RootFolderID, drive.File{ID: "v", MimeType: "video/mp4", Size: 100})
	gw.add(drive.RootFolderID, drive.File{ID: "i", MimeType: "image/png", Size: 20})
	s := newSession(t, gw)

	d, err := s.Dashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", d.Account.User.EmailAddress)
	assert.Equal(t, 2, d.Stats.TotalFiles)
	assert.Equal(t, int64(120), d.Stats.TotalBytes)
	assert.Equal(t, "My Drive", d.Path.String())
}

func TestSession_DeleteIsIdempotent(t *testing.T) {
	gw := newMemoryGateway()
	gw.add(drive.RootFolderID, drive.File{ID: "a", Name: "a.jpg"})
	gw.add(drive.RootFolderID, drive.File{ID: "b", Name: "b.jpg"})
	s := newSession(t, gw)

	res, err := s.Delete(context.Background(), drive.RootFolderID, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Deleted)
	after := s.Registry().Listing(drive.RootFolderID)

	res, err = s.Delete(context.Background(), drive.RootFolderID, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, res.Deleted)
	assert.Equal(t, after, s.Registry().Listing(drive.RootFolderID))
}

func TestSession_DeleteStopsOnAuth(t *testing.T) {
	gw := newMemoryGateway()
	gw.add(drive.RootFolderID, drive.File{ID: "a", Name: "a.jpg"})
	gw.add(drive.RootFolderID, drive.File{ID: "b", Name: "b.jpg"})
	gw.deleteErr["a"] = &drive.Error{Kind: drive.ErrAuth, Op: "delete", FileID: "a", StatusCode: 401}
	s := newSession(t, gw)

	res, err := s.Delete(context.Background(), drive.RootFolderID, []string{"a", "b"})
	require.Error(t, err)
	assert.True(t, drive.IsAuth(err))
	assert.Empty(t, res.Deleted)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "a.jpg", res.Failures[0].Name)
	assert.Len(t, s.Registry().Listing(drive.RootFolderID), 2)
}

func TestSession_PreviewFallsBackToPlaceholder(t *testing.T) {
	gw := newMemoryGateway()
	gw.add(drive.RootFolderID, drive.File{ID: "v", Name: "v.mp4", MimeType: "video/mp4", WebContentLink: "https://drive.example/v"})
	gw.downloadErr = &drive.Error{Kind: drive.ErrTransient, Op: "download", FileID: "v", StatusCode: 503}
	s := newSession(t, gw)

	_, res, err := s.Preview(context.Background(), drive.RootFolderID, "v")
	require.NoError(t, err)
	assert.Equal(t, "placeholder", res.Source)
	assert.Equal(t, fetch.PlaceholderSVG, res.Data)

	_, _, err = s.Preview(context.Background(), drive.RootFolderID, "missing")
	assert.Error(t, err)
}

func TestSession_PreviewStopsOnNotFound(t *testing.T) {
	gw := newMemoryGateway()
	gw.add(drive.RootFolderID, drive.File{ID: "gone", Name: "x.jpg", MimeType: "image/jpeg", ThumbnailLink: "https://drive.example/t"})
	s := newSession(t, gw)
	delete(gw.data, "gone")

	_, _, err := s.Preview(context.Background(), drive.RootFolderID, "gone")
	assert.True(t, drive.IsNotFound(err))
}

func TestSession_PreviewServesDownload(t *testing.T) {
	gw := newMemoryGateway()
	gw.add(drive.RootFolderID, drive.File{ID: "p", Name: "p.jpg", MimeType: "image/jpeg", Size: 3})
	s := newSession(t, gw)

	file, res, err := s.Preview(context.Background(), drive.RootFolderID, "p")
	require.NoError(t, err)
	assert.Equal(t, "p.jpg", file.Name)
	assert.Equal(t, "download", res.Source)
	assert.Len(t, res.Data, 3)

	open, ok := s.Registry().Preview()
	require.True(t, ok)
	assert.Equal(t, "p", open.ID)
}
