//go:build integration

package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"drive-media-compressor/infrastructure/drive"
	"drive-media-compressor/infrastructure/multipart"

	googledrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// memoryDriveService is an in-memory drive.DriveService. Uploads are decoded
// with the same multipart codec the client encodes them with.
type memoryDriveService struct {
	mu       sync.Mutex
	folders  map[string][]*googledrive.File
	content  map[string][]byte
	links    map[string][]byte // public content and thumbnail links
	uploads  []uploadedFile
	deleted  []string
	nextID   int
	failName map[string]bool // uploads of these names fail with 500
	denied   map[string]bool // downloads of these ids fail with 403
	quota    googledrive.AboutStorageQuota

	expired         bool // every call fails with 401
	expireAfterList bool // the next listing succeeds, then the credential expires
}

type uploadedFile struct {
	ID       string
	Name     string
	MimeType string
	FolderID string
	Data     []byte
}

func newMemoryDriveService() *memoryDriveService {
	return &memoryDriveService{
		folders:  make(map[string][]*googledrive.File),
		content:  make(map[string][]byte),
		links:    make(map[string][]byte),
		failName: make(map[string]bool),
		denied:   make(map[string]bool),
		nextID:   1,
	}
}

func (m *memoryDriveService) add(folderID string, f *googledrive.File, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders[folderID] = append(m.folders[folderID], f)
	if data != nil {
		m.content[f.Id] = data
	}
}

func (m *memoryDriveService) authError() error {
	return &googleapi.Error{Code: http.StatusUnauthorized, Message: "Invalid Credentials"}
}

func (m *memoryDriveService) ListFiles(ctx context.Context, query, fields, orderBy string, pageSize int64) ([]*googledrive.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired {
		return nil, m.authError()
	}
	// query is "'<id>' in parents and trashed = false"
	folderID, _, _ := strings.Cut(strings.TrimPrefix(query, "'"), "'")
	if m.expireAfterList {
		m.expired = true
	}
	files := m.folders[folderID]
	out := make([]*googledrive.File, len(files))
	copy(out, files)
	return out, nil
}

func (m *memoryDriveService) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired {
		return nil, m.authError()
	}
	if m.denied[fileID] {
		return nil, &googleapi.Error{Code: http.StatusForbidden, Message: "download denied"}
	}
	data, ok := m.content[fileID]
	if !ok {
		return nil, &googleapi.Error{Code: http.StatusNotFound, Message: "File not found: " + fileID}
	}
	return data, nil
}

func (m *memoryDriveService) UploadMultipart(ctx context.Context, contentType string, body []byte) (int, []byte, error) {
	meta, payload, err := multipart.Decode(contentType, body)
	if err != nil {
		return http.StatusBadRequest, []byte(`{"error":{"code":400,"message":"bad multipart body"}}`), nil
	}
	var md struct {
		Name     string   `json:"name"`
		MimeType string   `json:"mimeType"`
		Parents  []string `json:"parents"`
	}
	if err := json.Unmarshal(meta.Data, &md); err != nil {
		return http.StatusBadRequest, []byte(`{"error":{"code":400,"message":"bad metadata"}}`), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired {
		return http.StatusUnauthorized, []byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`), nil
	}
	if m.failName[md.Name] {
		return http.StatusInternalServerError, []byte(`{"error":{"code":500,"message":"Backend Error"}}`), nil
	}

	id := fmt.Sprintf("uploaded-%d", m.nextID)
	m.nextID++
	folderID := "root"
	if len(md.Parents) > 0 {
		folderID = md.Parents[0]
	}
	m.folders[folderID] = append(m.folders[folderID], &googledrive.File{
		Id:           id,
		Name:         md.Name,
		MimeType:     md.MimeType,
		Size:         int64(len(payload.Data)),
		ModifiedTime: "2026-10-16T12:00:00Z",
	})
	m.content[id] = payload.Data
	m.uploads = append(m.uploads, uploadedFile{ID: id, Name: md.Name, MimeType: md.MimeType, FolderID: folderID, Data: payload.Data})

	return http.StatusOK, []byte(fmt.Sprintf(`{"id":%q,"webViewLink":"https://drive.google.com/file/d/%s/view"}`, id, id)), nil
}

func (m *memoryDriveService) DeleteFile(ctx context.Context, fileID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired {
		return m.authError()
	}
	for folderID, files := range m.folders {
		for i, f := range files {
			if f.Id == fileID {
				m.folders[folderID] = append(files[:i:i], files[i+1:]...)
				delete(m.content, fileID)
				m.deleted = append(m.deleted, fileID)
				return nil
			}
		}
	}
	return &googleapi.Error{Code: http.StatusNotFound, Message: "File not found: " + fileID}
}

func (m *memoryDriveService) GetAbout(ctx context.Context, fields string) (*googledrive.About, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired {
		return nil, m.authError()
	}
	q := m.quota
	return &googledrive.About{
		StorageQuota: &q,
		User:         &googledrive.User{DisplayName: "Test User", EmailAddress: "test@example.com"},
	}, nil
}

func (m *memoryDriveService) FetchURL(ctx context.Context, url string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.links[url]
	if !ok {
		return nil, &googleapi.Error{Code: http.StatusNotFound, Message: "no such link"}
	}
	return data, nil
}

func (m *memoryDriveService) names(folderID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var names []string
	for _, f := range m.folders[folderID] {
		names = append(names, f.Name)
	}
	return names
}

func (m *memoryDriveService) upload(name string) (uploadedFile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.uploads {
		if u.Name == name {
			return u, true
		}
	}
	return uploadedFile{}, false
}

var _ drive.DriveService = (*memoryDriveService)(nil)
