package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	domain "drive-media-compressor/domain/drive"
	"drive-media-compressor/infrastructure/multipart"
	"drive-media-compressor/infrastructure/retry"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Default endpoints of the Drive v3 API
const (
	DefaultAPIBase    = "https://www.googleapis.com/drive/v3/"
	DefaultUploadBase = "https://www.googleapis.com/upload/drive/v3"
	DefaultTimeout    = 2 * time.Minute
)

const (
	listFields  = "id,name,size,mimeType,createdTime,modifiedTime,webViewLink,webContentLink,thumbnailLink"
	listOrderBy = "folder,modifiedTime desc"
	aboutFields = "user(displayName,emailAddress,photoLink),storageQuota(limit,usage,usageInDrive,usageInDriveTrash)"
)

// DriveService defines the interface for Google Drive API operations
// This allows mocking the Google Drive API in tests
type DriveService interface {
	ListFiles(ctx context.Context, query, fields, orderBy string, pageSize int64) ([]*drive.File, error)
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
	UploadMultipart(ctx context.Context, contentType string, body []byte) (int, []byte, error)
	DeleteFile(ctx context.Context, fileID string) error
	GetAbout(ctx context.Context, fields string) (*drive.About, error)
	FetchURL(ctx context.Context, url string) ([]byte, error)
}

// GoogleDriveService is the production implementation using the Google Drive API
type GoogleDriveService struct {
	service    *drive.Service
	httpClient *http.Client // carries the bearer credential
	plain      *http.Client // no credential, for public links
	uploadURL  string
}

// ListFiles lists files matching the query
func (s *GoogleDriveService) ListFiles(ctx context.Context, query, fields, orderBy string, pageSize int64) ([]*drive.File, error) {
	r, err := s.service.Files.List().
		Q(query).
		Fields(googleapi.Field("files(" + fields + ")")).
		OrderBy(orderBy).
		PageSize(pageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	return r.Files, nil
}

// DownloadFile downloads the media content of a file
func (s *GoogleDriveService) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	resp, err := s.service.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// UploadMultipart posts a prepared multipart/related body to the upload endpoint
func (s *GoogleDriveService) UploadMultipart(ctx context.Context, contentType string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(body))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, respBody, nil
}

// DeleteFile permanently deletes a file (bypasses trash)
func (s *GoogleDriveService) DeleteFile(ctx context.Context, fileID string) error {
	return s.service.Files.Delete(fileID).Context(ctx).Do()
}

// GetAbout retrieves account information
func (s *GoogleDriveService) GetAbout(ctx context.Context, fields string) (*drive.About, error) {
	return s.service.About.Get().Fields(googleapi.Field(fields)).Context(ctx).Do()
}

// FetchURL downloads a public content or thumbnail link
func (s *GoogleDriveService) FetchURL(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.plain.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// Client implements domain/drive.Gateway using the Google Drive API
type Client struct {
	driveService DriveService
	apiBase      string
	uploadBase   string
	timeout      time.Duration
	pageSize     int64
	retry        retry.Config
	logger       *zap.Logger
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithDriveService sets a custom drive service (for testing)
func WithDriveService(svc DriveService) ClientOption {
	return func(c *Client) {
		c.driveService = svc
	}
}

// WithEndpoints overrides the API and upload endpoints
func WithEndpoints(apiBase, uploadBase string) ClientOption {
	return func(c *Client) {
		if apiBase != "" {
			c.apiBase = apiBase
		}
		if uploadBase != "" {
			c.uploadBase = uploadBase
		}
	}
}

// WithTimeout bounds every call made by the client
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithPageSize sets the listing page size; values above the API maximum are clamped
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		c.pageSize = clampPageSize(n)
	}
}

// WithRetry sets the backoff used for read-only calls
func WithRetry(cfg retry.Config) ClientOption {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithLogger sets the diagnostics logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a new Google Drive client that authenticates every call
// with the given token source. The client never refreshes the credential.
// If no custom drive service is provided, it initializes a real one.
func NewClient(ctx context.Context, tokens oauth2.TokenSource, opts ...ClientOption) (*Client, error) {
	c := &Client{
		apiBase:    DefaultAPIBase,
		uploadBase: DefaultUploadBase,
		timeout:    DefaultTimeout,
		pageSize:   domain.MaxPageSize,
		retry:      retry.DefaultConfig(),
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(c)
	}
	c.retry.RetryIf = domain.IsTransient

	// If no custom drive service was provided, create a real one
	if c.driveService == nil {
		if tokens == nil {
			return nil, fmt.Errorf("a drive credential is required")
		}
		svc, err := newGoogleDriveService(ctx, tokens, c.apiBase, c.uploadBase)
		if err != nil {
			return nil, err
		}
		c.driveService = svc
	}

	return c, nil
}

// newGoogleDriveService creates a production Google Drive service
func newGoogleDriveService(ctx context.Context, tokens oauth2.TokenSource, apiBase, uploadBase string) (*GoogleDriveService, error) {
	httpClient := oauth2.NewClient(ctx, tokens)

	srv, err := drive.NewService(ctx,
		option.WithHTTPClient(httpClient),
		option.WithEndpoint(ensureTrailingSlash(apiBase)),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to create drive service: %w", err)
	}

	return &GoogleDriveService{
		service:    srv,
		httpClient: httpClient,
		plain:      &http.Client{},
		uploadURL:  strings.TrimSuffix(uploadBase, "/") + "/files?uploadType=multipart&fields=id,webViewLink",
	}, nil
}

// ListFiles implements domain/drive.Gateway
func (c *Client) ListFiles(ctx context.Context, folderID string) ([]domain.File, error) {
	if folderID == "" {
		folderID = domain.RootFolderID
	}
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))

	files, err := retry.DoWithResult(ctx, c.retry, func() ([]*drive.File, error) {
		callCtx, cancel := c.callContext(ctx)
		defer cancel()

		files, err := c.driveService.ListFiles(callCtx, query, listFields, listOrderBy, c.pageSize)
		if err != nil {
			err = classify("list", folderID, err)
			c.logger.Debug("list attempt failed", zap.String("folder_id", folderID), zap.Error(err))
			return nil, err
		}
		return files, nil
	})
	if err != nil {
		return nil, err
	}

	result := make([]domain.File, 0, len(files))
	for _, f := range files {
		result = append(result, toDomainFile(f))
	}
	domain.SortListing(result)
	return result, nil
}

// Download implements domain/drive.Gateway
func (c *Client) Download(ctx context.Context, fileID string) ([]byte, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	data, err := c.driveService.DownloadFile(callCtx, fileID)
	if err != nil {
		return nil, classify("download", fileID, err)
	}
	return data, nil
}

// uploadMetadata is the JSON metadata part of a multipart upload
type uploadMetadata struct {
	Name     string   `json:"name"`
	MimeType string   `json:"mimeType,omitempty"`
	Parents  []string `json:"parents,omitempty"`
}

// Upload implements domain/drive.Gateway
func (c *Client) Upload(ctx context.Context, req domain.UploadRequest) (*domain.UploadResult, error) {
	mimeType := req.MimeType
	if mimeType == "" {
		mimeType = domain.MimeTypeOctetStream
	}
	meta := uploadMetadata{Name: req.Name, MimeType: mimeType}
	if req.FolderID != "" {
		meta.Parents = []string{req.FolderID}
	}

	body, contentType, err := multipart.Encode(meta, req.Data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upload for %s: %w", req.Name, err)
	}

	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	status, respBody, err := c.driveService.UploadMultipart(callCtx, contentType, body)
	if err != nil {
		return nil, classify("upload", req.Name, err)
	}

	resp, err := multipart.DecodeUploadResponse(status, respBody)
	if err != nil {
		var respErr *multipart.ResponseError
		if errors.As(err, &respErr) {
			kind := domain.KindForStatus(respErr.StatusCode)
			if respErr.StatusCode >= 200 && respErr.StatusCode < 300 {
				kind = domain.ErrTransient
			}
			return nil, &domain.Error{Kind: kind, Op: "upload", FileID: req.Name, StatusCode: respErr.StatusCode, Message: respErr.Message, Err: err}
		}
		return nil, classify("upload", req.Name, err)
	}

	return &domain.UploadResult{FileID: resp.ID, WebViewLink: resp.WebViewLink}, nil
}

// Delete implements domain/drive.Gateway. A file that is already gone counts as deleted.
func (c *Client) Delete(ctx context.Context, fileID string) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	err := c.driveService.DeleteFile(callCtx, fileID)
	if err == nil {
		return nil
	}
	classified := classify("delete", fileID, err)
	if domain.IsNotFound(classified) {
		c.logger.Debug("file already deleted", zap.String("file_id", fileID))
		return nil
	}
	return classified
}

// About implements domain/drive.Gateway
func (c *Client) About(ctx context.Context) (*domain.Account, error) {
	about, err := retry.DoWithResult(ctx, c.retry, func() (*drive.About, error) {
		callCtx, cancel := c.callContext(ctx)
		defer cancel()

		about, err := c.driveService.GetAbout(callCtx, aboutFields)
		if err != nil {
			return nil, classify("about", "", err)
		}
		return about, nil
	})
	if err != nil {
		return nil, err
	}

	account := &domain.Account{}
	if q := about.StorageQuota; q != nil {
		account.Quota = domain.Quota{
			LimitBytes:        q.Limit,
			UsageBytes:        q.Usage,
			UsageInDriveBytes: q.UsageInDrive,
			UsageInTrashBytes: q.UsageInDriveTrash,
		}
	}
	if u := about.User; u != nil {
		account.User = domain.User{
			DisplayName:  u.DisplayName,
			EmailAddress: u.EmailAddress,
			PhotoLink:    u.PhotoLink,
		}
	}
	return account, nil
}

// FetchLink implements domain/drive.Gateway
func (c *Client) FetchLink(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, &domain.Error{Kind: domain.ErrNotFound, Op: "fetch link", Message: "no link"}
	}
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	data, err := c.driveService.FetchURL(callCtx, url)
	if err != nil {
		return nil, classify("fetch link", "", err)
	}
	return data, nil
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.timeout)
}

// classify maps a transport or API error onto the failure taxonomy
func classify(op, fileID string, err error) error {
	var typed *domain.Error
	if errors.As(err, &typed) {
		return typed
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &domain.Error{
			Kind:       domain.KindForStatus(apiErr.Code),
			Op:         op,
			FileID:     fileID,
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Err:        err,
		}
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	msg := ""
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		msg = "request timed out"
	}
	return &domain.Error{Kind: domain.ErrTransient, Op: op, FileID: fileID, Message: msg, Err: err}
}

// toDomainFile maps an API file onto the domain type
func toDomainFile(f *drive.File) domain.File {
	file := domain.File{
		ID:             f.Id,
		Name:           f.Name,
		MimeType:       f.MimeType,
		Size:           f.Size,
		CreatedTime:    parseTime(f.CreatedTime),
		ModifiedTime:   parseTime(f.ModifiedTime),
		ThumbnailLink:  f.ThumbnailLink,
		WebViewLink:    f.WebViewLink,
		WebContentLink: f.WebContentLink,
	}
	// size is absent for folders and native documents
	file.SizeKnown = f.Size > 0 || (!file.IsFolder() && !strings.HasPrefix(f.MimeType, "application/vnd.google-apps."))
	return file
}

// parseTime parses a Google Drive timestamp string
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func clampPageSize(n int) int64 {
	if n <= 0 || n > domain.MaxPageSize {
		return domain.MaxPageSize
	}
	return int64(n)
}

// escapeQuery escapes a value for use inside a quoted Drive query string
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

func ensureTrailingSlash(s string) string {
	if strings.HasSuffix(s, "/") {
		return s
	}
	return s + "/"
}

// Ensure Client implements domain/drive.Gateway
var _ domain.Gateway = (*Client)(nil)
