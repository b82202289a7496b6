package drive

import "context"

// MaxPageSize is the largest listing page the gateway will request
const MaxPageSize = 100

// Gateway defines the operations the pipeline needs from the remote drive.
// This is a port that can be implemented by different infrastructure adapters.
// Implementations return *Error values classified by the failure taxonomy.
type Gateway interface {
	// ListFiles lists non-trashed children of a folder, folders first,
	// then most recently modified first
	ListFiles(ctx context.Context, folderID string) ([]File, error)

	// Download returns the raw bytes of a file
	Download(ctx context.Context, fileID string) ([]byte, error)

	// Upload creates a new file from bytes
	Upload(ctx context.Context, req UploadRequest) (*UploadResult, error)

	// Delete permanently deletes a file. A file that is already gone is
	// reported as success.
	Delete(ctx context.Context, fileID string) error

	// About returns storage quota and account owner
	About(ctx context.Context) (*Account, error)

	// FetchLink downloads a content or thumbnail link without the bearer credential
	FetchLink(ctx context.Context, url string) ([]byte, error)
}

// UploadRequest contains the parameters needed to upload bytes to Drive
type UploadRequest struct {
	Name     string // Target filename in Drive
	FolderID string // Parent folder ID
	MimeType string // MIME type of the payload
	Data     []byte
}

// UploadResult contains the result of a successful upload
type UploadResult struct {
	FileID      string
	WebViewLink string
}

// ViewLink returns the Drive view URL, deriving one when the API omitted it
func (r UploadResult) ViewLink() string {
	if r.WebViewLink != "" {
		return r.WebViewLink
	}
	return "https://drive.google.com/file/d/" + r.FileID + "/view"
}

// ContentLink returns the direct content URL for an uploaded file
func (r UploadResult) ContentLink() string {
	return "https://drive.google.com/uc?id=" + r.FileID
}
