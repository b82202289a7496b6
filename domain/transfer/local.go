package transfer

import "context"

// LocalFile describes a file on the user's machine queued for upload
type LocalFile struct {
	Path     string
	Name     string
	MimeType string
	Size     int64
}

// LocalFileSource reads files selected for a local upload.
// This is a port that can be implemented by different infrastructure adapters.
type LocalFileSource interface {
	// Stat describes a local file without reading its contents
	Stat(ctx context.Context, path string) (LocalFile, error)

	// ReadFile returns the full contents of a local file
	ReadFile(ctx context.Context, path string) ([]byte, error)
}
