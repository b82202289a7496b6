package filesystem

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"drive-media-compressor/domain/drive"
	"drive-media-compressor/domain/transfer"
)

// sniffLength is how many bytes http.DetectContentType looks at
const sniffLength = 512

// Checker implements transfer.LocalFileSource using the os package
type Checker struct{}

// NewChecker creates a new filesystem checker
func NewChecker() *Checker {
	return &Checker{}
}

// Exists returns true if the file exists
func (c *Checker) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Stat describes a regular file. The content type comes from the extension,
// falling back to sniffing the first bytes.
func (c *Checker) Stat(ctx context.Context, path string) (transfer.LocalFile, error) {
	if err := ctx.Err(); err != nil {
		return transfer.LocalFile{}, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return transfer.LocalFile{}, fmt.Errorf("file does not exist: %s", path)
	}
	if info.IsDir() {
		return transfer.LocalFile{}, fmt.Errorf("%s is a directory", path)
	}

	mimeType, err := detectMimeType(path)
	if err != nil {
		return transfer.LocalFile{}, err
	}

	return transfer.LocalFile{
		Path:     path,
		Name:     filepath.Base(path),
		MimeType: mimeType,
		Size:     info.Size(),
	}, nil
}

// ReadFile returns the file contents
func (c *Checker) ReadFile(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// mediaTypes covers media extensions the builtin mime table may not know
var mediaTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".webm": "video/webm",
	".heic": "image/heic",
	".bmp":  "image/bmp",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

func detectMimeType(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := mediaTypes[ext]; ok {
		return t, nil
	}
	if byExt := mime.TypeByExtension(ext); byExt != "" {
		return byExt, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if n == 0 {
		return drive.MimeTypeOctetStream, nil
	}
	return http.DetectContentType(head[:n]), nil
}

// Ensure Checker implements transfer.LocalFileSource
var _ transfer.LocalFileSource = (*Checker)(nil)
