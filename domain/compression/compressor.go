package compression

import (
	"context"
	"errors"
	"fmt"
)

// Default compressor settings
const (
	DefaultMaxDimension = 1920
	DefaultImageQuality = 80
	DefaultVideoCRF     = 28
	DefaultVideoPreset  = "fast"
)

// ImageOptions controls image re-encoding
type ImageOptions struct {
	MaxDimension int // Longest edge after resize
	Quality      int // JPEG quality 1-100
}

// VideoOptions controls video re-encoding
type VideoOptions struct {
	CRF    int    // Constant rate factor
	Preset string // Encoder speed preset
}

// ImageCompressor defines the interface for image re-encoding.
// This is a port that can be implemented by different infrastructure adapters.
type ImageCompressor interface {
	CompressImage(ctx context.Context, data []byte, mimeType string, opts ImageOptions) ([]byte, error)
}

// VideoCompressor defines the interface for video re-encoding
type VideoCompressor interface {
	CompressVideo(ctx context.Context, data []byte, mimeType string, opts VideoOptions) ([]byte, error)
}

// ErrUnsupportedFormat is returned by compressors that cannot write a format
var ErrUnsupportedFormat = errors.New("unsupported format")

// Error reports a failed compression. The pipeline treats it as
// "upload the original bytes", never as a batch failure.
type Error struct {
	Strategy Strategy
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s compression failed: %v", e.Strategy, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
