//go:build !gocv

package imaging

import (
	"context"
	"fmt"

	"drive-media-compressor/domain/compression"
)

// OpenCVCompressor is a stub when GoCV/OpenCV is not available
type OpenCVCompressor struct{}

// NewOpenCVCompressor returns an error indicating the OpenCV engine is not available
func NewOpenCVCompressor() (*OpenCVCompressor, error) {
	return nil, fmt.Errorf("opencv engine not available: build with '-tags=gocv' and install OpenCV/GoCV")
}

// CompressImage always fails in stub mode
func (c *OpenCVCompressor) CompressImage(ctx context.Context, data []byte, mimeType string, opts compression.ImageOptions) ([]byte, error) {
	return nil, fmt.Errorf("opencv engine not available")
}

// Ensure OpenCVCompressor implements compression.ImageCompressor
var _ compression.ImageCompressor = (*OpenCVCompressor)(nil)
