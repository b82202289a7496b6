//go:build gocv

package imaging

import (
	"context"
	"fmt"
	"image"

	"drive-media-compressor/domain/compression"

	"gocv.io/x/gocv"
)

// OpenCVCompressor implements compression.ImageCompressor using GoCV
type OpenCVCompressor struct{}

// NewOpenCVCompressor creates a GoCV-backed compressor
func NewOpenCVCompressor() (*OpenCVCompressor, error) {
	return &OpenCVCompressor{}, nil
}

// CompressImage implements compression.ImageCompressor for JPEG, PNG and WebP
func (c *OpenCVCompressor) CompressImage(ctx context.Context, data []byte, mimeType string, opts compression.ImageOptions) ([]byte, error) {
	var ext gocv.FileExt
	var params []int
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = compression.DefaultMaxDimension
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = compression.DefaultImageQuality
	}

	switch compression.NormalizeMimeType(mimeType) {
	case "image/jpeg", "image/jpg", "image/pjpeg":
		ext = gocv.JPEGFileExt
		params = []int{int(gocv.IMWriteJpegQuality), opts.Quality}
	case "image/png":
		ext = gocv.PNGFileExt
		params = []int{int(gocv.IMWritePngCompression), 9}
	case "image/webp":
		ext = gocv.FileExt(".webp")
		params = []int{int(gocv.IMWriteWebpQuality), opts.Quality}
	default:
		return nil, fmt.Errorf("%w: %s", compression.ErrUnsupportedFormat, mimeType)
	}

	mat, err := gocv.IMDecode(data, gocv.IMReadUnchanged)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	defer mat.Close()
	if mat.Empty() {
		return nil, fmt.Errorf("failed to decode image: empty result")
	}

	target := mat
	w, h := mat.Cols(), mat.Rows()
	if w > opts.MaxDimension || h > opts.MaxDimension {
		scale := float64(opts.MaxDimension) / float64(max(w, h))
		size := image.Pt(int(float64(w)*scale), int(float64(h)*scale))

		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(mat, &resized, size, 0, 0, gocv.InterpolationArea)
		target = resized
	}

	out, err := gocv.IMEncodeWithParams(ext, target, params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return out, nil
}

// Ensure OpenCVCompressor implements compression.ImageCompressor
var _ compression.ImageCompressor = (*OpenCVCompressor)(nil)
