// Package imaging re-encodes images for upload.
package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/gif"
	"image/png"

	"drive-media-compressor/domain/compression"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// webpFormat marks content re-encoded with libwebp rather than imaging.Encode
const webpFormat imaging.Format = -1

// formats maps content types onto the encoders the compressor can write
var formats = map[string]imaging.Format{
	"image/jpeg":  imaging.JPEG,
	"image/jpg":   imaging.JPEG,
	"image/pjpeg": imaging.JPEG,
	"image/png":   imaging.PNG,
	"image/gif":   imaging.GIF,
	"image/bmp":   imaging.BMP,
	"image/tiff":  imaging.TIFF,
	"image/webp":  webpFormat,
}

// Compressor implements compression.ImageCompressor with disintegration/imaging
type Compressor struct{}

// NewCompressor creates a new imaging-based compressor
func NewCompressor() *Compressor {
	return &Compressor{}
}

// CompressImage implements compression.ImageCompressor. The image is scaled
// down to fit MaxDimension on its longest edge and re-encoded in its own format.
func (c *Compressor) CompressImage(ctx context.Context, data []byte, mimeType string, opts compression.ImageOptions) ([]byte, error) {
	format, ok := formats[compression.NormalizeMimeType(mimeType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", compression.ErrUnsupportedFormat, mimeType)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if opts.MaxDimension <= 0 {
		opts.MaxDimension = compression.DefaultMaxDimension
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = compression.DefaultImageQuality
	}

	if format == imaging.GIF {
		// Re-encoding keeps only the first frame
		g, err := gif.DecodeAll(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
		if len(g.Image) > 1 {
			return nil, fmt.Errorf("%w: animated gif", compression.ErrUnsupportedFormat)
		}
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img = fit(img, opts.MaxDimension)

	var buf bytes.Buffer
	if format == webpFormat {
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(opts.Quality)}); err != nil {
			return nil, fmt.Errorf("failed to encode image: %w", err)
		}
		return buf.Bytes(), nil
	}
	if err := imaging.Encode(&buf, img, format,
		imaging.JPEGQuality(opts.Quality),
		imaging.PNGCompressionLevel(png.BestCompression),
	); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// fit scales img down so its longest edge is at most max. Smaller images are
// returned unchanged.
func fit(img image.Image, max int) image.Image {
	b := img.Bounds()
	if b.Dx() <= max && b.Dy() <= max {
		return img
	}
	return imaging.Fit(img, max, max, imaging.Lanczos)
}

// Ensure Compressor implements compression.ImageCompressor
var _ compression.ImageCompressor = (*Compressor)(nil)
