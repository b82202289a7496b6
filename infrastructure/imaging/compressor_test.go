package imaging

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math/rand"
	"testing"

	"drive-media-compressor/domain/compression"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x % 256), G: uint8(y % 256), B: uint8((x + y) % 256), A: 255})
		}
	}
	return img
}

func noise(w, h int) *image.NRGBA {
	rng := rand.New(rand.NewSource(7))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	rng.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}))
	return buf.Bytes()
}

func TestCompressImage_ScalesLargeJPEG(t *testing.T) {
	input := encodeJPEG(t, gradient(3000, 1500), 100)

	out, err := NewCompressor().CompressImage(context.Background(), input, "image/jpeg", compression.ImageOptions{MaxDimension: 1920, Quality: 80})
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 1920, cfg.Width)
	assert.Equal(t, 960, cfg.Height)
	assert.Less(t, len(out), len(input))
}

func TestCompressImage_SmallImageKeepsDimensions(t *testing.T) {
	input := encodeJPEG(t, gradient(640, 480), 100)

	out, err := NewCompressor().CompressImage(context.Background(), input, "image/jpeg", compression.ImageOptions{})
	require.NoError(t, err)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 480, cfg.Height)
}

func TestCompressImage_PNGStaysPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&png.Encoder{CompressionLevel: png.NoCompression}).Encode(&buf, gradient(2400, 200)))

	out, err := NewCompressor().CompressImage(context.Background(), buf.Bytes(), "image/png", compression.ImageOptions{MaxDimension: 1200})
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 1200, cfg.Width)
	assert.Equal(t, 100, cfg.Height)
}

func TestCompressImage_WebPStaysWebP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, noise(2400, 1200), &webp.Options{Lossless: true}))

	out, err := NewCompressor().CompressImage(context.Background(), buf.Bytes(), "image/webp", compression.ImageOptions{MaxDimension: 1920, Quality: 80})
	require.NoError(t, err)

	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "webp", format)
	assert.Equal(t, 1920, cfg.Width)
	assert.Equal(t, 960, cfg.Height)
	assert.Less(t, len(out), buf.Len())
}

func TestCompressImage_MimeTypeParameters(t *testing.T) {
	input := encodeJPEG(t, gradient(800, 600), 100)

	out, err := NewCompressor().CompressImage(context.Background(), input, "Image/JPEG; charset=binary", compression.ImageOptions{})
	require.NoError(t, err)

	_, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestCompressImage_Unsupported(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		mimeType string
	}{
		{"svg", []byte("<svg/>"), "image/svg+xml"},
		{"not an image", []byte("%PDF-1.4"), "application/pdf"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCompressor().CompressImage(context.Background(), tt.data, tt.mimeType, compression.ImageOptions{})
			assert.True(t, errors.Is(err, compression.ErrUnsupportedFormat), "got %v", err)
		})
	}
}

func TestCompressImage_AnimatedGIF(t *testing.T) {
	palette := color.Palette{color.Black, color.White}
	frame := func() *image.Paletted { return image.NewPaletted(image.Rect(0, 0, 4, 4), palette) }
	var buf bytes.Buffer
	require.NoError(t, gif.EncodeAll(&buf, &gif.GIF{Image: []*image.Paletted{frame(), frame()}, Delay: []int{10, 10}}))

	_, err := NewCompressor().CompressImage(context.Background(), buf.Bytes(), "image/gif", compression.ImageOptions{})
	assert.ErrorIs(t, err, compression.ErrUnsupportedFormat)
}

func TestCompressImage_CorruptData(t *testing.T) {
	_, err := NewCompressor().CompressImage(context.Background(), []byte{0xFF, 0xD8, 0x00}, "image/jpeg", compression.ImageOptions{})
	require.Error(t, err)
	assert.False(t, errors.Is(err, compression.ErrUnsupportedFormat))
}

func TestNew(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)
	assert.IsType(t, &Compressor{}, c)

	_, err = New("magick")
	assert.Error(t, err)
}
