package compression

import (
	"bytes"
	"context"
	"image"
	"math/rand"
	"testing"

	"drive-media-compressor/domain/compression"
	"drive-media-compressor/infrastructure/imaging"

	"github.com/chai2010/webp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouter_WebPIsRecompressed(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 640, 480))
	rand.New(rand.NewSource(3)).Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	var buf bytes.Buffer
	require.NoError(t, webp.Encode(&buf, img, &webp.Options{Lossless: true}))
	require.Greater(t, buf.Len(), int(compression.DefaultSmallImageThreshold))

	rec := &countingRecorder{}
	r := NewRouter(imaging.NewCompressor(), nil, WithFailureRecorder(rec))

	res, err := r.Apply(context.Background(), "big.webp", "image/webp", buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, compression.ImageCompress, res.Strategy)
	assert.True(t, res.Compressed)
	assert.Empty(t, res.Notice)
	assert.Less(t, len(res.Data), buf.Len())
	assert.Empty(t, rec.failures)
}
