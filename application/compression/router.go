package compression

import (
	"context"
	"errors"
	"fmt"

	"drive-media-compressor/domain/compression"

	"go.uber.org/zap"
)

// FailureRecorder counts compressions that fell back to the original bytes
type FailureRecorder interface {
	CompressionFailed(strategy string)
}

// Result is the outcome of routing one payload
type Result struct {
	Strategy   compression.Strategy
	Data       []byte
	Compressed bool   // Data is a smaller re-encoding of the input
	Notice     string // set when compression failed and the original is kept
	Err        error  // the *compression.Error behind Notice, if any
}

// Router picks a strategy for a payload and runs the matching compressor.
// It never returns more bytes than it was given.
type Router struct {
	policy   compression.Policy
	images   compression.ImageCompressor
	videos   compression.VideoCompressor
	imageOpt compression.ImageOptions
	videoOpt compression.VideoOptions
	recorder FailureRecorder
	logger   *zap.Logger
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithPolicy sets the strategy selection policy
func WithPolicy(p compression.Policy) RouterOption {
	return func(r *Router) {
		r.policy = p
	}
}

// WithImageOptions sets the image re-encoding options
func WithImageOptions(opts compression.ImageOptions) RouterOption {
	return func(r *Router) {
		r.imageOpt = opts
	}
}

// WithVideoOptions sets the video re-encoding options
func WithVideoOptions(opts compression.VideoOptions) RouterOption {
	return func(r *Router) {
		r.videoOpt = opts
	}
}

// WithFailureRecorder records compression fallbacks
func WithFailureRecorder(rec FailureRecorder) RouterOption {
	return func(r *Router) {
		r.recorder = rec
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(logger *zap.Logger) RouterOption {
	return func(r *Router) {
		r.logger = logger
	}
}

// NewRouter creates a router. A nil compressor makes its strategy fall back
// to the original bytes with a notice.
func NewRouter(images compression.ImageCompressor, videos compression.VideoCompressor, opts ...RouterOption) *Router {
	r := &Router{
		policy: compression.DefaultPolicy(),
		images: images,
		videos: videos,
		imageOpt: compression.ImageOptions{
			MaxDimension: compression.DefaultMaxDimension,
			Quality:      compression.DefaultImageQuality,
		},
		videoOpt: compression.VideoOptions{
			CRF:    compression.DefaultVideoCRF,
			Preset: compression.DefaultVideoPreset,
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Strategy reports which strategy Apply would use
func (r *Router) Strategy(mimeType string, size int64) compression.Strategy {
	return r.policy.SelectStrategy(mimeType, size)
}

// Apply compresses data according to its content type. Compression failures
// are not returned as errors: the result carries the original bytes and a
// notice. Only context cancellation is reported as an error.
func (r *Router) Apply(ctx context.Context, name, mimeType string, data []byte) (Result, error) {
	strategy := r.policy.SelectStrategy(mimeType, int64(len(data)))
	result := Result{Strategy: strategy, Data: data}

	var (
		out []byte
		err error
	)
	switch strategy {
	case compression.ImageCompress:
		if r.images == nil {
			err = compression.ErrUnsupportedFormat
			break
		}
		out, err = r.images.CompressImage(ctx, data, mimeType, r.imageOpt)
	case compression.VideoCompress:
		if r.videos == nil {
			err = compression.ErrUnsupportedFormat
			break
		}
		out, err = r.videos.CompressVideo(ctx, data, mimeType, r.videoOpt)
	default:
		return result, nil
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return result, ctxErr
		}
		cerr := &compression.Error{Strategy: strategy, Err: err}
		result.Err = cerr
		result.Notice = fmt.Sprintf("%s uploaded without compression: %v", name, err)
		if r.recorder != nil {
			r.recorder.CompressionFailed(string(strategy))
		}
		r.logger.Warn("compression failed, keeping original",
			zap.String("file", name),
			zap.String("mime_type", mimeType),
			zap.String("strategy", string(strategy)),
			zap.Error(err))
		return result, nil
	}

	if len(out) == 0 || len(out) >= len(data) {
		r.logger.Debug("compressed output not smaller, keeping original",
			zap.String("file", name),
			zap.Int("original", len(data)),
			zap.Int("compressed", len(out)))
		return result, nil
	}

	result.Data = out
	result.Compressed = true
	return result, nil
}
