// Package fetch retrieves file bytes through an ordered list of sources,
// falling back to lower fidelity when a source cannot serve the file.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"drive-media-compressor/domain/drive"

	"go.uber.org/zap"
)

// ErrUnavailable means a source does not apply to the file or could not serve it
var ErrUnavailable = errors.New("source unavailable")

// Source is one step of the fallback chain
type Source interface {
	Name() string
	Fetch(ctx context.Context, file drive.File) ([]byte, error)
}

// FallbackRecorder counts how often each fallback source served a file
type FallbackRecorder interface {
	FallbackUsed(source string)
}

// Result is the payload and the source that produced it
type Result struct {
	Data     []byte
	Source   string
	Fallback bool // a source other than the first one served the file
}

// Chain tries sources in order until one returns bytes
type Chain struct {
	sources  []Source
	recorder FallbackRecorder
	logger   *zap.Logger
}

// ChainOption configures a Chain
type ChainOption func(*Chain)

// WithRecorder counts fallbacks
func WithRecorder(rec FallbackRecorder) ChainOption {
	return func(c *Chain) {
		c.recorder = rec
	}
}

// WithLogger sets the diagnostic logger
func WithLogger(logger *zap.Logger) ChainOption {
	return func(c *Chain) {
		c.logger = logger
	}
}

// NewChain creates a chain over the given sources
func NewChain(sources []Source, opts ...ChainOption) *Chain {
	c := &Chain{sources: sources, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FullFidelity returns the chain used before re-uploading a file:
// authenticated download, then the content link.
func FullFidelity(gw drive.Gateway, opts ...ChainOption) *Chain {
	return NewChain([]Source{
		&AuthenticatedDownload{Gateway: gw},
		&ContentLink{Gateway: gw},
	}, opts...)
}

// Preview returns the chain used for display: every full-fidelity source,
// then the thumbnail, then a placeholder image.
func Preview(gw drive.Gateway, opts ...ChainOption) *Chain {
	return NewChain([]Source{
		&AuthenticatedDownload{Gateway: gw},
		&ContentLink{Gateway: gw},
		&ThumbnailLink{Gateway: gw},
		Placeholder{},
	}, opts...)
}

// Fetch walks the sources. Authentication and not-found errors from the
// authenticated download end the walk, as does context cancellation.
func (c *Chain) Fetch(ctx context.Context, file drive.File) (*Result, error) {
	var errs []error
	for i, src := range c.sources {
		data, err := src.Fetch(ctx, file)
		if err == nil {
			if i > 0 {
				c.logger.Info("served by fallback source",
					zap.String("file_id", file.ID),
					zap.String("source", src.Name()))
				if c.recorder != nil {
					c.recorder.FallbackUsed(src.Name())
				}
			}
			return &Result{Data: data, Source: src.Name(), Fallback: i > 0}, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if drive.IsAuth(err) || (i == 0 && drive.IsNotFound(err)) {
			return nil, err
		}

		c.logger.Warn("fetch source failed, trying next",
			zap.String("file_id", file.ID),
			zap.String("source", src.Name()),
			zap.Error(err))
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}

	if len(errs) == 0 {
		return nil, fmt.Errorf("fetch %s: %w", file.ID, ErrUnavailable)
	}
	return nil, fmt.Errorf("fetch %s: all sources failed: %w", file.ID, errors.Join(errs...))
}

// AuthenticatedDownload downloads the file with the session credential
type AuthenticatedDownload struct {
	Gateway drive.Gateway
}

func (s *AuthenticatedDownload) Name() string { return "download" }

func (s *AuthenticatedDownload) Fetch(ctx context.Context, file drive.File) ([]byte, error) {
	return s.Gateway.Download(ctx, file.ID)
}

// ContentLink fetches the public content link without a credential. Drive
// answers a private link with an HTML sign-in page, which is rejected unless
// the file is itself HTML.
type ContentLink struct {
	Gateway drive.Gateway
}

func (s *ContentLink) Name() string { return "content-link" }

func (s *ContentLink) Fetch(ctx context.Context, file drive.File) ([]byte, error) {
	if file.WebContentLink == "" {
		return nil, ErrUnavailable
	}
	data, err := s.Gateway.FetchLink(ctx, file.WebContentLink)
	if err != nil {
		return nil, err
	}
	if file.MimeType != "text/html" && looksLikeHTML(data) {
		return nil, fmt.Errorf("content link returned a web page: %w", ErrUnavailable)
	}
	return data, nil
}

// ThumbnailLink fetches the lower-resolution thumbnail of an image
type ThumbnailLink struct {
	Gateway drive.Gateway
}

func (s *ThumbnailLink) Name() string { return "thumbnail" }

func (s *ThumbnailLink) Fetch(ctx context.Context, file drive.File) ([]byte, error) {
	if !file.IsImage() || file.ThumbnailLink == "" {
		return nil, ErrUnavailable
	}
	return s.Gateway.FetchLink(ctx, file.ThumbnailLink)
}

// PlaceholderSVG is served when nothing else can render a preview
var PlaceholderSVG = []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="200" height="200" viewBox="0 0 200 200">` +
	`<rect width="200" height="200" fill="#e5e7eb"/>` +
	`<text x="100" y="105" font-family="sans-serif" font-size="14" text-anchor="middle" fill="#6b7280">No preview</text>` +
	`</svg>`)

// PlaceholderMimeType is the content type of PlaceholderSVG
const PlaceholderMimeType = "image/svg+xml"

// Placeholder always succeeds with a generic image
type Placeholder struct{}

func (Placeholder) Name() string { return "placeholder" }

func (Placeholder) Fetch(ctx context.Context, file drive.File) ([]byte, error) {
	out := make([]byte, len(PlaceholderSVG))
	copy(out, PlaceholderSVG)
	return out, nil
}

func looksLikeHTML(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.ToLower(bytes.TrimSpace(head))
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}
