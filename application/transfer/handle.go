package transfer

import (
	"context"
	"sync"

	domain "drive-media-compressor/domain/transfer"
)

// Handle tracks a batch running in the background
type Handle struct {
	done    chan struct{}
	summary *domain.Summary
	err     error

	mu     sync.Mutex
	onDone func(*domain.Summary, error)
}

// Wait blocks until the batch finishes or ctx ends
func (h *Handle) Wait(ctx context.Context) (*domain.Summary, error) {
	select {
	case <-h.done:
		return h.summary, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Done is closed when the batch finishes
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Detach stops the completion callback from running. The batch itself
// keeps going and still updates the registry.
func (h *Handle) Detach() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDone = nil
}

func (h *Handle) finish(summary *domain.Summary, err error) {
	h.summary = summary
	h.err = err
	close(h.done)

	h.mu.Lock()
	cb := h.onDone
	h.mu.Unlock()
	if cb != nil {
		cb(summary, err)
	}
}

// StartCompressAndReplace runs CompressAndReplace in the background.
// Cancelling ctx does not stop the batch.
func (p *Pipeline) StartCompressAndReplace(ctx context.Context, folderID string, fileIDs []string, onDone func(*domain.Summary, error)) *Handle {
	return p.start(ctx, onDone, func(ctx context.Context) (*domain.Summary, error) {
		return p.CompressAndReplace(ctx, folderID, fileIDs)
	})
}

// StartCompressAndUpload runs CompressAndUpload in the background
func (p *Pipeline) StartCompressAndUpload(ctx context.Context, folderID string, fileIDs []string, onDone func(*domain.Summary, error)) *Handle {
	return p.start(ctx, onDone, func(ctx context.Context) (*domain.Summary, error) {
		return p.CompressAndUpload(ctx, folderID, fileIDs)
	})
}

// StartUploadLocal runs UploadLocal in the background
func (p *Pipeline) StartUploadLocal(ctx context.Context, folderID string, paths []string, onDone func(*domain.Summary, error)) *Handle {
	return p.start(ctx, onDone, func(ctx context.Context) (*domain.Summary, error) {
		return p.UploadLocal(ctx, folderID, paths)
	})
}

func (p *Pipeline) start(ctx context.Context, onDone func(*domain.Summary, error), fn func(context.Context) (*domain.Summary, error)) *Handle {
	h := &Handle{done: make(chan struct{}), onDone: onDone}
	bg := context.WithoutCancel(ctx)
	go func() {
		summary, err := fn(bg)
		h.finish(summary, err)
	}()
	return h
}
