// Package events provides the "state changed" notification shared by the
// views of one session.
package events

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Handler reacts to a state change. Errors are logged, never returned to the publisher.
type Handler func(ctx context.Context) error

// Channel is a single-event publish/subscribe registry
type Channel struct {
	mu       sync.Mutex
	nextID   uint64
	handlers []subscription
	logger   *zap.Logger
}

type subscription struct {
	id      uint64
	handler Handler
}

// NewChannel creates an empty channel
func NewChannel(logger *zap.Logger) *Channel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{logger: logger}
}

// Subscribe registers a handler and returns the function that removes it.
// Calling the returned function more than once is a no-op.
func (c *Channel) Subscribe(h Handler) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers = append(c.handlers, subscription{id: id, handler: h})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.remove(id) })
	}
}

func (c *Channel) remove(id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, s := range c.handlers {
		if s.id == id {
			c.handlers = append(c.handlers[:i:i], c.handlers[i+1:]...)
			return
		}
	}
}

// Publish calls every handler registered at the time of the call, in
// registration order, on the caller's goroutine. A failing or panicking
// handler does not stop the others.
func (c *Channel) Publish(ctx context.Context) {
	c.mu.Lock()
	snapshot := make([]subscription, len(c.handlers))
	copy(snapshot, c.handlers)
	c.mu.Unlock()

	for _, s := range snapshot {
		if err := c.invoke(ctx, s.handler); err != nil {
			c.logger.Error("refresh handler failed", zap.Uint64("subscription", s.id), zap.Error(err))
		}
	}
}

// Len returns the number of registered handlers
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handlers)
}

func (c *Channel) invoke(ctx context.Context, h Handler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h(ctx)
}
