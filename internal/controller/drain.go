package controller

import (
	"context"
	"errors"
	"sync"

	"github.com/flodrama/watchparty/pkg/wsrouter"
)

var errShuttingDown = errors.New("server is shutting down")

type drainState struct {
	mu       sync.RWMutex
	draining bool
}

// Drain stops handling websocket messages other than ALIVE. It returns once
// the messages being handled are done, so room state no longer changes
// through members until their connections are closed.
func (c controller) Drain() {
	c.drain.mu.Lock()
	c.drain.draining = true
	c.drain.mu.Unlock()
}

func (c controller) drainWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *wsrouter.Conn, payload any) error {
			if wsrouter.GetMessageTypeFromCtx(ctx) == "ALIVE" {
				return next(ctx, conn, payload)
			}

			c.drain.mu.RLock()
			defer c.drain.mu.RUnlock()

			if c.drain.draining {
				return errShuttingDown
			}

			return next(ctx, conn, payload)
		}
	}
}
