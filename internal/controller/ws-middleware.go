package controller

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"github.com/flodrama/watchparty/pkg/ctxlogger"
	"github.com/flodrama/watchparty/pkg/wsrouter"
)

func (c controller) wsRequestIdMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *wsrouter.Conn, payload any) error {
			ctx = ctxlogger.AppendCtx(ctx, slog.String("ws_request_id", c.generateTimeBasedId()))
			return next(ctx, conn, payload)
		}
	}
}

func (c controller) loggerWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *wsrouter.Conn, payload any) error {
			messageType := wsrouter.GetMessageTypeFromCtx(ctx)
			ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", messageType))
			c.logger.DebugContext(ctx, "websocket message received", "payload", payload)

			start := time.Now()

			err := next(ctx, conn, payload)

			elapsed := time.Since(start)
			c.metrics.ObserveWSMessage(messageType, elapsed.Seconds())
			c.logger.InfoContext(ctx, "websocket message handled",
				"processing_time_us", elapsed.Microseconds(),
				"goroutines", runtime.NumGoroutine(),
				"failed", err != nil,
			)

			return err
		}
	}
}

// rateLimitWSMw drops messages over the per-connection budget. ALIVE is
// never limited.
func (c controller) rateLimitWSMw() wsrouter.Middleware {
	return func(next wsrouter.HandlerFunc[any]) wsrouter.HandlerFunc[any] {
		return func(ctx context.Context, conn *wsrouter.Conn, payload any) error {
			if wsrouter.GetMessageTypeFromCtx(ctx) == "ALIVE" {
				return next(ctx, conn, payload)
			}

			if limiter := c.getLimiterFromCtx(ctx); limiter != nil && !limiter.Allow() {
				return errRateLimited
			}

			return next(ctx, conn, payload)
		}
	}
}
