package controller

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/flodrama/watchparty/pkg/ctxlogger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const requestIdHeader = "X-Request-Id"

// requestIdMw keeps the request id of an upstream proxy when there is one.
func (c controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestId := r.Header.Get(requestIdHeader)
		if requestId == "" || len(requestId) > 64 {
			requestId = c.generateTimeBasedId()
		}
		w.Header().Set(requestIdHeader, requestId)

		ctx := ctxlogger.AppendCtx(r.Context(), slog.String("request_id", requestId))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requestLoggingMw logs a line once the request is done. For websocket
// routes that is when the connection closes. The query string is left out,
// it may carry identity tokens.
func (c controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}

		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"route", route,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"websocket", r.Header.Get("Upgrade") == "websocket",
			"remote_addr", r.RemoteAddr,
		)
	})
}
