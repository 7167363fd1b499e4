package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// quietRoute matches requests that are logged at debug level: polling and
// the long-lived event streams.
type quietRoute struct {
	method string
	prefix string
}

var quietRoutes = []quietRoute{
	{method: http.MethodGet, prefix: "/api/v1/health"},
	{method: http.MethodGet, prefix: "/api/v1/events/"},
	{method: http.MethodGet, prefix: "/docs"},
}

// accessLevel picks the log level of a finished request.
func accessLevel(r *http.Request, status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest && status != http.StatusNotFound:
		return slog.LevelWarn
	}
	for _, q := range quietRoutes {
		if r.Method == q.method && strings.HasPrefix(r.URL.Path, q.prefix) {
			return slog.LevelDebug
		}
	}
	return slog.LevelInfo
}

// requestLogger echoes the request id to the client and writes one access
// line per request once the handler returns.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		reqID := middleware.GetReqID(r.Context())
		if reqID != "" {
			w.Header().Set(middleware.RequestIDHeader, reqID)
		}
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		slog.Log(r.Context(), accessLevel(r, status), "http request",
			"method", r.Method,
			"route", r.URL.Path,
			"status", status,
			"size", ww.BytesWritten(),
			"elapsed", time.Since(start).Round(time.Millisecond).String(),
			"client", r.RemoteAddr,
			"request_id", reqID,
		)
	})
}
