package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// RequestLogger logs each request with its request id. It must run after
// middleware.RequestID.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			if id := middleware.GetReqID(r.Context()); id != "" {
				ww.Header().Set("X-Request-Id", id)
			}

			next.ServeHTTP(ww, r)

			route := "unknown"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if p := strings.TrimSpace(rctx.RoutePattern()); p != "" {
					route = p
				}
			}
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			fields := []zap.Field{
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.Int("bytes_out", ww.BytesWritten()),
			}

			switch {
			case route == "/metrics":
				log.Debug("http_request", fields...)
			case status >= http.StatusInternalServerError:
				log.Error("http_request", fields...)
			default:
				log.Info("http_request", fields...)
			}
		})
	}
}
