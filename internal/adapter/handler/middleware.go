package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type ctxKey int

const ctxKeyRequestID ctxKey = iota

func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

// WithRequestID propagates X-Request-Id, generating one when absent.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

func WithLogging(logger zerolog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		ev := logger.Info()
		if sr.status >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", sr.status).
			Int("bytes", sr.bytes).
			Dur("latency", time.Since(start)).
			Str("request_id", RequestIDFromContext(r.Context())).
			Msg("http_request")
	})
}

// NewRouter wires the HTTP API with request id and logging middleware.
func NewRouter(h *HTTPHandler, logger zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	h.Routes(mux)
	return WithRequestID(WithLogging(logger, mux))
}
