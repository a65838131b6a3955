package slogx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/siteauth/pkg/idx"
)

const (
	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 64
)

// HTTPMiddleware tags every request with an id (the caller's X-Request-ID
// when it is sane, otherwise a fresh ULID), exposes a logger carrying that
// id through the request context and writes one access line when the
// handler returns. 5xx responses log at error, 4xx at warn.
func HTTPMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			began := time.Now()

			id := requestID(r.Header.Get(requestIDHeader))
			w.Header().Set(requestIDHeader, id)

			logger := base.With(
				slog.String("req_id", id),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
			)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(WithContext(r.Context(), logger)))

			logger.LogAttrs(context.Background(), levelFor(rec.code()), "http_request",
				slog.Int("status", rec.code()),
				slog.Int("bytes", rec.written),
				slog.Int64("duration_ms", time.Since(began).Milliseconds()),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			)
		})
	}
}

func requestID(incoming string) string {
	if incoming == "" || len(incoming) > maxRequestIDLen {
		return idx.New().String()
	}
	for i := 0; i < len(incoming); i++ {
		if c := incoming[i]; c < 0x21 || c > 0x7e {
			return idx.New().String()
		}
	}
	return incoming
}

func levelFor(status int) slog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return slog.LevelError
	case status >= http.StatusBadRequest:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// statusRecorder remembers the first status code and counts body bytes.
type statusRecorder struct {
	http.ResponseWriter

	status  int
	written int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	n, err := s.ResponseWriter.Write(b)
	s.written += n
	return n, err
}

func (s *statusRecorder) code() int {
	if s.status == 0 {
		return http.StatusOK
	}
	return s.status
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
