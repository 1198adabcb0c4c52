package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/luckbet/luckbet-go/internal/pkg/logger"
)

// Logger logs every HTTP request with status and timing, and attaches
// a request-scoped logger carrying the request id to the context so
// handlers can log correlated lines via logger.FromContext.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		reqLogger := log.With().
			Str("request_id", r.Header.Get("X-Request-ID")).
			Logger()
		r = r.WithContext(logger.WithContext(r.Context(), &reqLogger))

		next.ServeHTTP(wrapped, r)

		reqLogger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Str("ip", clientIP(r)).
			Msg("http request")
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' {
				return xff[:i]
			}
		}
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
