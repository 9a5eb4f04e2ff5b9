package middleware

import (
	"net/http"
	"strings"

	"github.com/Leganyst/room-booking/internal/logger"
)

// MaxRequestSize ограничивает размер тела запроса.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// ContentTypeValidation требует application/json у запросов с телом.
func ContentTypeValidation(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
				ct := strings.TrimSpace(strings.Split(r.Header.Get("Content-Type"), ";")[0])
				if ct != "application/json" {
					log.Warn("invalid content type",
						"request_id", RequestID(r.Context()),
						"content_type", ct,
						"path", r.URL.Path,
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusUnsupportedMediaType)
					_, _ = w.Write([]byte(`{"detail":"Content-Type must be application/json","code":"INVALID_INPUT","message":"Content-Type must be application/json"}`))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
