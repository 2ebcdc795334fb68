package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// slowRequest marks access log lines at warn level. Captures run a fetch and
// an LLM call, so only very long requests qualify.
const slowRequest = 60 * time.Second

// AuthMiddleware accepts requests whose bearer token equals apiKey. Rejections
// are logged with the request ID so the extension's failures can be traced.
func AuthMiddleware(apiKey string, log *slog.Logger) func(http.Handler) http.Handler {
	want := []byte(apiKey)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			reason := ""
			switch {
			case !ok:
				reason = "missing authorization"
			case subtle.ConstantTimeCompare([]byte(token), want) != 1:
				reason = "invalid api key"
			}
			if reason != "" {
				log.Warn("capture rejected",
					"request_id", middleware.GetReqID(r.Context()),
					"path", r.URL.Path,
					"remote", r.RemoteAddr,
					"reason", reason,
				)
				w.Header().Set("WWW-Authenticate", `Bearer realm="veille"`)
				jsonError(w, reason, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AccessLog logs one line per request with status, size and latency. Server
// errors log at error level, slow requests at warn.
func AccessLog(log *slog.Logger, slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case slow > 0 && elapsed >= slow:
				level = slog.LevelWarn
			}
			log.Log(r.Context(), level, "request done",
				"request_id", middleware.GetReqID(r.Context()),
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration_ms", elapsed.Milliseconds(),
			)
		})
	}
}
