package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		header string
		code   int
		reason string
	}{
		{"valid", "Bearer secret", http.StatusOK, ""},
		{"scheme case", "bearer secret", http.StatusOK, ""},
		{"missing", "", http.StatusUnauthorized, "missing authorization"},
		{"empty token", "Bearer ", http.StatusUnauthorized, "missing authorization"},
		{"basic scheme", "Basic c2VjcmV0", http.StatusUnauthorized, "missing authorization"},
		{"wrong key", "Bearer nope", http.StatusUnauthorized, "invalid api key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := slog.New(slog.NewJSONHandler(&buf, nil))
			h := middleware.RequestID(AuthMiddleware("secret", log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})))

			req := httptest.NewRequest(http.MethodPost, "/api/capture", nil)
			req.Header.Set("X-Request-Id", "req-42")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			lines := logLines(t, &buf)
			if tt.reason == "" {
				assert.Empty(t, lines)
				return
			}
			assert.Contains(t, rec.Body.String(), tt.reason)
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
			require.Len(t, lines, 1)
			assert.Equal(t, "capture rejected", lines[0]["msg"])
			assert.Equal(t, "req-42", lines[0]["request_id"])
			assert.Equal(t, tt.reason, lines[0]["reason"])
		})
	}
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))
	h := middleware.RequestID(AccessLog(log, 0)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/boom" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.Write([]byte("hello"))
	})))

	for _, path := range []string{"/ok", "/boom"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("X-Request-Id", "id"+path)
		h.ServeHTTP(httptest.NewRecorder(), req)
	}

	lines := logLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, float64(200), lines[0]["status"])
	assert.Equal(t, float64(5), lines[0]["bytes"])
	assert.Equal(t, "id/ok", lines[0]["request_id"])

	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, float64(500), lines[1]["status"])
	assert.Equal(t, "/boom", lines[1]["path"])
}
