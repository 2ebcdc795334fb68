package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/veille/internal/analyze"
	"github.com/dgallion1/veille/internal/config"
	"github.com/dgallion1/veille/internal/pipeline"
	"github.com/dgallion1/veille/internal/request"
	"github.com/dgallion1/veille/internal/tracker"
)

type fakeCapturer struct {
	calls []request.CaptureRequest
	issue int
	err   error
	jobs  map[string]*pipeline.Job
}

func (f *fakeCapturer) Capture(ctx context.Context, issueNumber int, req request.CaptureRequest) (pipeline.JobSnapshot, error) {
	f.calls = append(f.calls, req)
	f.issue = issueNumber
	job := pipeline.NewJob("01TEST", issueNumber)
	job.SetURL(req.URL)
	var fail *pipeline.Failure
	if errors.As(f.err, &fail) {
		job.Fail(fail)
		return job.Snapshot(), f.err
	}
	if f.err != nil {
		return job.Snapshot(), f.err
	}
	job.SetPublished("Un titre", "Tech", req.Tags, "fiches/2024-05-02-un-titre.md")
	return job.Snapshot(), nil
}

func (f *fakeCapturer) GetJob(id string) *pipeline.Job {
	return f.jobs[id]
}

type fakeIssues struct {
	payloads []tracker.CapturePayload
	number   int
	err      error
}

func (f *fakeIssues) CreateCaptureIssue(ctx context.Context, p tracker.CapturePayload) (int, error) {
	f.payloads = append(f.payloads, p)
	return f.number, f.err
}

type fakeStats struct{}

func (fakeStats) Model() string { return "mistral-large-latest" }
func (fakeStats) Snapshot() analyze.StatsSnapshot {
	return analyze.StatsSnapshot{Calls: 3, Failures: 1}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func do(t *testing.T, h http.Handler, method, path, body string, header ...string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	s := NewServer(&fakeCapturer{}, nil, nil, testLogger(), config.Config{APIKey: "secret"})
	rec, out := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", out["status"])
}

func TestCaptureSuccess(t *testing.T) {
	capt := &fakeCapturer{}
	issues := &fakeIssues{number: 42}
	s := NewServer(capt, issues, nil, testLogger(), config.Config{})

	rec, out := do(t, s, http.MethodPost, "/api/capture",
		`{"url":" https://example.com/a ","description":"à lire","tags":["go"," ai ",""]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, float64(42), out["issue_number"])
	assert.Contains(t, out["message"], "Un titre")

	require.Len(t, issues.payloads, 1)
	assert.Equal(t, "https://example.com/a", issues.payloads[0].URL)
	assert.Equal(t, []string{"go", "ai"}, issues.payloads[0].Tags)

	require.Len(t, capt.calls, 1)
	assert.Equal(t, "à lire", capt.calls[0].Note)
	assert.Equal(t, 42, capt.issue)
}

func TestCaptureContinuesWithoutIssue(t *testing.T) {
	capt := &fakeCapturer{}
	issues := &fakeIssues{err: errors.New("github down")}
	s := NewServer(capt, issues, nil, testLogger(), config.Config{})

	rec, out := do(t, s, http.MethodPost, "/api/capture", `{"url":"https://example.com/a"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), out["issue_number"])
	require.Len(t, capt.calls, 1)
	assert.Equal(t, 0, capt.issue)
}

func TestCaptureValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"bad json", `{"url":`, "invalid JSON"},
		{"missing url", `{"description":"x"}`, "url is required"},
		{"not a url", `{"url":"example.com"}`, "url must be an http(s) URL"},
		{"other scheme", `{"url":"ftp://example.com/a"}`, "url must be an http(s) URL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capt := &fakeCapturer{}
			s := NewServer(capt, nil, nil, testLogger(), config.Config{})
			rec, out := do(t, s, http.MethodPost, "/api/capture", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "error", out["status"])
			assert.Contains(t, out["error"], tt.want)
			assert.Empty(t, capt.calls)
		})
	}
}

func TestCaptureFailureStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"extraction", &pipeline.Failure{Stage: pipeline.StageExtracted, Err: errors.New("403")}, http.StatusBadGateway, "ExtractionFailure"},
		{"analysis", &pipeline.Failure{Stage: pipeline.StageAnalyzed, Err: errors.New("bad json")}, http.StatusBadGateway, "AnalysisFailure"},
		{"persistence", &pipeline.Failure{Stage: pipeline.StagePublished, Err: errors.New("disk full")}, http.StatusInternalServerError, "PersistenceFailure"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewServer(&fakeCapturer{err: tt.err}, nil, nil, testLogger(), config.Config{})
			rec, out := do(t, s, http.MethodPost, "/api/capture", `{"url":"https://example.com/a"}`)
			assert.Equal(t, tt.code, rec.Code)
			assert.Equal(t, "error", out["status"])
			job, ok := out["job"].(map[string]any)
			require.True(t, ok)
			if tt.kind != "" {
				assert.Equal(t, tt.kind, job["failure_kind"])
			}
		})
	}
}

func TestCaptureStatus(t *testing.T) {
	job := pipeline.NewJob("01ABC", 7)
	job.SetStage(pipeline.StageExtracted)
	capt := &fakeCapturer{jobs: map[string]*pipeline.Job{"01ABC": job}}
	s := NewServer(capt, nil, nil, testLogger(), config.Config{})

	rec, out := do(t, s, http.MethodGet, "/api/capture/01ABC", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "extracted", out["stage"])
	assert.Equal(t, float64(7), out["issue_number"])

	rec, _ = do(t, s, http.MethodGet, "/api/capture/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuth(t *testing.T) {
	s := NewServer(&fakeCapturer{}, nil, fakeStats{}, testLogger(), config.Config{APIKey: "secret"})

	rec, _ := do(t, s, http.MethodGet, "/api/stats/llm", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/stats/llm", "", "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, out := do(t, s, http.MethodGet, "/api/stats/llm", "", "Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mistral-large-latest", out["model"])
}

func TestLLMStatsUnavailable(t *testing.T) {
	s := NewServer(&fakeCapturer{}, nil, nil, testLogger(), config.Config{})
	rec, _ := do(t, s, http.MethodGet, "/api/stats/llm", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	s := NewServer(&fakeCapturer{}, nil, nil, testLogger(), config.Config{APIKey: "secret"})

	req := httptest.NewRequest(http.MethodOptions, "/api/capture", nil)
	req.Header.Set("Origin", "chrome-extension://abc")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Less(t, rec.Code, 300)
}
