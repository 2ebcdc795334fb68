package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/dgallion1/veille/internal/analyze"
	"github.com/dgallion1/veille/internal/config"
	"github.com/dgallion1/veille/internal/pipeline"
	"github.com/dgallion1/veille/internal/request"
	"github.com/dgallion1/veille/internal/tracker"
)

// Capturer runs one capture through the pipeline.
type Capturer interface {
	Capture(ctx context.Context, issueNumber int, req request.CaptureRequest) (pipeline.JobSnapshot, error)
	GetJob(id string) *pipeline.Job
}

// IssueCreator opens the tracker issue that records a capture.
type IssueCreator interface {
	CreateCaptureIssue(ctx context.Context, p tracker.CapturePayload) (int, error)
}

// StatsSource exposes analysis latency.
type StatsSource interface {
	Model() string
	Snapshot() analyze.StatsSnapshot
}

// Server is the local capture listener.
type Server struct {
	router   chi.Router
	capturer Capturer
	issues   IssueCreator
	stats    StatsSource
	validate *validator.Validate
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server. issues and stats may be
// nil: captures then skip issue creation, and stats report unavailable.
func NewServer(capturer Capturer, issues IssueCreator, stats StatsSource, log *slog.Logger, cfg config.Config) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		capturer: capturer,
		issues:   issues,
		stats:    stats,
		validate: newValidator(),
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(AccessLog(s.log, slowRequest))
	// The browser extension posts from its own origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/capture", s.handleCapture)
		r.Get("/api/capture/{jobID}", s.handleCaptureStatus)
		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"status": "error", "error": msg})
}
