package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dgallion1/veille/internal/pipeline"
	"github.com/dgallion1/veille/internal/request"
	"github.com/dgallion1/veille/internal/tracker"
)

const maxCaptureBody = 64 << 10

// captureRequest is the body sent by the browser extension.
type captureRequest struct {
	URL         string   `json:"url" validate:"required,url,startswith=http"`
	Description string   `json:"description" validate:"max=5000"`
	Tags        []string `json:"tags" validate:"max=30,dive,max=100"`
}

type captureResponse struct {
	Status      string                `json:"status"`
	Message     string                `json:"message"`
	IssueNumber int                   `json:"issue_number"`
	Job         *pipeline.JobSnapshot `json:"job,omitempty"`
}

func (s *Server) handleCapture(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBody)

	var in captureRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	in.URL = strings.TrimSpace(in.URL)
	if err := s.validate.Struct(in); err != nil {
		jsonError(w, validationMessage(err), http.StatusBadRequest)
		return
	}

	req, err := request.FromCapture(in.URL, in.Description, in.Tags)
	if err != nil {
		jsonError(w, "url must start with http:// or https://", http.StatusBadRequest)
		return
	}

	log := s.log.With("url", req.URL)

	// The issue keeps a trace of the capture; processing goes ahead without it.
	issueNumber := 0
	if s.issues != nil {
		n, err := s.issues.CreateCaptureIssue(r.Context(), tracker.CapturePayload{
			URL:  req.URL,
			Note: req.Note,
			Tags: req.Tags,
		})
		if err != nil {
			log.Warn("capture issue not created", "error", err)
		} else {
			issueNumber = n
		}
	}

	snap, err := s.capturer.Capture(r.Context(), issueNumber, req)
	if err != nil {
		code := http.StatusInternalServerError
		var f *pipeline.Failure
		if errors.As(err, &f) {
			switch f.Kind() {
			case pipeline.KindInvalidRequest:
				code = http.StatusBadRequest
			case pipeline.KindExtractionFailure, pipeline.KindAnalysisFailure:
				code = http.StatusBadGateway
			}
		}
		writeJSON(w, code, map[string]any{
			"status":       "error",
			"error":        err.Error(),
			"issue_number": issueNumber,
			"job":          snap,
		})
		return
	}

	writeJSON(w, http.StatusOK, captureResponse{
		Status:      "success",
		Message:     fmt.Sprintf("Fiche créée : %s", snap.Title),
		IssueNumber: issueNumber,
		Job:         &snap,
	})
}

func (s *Server) handleCaptureStatus(w http.ResponseWriter, r *http.Request) {
	job := s.capturer.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "capture not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "url", "startswith":
		return fe.Field() + " must be an http(s) URL"
	case "max":
		return fmt.Sprintf("%s exceeds maximum of %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}
