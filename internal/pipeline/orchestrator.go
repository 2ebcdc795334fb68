package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/veille/internal/analyze"
	"github.com/dgallion1/veille/internal/fiche"
	"github.com/dgallion1/veille/internal/index"
	"github.com/dgallion1/veille/internal/request"
	"github.com/dgallion1/veille/internal/scrape"
	"github.com/dgallion1/veille/internal/tracker"
)

// Tracker is the source of pending requests and the channel for feedback.
type Tracker interface {
	ListPending(ctx context.Context) ([]tracker.Issue, error)
	Comment(ctx context.Context, n int, body string) error
	Close(ctx context.Context, n int) error
}

type Extractor interface {
	Extract(ctx context.Context, url string) (*scrape.Content, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, in analyze.Input) (*analyze.Result, error)
	Model() string
}

type Publisher interface {
	Write(ctx context.Context, f fiche.Fiche) (string, error)
}

type Indexer interface {
	Rebuild() (index.Stats, error)
}

// BatchSummary reports one RunBatch.
type BatchSummary struct {
	Pending   int
	Published int
	Failed    int
	// ByStage counts failures by the stage that could not be reached.
	ByStage  map[Stage]int
	Index    index.Stats
	IndexErr error
}

// Orchestrator runs requests through extract, analyze and publish, one at a
// time.
type Orchestrator struct {
	tracker   Tracker
	extractor Extractor
	analyzer  Analyzer
	publisher Publisher
	indexer   Indexer
	jobs      *JobStore
	log       *slog.Logger

	// mu keeps batch runs and captures from overlapping.
	mu sync.Mutex
}

func NewOrchestrator(t Tracker, e Extractor, a Analyzer, p Publisher, ix Indexer, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		tracker:   t,
		extractor: e,
		analyzer:  a,
		publisher: p,
		indexer:   ix,
		jobs:      NewJobStore(24 * time.Hour),
		log:       log,
	}
}

// GetJob returns a recent job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// RunBatch processes every pending request, reports on each and rebuilds the
// index once at the end. Only a failure to list pending requests is returned;
// per-request failures are counted in the summary.
func (o *Orchestrator) RunBatch(ctx context.Context) (BatchSummary, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	summary := BatchSummary{ByStage: make(map[Stage]int)}

	issues, err := o.tracker.ListPending(ctx)
	if err != nil {
		return summary, err
	}
	summary.Pending = len(issues)
	o.log.Info("batch started", "pending", len(issues))

	for i, is := range issues {
		job := NewJob(NewID(), is.Number)
		o.jobs.Put(job)
		log := o.log.With("issue", is.Number, "job_id", job.ID, "position", i+1, "of", len(issues))

		failure := o.handleIssue(ctx, job, is, log)
		if failure != nil {
			summary.Failed++
			summary.ByStage[failure.Stage]++
		} else {
			summary.Published++
		}
	}

	summary.Index, summary.IndexErr = o.rebuildIndex()
	o.log.Info("batch finished",
		"published", summary.Published,
		"failed", summary.Failed,
	)
	return summary, nil
}

func (o *Orchestrator) handleIssue(ctx context.Context, job *Job, is tracker.Issue, log *slog.Logger) *Failure {
	req, err := request.Parse(is.Body)
	if err != nil {
		f := &Failure{Stage: StageParsed, Err: err}
		job.Fail(f)
		log.Warn("request rejected", "kind", f.Kind(), "error", err)
		o.report(ctx, is.Number, failureComment(f, o.analyzer.Model()), log)
		return f
	}
	job.SetURL(req.URL)
	job.SetStage(StageParsed)
	log = log.With("url", req.URL)

	res, f := o.publish(ctx, job, req, log)
	if f != nil {
		o.report(ctx, is.Number, failureComment(f, o.analyzer.Model()), log)
		return f
	}

	o.report(ctx, is.Number, successComment(res.Title, res.Category, res.Tags), log)
	job.SetStage(StageReported)
	return nil
}

// Capture runs one request that did not come from the pending list, then
// rebuilds the index. Nothing is reported to the tracker. The returned
// snapshot is valid whether or not the request succeeded.
func (o *Orchestrator) Capture(ctx context.Context, issueNumber int, req request.CaptureRequest) (JobSnapshot, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	job := NewJob(NewID(), issueNumber)
	o.jobs.Put(job)
	log := o.log.With("capture_id", job.ID, "issue", issueNumber, "url", req.URL)

	if !request.HasScheme(req.URL) {
		f := &Failure{Stage: StageParsed, Err: request.ErrNoURL}
		job.Fail(f)
		return job.Snapshot(), f
	}
	job.SetURL(req.URL)
	job.SetStage(StageParsed)

	_, f := o.publish(ctx, job, req, log)
	o.rebuildIndex()
	if f != nil {
		return job.Snapshot(), f
	}
	return job.Snapshot(), nil
}

// publish runs extract, analyze and write for an already parsed request.
func (o *Orchestrator) publish(ctx context.Context, job *Job, req request.CaptureRequest, log *slog.Logger) (*analyze.Result, *Failure) {
	fail := func(stage Stage, err error) *Failure {
		f := &Failure{Stage: stage, Err: err}
		job.Fail(f)
		log.Warn("request failed", "stage", stage, "kind", f.Kind(), "error", err)
		return f
	}

	content, err := o.extractor.Extract(ctx, req.URL)
	if err != nil {
		return nil, fail(StageExtracted, err)
	}
	job.SetStage(StageExtracted)
	log.Debug("content extracted", "chars", len(content.Text), "image", content.ImageURL != "")

	res, err := o.analyzer.Analyze(ctx, analyze.Input{
		Text: content.Text,
		URL:  req.URL,
		Note: req.Note,
		Tags: req.Tags,
	})
	if err != nil {
		return nil, fail(StageAnalyzed, err)
	}
	job.SetStage(StageAnalyzed)

	path, err := o.publisher.Write(ctx, fiche.Fiche{
		Title:       res.Title,
		Summary:     res.Summary,
		Tags:        res.Tags,
		Category:    res.Category,
		SourceURL:   req.URL,
		ImageURL:    content.ImageURL,
		IssueNumber: job.IssueNumber,
		Generator:   o.analyzer.Model(),
	})
	if err != nil {
		return nil, fail(StagePublished, err)
	}
	job.SetPublished(res.Title, res.Category, res.Tags, path)
	log.Info("fiche published", "path", path, "title", res.Title, "category", res.Category)
	return res, nil
}

// report comments on and closes a request. Tracker errors are logged only.
func (o *Orchestrator) report(ctx context.Context, n int, comment string, log *slog.Logger) {
	if err := o.tracker.Comment(ctx, n, comment); err != nil {
		log.Error("comment failed", "error", err)
	}
	if err := o.tracker.Close(ctx, n); err != nil {
		log.Error("close failed", "error", err)
	}
}

func (o *Orchestrator) rebuildIndex() (index.Stats, error) {
	stats, err := o.indexer.Rebuild()
	if err != nil {
		o.log.Error("index rebuild failed", "error", err)
	}
	return stats, err
}

// RebuildIndex regenerates the index outside of a batch.
func (o *Orchestrator) RebuildIndex() (index.Stats, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rebuildIndex()
}
