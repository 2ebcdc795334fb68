package pipeline

import (
	"sync"
	"time"
)

// Stage is how far a request has progressed. Stages are reached in order;
// StageFailed is terminal and records the stage that was being attempted.
type Stage string

const (
	StageReceived  Stage = "received"
	StageParsed    Stage = "parsed"
	StageExtracted Stage = "extracted"
	StageAnalyzed  Stage = "analyzed"
	StagePublished Stage = "published"
	StageReported  Stage = "reported"
	StageFailed    Stage = "failed"
)

// Job tracks one request through the pipeline.
type Job struct {
	mu sync.Mutex

	ID          string
	IssueNumber int
	URL         string

	Stage       Stage
	FailedStage Stage
	Err         string

	Title    string
	Category string
	Tags     []string
	Path     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewJob(id string, issueNumber int) *Job {
	now := time.Now()
	return &Job{
		ID:          id,
		IssueNumber: issueNumber,
		Stage:       StageReceived,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SetStage records progress.
func (j *Job) SetStage(s Stage) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Stage = s
	j.UpdatedAt = time.Now()
}

// SetURL records the request's link once parsed.
func (j *Job) SetURL(u string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.URL = u
	j.UpdatedAt = time.Now()
}

// Fail moves the job to StageFailed.
func (j *Job) Fail(f *Failure) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Stage = StageFailed
	j.FailedStage = f.Stage
	j.Err = f.Error()
	j.UpdatedAt = time.Now()
}

// SetPublished records what was written.
func (j *Job) SetPublished(title, category string, tags []string, path string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Title = title
	j.Category = category
	j.Tags = append([]string(nil), tags...)
	j.Path = path
	j.Stage = StagePublished
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"id"`
	IssueNumber int       `json:"issue_number"`
	URL         string    `json:"url,omitempty"`
	Stage       Stage     `json:"stage"`
	FailedStage Stage     `json:"failed_stage,omitempty"`
	FailureKind Kind      `json:"failure_kind,omitempty"`
	Error       string    `json:"error,omitempty"`
	Title       string    `json:"title,omitempty"`
	Category    string    `json:"category,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Path        string    `json:"path,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	snap := JobSnapshot{
		ID:          j.ID,
		IssueNumber: j.IssueNumber,
		URL:         j.URL,
		Stage:       j.Stage,
		FailedStage: j.FailedStage,
		Error:       j.Err,
		Title:       j.Title,
		Category:    j.Category,
		Tags:        append([]string(nil), j.Tags...),
		Path:        j.Path,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if j.FailedStage != "" {
		snap.FailureKind = kindOf(j.FailedStage)
	}
	return snap
}

// JobStore is a thread-safe in-memory registry of recent jobs with TTL
// eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

// Put stores job and drops expired ones.
func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanupLocked(time.Now())
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of jobs held.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func (s *JobStore) cleanupLocked(now time.Time) {
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}
