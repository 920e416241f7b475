// Package jobs owns the set of in-flight analysis jobs: FIFO ordering,
// queue position and wait estimates, status lookup, and terminal-job cleanup.
package jobs

import (
	"time"

	"github.com/baselinegate/baselinegate/internal/classify"
	"github.com/baselinegate/baselinegate/internal/extract"
	"github.com/baselinegate/baselinegate/pkg/models"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is final. Transitions are monotone:
// no job re-enters pending or processing once terminal.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one repository-analysis submission and its lifecycle state.
type Job struct {
	ID           string          `json:"id"`
	UserID       string          `json:"user_id"`
	TenantID     string          `json:"tenant_id"`
	RepoURL      string          `json:"repo_url"`
	AnalysisType string          `json:"analysis_type"`
	Priority     string          `json:"priority"` // stored, does not affect ordering
	Status       Status          `json:"status"`
	Seq          uint64          `json:"seq"` // monotonic submission order
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Error        *classify.Error `json:"error,omitempty"`

	// Extracted is set once content extraction succeeds; the job stays in
	// processing until the orchestrator finishes the full analysis.
	Extracted *extract.ProcessedRepository `json:"extracted,omitempty"`
	Result    *models.AnalysisResult       `json:"result,omitempty"`
}

// clone returns a deep-enough copy for handing out of the store: callers
// must never alias the store's own job state.
func (j *Job) clone() *Job {
	cp := *j
	if j.Extracted != nil {
		ex := *j.Extracted
		cp.Extracted = &ex
	}
	if j.Result != nil {
		res := *j.Result
		cp.Result = &res
	}
	if j.Error != nil {
		e := *j.Error
		cp.Error = &e
	}
	return &cp
}

// Snapshot is a derived queue view, recomputed on every query and never
// persisted.
type Snapshot struct {
	Position      int           `json:"position"` // 1-based among non-terminal jobs
	Total         int           `json:"total"`
	EstimatedWait time.Duration `json:"estimated_wait"`
}
