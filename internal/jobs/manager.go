package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/baselinegate/baselinegate/internal/classify"
	"github.com/baselinegate/baselinegate/internal/extract"
	"github.com/baselinegate/baselinegate/internal/repocheck"
	"github.com/baselinegate/baselinegate/pkg/models"
)

// ContentExtractor pulls repository content for a job.
type ContentExtractor interface {
	Extract(ctx context.Context, info *repocheck.RepositoryInfo, repoURL string) (*extract.ProcessedRepository, *classify.Error)
}

// Manager owns the job queue. All mutations go through a single mutex so
// job-id assignment and index insertion are serialized, preserving FIFO
// order under concurrent submissions. Reads are snapshots and take no part
// in that discipline.
type Manager struct {
	store     Store
	extractor ContentExtractor
	perJob    time.Duration
	log       *logrus.Entry

	mu  sync.Mutex
	now func() time.Time
}

// NewManager creates a queue manager. perJob is the fixed per-job duration
// assumption used for wait estimates.
func NewManager(store Store, extractor ContentExtractor, perJob time.Duration, log *logrus.Entry) *Manager {
	return &Manager{
		store:     store,
		extractor: extractor,
		perJob:    perJob,
		log:       log,
		now:       time.Now,
	}
}

// SubmitParams describes a new submission.
type SubmitParams struct {
	RepoURL      string
	UserID       string
	TenantID     string
	AnalysisType string
	Priority     string
	Info         *repocheck.RepositoryInfo
}

// DuplicateError reports that a non-terminal job already exists for the
// same (repo URL, user, tenant) triple.
type DuplicateError struct {
	JobID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("analysis already in progress: job %s", e.JobID)
}

// Submit creates a pending job, appends it to the queue, and starts content
// extraction in the background. The returned job reflects the state at
// submission time.
//
// The duplicate check and the insertion happen under the same mutex hold,
// so concurrent submissions of the same (repo URL, user, tenant) triple
// yield exactly one job; the losers get a DuplicateError carrying its id.
func (m *Manager) Submit(ctx context.Context, p SubmitParams) (*Job, error) {
	m.mu.Lock()
	existing, err := m.findActive(ctx, p.RepoURL, p.UserID, p.TenantID)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if existing != nil {
		m.mu.Unlock()
		return nil, &DuplicateError{JobID: existing.ID}
	}

	seq, err := m.store.NextSeq(ctx)
	if err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to assign queue position: %w", err)
	}

	now := m.now().UTC()
	job := &Job{
		ID:           uuid.NewString(),
		UserID:       p.UserID,
		TenantID:     p.TenantID,
		RepoURL:      p.RepoURL,
		AnalysisType: p.AnalysisType,
		Priority:     p.Priority,
		Status:       StatusPending,
		Seq:          seq,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := m.store.Put(ctx, job); err != nil {
		m.mu.Unlock()
		return nil, fmt.Errorf("failed to store job: %w", err)
	}
	m.mu.Unlock()

	go m.runExtraction(job.ID, p.Info, p.RepoURL)

	return job, nil
}

// runExtraction drives the content extractor for one job. Every failure
// path is written back to the job record before the goroutine exits.
func (m *Manager) runExtraction(jobID string, info *repocheck.RepositoryInfo, repoURL string) {
	ctx := context.Background()

	if _, err := m.update(ctx, jobID, func(j *Job) bool {
		if j.Status != StatusPending {
			return false
		}
		j.Status = StatusProcessing
		return true
	}); err != nil {
		m.log.WithError(err).WithField("job_id", jobID).Error("failed to mark job processing")
		return
	}

	processed, cerr := m.extractor.Extract(ctx, info, repoURL)
	if cerr != nil {
		if err := m.Fail(ctx, jobID, cerr.WithStage("extracting")); err != nil {
			m.log.WithError(err).WithField("job_id", jobID).Error("failed to record extraction failure")
		}
		return
	}

	if _, err := m.update(ctx, jobID, func(j *Job) bool {
		if j.Status != StatusProcessing {
			return false // job already failed elsewhere; late completion is a no-op
		}
		j.Extracted = processed
		return true
	}); err != nil {
		m.log.WithError(err).WithField("job_id", jobID).Error("failed to record extraction result")
	}
}

// Status returns the job, or nil when unknown.
func (m *Manager) Status(ctx context.Context, jobID string) (*Job, error) {
	return m.store.Get(ctx, jobID)
}

// FindActive returns a non-terminal job for (url, user, tenant), or nil.
func (m *Manager) FindActive(ctx context.Context, repoURL, userID, tenantID string) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findActive(ctx, repoURL, userID, tenantID)
}

// findActive is FindActive without the lock; callers hold m.mu.
func (m *Manager) findActive(ctx context.Context, repoURL, userID, tenantID string) (*Job, error) {
	active, err := m.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for _, j := range active {
		if j.RepoURL == repoURL && j.UserID == userID && j.TenantID == tenantID {
			return j, nil
		}
	}
	return nil, nil
}

// QueuePosition computes the job's 1-based rank among non-terminal jobs in
// submission order, with the estimated wait derived from the fixed per-job
// duration. Returns nil for unknown or terminal jobs.
func (m *Manager) QueuePosition(ctx context.Context, jobID string) (*Snapshot, error) {
	active, err := m.store.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	for i, j := range active {
		if j.ID == jobID {
			return &Snapshot{
				Position:      i + 1,
				Total:         len(active),
				EstimatedWait: time.Duration(i) * m.perJob,
			}, nil
		}
	}
	return nil, nil
}

// EstimateWait returns the wait a new submission would see, for the
// human-readable estimate returned at acceptance time.
func (m *Manager) EstimateWait(ctx context.Context) (time.Duration, error) {
	active, err := m.store.ListActive(ctx)
	if err != nil {
		return 0, err
	}
	return time.Duration(len(active)) * m.perJob, nil
}

// Complete marks the job completed with its result. Applying a completion
// to an already-terminal job is a no-op, not an error: a slow background
// analysis may finish after the orchestrator has timed the job out.
func (m *Manager) Complete(ctx context.Context, jobID string, result *models.AnalysisResult) error {
	_, err := m.update(ctx, jobID, func(j *Job) bool {
		if j.Status.Terminal() {
			return false
		}
		j.Status = StatusCompleted
		j.Result = result
		j.Error = nil
		return true
	})
	return err
}

// Fail marks the job failed with a classified error. No-op when the job is
// already terminal.
func (m *Manager) Fail(ctx context.Context, jobID string, cerr *classify.Error) error {
	_, err := m.update(ctx, jobID, func(j *Job) bool {
		if j.Status.Terminal() {
			return false
		}
		j.Status = StatusFailed
		j.Error = cerr
		return true
	})
	return err
}

// Cleanup removes terminal jobs whose last update is older than maxAge.
// Pending and processing jobs are never removed regardless of age: removing
// an in-flight job would orphan pending work. Returns the number removed.
func (m *Manager) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	terminal, err := m.store.ListTerminal(ctx)
	if err != nil {
		return 0, err
	}

	cutoff := m.now().UTC().Add(-maxAge)
	removed := 0
	for _, j := range terminal {
		if j.UpdatedAt.After(cutoff) {
			continue
		}
		if err := m.store.Delete(ctx, j.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// update applies a guarded mutation under the queue mutex. The apply func
// returns false to signal a no-op (the job stays untouched). The updated
// job is returned, or nil when the job does not exist.
func (m *Manager) update(ctx context.Context, jobID string, apply func(*Job) bool) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, err := m.store.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	if !apply(job) {
		return job, nil
	}

	job.UpdatedAt = m.now().UTC()
	if err := m.store.Put(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}
