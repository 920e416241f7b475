// Package pipeline orchestrates repository analyses start to finish:
// validation, queueing, extraction polling, credit debit, provider
// failover, and persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/baselinegate/baselinegate/internal/classify"
	"github.com/baselinegate/baselinegate/internal/config"
	"github.com/baselinegate/baselinegate/internal/database"
	"github.com/baselinegate/baselinegate/internal/extract"
	"github.com/baselinegate/baselinegate/internal/jobs"
	"github.com/baselinegate/baselinegate/internal/provider"
	"github.com/baselinegate/baselinegate/internal/repocheck"
	"github.com/baselinegate/baselinegate/pkg/models"
)

// URLValidator checks that a repository URL is well formed and reachable.
type URLValidator interface {
	Validate(ctx context.Context, rawURL string) (*repocheck.RepositoryInfo, *classify.Error)
}

// AnalysisRunner runs an extracted repository through the tenant's providers.
type AnalysisRunner interface {
	Analyze(ctx context.Context, configs []provider.Config, repo *extract.ProcessedRepository) (*models.AnalysisResult, *classify.Error)
}

// CreditCharger debits the analysis cost before any provider is called.
type CreditCharger interface {
	Charge(ctx context.Context, tenantID string, totalBytes int64) (int, *classify.Error)
}

// ProviderSource supplies a tenant's provider configurations.
type ProviderSource interface {
	ListTenantProviders(ctx context.Context, tenantID string) ([]provider.Config, error)
}

// RecordStore persists finished analyses, successes and failures alike.
type RecordStore interface {
	CreateAnalysis(ctx context.Context, params database.CreateAnalysisParams) (*database.AnalysisRecord, error)
}

// DuplicateError reports a live submission for the same (url, user, tenant).
type DuplicateError struct {
	JobID string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("analysis already in progress: %s", e.JobID)
}

// Orchestrator drives a submission through the full lifecycle.
type Orchestrator struct {
	validator URLValidator
	queue     *jobs.Manager
	runner    AnalysisRunner
	ledger    CreditCharger
	providers ProviderSource
	records   RecordStore
	cfg       config.QueueConfig
	log       *logrus.Entry
}

func New(validator URLValidator, queue *jobs.Manager, runner AnalysisRunner, ledger CreditCharger, providers ProviderSource, records RecordStore, cfg config.QueueConfig, log *logrus.Entry) *Orchestrator {
	return &Orchestrator{
		validator: validator,
		queue:     queue,
		runner:    runner,
		ledger:    ledger,
		providers: providers,
		records:   records,
		cfg:       cfg,
		log:       log,
	}
}

// SubmitRequest describes a new analysis submission.
type SubmitRequest struct {
	RepoURL      string
	UserID       string
	TenantID     string
	AnalysisType string
	Priority     string
}

// Submission is the acceptance response for a queued analysis.
type Submission struct {
	JobID         string        `json:"job_id"`
	Status        jobs.Status   `json:"status"`
	Position      int           `json:"queue_position"`
	EstimatedWait time.Duration `json:"estimated_wait"`
}

// Submit validates the URL, rejects duplicate live submissions, queues the
// job, and starts the background analysis. Validation failures are returned
// immediately as classified errors; the job is never created.
func (o *Orchestrator) Submit(ctx context.Context, req SubmitRequest) (*Submission, error) {
	info, cerr := o.validator.Validate(ctx, req.RepoURL)
	if cerr != nil {
		return nil, cerr.WithStage("validating")
	}

	job, err := o.queue.Submit(ctx, jobs.SubmitParams{
		RepoURL:      req.RepoURL,
		UserID:       req.UserID,
		TenantID:     req.TenantID,
		AnalysisType: req.AnalysisType,
		Priority:     req.Priority,
		Info:         info,
	})
	if err != nil {
		var dup *jobs.DuplicateError
		if errors.As(err, &dup) {
			return nil, &DuplicateError{JobID: dup.JobID}
		}
		return nil, classify.Wrap(classify.CodePersistenceError, err)
	}

	snap, err := o.queue.QueuePosition(ctx, job.ID)
	if err != nil || snap == nil {
		snap = &jobs.Snapshot{Position: 1, Total: 1}
	}

	o.log.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"repo_url": req.RepoURL,
		"tenant":   req.TenantID,
		"position": snap.Position,
	}).Info("analysis queued")

	go o.runAnalysis(job.ID)

	return &Submission{
		JobID:         job.ID,
		Status:        job.Status,
		Position:      snap.Position,
		EstimatedWait: snap.EstimatedWait,
	}, nil
}

// JobView combines the job record with its live queue snapshot.
type JobView struct {
	Job      *jobs.Job
	Snapshot *jobs.Snapshot
}

// Status returns the job and, while it is non-terminal, its queue position.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (*JobView, error) {
	job, err := o.queue.Status(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	snap, err := o.queue.QueuePosition(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return &JobView{Job: job, Snapshot: snap}, nil
}

// runAnalysis waits for extraction, debits credits, runs the provider
// failover, and records the outcome. Every exit path leaves the job
// terminal and persisted.
func (o *Orchestrator) runAnalysis(jobID string) {
	ctx := context.Background()
	log := o.log.WithField("job_id", jobID)

	extracted, done := o.awaitExtraction(ctx, jobID, log)
	if done {
		return
	}
	if extracted == nil {
		o.fail(ctx, jobID, classify.New(classify.CodeProcessingTimeout,
			fmt.Sprintf("extraction did not finish within %d polls", o.cfg.PollMaxAttempts)).WithStage("extracting"))
		return
	}

	job, err := o.queue.Status(ctx, jobID)
	if err != nil || job == nil {
		log.WithError(err).Error("job disappeared before analysis")
		return
	}

	cost, cerr := o.ledger.Charge(ctx, job.TenantID, extracted.TotalBytes)
	if cerr != nil {
		o.fail(ctx, jobID, cerr.WithStage("analyzing"))
		return
	}

	configs, err := o.providers.ListTenantProviders(ctx, job.TenantID)
	if err != nil {
		o.fail(ctx, jobID, classify.Wrap(classify.CodePersistenceError, err).WithStage("analyzing"))
		return
	}

	result, cerr := o.runner.Analyze(ctx, configs, extracted)
	if cerr != nil {
		o.fail(ctx, jobID, cerr.WithStage("analyzing"))
		return
	}
	result.CreditCost = cost

	if err := o.queue.Complete(ctx, jobID, result); err != nil {
		log.WithError(err).Error("failed to mark job completed")
		return
	}
	o.persist(ctx, jobID)

	log.WithFields(logrus.Fields{
		"provider": result.Provider,
		"score":    result.ComplianceScore,
		"credits":  cost,
	}).Info("analysis completed")
}

// awaitExtraction polls the job until content is available. It returns
// (nil, true) when the job went terminal on its own (extraction failure
// already recorded), and (nil, false) when polling ran out of attempts.
func (o *Orchestrator) awaitExtraction(ctx context.Context, jobID string, log *logrus.Entry) (*extract.ProcessedRepository, bool) {
	for attempt := 0; attempt < o.cfg.PollMaxAttempts; attempt++ {
		job, err := o.queue.Status(ctx, jobID)
		if err != nil || job == nil {
			log.WithError(err).Error("lost track of job during extraction")
			return nil, true
		}
		if job.Status.Terminal() {
			// Extraction already failed the job; persist the outcome.
			o.persist(ctx, jobID)
			return nil, true
		}
		if job.Extracted != nil {
			return job.Extracted, false
		}
		time.Sleep(o.cfg.PollInterval)
	}
	return nil, false
}

// fail marks the job failed and persists the failure. Late failures
// against terminal jobs are no-ops in the queue, keeping the first
// outcome authoritative.
func (o *Orchestrator) fail(ctx context.Context, jobID string, cerr *classify.Error) {
	if err := o.queue.Fail(ctx, jobID, cerr); err != nil {
		o.log.WithError(err).WithField("job_id", jobID).Error("failed to mark job failed")
		return
	}
	o.log.WithFields(logrus.Fields{
		"job_id": jobID,
		"code":   cerr.Code,
		"stage":  cerr.Stage,
	}).Warn("analysis failed")
	o.persist(ctx, jobID)
}

// persist writes the job's terminal state to the database. Persistence
// problems are logged, not raised: the queue remains the live source of
// truth and the caller can still read the outcome from it.
func (o *Orchestrator) persist(ctx context.Context, jobID string) {
	job, err := o.queue.Status(ctx, jobID)
	if err != nil || job == nil {
		o.log.WithError(err).WithField("job_id", jobID).Error("cannot persist unknown job")
		return
	}

	params := database.CreateAnalysisParams{
		JobID:    job.ID,
		TenantID: job.TenantID,
		UserID:   job.UserID,
		RepoURL:  job.RepoURL,
		Status:   string(job.Status),
		Result:   job.Result,
	}
	if job.Result != nil {
		params.CreditCost = job.Result.CreditCost
	}
	if job.Error != nil {
		code := string(job.Error.Code)
		detail := job.Error.Detail
		params.ErrorCode = &code
		params.ErrorDetail = &detail
	}

	if _, err := o.records.CreateAnalysis(ctx, params); err != nil {
		o.log.WithError(err).WithField("job_id", jobID).Error("failed to persist analysis")
	}
}
