package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/baselinegate/baselinegate/internal/auth"
	"github.com/baselinegate/baselinegate/internal/classify"
	"github.com/baselinegate/baselinegate/internal/jobs"
	"github.com/baselinegate/baselinegate/internal/pipeline"
	"github.com/baselinegate/baselinegate/pkg/models"
)

// callerContext holds the authenticated caller for a request.
type callerContext struct {
	UserID   string
	TenantID string
}

// requireCaller validates the request carries authenticated claims with a
// tenant. The auth middleware normally guarantees this; handlers still check
// so they are safe when exercised directly.
func requireCaller(w http.ResponseWriter, r *http.Request) (*callerContext, bool) {
	ctx := r.Context()
	if !auth.IsAuthenticated(ctx) {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	tenantID := auth.TenantID(ctx)
	if tenantID == "" {
		writeError(w, http.StatusUnauthorized, "token missing tenant")
		return nil, false
	}
	return &callerContext{UserID: auth.UserID(ctx), TenantID: tenantID}, true
}

// writeClassified renders a classified pipeline error with the category's
// HTTP status, fixed user message, and retry guidance.
func writeClassified(w http.ResponseWriter, cerr *classify.Error) {
	body := map[string]any{
		"error":     cerr.UserMessage(),
		"code":      cerr.Code,
		"retryable": cerr.Retryable(),
	}
	if cerr.Stage != "" {
		body["stage"] = cerr.Stage
	}
	if delay := cerr.RetryAfter(); delay > 0 {
		seconds := int(delay.Seconds())
		body["retry_after_seconds"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	writeJSON(w, cerr.HTTPStatus(), body)
}

// writeSubmitError maps submission failures: duplicates get a 409 with the
// live job ID, everything else goes through the error taxonomy.
func writeSubmitError(w http.ResponseWriter, err error) {
	var dup *pipeline.DuplicateError
	if errors.As(err, &dup) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "an analysis for this repository is already in progress",
			"job_id": dup.JobID,
		})
		return
	}
	writeClassified(w, classify.Classify(err))
}

// completedResult resolves a finished analysis for gate and export handlers.
// It prefers the live queue, falls back to the database for cleaned-up jobs,
// and rejects jobs that are still running or that failed.
func (s *Server) completedResult(w http.ResponseWriter, r *http.Request, caller *callerContext) (*models.AnalysisResult, string, bool) {
	jobID := r.PathValue("jobID")

	view, err := s.pipe.Status(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return nil, "", false
	}
	if view != nil && view.Job.TenantID == caller.TenantID {
		job := view.Job
		if !job.Status.Terminal() {
			writeError(w, http.StatusConflict, "analysis is still in progress")
			return nil, "", false
		}
		if job.Status != jobs.StatusCompleted || job.Result == nil {
			writeError(w, http.StatusConflict, "analysis did not complete")
			return nil, "", false
		}
		return job.Result, job.RepoURL, true
	}

	record, err := s.records.GetAnalysisByJobID(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return nil, "", false
	}
	if record == nil || record.TenantID != caller.TenantID {
		writeError(w, http.StatusNotFound, "analysis not found")
		return nil, "", false
	}
	if record.Status != string(jobs.StatusCompleted) || record.Result == nil {
		writeError(w, http.StatusConflict, "analysis did not complete")
		return nil, "", false
	}
	return record.Result, record.RepoURL, true
}

// parsePagination extracts limit and offset from query parameters with defaults.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0

	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	return limit, offset
}

// Gate defaults applied when a threshold query parameter is absent.
const (
	defaultMaxCritical = 0
	defaultMaxWarnings = 5
	defaultMinScore    = 70
)

// parseGateThresholds reads gate thresholds from query parameters, falling
// back to the defaults for absent values.
func parseGateThresholds(r *http.Request) (models.GateThresholds, error) {
	t := models.GateThresholds{
		MaxCritical: defaultMaxCritical,
		MaxWarnings: defaultMaxWarnings,
		MinScore:    defaultMinScore,
	}

	q := r.URL.Query()
	for name, dst := range map[string]*int{
		"max_critical": &t.MaxCritical,
		"max_warnings": &t.MaxWarnings,
		"min_score":    &t.MinScore,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return t, fmt.Errorf("invalid %s: %q", name, raw)
		}
		*dst = parsed
	}

	return t, nil
}
