package api

import (
	"net/http"
	"time"

	"github.com/baselinegate/baselinegate/internal/classify"
	"github.com/baselinegate/baselinegate/internal/database"
	"github.com/baselinegate/baselinegate/internal/export"
	"github.com/baselinegate/baselinegate/internal/jobs"
	"github.com/baselinegate/baselinegate/internal/pipeline"
	"github.com/baselinegate/baselinegate/pkg/models"
)

// submitRequest is the body of POST /api/analyses.
type submitRequest struct {
	RepoURL      string `json:"repo_url"`
	AnalysisType string `json:"analysis_type"`
	Priority     string `json:"priority"`
}

var validAnalysisTypes = map[string]bool{
	"compatibility":   true,
	"recommendations": true,
	"full":            true,
}

var validPriorities = map[string]bool{
	"low":    true,
	"normal": true,
	"high":   true,
}

// handleSubmitAnalysis accepts a repository for analysis and returns 202 with
// the job's queue placement. Validation failures are rejected synchronously
// with the classified category.
func (s *Server) handleSubmitAnalysis(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	var req submitRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.RepoURL == "" {
		writeError(w, http.StatusBadRequest, "repo_url is required")
		return
	}
	if req.AnalysisType == "" {
		req.AnalysisType = "full"
	}
	if !validAnalysisTypes[req.AnalysisType] {
		writeError(w, http.StatusBadRequest, "analysis_type must be compatibility, recommendations, or full")
		return
	}
	if req.Priority == "" {
		req.Priority = "normal"
	}
	if !validPriorities[req.Priority] {
		writeError(w, http.StatusBadRequest, "priority must be low, normal, or high")
		return
	}

	sub, err := s.pipe.Submit(r.Context(), pipeline.SubmitRequest{
		RepoURL:      req.RepoURL,
		UserID:       caller.UserID,
		TenantID:     caller.TenantID,
		AnalysisType: req.AnalysisType,
		Priority:     req.Priority,
	})
	if err != nil {
		writeSubmitError(w, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":                 sub.JobID,
		"status":                 sub.Status,
		"queue_position":         sub.Position,
		"estimated_wait_seconds": int(sub.EstimatedWait.Seconds()),
	})
}

// handleGetAnalysis returns a job's live status: queue placement while it is
// pending or processing, the result or classified error once terminal. Jobs
// already swept from the queue are served from the database.
func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}
	jobID := r.PathValue("jobID")

	view, err := s.pipe.Status(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	if view != nil && view.Job.TenantID == caller.TenantID {
		writeJSON(w, http.StatusOK, jobResponse(view))
		return
	}

	record, err := s.records.GetAnalysisByJobID(r.Context(), jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load analysis")
		return
	}
	if record == nil || record.TenantID != caller.TenantID {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, recordResponse(record))
}

// jobResponse shapes a queue-held job for the API.
func jobResponse(view *pipeline.JobView) map[string]any {
	job := view.Job
	resp := map[string]any{
		"job_id":        job.ID,
		"status":        job.Status,
		"repo_url":      job.RepoURL,
		"analysis_type": job.AnalysisType,
		"priority":      job.Priority,
		"created_at":    job.CreatedAt.Format(time.RFC3339),
		"updated_at":    job.UpdatedAt.Format(time.RFC3339),
	}

	if !job.Status.Terminal() && view.Snapshot != nil {
		resp["queue_position"] = view.Snapshot.Position
		resp["queue_total"] = view.Snapshot.Total
		resp["estimated_wait_seconds"] = int(view.Snapshot.EstimatedWait.Seconds())
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != nil {
		resp["error"] = errorBody(job.Error)
	}

	return resp
}

// recordResponse shapes a persisted analysis for the API, mirroring the
// terminal form of jobResponse.
func recordResponse(record *database.AnalysisRecord) map[string]any {
	resp := map[string]any{
		"job_id":      record.JobID,
		"status":      record.Status,
		"repo_url":    record.RepoURL,
		"credit_cost": record.CreditCost,
		"created_at":  record.CreatedAt.Format(time.RFC3339),
	}
	if record.Result != nil {
		resp["result"] = record.Result
	}
	if record.ErrorCode != nil {
		cerr := classify.New(classify.Code(*record.ErrorCode), "")
		if record.ErrorDetail != nil {
			cerr.Detail = *record.ErrorDetail
		}
		resp["error"] = errorBody(cerr)
	}
	return resp
}

func errorBody(cerr *classify.Error) map[string]any {
	body := map[string]any{
		"code":      cerr.Code,
		"message":   cerr.UserMessage(),
		"retryable": cerr.Retryable(),
	}
	if cerr.Stage != "" {
		body["stage"] = cerr.Stage
	}
	if delay := cerr.RetryAfter(); delay > 0 {
		body["retry_after_seconds"] = int(delay.Seconds())
	}
	return body
}

// handleListAnalyses returns the tenant's persisted analyses.
func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	limit, offset := parsePagination(r)
	var status *string
	if st := r.URL.Query().Get("status"); st != "" {
		if st != string(jobs.StatusCompleted) && st != string(jobs.StatusFailed) {
			writeError(w, http.StatusBadRequest, "status must be completed or failed")
			return
		}
		status = &st
	}

	analyses, err := s.records.ListTenantAnalyses(r.Context(), database.ListTenantAnalysesParams{
		TenantID: caller.TenantID,
		Limit:    limit,
		Offset:   offset,
		Status:   status,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}

	total, err := s.records.CountTenantAnalyses(r.Context(), caller.TenantID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to count analyses")
		return
	}

	items := make([]map[string]any, 0, len(analyses))
	for i := range analyses {
		items = append(items, recordResponse(&analyses[i]))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"analyses": items,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

// handleGateAnalysis applies quality-gate thresholds to a completed analysis.
func (s *Server) handleGateAnalysis(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	thresholds, err := parseGateThresholds(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, _, ok := s.completedResult(w, r, caller)
	if !ok {
		return
	}

	gate := models.EvaluateGate(result, thresholds)
	writeJSON(w, http.StatusOK, map[string]any{
		"gate":   gate,
		"result": result,
	})
}

// handleExportAnalysis renders a completed analysis as JSON, JUnit XML, or
// SARIF.
func (s *Server) handleExportAnalysis(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireCaller(w, r)
	if !ok {
		return
	}

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, repoURL, ok := s.completedResult(w, r, caller)
	if !ok {
		return
	}

	data, err := export.Render(format, repoURL, result)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to render export")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
