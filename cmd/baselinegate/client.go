package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/baselinegate/baselinegate/pkg/models"
)

// apiClient talks to the BaselineGate HTTP API.
type apiClient struct {
	client *resty.Client
}

func newAPIClient(baseURL, token string) *apiClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(30 * time.Second).
		SetHeader("Content-Type", "application/json")
	if token != "" {
		client.SetHeader("Authorization", "Bearer "+token)
	}
	return &apiClient{client: client}
}

// apiError is the server's error body for rejected requests.
type apiError struct {
	Message   string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
	JobID     string `json:"job_id"`
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return e.Message
}

type submitResponse struct {
	JobID                string `json:"job_id"`
	Status               string `json:"status"`
	QueuePosition        int    `json:"queue_position"`
	EstimatedWaitSeconds int    `json:"estimated_wait_seconds"`
}

// jobError is a classified failure attached to a terminal job.
type jobError struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	Retryable         bool   `json:"retryable"`
	Stage             string `json:"stage"`
	RetryAfterSeconds int    `json:"retry_after_seconds"`
}

type jobStatus struct {
	JobID                string                 `json:"job_id"`
	Status               string                 `json:"status"`
	RepoURL              string                 `json:"repo_url"`
	QueuePosition        int                    `json:"queue_position"`
	QueueTotal           int                    `json:"queue_total"`
	EstimatedWaitSeconds int                    `json:"estimated_wait_seconds"`
	Result               *models.AnalysisResult `json:"result"`
	Error                *jobError              `json:"error"`
}

func (j *jobStatus) terminal() bool {
	return j.Status == "completed" || j.Status == "failed"
}

type gateResponse struct {
	Gate   models.GateResult      `json:"gate"`
	Result *models.AnalysisResult `json:"result"`
}

func (c *apiClient) submit(ctx context.Context, repoURL string) (*submitResponse, error) {
	var out submitResponse
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"repo_url": repoURL}).
		SetResult(&out).
		SetError(&apiErr).
		Post("/api/analyses")
	if err != nil {
		return nil, fmt.Errorf("server unreachable: %w", err)
	}
	if resp.IsError() {
		return nil, &apiErr
	}
	return &out, nil
}

func (c *apiClient) status(ctx context.Context, jobID string) (*jobStatus, error) {
	var out jobStatus
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(&apiErr).
		Get("/api/analyses/" + jobID)
	if err != nil {
		return nil, fmt.Errorf("server unreachable: %w", err)
	}
	if resp.IsError() {
		return nil, &apiErr
	}
	return &out, nil
}

func (c *apiClient) gate(ctx context.Context, jobID string, maxCritical, maxWarnings, minScore int) (*gateResponse, error) {
	var out gateResponse
	var apiErr apiError
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"max_critical": fmt.Sprintf("%d", maxCritical),
			"max_warnings": fmt.Sprintf("%d", maxWarnings),
			"min_score":    fmt.Sprintf("%d", minScore),
		}).
		SetResult(&out).
		SetError(&apiErr).
		Get("/api/analyses/" + jobID + "/gate")
	if err != nil {
		return nil, fmt.Errorf("server unreachable: %w", err)
	}
	if resp.IsError() {
		return nil, &apiErr
	}
	return &out, nil
}
