// Package extract pulls repository content through the external ingestion
// service into an LLM-ready representation.
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/baselinegate/baselinegate/internal/classify"
	"github.com/baselinegate/baselinegate/internal/repocheck"
)

// ProcessedRepository is the normalized extraction output. Immutable once
// produced; referenced by exactly the job that created it.
type ProcessedRepository struct {
	RepoURL     string        `json:"repo_url"`
	RepoName    string        `json:"repo_name"`
	Content     string        `json:"content"`
	FileCount   int           `json:"file_count"`
	TotalBytes  int64         `json:"total_bytes"`
	Duration    time.Duration `json:"duration"`
	ExtractedAt time.Time     `json:"extracted_at"`
}

// Extractor is the client for the ingestion service.
type Extractor struct {
	client       *resty.Client
	maxRepoBytes int64
}

// Config holds extractor settings.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxRepoBytes int64
}

// New creates an ingestion-service client.
func New(cfg Config) *Extractor {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	return &Extractor{
		client:       client,
		maxRepoBytes: cfg.MaxRepoBytes,
	}
}

// ingestRequest is the ingestion service's extraction request.
type ingestRequest struct {
	RepoURL string `json:"repo_url"`
	Branch  string `json:"branch,omitempty"`
}

// ingestResponse is the ingestion service's extraction response.
type ingestResponse struct {
	Content    string `json:"content"`
	FileCount  int    `json:"file_count"`
	TotalBytes int64  `json:"total_bytes"`
	Error      string `json:"error,omitempty"`
}

// Extract pulls the repository's text content. Any failure is returned
// already classified. The repository size ceiling is enforced both before
// the call (hosting metadata) and after (actual extracted bytes).
func (e *Extractor) Extract(ctx context.Context, info *repocheck.RepositoryInfo, repoURL string) (*ProcessedRepository, *classify.Error) {
	if e.maxRepoBytes > 0 && info.SizeKB*1024 > e.maxRepoBytes {
		return nil, classify.New(classify.CodeRepoTooLarge,
			fmt.Sprintf("repository %s is %d KB, exceeds maximum size of %d bytes", info.FullName, info.SizeKB, e.maxRepoBytes))
	}

	start := time.Now()

	var out ingestResponse
	resp, err := e.client.R().
		SetContext(ctx).
		SetBody(ingestRequest{RepoURL: repoURL, Branch: info.DefaultBranch}).
		SetResult(&out).
		SetError(&out).
		Post("/v1/extract")
	if err != nil {
		return nil, classify.New(classify.CodeExtractionServiceError, fmt.Sprintf("ingestion service unreachable: %v", err))
	}
	if resp.IsError() {
		detail := out.Error
		if detail == "" {
			detail = resp.Status()
		}
		return nil, classify.New(classify.CodeExtractionServiceError, fmt.Sprintf("ingestion service error: %s", detail))
	}

	if out.Content == "" || out.FileCount == 0 {
		return nil, classify.New(classify.CodeRepoEmpty, fmt.Sprintf("no analyzable content extracted from %s", info.FullName))
	}
	if e.maxRepoBytes > 0 && out.TotalBytes > e.maxRepoBytes {
		return nil, classify.New(classify.CodeRepoTooLarge,
			fmt.Sprintf("extracted content is %d bytes, exceeds maximum size of %d bytes", out.TotalBytes, e.maxRepoBytes))
	}

	return &ProcessedRepository{
		RepoURL:     repoURL,
		RepoName:    info.FullName,
		Content:     out.Content,
		FileCount:   out.FileCount,
		TotalBytes:  out.TotalBytes,
		Duration:    time.Since(start),
		ExtractedAt: time.Now().UTC(),
	}, nil
}
