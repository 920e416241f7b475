package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/baselinegate/baselinegate/internal/extract"
	"github.com/baselinegate/baselinegate/pkg/models"
)

const systemPrompt = `You are an expert web platform compatibility analyst. You review repository source code against the Baseline set of web features and report how broadly compatible the code is across browsers.

Respond with a single JSON object and nothing else. No markdown fences, no commentary. The object must have exactly these fields:

{
  "compliance_score": <integer 0-100>,
  "recommendations": [
    {"title": "...", "description": "...", "tier": "high|medium|low", "action_items": ["..."]}
  ],
  "baseline_matches": [
    {"feature": "...", "status": "widely_available|limited_availability|not_available", "confidence": <0.0-1.0>}
  ],
  "issues": [
    {"severity": "critical|warning|info", "message": "...", "file": "...", "line": <integer>, "suggestion": "..."}
  ]
}

Scoring guidance:
- 90-100: only widely available features in use
- 60-89: mostly safe with a few limited-availability features
- 0-59: heavy reliance on limited or unavailable features

Flag every use of a web feature that is not widely available as an issue, with severity reflecting how likely it is to break for real users.`

// maxPromptBytes caps the repository content embedded in the prompt.
const maxPromptBytes = 100000

// Analyzer turns extracted repository content into a compliance analysis
// using a single provider client.
type Analyzer struct {
	now func() time.Time
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{now: time.Now}
}

// Analyze prompts the client and parses its response. Any response that
// does not carry the expected shape is reported as an error so failover
// can move on to the next provider.
func (a *Analyzer) Analyze(ctx context.Context, client Client, repo *extract.ProcessedRepository) (*models.AnalysisResult, error) {
	started := a.now()

	resp, err := client.Complete(ctx, []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: buildPrompt(repo)},
	})
	if err != nil {
		return nil, err
	}

	result, err := parseResult(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("%s returned an unusable response: %w", client.Kind(), err)
	}

	result.Provider = string(client.Kind())
	result.Model = resp.Model
	if result.Model == "" {
		result.Model = client.Model()
	}
	result.Usage = models.TokenUsage{
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
	}
	result.ProcessingTimeMS = a.now().Sub(started).Milliseconds()
	return result, nil
}

func buildPrompt(repo *extract.ProcessedRepository) string {
	content := repo.Content
	if len(content) > maxPromptBytes {
		content = content[:maxPromptBytes]
	}

	return fmt.Sprintf(`Analyze the web platform feature usage in this repository.

Repository: %s
Files: %d
Total size: %d bytes

Source:
%s`, repo.RepoName, repo.FileCount, repo.TotalBytes, content)
}

// resultPayload mirrors the response contract. Pointer fields distinguish
// a missing key from an empty collection.
type resultPayload struct {
	ComplianceScore *int                     `json:"compliance_score"`
	Recommendations *[]models.Recommendation `json:"recommendations"`
	BaselineMatches *[]models.BaselineMatch  `json:"baseline_matches"`
	Issues          *[]models.Issue          `json:"issues"`
}

func parseResult(content string) (*models.AnalysisResult, error) {
	raw := stripFences(content)

	var payload resultPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("response is not valid JSON: %w", err)
	}

	if payload.ComplianceScore == nil {
		return nil, fmt.Errorf("response missing compliance_score")
	}
	if *payload.ComplianceScore < 0 || *payload.ComplianceScore > 100 {
		return nil, fmt.Errorf("compliance_score %d out of range", *payload.ComplianceScore)
	}
	if payload.Recommendations == nil {
		return nil, fmt.Errorf("response missing recommendations")
	}
	if payload.BaselineMatches == nil {
		return nil, fmt.Errorf("response missing baseline_matches")
	}
	if payload.Issues == nil {
		return nil, fmt.Errorf("response missing issues")
	}

	return &models.AnalysisResult{
		ComplianceScore: *payload.ComplianceScore,
		Recommendations: *payload.Recommendations,
		BaselineMatches: *payload.BaselineMatches,
		Issues:          *payload.Issues,
	}, nil
}

// stripFences tolerates models that wrap JSON in markdown fences despite
// instructions not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
