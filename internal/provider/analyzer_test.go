package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baselinegate/baselinegate/internal/extract"
	"github.com/baselinegate/baselinegate/pkg/models"
)

const goodPayload = `{
	"compliance_score": 81,
	"recommendations": [
		{"title": "Replace :has() usage", "description": "Guard the :has() selector behind a feature query.", "tier": "high", "action_items": ["Add @supports selector(:has(a))"]},
		{"title": "Polyfill structuredClone", "description": "Older WebKit lacks structuredClone.", "tier": "medium", "action_items": []},
		{"title": "Prefer fetch over XHR", "description": "Simplifies error handling.", "tier": "low", "action_items": []}
	],
	"baseline_matches": [
		{"feature": "css-has", "status": "limited_availability", "confidence": 0.92}
	],
	"issues": [
		{"severity": "warning", "message": ":has() not widely available", "file": "src/app.css", "line": 14, "suggestion": "Use @supports"}
	]
}`

// fakeClient returns canned content without touching the network.
type fakeClient struct {
	content string
	err     error
	kind    Kind
	model   string
}

func (c *fakeClient) TestConnection(ctx context.Context) error { return c.err }

func (c *fakeClient) Complete(ctx context.Context, messages []Message) (*Response, error) {
	if c.err != nil {
		return nil, c.err
	}
	return &Response{Content: c.content, InputTokens: 1200, OutputTokens: 340, Model: c.model}, nil
}

func (c *fakeClient) Kind() Kind    { return c.kind }
func (c *fakeClient) Model() string { return c.model }

func testRepo() *extract.ProcessedRepository {
	return &extract.ProcessedRepository{
		RepoURL:    "https://github.com/acme/widgets",
		RepoName:   "acme/widgets",
		Content:    "body:has(.modal) { overflow: hidden; }",
		FileCount:  42,
		TotalBytes: 100000,
	}
}

func TestAnalyze_ParsesWellFormedResponse(t *testing.T) {
	client := &fakeClient{content: goodPayload, kind: KindOpenAI, model: "gpt-4o"}

	result, err := NewAnalyzer().Analyze(context.Background(), client, testRepo())
	require.NoError(t, err)

	assert.Equal(t, 81, result.ComplianceScore)
	assert.Len(t, result.Recommendations, 3)
	assert.Len(t, result.BaselineMatches, 1)
	assert.Len(t, result.Issues, 1)
	assert.Equal(t, "openai", result.Provider)
	assert.Equal(t, "gpt-4o", result.Model)
	assert.Equal(t, 1200, result.Usage.InputTokens)
	assert.Equal(t, 340, result.Usage.OutputTokens)
	assert.Equal(t, models.TierHigh, result.Recommendations[0].Tier)
}

func TestAnalyze_ToleratesMarkdownFences(t *testing.T) {
	client := &fakeClient{content: "```json\n" + goodPayload + "\n```", kind: KindGoogle, model: "gemini-2.0-flash"}

	result, err := NewAnalyzer().Analyze(context.Background(), client, testRepo())
	require.NoError(t, err)
	assert.Equal(t, 81, result.ComplianceScore)
}

func TestAnalyze_RejectsMalformedResponses(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"prose instead of JSON", "The repository looks mostly fine to me."},
		{"missing score", `{"recommendations": [], "baseline_matches": [], "issues": []}`},
		{"missing recommendations", `{"compliance_score": 50, "baseline_matches": [], "issues": []}`},
		{"missing baseline matches", `{"compliance_score": 50, "recommendations": [], "issues": []}`},
		{"missing issues", `{"compliance_score": 50, "recommendations": [], "baseline_matches": []}`},
		{"score out of range", `{"compliance_score": 140, "recommendations": [], "baseline_matches": [], "issues": []}`},
		{"truncated JSON", `{"compliance_score": 81, "recommendations": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &fakeClient{content: tt.content, kind: KindAnthropic, model: "claude-sonnet-4"}
			_, err := NewAnalyzer().Analyze(context.Background(), client, testRepo())
			require.Error(t, err)
		})
	}
}

func TestAnalyze_EmptyCollectionsAreValid(t *testing.T) {
	client := &fakeClient{
		content: `{"compliance_score": 100, "recommendations": [], "baseline_matches": [], "issues": []}`,
		kind:    KindOpenAI,
		model:   "gpt-4o",
	}

	result, err := NewAnalyzer().Analyze(context.Background(), client, testRepo())
	require.NoError(t, err)
	assert.Equal(t, 100, result.ComplianceScore)
	assert.Empty(t, result.Issues)
}

func TestBuildPrompt_TruncatesOversizedContent(t *testing.T) {
	repo := testRepo()
	repo.Content = string(make([]byte, maxPromptBytes+5000))

	prompt := buildPrompt(repo)
	assert.LessOrEqual(t, len(prompt), maxPromptBytes+500)
}
