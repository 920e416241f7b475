package models

// Severity represents the severity of a reported issue
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// severityRank orders severities from least to most severe.
var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityCritical: 2,
}

// AtLeast returns true if s is at or above the given severity.
func (s Severity) AtLeast(min Severity) bool {
	return severityRank[s] >= severityRank[min]
}

// Tier represents the priority tier of a recommendation
type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// SupportStatus describes cross-browser availability of a Baseline feature
type SupportStatus string

const (
	SupportWidely  SupportStatus = "widely_available"
	SupportLimited SupportStatus = "limited_availability"
	SupportNone    SupportStatus = "not_available"
)

// Recommendation is a prioritized improvement suggested by the analysis
type Recommendation struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Tier        Tier     `json:"tier"`
	ActionItems []string `json:"action_items,omitempty"`
}

// BaselineMatch records a web-platform feature detected in the repository
// together with its Baseline support status.
type BaselineMatch struct {
	Feature    string        `json:"feature"`
	Status     SupportStatus `json:"status"`
	Confidence float64       `json:"confidence"` // 0-1
}

// Issue is a single finding in the analyzed repository
type Issue struct {
	Severity   Severity `json:"severity"`
	Message    string   `json:"message"`
	File       string   `json:"file,omitempty"`
	Line       int      `json:"line,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// TokenUsage holds token accounting for a completed analysis
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// AnalysisResult represents the complete result of analyzing a repository.
// Immutable once produced.
type AnalysisResult struct {
	ComplianceScore  int              `json:"compliance_score"` // 0-100
	Recommendations  []Recommendation `json:"recommendations"`
	BaselineMatches  []BaselineMatch  `json:"baseline_matches"`
	Issues           []Issue          `json:"issues"`
	Usage            TokenUsage       `json:"usage"`
	Provider         string           `json:"provider"`
	Model            string           `json:"model"`
	ProcessingTimeMS int64            `json:"processing_time_ms"`
	CreditCost       int              `json:"credit_cost"`
}

// IssuesAtOrAbove returns issues at or above the given severity.
func (r *AnalysisResult) IssuesAtOrAbove(min Severity) []Issue {
	var out []Issue
	for _, iss := range r.Issues {
		if iss.Severity.AtLeast(min) {
			out = append(out, iss)
		}
	}
	return out
}

// CountBySeverity returns the number of issues with exactly the given severity.
func (r *AnalysisResult) CountBySeverity(sev Severity) int {
	n := 0
	for _, iss := range r.Issues {
		if iss.Severity == sev {
			n++
		}
	}
	return n
}
