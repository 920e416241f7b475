package models

import "fmt"

// GateThresholds are caller-supplied limits for a quality-gate decision
type GateThresholds struct {
	MaxCritical int `json:"max_critical"`
	MaxWarnings int `json:"max_warnings"`
	MinScore    int `json:"min_score"`
}

// GateResult is a pass/fail decision derived from a completed analysis
type GateResult struct {
	Passed     bool           `json:"passed"`
	Violations []string       `json:"violations,omitempty"`
	Thresholds GateThresholds `json:"thresholds"`
}

// EvaluateGate applies thresholds to a completed result. Every violated
// threshold is reported, not just the first.
func EvaluateGate(result *AnalysisResult, t GateThresholds) GateResult {
	var violations []string

	if critical := result.CountBySeverity(SeverityCritical); critical > t.MaxCritical {
		violations = append(violations, fmt.Sprintf("critical issues: %d (max %d)", critical, t.MaxCritical))
	}
	if warnings := result.CountBySeverity(SeverityWarning); warnings > t.MaxWarnings {
		violations = append(violations, fmt.Sprintf("warning issues: %d (max %d)", warnings, t.MaxWarnings))
	}
	if result.ComplianceScore < t.MinScore {
		violations = append(violations, fmt.Sprintf("compliance score: %d (min %d)", result.ComplianceScore, t.MinScore))
	}

	return GateResult{
		Passed:     len(violations) == 0,
		Violations: violations,
		Thresholds: t,
	}
}
