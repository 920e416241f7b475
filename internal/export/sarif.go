package export

import (
	"encoding/json"

	"github.com/baselinegate/baselinegate/pkg/models"
)

// SARIF 2.1.0 output, the minimal subset code-scanning consumers accept.

type sarifLog struct {
	Version string     `json:"version"`
	Schema  string     `json:"$schema"`
	Runs    []sarifRun `json:"runs"`
}

type sarifRun struct {
	Tool    sarifTool     `json:"tool"`
	Results []sarifResult `json:"results"`
}

type sarifTool struct {
	Driver sarifDriver `json:"driver"`
}

type sarifDriver struct {
	Name           string `json:"name"`
	InformationURI string `json:"informationUri,omitempty"`
	Version        string `json:"version,omitempty"`
}

type sarifResult struct {
	RuleID    string          `json:"ruleId"`
	Level     string          `json:"level"`
	Message   sarifMessage    `json:"message"`
	Locations []sarifLocation `json:"locations,omitempty"`
}

type sarifMessage struct {
	Text string `json:"text"`
}

type sarifLocation struct {
	PhysicalLocation sarifPhysicalLocation `json:"physicalLocation"`
}

type sarifPhysicalLocation struct {
	ArtifactLocation sarifArtifactLocation `json:"artifactLocation"`
	Region           *sarifRegion          `json:"region,omitempty"`
}

type sarifArtifactLocation struct {
	URI string `json:"uri"`
}

type sarifRegion struct {
	StartLine int `json:"startLine"`
}

func sarifLevel(sev models.Severity) string {
	switch sev {
	case models.SeverityCritical:
		return "error"
	case models.SeverityWarning:
		return "warning"
	default:
		return "note"
	}
}

func renderSARIF(repoURL string, result *models.AnalysisResult) ([]byte, error) {
	results := make([]sarifResult, 0, len(result.Issues))
	for _, iss := range result.Issues {
		r := sarifResult{
			RuleID:  "baseline-compliance",
			Level:   sarifLevel(iss.Severity),
			Message: sarifMessage{Text: issueText(iss)},
		}
		if iss.File != "" {
			loc := sarifLocation{
				PhysicalLocation: sarifPhysicalLocation{
					ArtifactLocation: sarifArtifactLocation{URI: iss.File},
				},
			}
			if iss.Line > 0 {
				loc.PhysicalLocation.Region = &sarifRegion{StartLine: iss.Line}
			}
			r.Locations = []sarifLocation{loc}
		}
		results = append(results, r)
	}

	log := sarifLog{
		Version: "2.1.0",
		Schema:  "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json",
		Runs: []sarifRun{{
			Tool: sarifTool{Driver: sarifDriver{
				Name:           "baselinegate",
				InformationURI: repoURL,
			}},
			Results: results,
		}},
	}

	return json.MarshalIndent(log, "", "  ")
}

func issueText(iss models.Issue) string {
	if iss.Suggestion != "" {
		return iss.Message + " " + iss.Suggestion
	}
	return iss.Message
}
