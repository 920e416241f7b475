// Package export renders analysis results in machine-readable formats
// for CI integration: plain JSON, JUnit XML, and SARIF 2.1.0.
package export

import (
	"encoding/json"
	"fmt"

	"github.com/baselinegate/baselinegate/pkg/models"
)

// Format identifies an export format.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJUnit Format = "junit"
	FormatSARIF Format = "sarif"
)

// ParseFormat validates a format string from a request.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatJSON, FormatJUnit, FormatSARIF:
		return Format(s), nil
	case "":
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// ContentType returns the response content type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJUnit:
		return "application/xml"
	default:
		return "application/json"
	}
}

// Render serializes the result in the requested format. repoURL labels
// the artifact in formats that carry one.
func Render(f Format, repoURL string, result *models.AnalysisResult) ([]byte, error) {
	switch f {
	case FormatJSON:
		return json.MarshalIndent(result, "", "  ")
	case FormatJUnit:
		return renderJUnit(repoURL, result)
	case FormatSARIF:
		return renderSARIF(repoURL, result)
	}
	return nil, fmt.Errorf("unsupported export format %q", f)
}
