package export

import (
	"encoding/xml"
	"fmt"

	"github.com/baselinegate/baselinegate/pkg/models"
)

// failureThreshold is the severity at which an issue becomes a JUnit
// failure. Info-level findings render as passing cases with the message
// in the system-out.
const failureThreshold = models.SeverityWarning

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// renderJUnit maps each issue to a test case. Issues at or above the
// failure threshold fail their case; the compliance score gets a summary
// case so an empty issue list still produces a visible suite.
func renderJUnit(repoURL string, result *models.AnalysisResult) ([]byte, error) {
	cases := []junitTestCase{{
		Name:      "compliance score",
		Classname: repoURL,
		SystemOut: fmt.Sprintf("compliance score %d/100 (provider: %s)", result.ComplianceScore, result.Provider),
	}}
	failures := 0

	for _, iss := range result.Issues {
		tc := junitTestCase{
			Name:      caseName(iss),
			Classname: repoURL,
		}
		if iss.Severity.AtLeast(failureThreshold) {
			failures++
			tc.Failure = &junitFailure{
				Message: iss.Message,
				Type:    string(iss.Severity),
				Body:    iss.Suggestion,
			}
		} else {
			tc.SystemOut = iss.Message
		}
		cases = append(cases, tc)
	}

	suites := junitTestSuites{
		Name:     "baseline-compliance",
		Tests:    len(cases),
		Failures: failures,
		Suites: []junitTestSuite{{
			Name:     repoURL,
			Tests:    len(cases),
			Failures: failures,
			Cases:    cases,
		}},
	}

	out, err := xml.MarshalIndent(suites, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

func caseName(iss models.Issue) string {
	if iss.File == "" {
		return iss.Message
	}
	if iss.Line > 0 {
		return fmt.Sprintf("%s:%d %s", iss.File, iss.Line, iss.Message)
	}
	return fmt.Sprintf("%s %s", iss.File, iss.Message)
}
