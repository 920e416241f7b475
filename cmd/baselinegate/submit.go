package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/baselinegate/baselinegate/pkg/models"
)

var (
	submitJSON   bool
	submitNoWait bool
)

const pollInterval = 3 * time.Second

var submitCmd = &cobra.Command{
	Use:   "submit <repo-url>",
	Short: "Submit a repository for Baseline analysis",
	Long: `Submit a repository URL for analysis and wait for the result.

Examples:
  baselinegate submit https://github.com/acme/webapp
  baselinegate submit https://github.com/acme/webapp --json
  baselinegate submit https://github.com/acme/webapp --no-wait`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().BoolVar(&submitJSON, "json", false, "Output result as JSON")
	submitCmd.Flags().BoolVar(&submitNoWait, "no-wait", false, "Print the job ID and exit without waiting")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	client := newAPIClient(serverURL, apiToken)

	sub, err := client.submit(ctx, args[0])
	if err != nil {
		return err
	}

	if submitNoWait {
		if submitJSON {
			return json.NewEncoder(os.Stdout).Encode(sub)
		}
		fmt.Printf("Queued: %s (position %d, ~%ds wait)\n", sub.JobID, sub.QueuePosition, sub.EstimatedWaitSeconds)
		return nil
	}

	job, err := waitForJob(ctx, client, sub.JobID, sub.QueuePosition)
	if err != nil {
		return err
	}

	if submitJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}

	if job.Error != nil {
		printFailure(job.Error)
		os.Exit(1)
	}
	printResult(job.RepoURL, job.Result)
	return nil
}

// waitForJob polls until the job is terminal. A spinner shows queue progress
// when stderr is a terminal.
func waitForJob(ctx context.Context, client *apiClient, jobID string, position int) (*jobStatus, error) {
	var spin *spinner.Spinner
	if isatty.IsTerminal(os.Stderr.Fd()) && !submitJSON {
		spin = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		spin.Suffix = fmt.Sprintf(" queued at position %d", position)
		spin.Start()
		defer spin.Stop()
	}

	for {
		job, err := client.status(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job.terminal() {
			return job, nil
		}

		if spin != nil {
			switch job.Status {
			case "pending":
				spin.Suffix = fmt.Sprintf(" queued at position %d (~%ds)", job.QueuePosition, job.EstimatedWaitSeconds)
			default:
				spin.Suffix = " analyzing repository"
			}
		}

		time.Sleep(pollInterval)
	}
}

func printFailure(jerr *jobError) {
	red := color.New(color.FgRed, color.Bold)
	_, _ = red.Fprintf(os.Stderr, "Analysis failed: %s\n", jerr.Message)
	fmt.Fprintf(os.Stderr, "  code: %s", jerr.Code)
	if jerr.Stage != "" {
		fmt.Fprintf(os.Stderr, "  stage: %s", jerr.Stage)
	}
	fmt.Fprintln(os.Stderr)
	if jerr.Retryable {
		if jerr.RetryAfterSeconds > 0 {
			fmt.Fprintf(os.Stderr, "  retry in %ds\n", jerr.RetryAfterSeconds)
		} else {
			fmt.Fprintln(os.Stderr, "  this failure is retryable")
		}
	}
}

func printResult(repoURL string, result *models.AnalysisResult) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	fmt.Println()
	_, _ = bold.Printf("Baseline compliance: ")
	scoreColor(result.ComplianceScore).Printf("%d/100\n", result.ComplianceScore)
	_, _ = dim.Println("  " + repoURL)
	fmt.Println()

	if len(result.Issues) > 0 {
		_, _ = bold.Println("ISSUES")
		for _, iss := range result.Issues {
			label := severityColor(iss.Severity).Sprintf("[%s]", strings.ToUpper(string(iss.Severity)))
			fmt.Printf("  %s %s", label, iss.Message)
			if iss.File != "" {
				if iss.Line > 0 {
					_, _ = dim.Printf("  (%s:%d)", iss.File, iss.Line)
				} else {
					_, _ = dim.Printf("  (%s)", iss.File)
				}
			}
			fmt.Println()
		}
		fmt.Println()
	}

	if len(result.Recommendations) > 0 {
		_, _ = bold.Println("RECOMMENDATIONS")
		for _, rec := range result.Recommendations {
			fmt.Printf("  - %s\n", rec.Title)
			if rec.Description != "" {
				_, _ = dim.Printf("    %s\n", rec.Description)
			}
		}
		fmt.Println()
	}

	_, _ = dim.Printf("Provider: %s (%s) | Tokens: %d | Credits: %d\n",
		result.Provider, result.Model, result.Usage.TotalTokens, result.CreditCost)
}

func scoreColor(score int) *color.Color {
	switch {
	case score >= 80:
		return color.New(color.FgGreen, color.Bold)
	case score >= 50:
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgRed, color.Bold)
	}
}

func severityColor(sev models.Severity) *color.Color {
	switch sev {
	case models.SeverityCritical:
		return color.New(color.FgRed)
	case models.SeverityWarning:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgCyan)
	}
}
