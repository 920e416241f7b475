package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	gateMaxCritical int
	gateMaxWarnings int
	gateMinScore    int
	gateJSON        bool
)

var gateCmd = &cobra.Command{
	Use:   "gate <job-id>",
	Short: "Apply quality-gate thresholds to a completed analysis",
	Long: `Apply pass/fail thresholds to a completed analysis. Exits non-zero
when the gate fails, for use in CI pipelines.

Examples:
  baselinegate gate job-123
  baselinegate gate job-123 --max-critical 0 --max-warnings 3 --min-score 80`,
	Args: cobra.ExactArgs(1),
	RunE: runGate,
}

func init() {
	gateCmd.Flags().IntVar(&gateMaxCritical, "max-critical", 0, "Maximum critical issues allowed")
	gateCmd.Flags().IntVar(&gateMaxWarnings, "max-warnings", 5, "Maximum warning issues allowed")
	gateCmd.Flags().IntVar(&gateMinScore, "min-score", 70, "Minimum compliance score required")
	gateCmd.Flags().BoolVar(&gateJSON, "json", false, "Output gate decision as JSON")
}

func runGate(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverURL, apiToken)

	resp, err := client.gate(context.Background(), args[0], gateMaxCritical, gateMaxWarnings, gateMinScore)
	if err != nil {
		return err
	}

	if gateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
		if !resp.Gate.Passed {
			os.Exit(1)
		}
		return nil
	}

	if resp.Result != nil {
		fmt.Print("Score: ")
		scoreColor(resp.Result.ComplianceScore).Printf("%d/100\n", resp.Result.ComplianceScore)
	}

	if resp.Gate.Passed {
		green := color.New(color.FgGreen, color.Bold)
		_, _ = green.Println("GATE PASSED")
		return nil
	}

	red := color.New(color.FgRed, color.Bold)
	_, _ = red.Println("GATE FAILED")
	for _, v := range resp.Gate.Violations {
		fmt.Printf("  - %s\n", v)
	}
	os.Exit(1)
	return nil
}
