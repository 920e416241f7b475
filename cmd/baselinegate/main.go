// Package main provides the BaselineGate command-line client.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiToken  string
)

var rootCmd = &cobra.Command{
	Use:   "baselinegate",
	Short: "Baseline compliance analysis for web repositories",
	Long: `BaselineGate submits a repository to the analysis service and reports
how well its web-platform features align with Baseline.

Set BASELINEGATE_SERVER and BASELINEGATE_TOKEN, or pass --server and --token.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("BASELINEGATE_SERVER", "http://localhost:8080"), "API server URL")
	rootCmd.PersistentFlags().StringVar(&apiToken, "token", os.Getenv("BASELINEGATE_TOKEN"), "API bearer token")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(gateCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
