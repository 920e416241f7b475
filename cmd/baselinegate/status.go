package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the status of an analysis job",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output status as JSON")
}

func runStatus(cmd *cobra.Command, args []string) error {
	client := newAPIClient(serverURL, apiToken)

	job, err := client.status(context.Background(), args[0])
	if err != nil {
		return err
	}

	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(job)
	}

	fmt.Printf("Job:    %s\n", job.JobID)
	fmt.Printf("Status: %s\n", job.Status)
	if job.RepoURL != "" {
		fmt.Printf("Repo:   %s\n", job.RepoURL)
	}

	switch {
	case !job.terminal():
		fmt.Printf("Queue:  position %d of %d (~%ds wait)\n", job.QueuePosition, job.QueueTotal, job.EstimatedWaitSeconds)
	case job.Error != nil:
		printFailure(job.Error)
		os.Exit(1)
	case job.Result != nil:
		printResult(job.RepoURL, job.Result)
	}

	return nil
}
