package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "check the manifest for structural and semantic errors without writing an artifact",
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	result, err := loadAndPlan()
	printIssues(result)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	stageSummary("validate", len(result.Targets), 0, countWarnings(result.Issues))
	return nil
}
