package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Someblueman/lootforge/internal/contract"
	"github.com/Someblueman/lootforge/internal/manifest"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "normalize the manifest into a targets index",
	RunE:  runPlan,
}

func loadAndPlan() (*manifest.PlanResult, error) {
	registry := buildRegistry(cfg)

	m, raw, err := manifest.LoadManifest(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("lootforge: %w", err)
	}

	return manifest.Plan(m, raw, manifest.PlanOptions{
		Caps:        registry.CapabilityLookup(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

func runPlan(cmd *cobra.Command, args []string) error {
	result, err := loadAndPlan()
	printIssues(result)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	l := newLayout(outputRoot)
	if err := os.MkdirAll(l.jobsDir(), 0o755); err != nil {
		return fmt.Errorf("lootforge plan: %w", err)
	}
	if err := contract.WriteValidated(contract.KindTargetsIndex, result, l.targetsIndexPath()); err != nil {
		return fmt.Errorf("lootforge plan: %w", err)
	}

	stageSummary("plan", len(result.Targets), 0, countWarnings(result.Issues))
	fmt.Printf("wrote %s\n", l.targetsIndexPath())
	return nil
}

func printIssues(result *manifest.PlanResult) {
	if result == nil {
		return
	}
	for _, issue := range result.Issues {
		fmt.Printf("[%s] %s: %s (target=%s)\n", issue.Level, issue.Code, issue.Message, issue.TargetID)
	}
}

func countWarnings(issues []manifest.Issue) int {
	n := 0
	for _, i := range issues {
		if i.Level == "warning" {
			n++
		}
	}
	return n
}
