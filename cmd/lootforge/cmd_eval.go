package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Someblueman/lootforge/internal/config"
	"github.com/Someblueman/lootforge/internal/contract"
	"github.com/Someblueman/lootforge/internal/eval"
	"github.com/Someblueman/lootforge/internal/manifest"
	"github.com/Someblueman/lootforge/internal/process"
	"github.com/Someblueman/lootforge/internal/scoring"
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "aggregate hard-gate, soft-metric, and consistency results into the eval report",
	RunE:  runEval,
}

func runEval(cmd *cobra.Command, args []string) error {
	l := newLayout(outputRoot)

	var m manifest.Manifest
	if raw, err := os.ReadFile(manifestPath); err == nil {
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("lootforge eval: parse manifest: %w", err)
		}
	}

	var plan manifest.PlanResult
	if err := readArtifact(contract.KindTargetsIndex, l.targetsIndexPath(), &plan); err != nil {
		return fmt.Errorf("lootforge eval: %w", err)
	}
	var accReport process.AcceptanceReport
	if err := readArtifact(contract.KindAcceptanceReport, l.acceptanceReportPath(), &accReport); err != nil {
		return fmt.Errorf("lootforge eval: %w", err)
	}

	catalog := map[string]string{}
	if raw, err := os.ReadFile(l.catalogPath()); err == nil {
		_ = json.Unmarshal(raw, &catalog)
	}

	byID := map[string]*manifest.PlannedTarget{}
	for i := range plan.Targets {
		byID[plan.Targets[i].ID] = &plan.Targets[i]
	}

	var inputs []eval.TargetInput
	for _, at := range accReport.Targets {
		target, ok := byID[at.ID]
		if !ok {
			continue
		}
		candidateScore := 0.0
		if outPath, ok := catalog[target.ID]; ok {
			if cs, err := scoring.Inspect(outPath, target.Acceptance, at.FileSizeBytes); err == nil {
				candidateScore = cs.ReadabilityScore
			}
		}
		inputs = append(inputs, eval.TargetInput{
			Target:           target,
			AcceptanceIssues: at.Issues,
			CandidateScore:   candidateScore,
			FileSizeBytes:    at.FileSizeBytes,
		})
	}

	adapters := buildAdapters(cfg)
	report, err := eval.Run(context.Background(), inputs, &m, adapters)
	if err != nil {
		return fmt.Errorf("lootforge eval: %w", err)
	}

	if err := os.MkdirAll(l.checksDir(), 0o755); err != nil {
		return fmt.Errorf("lootforge eval: %w", err)
	}
	if err := report.Write(contract.Version, l.evalReportPath()); err != nil {
		return fmt.Errorf("lootforge eval: %w", err)
	}

	passed, failed, warned := 0, 0, 0
	for _, t := range report.Targets {
		if t.PassedHardGates {
			passed++
		} else {
			failed++
		}
		warned += len(t.HardGateWarnings)
	}
	stageSummary("eval", passed, failed, warned)
	fmt.Printf("wrote %s\n", l.evalReportPath())
	return nil
}

func buildAdapters(c *config.Config) []eval.Adapter {
	var adapters []eval.Adapter
	for name, a := range c.Adapters {
		if !a.Enabled {
			continue
		}
		switch {
		case a.Cmd != "":
			adapters = append(adapters, &eval.CommandAdapter{AdapterName: name, Command: a.Cmd, Timeout: durationFromMs(a.TimeoutMs)})
		case a.URL != "":
			adapters = append(adapters, eval.NewHTTPAdapter(name, a.URL))
		}
	}
	return adapters
}

func durationFromMs(ms int) time.Duration {
	if ms <= 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
