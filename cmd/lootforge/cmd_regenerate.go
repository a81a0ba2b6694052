package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Someblueman/lootforge/internal/contract"
	"github.com/Someblueman/lootforge/internal/generate"
	"github.com/Someblueman/lootforge/internal/manifest"
	"github.com/Someblueman/lootforge/internal/selectlock"
)

var regenerateTarget string

var regenerateCmd = &cobra.Command{
	Use:   "regenerate",
	Short: "reseed one target as an edit-first job from its locked selection and rerun it",
	RunE:  runRegenerate,
}

func init() {
	regenerateCmd.Flags().StringVar(&regenerateTarget, "target", "", "target id to regenerate (required)")
	regenerateCmd.MarkFlagRequired("target")
}

func runRegenerate(cmd *cobra.Command, args []string) error {
	l := newLayout(outputRoot)

	var lock selectlock.Lock
	if err := readArtifact(contract.KindSelectionLock, l.selectionLockPath(), &lock); err != nil {
		return fmt.Errorf("lootforge regenerate: %w", err)
	}
	locked, ok := lock.Find(regenerateTarget)
	if !ok {
		return fmt.Errorf("lootforge regenerate: no locked entry for target %q", regenerateTarget)
	}

	plan, err := loadAndPlan()
	if err != nil {
		return fmt.Errorf("lootforge regenerate: %w", err)
	}

	var target *manifest.PlannedTarget
	for i := range plan.Targets {
		if plan.Targets[i].ID == regenerateTarget {
			target = &plan.Targets[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("lootforge regenerate: target %q not found in plan", regenerateTarget)
	}

	if err := selectlock.SeedRegenerate(target, locked, l.rawDir()); err != nil {
		return fmt.Errorf("lootforge regenerate: %w", err)
	}

	singleton := &manifest.PlanResult{
		ContractVersion: plan.ContractVersion,
		GeneratedAt:     plan.GeneratedAt,
		InputHash:       plan.InputHash,
		Targets:         []manifest.PlannedTarget{*target},
	}

	registry := buildRegistry(cfg)
	run, outcomes, err := generate.Run(context.Background(), singleton, generate.Options{
		OutputRoot:        outputRoot,
		RawDir:            l.rawDir(),
		Registry:          registry,
		Logger:            logger,
		RequestedProvider: providerFlag,
		Metrics:           generate.DefaultMetrics(),
	})
	if err != nil {
		return fmt.Errorf("lootforge regenerate: %w", err)
	}

	if err := mergeProvenance(l.provenancePath(), run); err != nil {
		return fmt.Errorf("lootforge regenerate: %w", err)
	}

	succeeded := len(outcomes) > 0 && outcomes[0].Succeeded
	if succeeded {
		stageSummary("regenerate", 1, 0, 0)
	} else {
		stageSummary("regenerate", 0, 1, 0)
	}
	return nil
}

// mergeProvenance folds a single-target regenerate run into the existing
// provenance-run document, replacing that target's prior result/failure
// entries so provenance always reflects the latest attempt.
func mergeProvenance(path string, fresh *generate.ProvenanceRun) error {
	var existing generate.ProvenanceRun
	if err := readArtifact(contract.KindProvenanceRun, path, &existing); err != nil {
		existing = *fresh
		return existing.Write(path)
	}

	freshTargets := map[string]bool{}
	for _, r := range fresh.Results {
		freshTargets[r.TargetID] = true
	}
	for _, f := range fresh.Failures {
		freshTargets[f.TargetID] = true
	}

	var results []generate.ProvenanceResult
	for _, r := range existing.Results {
		if !freshTargets[r.TargetID] {
			results = append(results, r)
		}
	}
	results = append(results, fresh.Results...)

	var failures []generate.ProvenanceFailure
	for _, f := range existing.Failures {
		if !freshTargets[f.TargetID] {
			failures = append(failures, f)
		}
	}
	failures = append(failures, fresh.Failures...)

	existing.FinishedAt = fresh.FinishedAt
	existing.Results = results
	existing.Failures = failures
	return existing.Write(path)
}
