// Package selectlock implements the select and regenerate stages:
// emitting the selection-lock contract document from eval results plus
// provenance, and seeding edit-first regenerate jobs from a prior lock
// entry.
//
// The load/checkpoint-then-mutate shape is grounded on the teacher's
// campaign lifecycle persistence (internal/campaign/
// orchestrator_lifecycle.go): read a prior artifact, validate it still
// applies, write a new one.
package selectlock

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Someblueman/lootforge/internal/contract"
	"github.com/Someblueman/lootforge/internal/eval"
	"github.com/Someblueman/lootforge/internal/generate"
	"github.com/Someblueman/lootforge/internal/manifest"
)

// LockedTarget is one target's selection-lock entry.
type LockedTarget struct {
	ID                 string
	Approved           bool
	InputHash          string
	SelectedOutputPath string
	Provider           string
	Model              string
	FinalScore         float64
}

// Lock is the in-memory form of the kind "selection-lock" contract
// document.
type Lock struct {
	Targets []LockedTarget
}

// Build derives the selection lock from an eval report and the
// provenance run it was computed from: a target is approved exactly
// when it passed every hard gate (spec invariant: "approved mirrors
// passedHardGates"), and an approved target's selected output/provider
// are copied from its provenance result.
func Build(evalReport *eval.Report, run *generate.ProvenanceRun) *Lock {
	byJobTarget := map[string]generate.ProvenanceResult{}
	for _, r := range run.Results {
		byJobTarget[r.TargetID] = r
	}

	lock := &Lock{}
	for _, t := range evalReport.Targets {
		locked := LockedTarget{
			ID:         t.ID,
			Approved:   t.PassedHardGates,
			InputHash:  run.InputHash,
			FinalScore: t.FinalScore,
		}
		if locked.Approved {
			if pr, ok := byJobTarget[t.ID]; ok {
				locked.SelectedOutputPath = pr.PrimaryOutputPath
				locked.Provider = pr.Provider
				locked.Model = pr.Model
			}
		}
		lock.Targets = append(lock.Targets, locked)
	}
	return lock
}

type lockTargetDocument struct {
	ID                 string  `json:"id"`
	Approved           bool    `json:"approved"`
	InputHash          string  `json:"inputHash"`
	SelectedOutputPath string  `json:"selectedOutputPath,omitempty"`
	Provider           string  `json:"provider,omitempty"`
	Model              string  `json:"model,omitempty"`
	FinalScore         float64 `json:"finalScore"`
}

type lockDocument struct {
	ContractVersion string               `json:"contractVersion"`
	Targets         []lockTargetDocument `json:"targets"`
}

// Write validates and serializes the lock as the kind "selection-lock"
// contract document.
func (l *Lock) Write(contractVersion, artifactPath string) error {
	doc := lockDocument{ContractVersion: contractVersion}
	for _, t := range l.Targets {
		doc.Targets = append(doc.Targets, lockTargetDocument{
			ID: t.ID, Approved: t.Approved, InputHash: t.InputHash,
			SelectedOutputPath: t.SelectedOutputPath, Provider: t.Provider,
			Model: t.Model, FinalScore: t.FinalScore,
		})
	}
	return contract.WriteValidated(contract.KindSelectionLock, doc, artifactPath)
}

// Find looks up one target's lock entry.
func (l *Lock) Find(targetID string) (LockedTarget, bool) {
	for _, t := range l.Targets {
		if t.ID == targetID {
			return t, true
		}
	}
	return LockedTarget{}, false
}

// SeedRegenerate rewrites target into an edit-first regenerate request
// seeded from a prior approved selection-lock entry: the locked output
// becomes a high-fidelity base-role edit input, and
// regenerationSource records which lock entry seeded it. outputRoot is
// the generate run's output root, used to verify the locked path
// actually lives under pipeline-managed storage before trusting it as
// an edit input.
func SeedRegenerate(target *manifest.PlannedTarget, locked LockedTarget, outputRoot string) error {
	if !locked.Approved || locked.SelectedOutputPath == "" {
		return fmt.Errorf("selectlock: regenerate_missing_locked_output: target %s has no approved selection to seed from", target.ID)
	}
	if err := verifyUnderRoot(outputRoot, locked.SelectedOutputPath); err != nil {
		return fmt.Errorf("selectlock: regenerate_unsafe_locked_path: %w", err)
	}

	target.GenerationPolicy.GenerationMode = "edit-first"
	target.EditSpec = &manifest.EditSpec{
		Inputs:   []manifest.EditInput{{Path: locked.SelectedOutputPath, Role: "base"}},
		Fidelity: "high",
	}
	target.RegenerationSource = locked.ID
	return nil
}

// verifyUnderRoot confirms a locked output path still lives inside the
// pipeline's managed output root, so a hand-edited selection-lock
// document can never point a regenerate job's base image outside of it.
func verifyUnderRoot(root, path string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if absPath != absRoot && !strings.HasPrefix(absPath, absRoot+string(filepath.Separator)) {
		return fmt.Errorf("%q is outside the managed output root %q", path, root)
	}
	return nil
}
