package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Someblueman/lootforge/internal/contract"
	"github.com/Someblueman/lootforge/internal/manifest"
	"github.com/Someblueman/lootforge/internal/selectlock"
)

var packageCmd = &cobra.Command{
	Use:   "package",
	Short: "assemble the distributable pack manifest from approved selections",
	RunE:  runPackage,
}

// packEntry is one approved target's entry in the distributable pack
// manifest: the runtime output path it was planned for and the
// processed file currently selected for it.
type packEntry struct {
	ID       string `json:"id"`
	Out      string `json:"out"`
	Source   string `json:"source"`
	Provider string `json:"provider,omitempty"`
}

type packManifestDocument struct {
	Name    string      `json:"name"`
	Targets []packEntry `json:"targets"`
}

func runPackage(cmd *cobra.Command, args []string) error {
	l := newLayout(outputRoot)

	var m manifest.Manifest
	if raw, err := os.ReadFile(manifestPath); err == nil {
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("lootforge package: parse manifest: %w", err)
		}
	}

	var plan manifest.PlanResult
	if err := readArtifact(contract.KindTargetsIndex, l.targetsIndexPath(), &plan); err != nil {
		return fmt.Errorf("lootforge package: %w", err)
	}
	var lock selectlock.Lock
	if err := readArtifact(contract.KindSelectionLock, l.selectionLockPath(), &lock); err != nil {
		return fmt.Errorf("lootforge package: %w", err)
	}

	catalog := map[string]string{}
	if raw, err := os.ReadFile(l.catalogPath()); err == nil {
		_ = json.Unmarshal(raw, &catalog)
	}

	byID := map[string]manifest.PlannedTarget{}
	for _, t := range plan.Targets {
		byID[t.ID] = t
	}

	doc := packManifestDocument{Name: m.Name}
	included, skipped := 0, 0
	for _, locked := range lock.Targets {
		if !locked.Approved {
			skipped++
			continue
		}
		target, ok := byID[locked.ID]
		if !ok {
			skipped++
			continue
		}
		// Spritesheet frames are assembled into their sheet and never
		// shipped individually; the sheet target carries the packaged out.
		if target.CatalogDisabled {
			skipped++
			continue
		}
		source, ok := catalog[locked.ID]
		if !ok {
			source = locked.SelectedOutputPath
		}
		doc.Targets = append(doc.Targets, packEntry{
			ID: locked.ID, Out: target.NormalizedOut, Source: source, Provider: locked.Provider,
		})
		included++
	}

	if err := os.MkdirAll(l.packDir(), 0o755); err != nil {
		return fmt.Errorf("lootforge package: %w", err)
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("lootforge package: %w", err)
	}
	if err := os.WriteFile(l.packManifestPath(), raw, 0o644); err != nil {
		return fmt.Errorf("lootforge package: %w", err)
	}

	stageSummary("package", included, skipped, 0)
	fmt.Printf("wrote %s\n", l.packManifestPath())
	return nil
}
