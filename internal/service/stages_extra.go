package service

import (
	"encoding/json"
	"os"

	"github.com/Someblueman/lootforge/internal/contract"
	"github.com/Someblueman/lootforge/internal/manifest"
	"github.com/Someblueman/lootforge/internal/selectlock"
)

// AtlasGroups records which processed outputs belong to each declared
// atlas group (mirrors cmd/lootforge/cmd_atlas.go). Packing the grouped
// images into a texture atlas is an external collaborator (spec §1);
// this only resolves the declaration against the processed catalog.
type AtlasGroups struct {
	Groups map[string][]string `json:"groups"`
}

// Atlas runs the atlas-grouping resolution.
func (e *Engine) Atlas(p Params) (*AtlasGroups, error) {
	root := p.outputRoot(e.Config.Service.Out)
	l := newLayout(root)

	raw, err := os.ReadFile(p.manifestPath())
	if err != nil {
		return nil, err
	}
	var m manifest.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}

	doc := &AtlasGroups{Groups: map[string][]string{}}
	if m.Atlas == nil || len(m.Atlas.Groups) == 0 {
		return doc, nil
	}

	catalog := map[string]string{}
	if raw, err := os.ReadFile(l.catalogPath()); err == nil {
		_ = json.Unmarshal(raw, &catalog)
	}
	for group, members := range m.Atlas.Groups {
		for _, id := range members {
			if path, ok := catalog[id]; ok {
				doc.Groups[group] = append(doc.Groups[group], path)
			}
		}
	}
	return doc, nil
}

// ReviewRow is one target's reviewer-facing summary line (mirrors
// cmd/lootforge/cmd_review.go).
type ReviewRow struct {
	ID               string   `json:"id"`
	FinalScore       float64  `json:"finalScore"`
	PassedHardGates  bool     `json:"passedHardGates"`
	HardGateErrors   []string `json:"hardGateErrors,omitempty"`
	HardGateWarnings []string `json:"hardGateWarnings,omitempty"`
	Approved         bool     `json:"approved"`
	SelectedOutput   string   `json:"selectedOutputPath,omitempty"`
	Provider         string   `json:"provider,omitempty"`
}

// Review joins the eval report and selection lock into a human-facing
// summary. Rendering it into HTML is an out-of-scope external
// collaborator (spec §1).
func (e *Engine) Review(p Params) ([]ReviewRow, error) {
	root := p.outputRoot(e.Config.Service.Out)
	l := newLayout(root)

	var report struct {
		Targets []struct {
			ID               string   `json:"id"`
			FinalScore       float64  `json:"finalScore"`
			PassedHardGates  bool     `json:"passedHardGates"`
			HardGateErrors   []string `json:"hardGateErrors"`
			HardGateWarnings []string `json:"hardGateWarnings"`
		} `json:"targets"`
	}
	if err := readArtifact(contract.KindEvalReport, l.evalReportPath(), &report); err != nil {
		return nil, err
	}
	var lock selectlock.Lock
	if err := readArtifact(contract.KindSelectionLock, l.selectionLockPath(), &lock); err != nil {
		return nil, err
	}

	var rows []ReviewRow
	for _, t := range report.Targets {
		row := ReviewRow{
			ID: t.ID, FinalScore: t.FinalScore, PassedHardGates: t.PassedHardGates,
			HardGateErrors: t.HardGateErrors, HardGateWarnings: t.HardGateWarnings,
		}
		if locked, ok := lock.Find(t.ID); ok {
			row.Approved = locked.Approved
			row.SelectedOutput = locked.SelectedOutputPath
			row.Provider = locked.Provider
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// PackEntry is one approved target's entry in the distributable pack
// manifest (mirrors cmd/lootforge/cmd_package.go).
type PackEntry struct {
	ID       string `json:"id"`
	Out      string `json:"out"`
	Source   string `json:"source"`
	Provider string `json:"provider,omitempty"`
}

// PackManifest is the full distributable pack document.
type PackManifest struct {
	Name    string      `json:"name"`
	Targets []PackEntry `json:"targets"`
}

// Package assembles the distributable pack manifest from approved
// selections and the processed catalog.
func (e *Engine) Package(p Params) (*PackManifest, error) {
	root := p.outputRoot(e.Config.Service.Out)
	l := newLayout(root)

	var m manifest.Manifest
	if raw, err := os.ReadFile(p.manifestPath()); err == nil {
		_ = json.Unmarshal(raw, &m)
	}

	var plan manifest.PlanResult
	if err := readArtifact(contract.KindTargetsIndex, l.targetsIndexPath(), &plan); err != nil {
		return nil, err
	}
	var lock selectlock.Lock
	if err := readArtifact(contract.KindSelectionLock, l.selectionLockPath(), &lock); err != nil {
		return nil, err
	}

	catalog := map[string]string{}
	if raw, err := os.ReadFile(l.catalogPath()); err == nil {
		_ = json.Unmarshal(raw, &catalog)
	}

	byID := map[string]manifest.PlannedTarget{}
	for _, t := range plan.Targets {
		byID[t.ID] = t
	}

	doc := &PackManifest{Name: m.Name}
	for _, locked := range lock.Targets {
		if !locked.Approved {
			continue
		}
		target, ok := byID[locked.ID]
		if !ok || target.CatalogDisabled {
			continue
		}
		source, ok := catalog[locked.ID]
		if !ok {
			source = locked.SelectedOutputPath
		}
		doc.Targets = append(doc.Targets, PackEntry{
			ID: locked.ID, Out: target.NormalizedOut, Source: source, Provider: locked.Provider,
		})
	}
	return doc, nil
}
