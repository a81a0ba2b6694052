package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Someblueman/lootforge/internal/contract"
	"github.com/Someblueman/lootforge/internal/generate"
	"github.com/Someblueman/lootforge/internal/manifest"
	"github.com/Someblueman/lootforge/internal/process"
)

var strictProcess bool

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "run the post-process pipeline over every generated candidate and emit the acceptance report",
	RunE:  runProcess,
}

func init() {
	processCmd.Flags().BoolVar(&strictProcess, "strict", false, "abort a target's pipeline on its first write failure")
}

func runProcess(cmd *cobra.Command, args []string) error {
	l := newLayout(outputRoot)

	var plan manifest.PlanResult
	if err := readArtifact(contract.KindTargetsIndex, l.targetsIndexPath(), &plan); err != nil {
		return fmt.Errorf("lootforge process: %w", err)
	}
	var run generate.ProvenanceRun
	if err := readArtifact(contract.KindProvenanceRun, l.provenancePath(), &run); err != nil {
		return fmt.Errorf("lootforge process: %w", err)
	}

	byID := map[string]*manifest.PlannedTarget{}
	for i := range plan.Targets {
		byID[plan.Targets[i].ID] = &plan.Targets[i]
	}

	if err := os.MkdirAll(l.processedImagesDir(), 0o755); err != nil {
		return fmt.Errorf("lootforge process: %w", err)
	}

	xf := process.ReferenceTransformer{}
	catalog := map[string]string{}
	report := &process.AcceptanceReport{ContractVersion: contract.Version}

	sheetFrames := map[string][]process.FrameSource{}
	sheetSpecs := map[string]*manifest.SpritesheetSpec{}

	passed, failed, warned := 0, 0, 0

	for _, result := range run.Results {
		target, ok := byID[result.TargetID]
		if !ok {
			continue
		}

		res, err := process.Run(target, result.PrimaryOutputPath, l.processedImagesDir(), xf, strictProcess)
		if err != nil {
			failed++
			continue
		}

		wantW, wantH, _ := parseWxH(target.Acceptance.Size)
		at, err := process.NewAcceptanceTarget(target.ID, target.NormalizedOut, target.ResolvedAlpha, res, wantW, wantH, target.Acceptance.MaxFileSizeKB)
		if err != nil {
			failed++
			continue
		}
		report.Targets = append(report.Targets, at)
		catalog[target.ID] = res.OutputPath

		hasError := false
		for _, issue := range at.Issues {
			if issue.Level == "error" {
				hasError = true
			} else {
				warned++
			}
		}
		if hasError || res.Aborted {
			failed++
		} else {
			passed++
		}

		if !target.Spritesheet.IsSheet && target.Spritesheet.SheetID != "" {
			sheetFrames[target.Spritesheet.SheetID] = append(sheetFrames[target.Spritesheet.SheetID], process.FrameSource{
				AnimationName: target.Spritesheet.AnimationName,
				FrameIndex:    target.Spritesheet.FrameIndex,
				Path:          res.OutputPath,
			})
			if target.Target.Spritesheet != nil {
				sheetSpecs[target.Spritesheet.SheetID] = target.Target.Spritesheet
			}
		}
	}

	for sheetID, frames := range sheetFrames {
		spec, ok := sheetSpecs[sheetID]
		if !ok {
			continue
		}
		sheetPath := filepath.Join(l.processedImagesDir(), sheetID+".png")
		if err := process.AssembleSheet(spec, frames, sheetPath); err != nil {
			failed++
			continue
		}
		catalog[sheetID] = sheetPath
	}

	if err := report.Write(l.acceptanceReportPath()); err != nil {
		return fmt.Errorf("lootforge process: %w", err)
	}
	if err := writeCatalog(l.catalogPath(), catalog); err != nil {
		return fmt.Errorf("lootforge process: %w", err)
	}

	stageSummary("process", passed, failed, warned)
	fmt.Printf("wrote %s\n", l.acceptanceReportPath())
	return nil
}

func writeCatalog(path string, catalog map[string]string) error {
	raw, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func parseWxH(s string) (int, int, bool) {
	parts := strings.SplitN(s, "x", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	w, err1 := strconv.Atoi(parts[0])
	h, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return w, h, true
}
