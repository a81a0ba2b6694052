// Package service implements the HTTP facade named in spec §6: a thin
// boundary that invokes the same stage entry points the CLI commands
// drive (internal/manifest, internal/generate, internal/process,
// internal/eval, internal/selectlock), so POST /v1/tools/<name> runs the
// same stage logic as the matching `lootforge <name>` subcommand against
// the same output root. init is CLI-only; atlas, review and package
// return their documents in the response and, unlike the CLI, write no
// file.
//
// Grounded on the teacher's internal/mcp/transport_http.go server-side
// counterpart: a stdlib net/http mux dispatching JSON request bodies to
// named handlers, no third-party router (no pack repo uses one).
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Someblueman/lootforge/internal/config"
	"github.com/Someblueman/lootforge/internal/contract"
	"github.com/Someblueman/lootforge/internal/eval"
	"github.com/Someblueman/lootforge/internal/generate"
	"github.com/Someblueman/lootforge/internal/manifest"
	"github.com/Someblueman/lootforge/internal/process"
	"github.com/Someblueman/lootforge/internal/scoring"
	"github.com/Someblueman/lootforge/internal/selectlock"
)

// Params is the JSON body every POST /v1/tools/<name> request carries.
// Unused fields for a given tool are ignored.
type Params struct {
	ManifestPath string `json:"manifestPath"`
	OutputRoot   string `json:"outputRoot"`
	Provider     string `json:"provider"`
	Strict       bool   `json:"strict"`
	Edit         bool   `json:"edit"`
	Target       string `json:"target"`
	SkipLocked   bool   `json:"skipLocked"`
}

func (p Params) manifestPath() string {
	if p.ManifestPath != "" {
		return p.ManifestPath
	}
	return "assets/imagegen/manifest.json"
}

func (p Params) outputRoot(defaultOut string) string {
	if p.OutputRoot != "" {
		return p.OutputRoot
	}
	return defaultOut
}

// Engine bundles the configuration and logger every stage handler needs.
type Engine struct {
	Config *config.Config
	Logger *zap.Logger
}

func (e *Engine) loadAndPlan(p Params) (*manifest.PlanResult, error) {
	registry := buildRegistry(e.Config)
	m, raw, err := manifest.LoadManifest(p.manifestPath())
	if err != nil {
		return nil, err
	}
	return manifest.Plan(m, raw, manifest.PlanOptions{
		Caps:        registry.CapabilityLookup(),
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// Plan runs C2 and writes targets-index.json.
func (e *Engine) Plan(p Params) (*manifest.PlanResult, error) {
	result, err := e.loadAndPlan(p)
	if result == nil {
		return nil, err
	}
	if err != nil {
		return result, err
	}
	l := newLayout(p.outputRoot(e.Config.Service.Out))
	if err := os.MkdirAll(l.jobsDir(), 0o755); err != nil {
		return result, err
	}
	if err := contract.WriteValidated(contract.KindTargetsIndex, result, l.targetsIndexPath()); err != nil {
		return result, err
	}
	return result, nil
}

// Validate runs C2 without writing an artifact.
func (e *Engine) Validate(p Params) (*manifest.PlanResult, error) {
	return e.loadAndPlan(p)
}

// Generate runs C5 over the current plan and writes provenance/run.json.
func (e *Engine) Generate(p Params) (*generate.ProvenanceRun, error) {
	plan, err := e.loadAndPlan(p)
	if err != nil {
		return nil, err
	}
	root := p.outputRoot(e.Config.Service.Out)
	l := newLayout(root)
	registry := buildRegistry(e.Config)

	run, _, err := generate.Run(context.Background(), plan, generate.Options{
		OutputRoot:        root,
		RawDir:            l.rawDir(),
		Registry:          registry,
		Logger:            e.Logger,
		RequestedProvider: p.Provider,
		Metrics:           generate.DefaultMetrics(),
	})
	if run == nil {
		return nil, err
	}
	if mkErr := os.MkdirAll(l.provenanceDir(), 0o755); mkErr != nil {
		return run, mkErr
	}
	if writeErr := run.Write(l.provenancePath()); writeErr != nil {
		return run, writeErr
	}
	return run, err
}

// Regenerate reseeds one target as an edit-first job from its locked
// selection and reruns it, merging the result into provenance.
func (e *Engine) Regenerate(p Params) (*generate.ProvenanceRun, error) {
	if p.Target == "" {
		return nil, fmt.Errorf("service: regenerate requires a target id")
	}
	root := p.outputRoot(e.Config.Service.Out)
	l := newLayout(root)

	var lock selectlock.Lock
	if err := readArtifact(contract.KindSelectionLock, l.selectionLockPath(), &lock); err != nil {
		return nil, err
	}
	locked, ok := lock.Find(p.Target)
	if !ok {
		return nil, fmt.Errorf("service: no locked entry for target %q", p.Target)
	}

	plan, err := e.loadAndPlan(p)
	if err != nil {
		return nil, err
	}
	var target *manifest.PlannedTarget
	for i := range plan.Targets {
		if plan.Targets[i].ID == p.Target {
			target = &plan.Targets[i]
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("service: target %q not found in plan", p.Target)
	}

	if err := selectlock.SeedRegenerate(target, locked, l.rawDir()); err != nil {
		return nil, err
	}

	singleton := &manifest.PlanResult{
		ContractVersion: plan.ContractVersion,
		GeneratedAt:     plan.GeneratedAt,
		InputHash:       plan.InputHash,
		Targets:         []manifest.PlannedTarget{*target},
	}

	registry := buildRegistry(e.Config)
	run, _, err := generate.Run(context.Background(), singleton, generate.Options{
		OutputRoot:        root,
		RawDir:            l.rawDir(),
		Registry:          registry,
		Logger:            e.Logger,
		RequestedProvider: p.Provider,
		Metrics:           generate.DefaultMetrics(),
	})
	if err != nil {
		return run, err
	}
	if mergeErr := mergeProvenance(l.provenancePath(), run); mergeErr != nil {
		return run, mergeErr
	}
	return run, nil
}

func mergeProvenance(path string, fresh *generate.ProvenanceRun) error {
	var existing generate.ProvenanceRun
	if err := readArtifact(contract.KindProvenanceRun, path, &existing); err != nil {
		return fresh.Write(path)
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

// Process runs C7 over every provenance result and writes the
// acceptance report and processed-image catalog.
func (e *Engine) Process(p Params) (*process.AcceptanceReport, error) {
	root := p.outputRoot(e.Config.Service.Out)
	l := newLayout(root)

	var plan manifest.PlanResult
	if err := readArtifact(contract.KindTargetsIndex, l.targetsIndexPath(), &plan); err != nil {
		return nil, err
	}
	var run generate.ProvenanceRun
	if err := readArtifact(contract.KindProvenanceRun, l.provenancePath(), &run); err != nil {
		return nil, err
	}

	byID := map[string]*manifest.PlannedTarget{}
	for i := range plan.Targets {
		byID[plan.Targets[i].ID] = &plan.Targets[i]
	}

	if err := os.MkdirAll(l.processedImagesDir(), 0o755); err != nil {
		return nil, err
	}

	xf := process.ReferenceTransformer{}
	catalog := map[string]string{}
	report := &process.AcceptanceReport{ContractVersion: contract.Version}

	sheetFrames := map[string][]process.FrameSource{}
	sheetSpecs := map[string]*manifest.SpritesheetSpec{}

	for _, result := range run.Results {
		target, ok := byID[result.TargetID]
		if !ok {
			continue
		}
		res, err := process.Run(target, result.PrimaryOutputPath, l.processedImagesDir(), xf, p.Strict)
		if err != nil {
			if p.Strict {
				return report, err
			}
			continue
		}
		wantW, wantH, _ := parseWxH(target.Acceptance.Size)
		at, err := process.NewAcceptanceTarget(target.ID, target.NormalizedOut, target.ResolvedAlpha, res, wantW, wantH, target.Acceptance.MaxFileSizeKB)
		if err != nil {
			continue
		}
		report.Targets = append(report.Targets, at)
		catalog[target.ID] = res.OutputPath

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
		if err := process.AssembleSheet(spec, frames, sheetPath); err == nil {
			catalog[sheetID] = sheetPath
		}
	}

	if err := report.Write(l.acceptanceReportPath()); err != nil {
		return report, err
	}
	raw, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		return report, err
	}
	if err := os.WriteFile(l.catalogPath(), raw, 0o644); err != nil {
		return report, err
	}
	return report, nil
}

// Eval runs C8 and writes the eval report.
func (e *Engine) Eval(p Params) (*eval.Report, error) {
	root := p.outputRoot(e.Config.Service.Out)
	l := newLayout(root)

	var m manifest.Manifest
	if raw, err := os.ReadFile(p.manifestPath()); err == nil {
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, fmt.Errorf("service: parse manifest: %w", err)
		}
	}

	var plan manifest.PlanResult
	if err := readArtifact(contract.KindTargetsIndex, l.targetsIndexPath(), &plan); err != nil {
		return nil, err
	}
	var accReport process.AcceptanceReport
	if err := readArtifact(contract.KindAcceptanceReport, l.acceptanceReportPath(), &accReport); err != nil {
		return nil, err
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

	adapters := buildAdapters(e.Config)
	report, err := eval.Run(context.Background(), inputs, &m, adapters)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(l.checksDir(), 0o755); err != nil {
		return report, err
	}
	if err := report.Write(contract.Version, l.evalReportPath()); err != nil {
		return report, err
	}
	return report, nil
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

// Select runs C9's selection-lock emission.
func (e *Engine) Select(p Params) (*selectlock.Lock, error) {
	root := p.outputRoot(e.Config.Service.Out)
	l := newLayout(root)

	var report eval.Report
	if err := readArtifact(contract.KindEvalReport, l.evalReportPath(), &report); err != nil {
		return nil, err
	}
	var run generate.ProvenanceRun
	if err := readArtifact(contract.KindProvenanceRun, l.provenancePath(), &run); err != nil {
		return nil, err
	}

	lock := selectlock.Build(&report, &run)
	if err := os.MkdirAll(l.locksDir(), 0o755); err != nil {
		return lock, err
	}
	if err := lock.Write(contract.Version, l.selectionLockPath()); err != nil {
		return lock, err
	}
	return lock, nil
}

// GenerationRequest is the canonical end-to-end request body for
// POST /v1/generation/requests: plan, generate, process, eval, select in
// sequence against one manifest/output root, stopping at the first
// stage that returns an error.
type GenerationRequest struct {
	Params
}

// GenerationResponse summarizes every stage the canonical request ran.
type GenerationResponse struct {
	TargetsPlanned int  `json:"targetsPlanned"`
	JobsSucceeded  int  `json:"jobsSucceeded"`
	JobsFailed     int  `json:"jobsFailed"`
	TargetsApproved int `json:"targetsApproved"`
	TargetsRejected int `json:"targetsRejected"`
}

// RunGeneration drives the full plan -> generate -> process -> eval ->
// select pipeline for one request.
func (e *Engine) RunGeneration(req GenerationRequest) (*GenerationResponse, error) {
	plan, err := e.Plan(req.Params)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	run, err := e.Generate(req.Params)
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	if _, err := e.Process(req.Params); err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}
	if _, err := e.Eval(req.Params); err != nil {
		return nil, fmt.Errorf("eval: %w", err)
	}
	lock, err := e.Select(req.Params)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}

	resp := &GenerationResponse{TargetsPlanned: len(plan.Targets)}
	resp.JobsSucceeded = len(run.Results)
	resp.JobsFailed = len(run.Failures)
	for _, t := range lock.Targets {
		if t.Approved {
			resp.TargetsApproved++
		} else {
			resp.TargetsRejected++
		}
	}
	return resp, nil
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
