package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/Someblueman/lootforge/internal/contract"
)

// PlanOptions configures a single Plan invocation.
type PlanOptions struct {
	// Caps resolves provider capabilities for validation and routing. A
	// nil Caps skips capability-dependent checks (used by tests that
	// only exercise path/uniqueness semantics).
	Caps CapabilityLookup
	// GeneratedAt is injected for deterministic tests; production callers pass
	// time.Now().UTC().Format(time.RFC3339).
	GeneratedAt string
}

// LoadManifest reads and JSON-decodes a manifest file. Structural
// validation (spec §4.2 step 1) is just "does this parse", since the
// manifest's Go struct shape is itself the schema.
func LoadManifest(path string) (*Manifest, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &m, raw, nil
}

// Plan runs the full normalization pipeline of spec §4.2 over an
// already-loaded manifest and its raw bytes (raw is hashed to produce
// the targets-index inputHash, per spec §4.5 step 1 / §3 Provenance
// Run). It returns a PlanResult even when there are only warning-level
// issues; it returns a *PlanError when any issue is error-level.
func Plan(m *Manifest, raw []byte, opts PlanOptions) (*PlanResult, error) {
	issues := validateManifest(m, opts.Caps)

	result := &PlanResult{
		ContractVersion: contract.Version,
		GeneratedAt:     opts.GeneratedAt,
		InputHash:       HashBytes(raw),
		Issues:          issues,
	}

	if hasErrorIssue(issues) {
		return result, &PlanError{Issues: issues}
	}

	var planned []PlannedTarget
	for _, t := range m.Targets {
		if t.Kind == "spritesheet" {
			planned = append(planned, expandSpritesheet(m, t)...)
			continue
		}
		pt := PlannedTarget{Target: t}
		resolveDefaults(m, &pt)
		routeProvider(&pt, opts.Caps)
		planned = append(planned, pt)
	}

	for i := range planned {
		pt := &planned[i]
		pt.JobID = ComputeJobID(
			pt.ResolvedProvider, pt.ResolvedModel, pt.ID, pt.Out, pt.ResolvedPrompt,
			pt.GenerationPolicy.Size, pt.GenerationPolicy.Quality, pt.ResolvedBackground,
			pt.ResolvedOutputFormat, effectiveCandidateCount(pt), result.InputHash,
		)
	}

	result.Targets = planned
	return result, nil
}

func effectiveCandidateCount(pt *PlannedTarget) int {
	if pt.GenerationPolicy.CandidateCount > 0 {
		return pt.GenerationPolicy.CandidateCount
	}
	return 1
}
