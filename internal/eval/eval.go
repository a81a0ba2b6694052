// Package eval implements the evaluation stage: hard-gate aggregation
// from acceptance issues, soft-metric adapter fan-out, pack-level
// invariants (duplicate paths and texture budget; continuity across
// spritesheet frames is not checked), consistency-group outlier scoring,
// and the final per-target score.
package eval

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Someblueman/lootforge/internal/manifest"
	"github.com/Someblueman/lootforge/internal/process"
)

// TargetInput bundles everything one target needs to be evaluated.
type TargetInput struct {
	Target           *manifest.PlannedTarget
	AcceptanceIssues []process.AcceptanceIssue
	CandidateScore   float64
	FileSizeBytes    int64
}

// TargetResult is one target's eval-report entry.
type TargetResult struct {
	ID               string
	FinalScore       float64
	PassedHardGates  bool
	HardGateErrors   []string
	HardGateWarnings []string
}

// AdapterHealth tracks which soft-metric adapters were configured,
// actually ran, and failed (spec's adapterHealth contract field).
type AdapterHealth struct {
	Configured []string
	Active     []string
	Failed     []string
}

// Report is eval.go's in-memory result, convertible to the contract
// document via ToDocument.
type Report struct {
	Targets []TargetResult
	Health  AdapterHealth
}

// Adapter is a soft-metric scorer: a command-mode subprocess or an
// HTTP-mode endpoint (adapter.go), each returning a bonus added to the
// candidate's base score.
type Adapter interface {
	Name() string
	Score(ctx context.Context, target *manifest.PlannedTarget, imagePath string) (float64, error)
}

// Run evaluates every target: hard gates, pack invariants, soft-metric
// adapters, consistency-group outlier scoring, and the final weighted
// score (candidateScore + adapterBonus - consistencyPenalty -
// 1000*hardGateErrorCount). Adapter failures degrade to a warning
// recorded in Health.Failed rather than aborting the whole run — an
// unreachable scoring service should not block the rest of the pack.
func Run(ctx context.Context, inputs []TargetInput, manifestDoc *manifest.Manifest, adapters []Adapter) (*Report, error) {
	report := &Report{}
	for _, a := range adapters {
		report.Health.Configured = append(report.Health.Configured, a.Name())
	}

	packIssues := packInvariants(inputs, manifestDoc)
	consistencyPenalties := consistencyPenalties(inputs, manifestDoc)

	results := make([]TargetResult, len(inputs))
	bonuses := make([]float64, len(inputs))

	var mu sync.Mutex
	failedSet := map[string]bool{}
	var eg errgroup.Group
	for i := range inputs {
		i := i
		eg.Go(func() error {
			bonus, failedAdapters := runAdapters(ctx, adapters, inputs[i])
			mu.Lock()
			bonuses[i] = bonus
			for _, name := range failedAdapters {
				failedSet[name] = true
			}
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	for _, a := range adapters {
		if failedSet[a.Name()] {
			report.Health.Failed = append(report.Health.Failed, a.Name())
		} else if len(inputs) > 0 {
			report.Health.Active = append(report.Health.Active, a.Name())
		}
	}

	for i, in := range inputs {
		var errs, warns []string
		for _, iss := range in.AcceptanceIssues {
			if iss.Level == "error" {
				errs = append(errs, iss.Code)
			} else {
				warns = append(warns, iss.Code)
			}
		}
		if pi, ok := packIssues[in.Target.ID]; ok {
			for _, iss := range pi {
				if iss.Level == "error" {
					errs = append(errs, iss.Code)
				} else {
					warns = append(warns, iss.Code)
				}
			}
		}

		penalty := consistencyPenalties[in.Target.ID]
		final := in.CandidateScore + bonuses[i] - penalty - 1000*float64(len(errs))

		results[i] = TargetResult{
			ID:               in.Target.ID,
			FinalScore:       final,
			PassedHardGates:  len(errs) == 0,
			HardGateErrors:   errs,
			HardGateWarnings: warns,
		}
	}

	report.Targets = results
	return report, nil
}

func runAdapters(ctx context.Context, adapters []Adapter, in TargetInput) (float64, []string) {
	var total float64
	var failed []string
	for _, a := range adapters {
		score, err := a.Score(ctx, in.Target, "")
		if err != nil {
			failed = append(failed, a.Name())
			continue
		}
		total += score
	}
	return total, failed
}

// packInvariants computes cross-target rules: duplicate runtime
// out-paths and per-profile texture budget overruns.
func packInvariants(inputs []TargetInput, m *manifest.Manifest) map[string][]process.AcceptanceIssue {
	issues := map[string][]process.AcceptanceIssue{}

	byOut := map[string][]string{}
	for _, in := range inputs {
		if in.Target.CatalogDisabled {
			continue
		}
		out := in.Target.NormalizedOut
		byOut[out] = append(byOut[out], in.Target.ID)
	}
	for out, ids := range byOut {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		for _, id := range ids {
			others := make([]string, 0, len(ids)-1)
			for _, other := range ids {
				if other != id {
					others = append(others, other)
				}
			}
			issues[id] = append(issues[id], process.AcceptanceIssue{
				Level: "error", Code: "duplicate_output_path",
				Message: "normalized output path " + out + " collides with target(s) " + strings.Join(others, ", "),
			})
		}
	}

	if m != nil {
		for _, in := range inputs {
			profile, ok := m.EvaluationProfiles[in.Target.EvaluationProfile]
			if !ok || profile.TextureBudgetKB <= 0 {
				continue
			}
			if float64(in.FileSizeBytes) > profile.TextureBudgetKB*1024 {
				issues[in.Target.ID] = append(issues[in.Target.ID], process.AcceptanceIssue{
					Level: "error", Code: "exceeds_texture_budget",
					Message: "target exceeds evaluation profile texture budget",
				})
			}
		}
	}
	return issues
}

// consistencyPenalties scores each consistency-group member's deviation
// from the group's median candidate score, returning a per-target
// penalty that grows with distance from the group norm. A lone outlier
// in an otherwise tight group is penalized more than uniform drift
// across the whole group.
func consistencyPenalties(inputs []TargetInput, m *manifest.Manifest) map[string]float64 {
	penalties := map[string]float64{}
	if m == nil {
		return penalties
	}

	byGroup := map[string][]TargetInput{}
	for _, in := range inputs {
		if in.Target.ConsistencyGroup == "" {
			continue
		}
		byGroup[in.Target.ConsistencyGroup] = append(byGroup[in.Target.ConsistencyGroup], in)
	}

	for groupName, members := range byGroup {
		if len(members) < 2 {
			continue
		}
		cg := m.ConsistencyGroups[groupName]
		scores := make([]float64, len(members))
		for i, mem := range members {
			scores[i] = mem.CandidateScore
		}
		median := medianOf(scores)

		for _, mem := range members {
			deviation := math.Abs(mem.CandidateScore - median)
			switch {
			case cg.DriftErrorThreshold > 0 && deviation >= cg.DriftErrorThreshold:
				penalties[mem.Target.ID] = deviation * 10
			case cg.DriftWarnThreshold > 0 && deviation >= cg.DriftWarnThreshold:
				penalties[mem.Target.ID] = deviation * 2
			}
		}
	}
	return penalties
}

func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
