package generate

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"time"

	"github.com/Someblueman/lootforge/internal/contract"
	"github.com/Someblueman/lootforge/internal/manifest"
)

// ProvenanceRun is the provenance-run contract document (spec §4.1,
// kind "provenance-run"): a complete record of what a generate
// invocation did, keyed by run id for later select/regenerate lookups.
type ProvenanceRun struct {
	ContractVersion string                `json:"contractVersion"`
	RunID           string                `json:"runId"`
	InputHash       string                `json:"inputHash"`
	StartedAt       string                `json:"startedAt"`
	FinishedAt      string                `json:"finishedAt"`
	Results         []ProvenanceResult    `json:"results"`
	Failures        []ProvenanceFailure   `json:"failures"`
}

// ProvenanceResult records one successfully completed job.
type ProvenanceResult struct {
	JobID             string                    `json:"jobId"`
	TargetID          string                    `json:"targetId"`
	Provider          string                    `json:"provider"`
	Model             string                    `json:"model"`
	Attempts          int                       `json:"attempts"`
	PrimaryOutputPath string                    `json:"primaryOutputPath"`
	Candidates        []provider_CandidateAlias `json:"candidates"`
	InputHash         string                    `json:"inputHash,omitempty"`
}

// provider_CandidateAlias avoids an import-name collision between this
// file's package and internal/provider's identically-named type while
// keeping the JSON shape identical to provider.CandidateOutput.
type provider_CandidateAlias struct {
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}

// ProvenanceFailure records a job that exhausted every provider in its
// fallback chain.
type ProvenanceFailure struct {
	JobID              string   `json:"jobId"`
	TargetID           string   `json:"targetId"`
	AttemptedProviders []string `json:"attemptedProviders"`
	FinalErrorCode     string   `json:"finalErrorCode,omitempty"`
	FinalErrorMessage  string   `json:"finalErrorMessage,omitempty"`
}

// buildProvenanceRun derives runID as sha256(inputHash:startTimestamp)[0:16]
// per spec §3/§4.5 step 1, unless the caller supplied one explicitly via
// Options.RunID.
func buildProvenanceRun(plan *manifest.PlanResult, outcomes []JobOutcome, clock func() time.Time, runID string) *ProvenanceRun {
	now := clock()
	run := &ProvenanceRun{
		ContractVersion: contract.Version,
		InputHash:       plan.InputHash,
		StartedAt:       now.Format(time.RFC3339Nano),
	}

	if runID != "" {
		run.RunID = runID
	} else {
		sum := sha256.Sum256([]byte(plan.InputHash + ":" + run.StartedAt))
		run.RunID = hex.EncodeToString(sum[:])[:16]
	}

	for _, o := range outcomes {
		if o.Succeeded && o.Result != nil {
			var candidates []provider_CandidateAlias
			for _, c := range o.Result.Candidates {
				candidates = append(candidates, provider_CandidateAlias{Path: c.Path, Bytes: c.Bytes})
			}
			run.Results = append(run.Results, ProvenanceResult{
				JobID:             o.JobID,
				TargetID:          o.TargetID,
				Provider:          o.Provider,
				Model:             o.Result.Model,
				Attempts:          o.Attempts,
				PrimaryOutputPath: o.Result.PrimaryOutputPath,
				Candidates:        candidates,
				InputHash:         o.Result.InputHash,
			})
		} else {
			f := ProvenanceFailure{
				JobID:              o.JobID,
				TargetID:           o.TargetID,
				AttemptedProviders: o.ProvidersTried,
			}
			if o.FinalError != nil {
				f.FinalErrorCode = o.FinalError.Code
				f.FinalErrorMessage = o.FinalError.Message
			}
			run.Failures = append(run.Failures, f)
		}
	}

	run.FinishedAt = clock().Format(time.RFC3339Nano)

	sort.Slice(run.Results, func(i, j int) bool { return run.Results[i].TargetID < run.Results[j].TargetID })
	sort.Slice(run.Failures, func(i, j int) bool { return run.Failures[i].TargetID < run.Failures[j].TargetID })

	return run
}

// Write validates the run document against the provenance-run schema
// and writes it to artifactPath.
func (r *ProvenanceRun) Write(artifactPath string) error {
	doc := *r
	doc.Results = append([]ProvenanceResult{}, r.Results...)
	for i := range doc.Results {
		if doc.Results[i].Candidates == nil {
			doc.Results[i].Candidates = []provider_CandidateAlias{}
		}
	}
	doc.Failures = append([]ProvenanceFailure{}, r.Failures...)
	for i := range doc.Failures {
		if doc.Failures[i].AttemptedProviders == nil {
			doc.Failures[i].AttemptedProviders = []string{}
		}
	}
	return contract.WriteValidated(contract.KindProvenanceRun, doc, artifactPath)
}
