// Package provider implements C3 (the adapter interface every image
// provider must satisfy) and C4 (the registry and router that picks a
// provider + fallback chain for a target) from spec §4.3/§4.4.
package provider

import (
	"context"
	"fmt"

	"github.com/Someblueman/lootforge/internal/manifest"
)

// Feature is one of the capability predicates Supports(feature) answers.
type Feature string

const (
	FeatureImageGeneration   Feature = "image-generation"
	FeatureTransparentBG     Feature = "transparent-background"
	FeatureImageEdits        Feature = "image-edits"
	FeatureMultiCandidate    Feature = "multi-candidate"
	FeatureControlNet        Feature = "controlnet"
)

// Capabilities is the immutable capability record every adapter exposes
// (spec §4.3).
type Capabilities struct {
	DefaultOutputFormat           string
	SupportedOutputFormats        map[string]bool
	SupportsTransparentBackground bool
	SupportsEdits                 bool
	SupportsControlNet            bool
	MaxCandidates                 int
	DefaultConcurrency            int
	MinDelayMs                    int
}

// CandidateOutput is one file written by a successful runJob/runEditJob.
type CandidateOutput struct {
	Path      string
	Bytes     int64
	Width     int
	Height    int
	HasAlpha  bool
}

// CoarseToFineReport records a coarse-to-fine draft/refine pass, when the
// target's generation policy enables it (spec §4.6, §9 Open Question 1).
type CoarseToFineReport struct {
	DraftCandidates    []CandidateOutput
	PromotedPaths      []string
	DiscardedDrafts    []DiscardedDraft
}

// DiscardedDraft records why a coarse-to-fine draft was not promoted.
type DiscardedDraft struct {
	Path   string
	Reason string
}

// EditProvenance records edit-first / regeneration lineage for a run
// result (spec §3 ProviderRunResult).
type EditProvenance struct {
	GenerationMode         string
	RegenerationSourceLock string
	LockSelectedOutputPath string
}

// RunResult is the output of one successful job attempt (spec §3
// ProviderRunResult).
type RunResult struct {
	Provider           string
	Model              string
	PrimaryOutputPath  string
	Candidates         []CandidateOutput
	CoarseToFine       *CoarseToFineReport
	Edit               *EditProvenance
	StartedAt          string
	FinishedAt         string
	InputHash          string
}

// Error wraps any failure an adapter raises into the normalized shape of
// spec §4.3.
type Error struct {
	Provider   string
	Code       string
	Message    string
	Actionable bool
	Status     int
	Cause      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%s)", e.Provider, e.Message, e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

// nonRetriableSuffixes are the per-provider error-code families that are
// always fatal regardless of which provider raised them: an unsupported
// edit model, a missing base/reference image for an edit-first job, or a
// reference path that failed the edit-safety check (spec §4.5/§7: "safety
// errors... fatal, never retried").
var nonRetriableSuffixes = []string{
	"_edit_unsupported_model",
	"_edit_missing_base_image",
	"_edit_input_unsafe_path",
}

// Retriable reports whether the retry/fallback walker (spec §4.5) should
// attempt this job again after this error. Safety errors and
// configuration errors (missing API key, unsupported edit model, missing
// base image, unsafe reference path) are never retried.
func (e *Error) Retriable() bool {
	switch e.Code {
	case "missing_api_key":
		return false
	}
	for _, suffix := range nonRetriableSuffixes {
		if len(e.Code) > len(suffix) && e.Code[len(e.Code)-len(suffix):] == suffix {
			return false
		}
	}
	return true
}

// RunContext carries the per-invocation knobs an adapter needs: the run's
// raw output directory, and a cancellable context for suspension points
// (spec §5).
type RunContext struct {
	Ctx       context.Context
	RawDir    string
	OutputRoot string
}

// Provider is the uniform contract every image provider adapter
// satisfies (spec §4.3).
type Provider interface {
	Name() string
	Capabilities() Capabilities
	Supports(feature Feature) bool
	PrepareJobs(targets []*manifest.PlannedTarget, rc RunContext) ([]*manifest.ProviderJob, error)
	RunJob(job *manifest.ProviderJob, rc RunContext) (*RunResult, error)
	RunEditJob(job *manifest.ProviderJob, rc RunContext) (*RunResult, error)
	NormalizeError(err error) *Error
}
