// Package generate implements the generate orchestrator: it reads a
// validated targets index, fans jobs out across providers under a
// per-provider worker pool and rate limit, walks the retry/fallback
// chain on failure, and emits a provenance-run contract document
// recording exactly what happened.
//
// The worker-pool/slot bookkeeping is grounded on the teacher's
// APIScheduler (internal/core/api_scheduler.go): a semaphore channel
// per provider bounds concurrency. The Phase enum below names a job's
// lifecycle states; Run does not record a phase on its jobs and reports
// progress through Event values instead.
package generate

import (
	"context"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Someblueman/lootforge/internal/manifest"
	"github.com/Someblueman/lootforge/internal/provider"
)

// Phase mirrors the teacher's ShardPhase enum, renamed to this
// package's domain: where one job currently sits in its lifecycle.
type Phase int

const (
	PhaseQueued Phase = iota
	PhaseRunning
	PhaseRetrying
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseQueued:
		return "queued"
	case PhaseRunning:
		return "running"
	case PhaseRetrying:
		return "retrying"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Event is one progress notification emitted during a run (spec §5).
// EventID correlates a single emission for whatever reads
// Options.Events; it has no bearing on the deterministic provenance-run
// document, which is keyed by JobID.
type Event struct {
	EventID   string
	Kind      string // "prepare", "job_start", "job_finish", "job_error"
	JobID     string
	TargetID  string
	Provider  string
	Attempt   int
	Message   string
	Timestamp time.Time
}

// Options configures one generate run.
type Options struct {
	OutputRoot        string
	RawDir            string
	Registry          *provider.Registry
	Logger            *zap.Logger
	Events            chan<- Event
	RequestedProvider string
	Clock             func() time.Time
	Metrics           *Metrics
	// RunID, if non-empty, is used verbatim as the provenance run's id
	// instead of the derived sha256(inputHash:startTimestamp)[0:16]
	// (spec §3/§4.5 step 1: "unless the caller supplied one").
	RunID string
}

// JobOutcome is the per-job record folded into the provenance run.
type JobOutcome struct {
	JobID         string
	TargetID      string
	Provider      string
	Attempts      int
	Succeeded     bool
	FinalError    *provider.Error
	Result        *provider.RunResult
	ProvidersTried []string
}

// Run fans every ProviderJob in plan out to its routed provider,
// respecting per-provider concurrency and rate limits, retries failures
// per spec §4.5, and returns one JobOutcome per job plus a provenance
// run document ready for contract.WriteValidated.
func Run(ctx context.Context, plan *manifest.PlanResult, opts Options) (*ProvenanceRun, []JobOutcome, error) {
	if opts.Registry == nil {
		return nil, nil, fmt.Errorf("generate: registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := opts.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}

	emit := func(e Event) {
		e.EventID = uuid.NewString()
		e.Timestamp = clock()
		if opts.Events != nil {
			select {
			case opts.Events <- e:
			default:
			}
		}
	}

	if err := os.MkdirAll(opts.RawDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("generate: create raw dir: %w", err)
	}

	emit(Event{Kind: "prepare", Message: fmt.Sprintf("preparing %d targets", len(plan.Targets))})

	jobsByProvider := map[string][]*manifest.ProviderJob{}
	jobTarget := map[string]*manifest.PlannedTarget{}
	var allJobs []*manifest.ProviderJob

	for i := range plan.Targets {
		t := &plan.Targets[i]
		if t.GenerationDisabled {
			continue
		}
		route, err := opts.Registry.RouteTarget(t, opts.RequestedProvider)
		if err != nil {
			logger.Warn("routing failed", zap.String("target", t.ID), zap.Error(err))
			continue
		}
		adapter, ok := opts.Registry.Get(route.Primary)
		if !ok {
			continue
		}
		rc := provider.RunContext{Ctx: ctx, RawDir: opts.RawDir, OutputRoot: opts.OutputRoot}
		jobs, err := adapter.PrepareJobs([]*manifest.PlannedTarget{t}, rc)
		if err != nil {
			logger.Warn("prepare jobs failed", zap.String("target", t.ID), zap.Error(err))
			continue
		}
		for _, j := range jobs {
			jobsByProvider[route.Primary] = append(jobsByProvider[route.Primary], j)
			jobTarget[j.ID] = t
			allJobs = append(allJobs, j)
		}
	}

	outcomes := make([]JobOutcome, len(allJobs))
	idxByID := map[string]int{}
	for i, j := range allJobs {
		idxByID[j.ID] = i
	}

	var mu sync.Mutex
	eg, egCtx := errgroup.WithContext(ctx)

	for providerName, jobs := range jobsByProvider {
		providerName := providerName
		jobs := jobs

		adapter, _ := opts.Registry.Get(providerName)
		caps := adapter.Capabilities()
		concurrency := caps.DefaultConcurrency
		if concurrency <= 0 {
			concurrency = 1
		}
		if jobs[0].ProviderConcurrency > 0 {
			concurrency = jobs[0].ProviderConcurrency
		}

		sem := make(chan struct{}, concurrency)
		var lastRunAt time.Time
		var rateMu sync.Mutex
		minDelayMs := caps.MinDelayMs

		for _, job := range jobs {
			job := job
			eg.Go(func() error {
				sem <- struct{}{}
				defer func() { <-sem }()

				rateDelay := 0
				if job.RateLimitPerMinute > 0 {
					rateDelay = int(math.Ceil(60000.0 / float64(job.RateLimitPerMinute)))
				}
				delayMs := rateDelay
				if minDelayMs > delayMs {
					delayMs = minDelayMs
				}
				if delayMs > 0 {
					rateMu.Lock()
					now := clock()
					next := lastRunAt.Add(time.Duration(delayMs) * time.Millisecond)
					if next.Before(now) {
						next = now
					}
					lastRunAt = next
					rateMu.Unlock()
					if wait := next.Sub(now); wait > 0 {
						select {
						case <-time.After(wait):
						case <-egCtx.Done():
							return egCtx.Err()
						}
					}
				}

				jobStart := clock()
				outcome := runWithFallback(egCtx, job, jobTarget[job.ID], providerName, opts, logger, emit)
				opts.Metrics.observe(providerName, outcome.Succeeded, clock().Sub(jobStart).Seconds())

				mu.Lock()
				outcomes[idxByID[job.ID]] = outcome
				mu.Unlock()
				return nil
			})
		}
	}

	if err := eg.Wait(); err != nil && egCtx.Err() != nil {
		return nil, outcomes, err
	}

	run := buildProvenanceRun(plan, outcomes, clock, opts.RunID)
	return run, outcomes, nil
}

// runWithFallback attempts job on providerName, retrying up to
// job.MaxRetries+1 times with exponential backoff capped at 5s (spec
// §4.5), then walks job.FallbackProviders in order if every attempt on
// the primary provider is exhausted.
func runWithFallback(ctx context.Context, job *manifest.ProviderJob, target *manifest.PlannedTarget, primary string, opts Options, logger *zap.Logger, emit func(Event)) JobOutcome {
	outcome := JobOutcome{JobID: job.ID, TargetID: job.TargetID}

	candidates := append([]string{primary}, job.FallbackProviders...)
	seen := map[string]bool{}
	var uniqueCandidates []string
	for _, c := range candidates {
		if seen[c] {
			continue
		}
		seen[c] = true
		uniqueCandidates = append(uniqueCandidates, c)
	}

	maxAttempts := job.MaxRetries + 1
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for _, providerName := range uniqueCandidates {
		adapter, ok := opts.Registry.Get(providerName)
		if !ok {
			continue
		}
		outcome.ProvidersTried = append(outcome.ProvidersTried, providerName)

		for attempt := 1; attempt <= maxAttempts; attempt++ {
			emit(Event{Kind: "job_start", JobID: job.ID, TargetID: job.TargetID, Provider: providerName, Attempt: attempt})

			rc := provider.RunContext{Ctx: ctx, RawDir: opts.RawDir, OutputRoot: opts.OutputRoot}
			var res *provider.RunResult
			var err error
			if job.GenerationMode == "edit-first" {
				res, err = adapter.RunEditJob(job, rc)
			} else {
				res, err = adapter.RunJob(job, rc)
			}

			if err == nil {
				outcome.Succeeded = true
				outcome.Provider = providerName
				outcome.Attempts = attempt
				outcome.Result = res
				emit(Event{Kind: "job_finish", JobID: job.ID, TargetID: job.TargetID, Provider: providerName, Attempt: attempt})
				return outcome
			}

			normalized := adapter.NormalizeError(err)
			outcome.FinalError = normalized
			logger.Warn("job attempt failed",
				zap.String("job", job.ID), zap.String("provider", providerName),
				zap.Int("attempt", attempt), zap.String("code", normalized.Code))
			emit(Event{Kind: "job_error", JobID: job.ID, TargetID: job.TargetID, Provider: providerName, Attempt: attempt, Message: normalized.Error()})

			outcome.Attempts = attempt

			if !normalized.Retriable() {
				break
			}
			if attempt < maxAttempts {
				backoff := time.Duration(math.Min(5000, 300*math.Pow(2, float64(attempt-1)))) * time.Millisecond
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return outcome
				}
			}
		}
	}

	return outcome
}
