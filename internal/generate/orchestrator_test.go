package generate

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Someblueman/lootforge/internal/manifest"
	"github.com/Someblueman/lootforge/internal/provider"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedProvider runs a caller-supplied sequence of outcomes per call,
// letting tests exercise the retry/fallback walker deterministically.
type scriptedProvider struct {
	name  string
	caps  provider.Capabilities
	calls int32
	// script[i] is returned on the i-th RunJob call (0-indexed); calls
	// beyond len(script) repeat the last entry.
	script []scriptedResult
}

type scriptedResult struct {
	err  *provider.Error
	ok   bool
}

func (p *scriptedProvider) Name() string                      { return p.name }
func (p *scriptedProvider) Capabilities() provider.Capabilities { return p.caps }
func (p *scriptedProvider) Supports(f provider.Feature) bool   { return true }

func (p *scriptedProvider) PrepareJobs(targets []*manifest.PlannedTarget, rc provider.RunContext) ([]*manifest.ProviderJob, error) {
	var jobs []*manifest.ProviderJob
	for _, t := range targets {
		jobs = append(jobs, &manifest.ProviderJob{
			ID:             t.ID + "-job",
			Target:         t,
			TargetID:       t.ID,
			Provider:       p.name,
			MaxRetries:     t.GenerationPolicy.MaxRetries,
			FallbackProviders: t.FallbackProviders,
		})
	}
	return jobs, nil
}

func (p *scriptedProvider) RunJob(job *manifest.ProviderJob, rc provider.RunContext) (*provider.RunResult, error) {
	i := atomic.AddInt32(&p.calls, 1) - 1
	var res scriptedResult
	if int(i) < len(p.script) {
		res = p.script[i]
	} else if len(p.script) > 0 {
		res = p.script[len(p.script)-1]
	} else {
		res = scriptedResult{ok: true}
	}
	if res.ok {
		return &provider.RunResult{Provider: p.name, PrimaryOutputPath: "/out/x.png"}, nil
	}
	return nil, res.err
}

func (p *scriptedProvider) RunEditJob(job *manifest.ProviderJob, rc provider.RunContext) (*provider.RunResult, error) {
	return p.RunJob(job, rc)
}

func (p *scriptedProvider) NormalizeError(err error) *provider.Error {
	if perr, ok := err.(*provider.Error); ok {
		return perr
	}
	return &provider.Error{Provider: p.name, Code: "unknown", Message: err.Error()}
}

func planWithOneTarget(maxRetries int, fallbacks []string) *manifest.PlanResult {
	t := manifest.PlannedTarget{}
	t.ID = "sword-01"
	t.ResolvedProvider = "flaky"
	t.FallbackProviders = fallbacks
	t.GenerationPolicy.MaxRetries = maxRetries
	return &manifest.PlanResult{
		InputHash: "deadbeef",
		Targets:   []manifest.PlannedTarget{t},
	}
}

func TestRun_RetriesThenSucceeds(t *testing.T) {
	flaky := &scriptedProvider{
		name: "flaky",
		caps: provider.Capabilities{DefaultConcurrency: 2},
		script: []scriptedResult{
			{err: &provider.Error{Provider: "flaky", Code: "openai_http_error"}},
			{ok: true},
		},
	}
	reg := provider.NewRegistry(flaky)
	plan := planWithOneTarget(2, nil)

	rawDir := t.TempDir()
	run, outcomes, err := Run(context.Background(), plan, Options{
		OutputRoot: t.TempDir(),
		RawDir:     rawDir,
		Registry:   reg,
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Succeeded)
	assert.Equal(t, 2, outcomes[0].Attempts)
	assert.Len(t, run.Results, 1)
	assert.Empty(t, run.Failures)
}

func TestRun_ExhaustsRetriesThenFallsBack(t *testing.T) {
	flaky := &scriptedProvider{
		name: "flaky",
		caps: provider.Capabilities{DefaultConcurrency: 1},
		script: []scriptedResult{
			{err: &provider.Error{Provider: "flaky", Code: "openai_http_error"}},
			{err: &provider.Error{Provider: "flaky", Code: "openai_http_error"}},
		},
	}
	steady := &scriptedProvider{
		name:   "steady",
		caps:   provider.Capabilities{DefaultConcurrency: 1},
		script: []scriptedResult{{ok: true}},
	}
	reg := provider.NewRegistry(flaky, steady)
	plan := planWithOneTarget(1, []string{"steady"})

	run, outcomes, err := Run(context.Background(), plan, Options{
		OutputRoot: t.TempDir(),
		RawDir:     t.TempDir(),
		Registry:   reg,
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.True(t, outcomes[0].Succeeded)
	assert.Equal(t, "steady", outcomes[0].Provider)
	assert.Equal(t, []string{"flaky", "steady"}, outcomes[0].ProvidersTried)
	assert.Len(t, run.Results, 1)
}

func TestRun_NonRetriableErrorStopsImmediately(t *testing.T) {
	broken := &scriptedProvider{
		name: "broken",
		caps: provider.Capabilities{DefaultConcurrency: 1},
		script: []scriptedResult{
			{err: &provider.Error{Provider: "broken", Code: "missing_api_key"}},
		},
	}
	reg := provider.NewRegistry(broken)
	plan := planWithOneTarget(3, nil)
	plan.Targets[0].ResolvedProvider = "broken"

	run, outcomes, err := Run(context.Background(), plan, Options{
		OutputRoot: t.TempDir(),
		RawDir:     t.TempDir(),
		Registry:   reg,
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Succeeded)
	assert.Equal(t, 1, outcomes[0].Attempts)
	assert.Len(t, run.Failures, 1)
	assert.Equal(t, "missing_api_key", run.Failures[0].FinalErrorCode)
}

func TestRun_EmitsProgressEvents(t *testing.T) {
	steady := &scriptedProvider{
		name:   "steady",
		caps:   provider.Capabilities{DefaultConcurrency: 1},
		script: []scriptedResult{{ok: true}},
	}
	reg := provider.NewRegistry(steady)
	plan := planWithOneTarget(0, nil)
	plan.Targets[0].ResolvedProvider = "steady"

	events := make(chan Event, 16)
	_, _, err := Run(context.Background(), plan, Options{
		OutputRoot: t.TempDir(),
		RawDir:     t.TempDir(),
		Registry:   reg,
		Events:     events,
	})
	require.NoError(t, err)
	close(events)

	var kinds []string
	for e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, "prepare")
	assert.Contains(t, kinds, "job_start")
	assert.Contains(t, kinds, "job_finish")
}

func TestRun_RespectsPerProviderConcurrency(t *testing.T) {
	var current, max int32
	gate := &concurrencyProbeProvider{
		name: "gated",
		caps: provider.Capabilities{DefaultConcurrency: 1},
		onRun: func() {
			n := atomic.AddInt32(&current, 1)
			for {
				m := atomic.LoadInt32(&max)
				if n <= m || atomic.CompareAndSwapInt32(&max, m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&current, -1)
		},
	}
	reg := provider.NewRegistry(gate)

	targets := make([]manifest.PlannedTarget, 4)
	for i := range targets {
		targets[i].ID = "t" + string(rune('0'+i))
		targets[i].ResolvedProvider = "gated"
	}
	plan := &manifest.PlanResult{InputHash: "x", Targets: targets}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _, err := Run(context.Background(), plan, Options{
			OutputRoot: t.TempDir(),
			RawDir:     t.TempDir(),
			Registry:   reg,
		})
		assert.NoError(t, err)
	}()
	wg.Wait()

	assert.LessOrEqual(t, int(atomic.LoadInt32(&max)), 1)
}

// timingProbeProvider records the wall-clock time of every RunJob call so
// tests can assert on the spacing the rate limiter enforced between them.
type timingProbeProvider struct {
	name          string
	caps          provider.Capabilities
	rate          int            // ProviderJob.RateLimitPerMinute to stamp on every prepared job
	perTargetRate map[string]int // overrides rate for specific target ids

	mu    sync.Mutex
	calls map[string]time.Time
}

func (p *timingProbeProvider) Name() string                      { return p.name }
func (p *timingProbeProvider) Capabilities() provider.Capabilities { return p.caps }
func (p *timingProbeProvider) Supports(f provider.Feature) bool   { return true }

// perTargetRate optionally overrides p.rate for an individual target id;
// tests use this to prove the rate delay is read fresh per job rather
// than snapshotted once from the first job in the provider's pool.
func (p *timingProbeProvider) PrepareJobs(targets []*manifest.PlannedTarget, rc provider.RunContext) ([]*manifest.ProviderJob, error) {
	var jobs []*manifest.ProviderJob
	for _, t := range targets {
		rate := p.rate
		if p.perTargetRate != nil {
			if r, ok := p.perTargetRate[t.ID]; ok {
				rate = r
			}
		}
		jobs = append(jobs, &manifest.ProviderJob{
			ID: t.ID + "-job", Target: t, TargetID: t.ID, Provider: p.name,
			RateLimitPerMinute: rate,
		})
	}
	return jobs, nil
}

func (p *timingProbeProvider) RunJob(job *manifest.ProviderJob, rc provider.RunContext) (*provider.RunResult, error) {
	p.mu.Lock()
	if p.calls == nil {
		p.calls = map[string]time.Time{}
	}
	p.calls[job.TargetID] = time.Now()
	p.mu.Unlock()
	return &provider.RunResult{Provider: p.name, PrimaryOutputPath: "/out/x.png"}, nil
}

func (p *timingProbeProvider) RunEditJob(job *manifest.ProviderJob, rc provider.RunContext) (*provider.RunResult, error) {
	return p.RunJob(job, rc)
}

func (p *timingProbeProvider) NormalizeError(err error) *provider.Error {
	return &provider.Error{Provider: p.name, Code: "unknown", Message: err.Error()}
}

// TestRun_AppliesProviderMinDelayEvenWithoutRateLimit exercises the fix
// where a provider's Capabilities.MinDelayMs must throttle job starts
// even when no per-target RateLimitPerMinute is set (spec §4.5: delayMs
// = max(task.rateDelay, provider.minDelayMs)).
func TestRun_AppliesProviderMinDelayEvenWithoutRateLimit(t *testing.T) {
	probe := &timingProbeProvider{
		name: "slow",
		caps: provider.Capabilities{DefaultConcurrency: 4, MinDelayMs: 40},
	}
	reg := provider.NewRegistry(probe)

	targets := make([]manifest.PlannedTarget, 3)
	for i := range targets {
		targets[i].ID = "t" + string(rune('0'+i))
		targets[i].ResolvedProvider = "slow"
	}
	plan := &manifest.PlanResult{InputHash: "x", Targets: targets}

	start := time.Now()
	_, outcomes, err := Run(context.Background(), plan, Options{
		OutputRoot: t.TempDir(),
		RawDir:     t.TempDir(),
		Registry:   reg,
	})
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	probe.mu.Lock()
	calls := make([]time.Time, 0, len(probe.calls))
	for _, ts := range probe.calls {
		calls = append(calls, ts)
	}
	probe.mu.Unlock()
	require.Len(t, calls, 3)

	sort.Slice(calls, func(i, j int) bool { return calls[i].Before(calls[j]) })
	for i := 1; i < len(calls); i++ {
		gap := calls[i].Sub(calls[i-1])
		assert.GreaterOrEqual(t, gap.Milliseconds(), int64(30), "jobs should be spaced by provider MinDelayMs even though DefaultConcurrency allows them in parallel")
	}
	assert.GreaterOrEqual(t, time.Since(start).Milliseconds(), int64(60))
}

// TestRun_PerJobRateLimitComputedFreshNotSnapshottedFromFirstJob exercises
// the fix where the per-provider rate delay must be derived from each
// job's own RateLimitPerMinute rather than a snapshot taken from the
// first job queued to that provider's pool: a tightly rate-limited job
// queued first must not silently gate a later job that carries no rate
// limit of its own (and vice versa).
func TestRun_PerJobRateLimitComputedFreshNotSnapshottedFromFirstJob(t *testing.T) {
	probe := &timingProbeProvider{
		name: "mixed",
		caps: provider.Capabilities{DefaultConcurrency: 1},
		// rate 60/min => rateDelay = ceil(60000/60) = 1000ms. The first
		// target (rate 0) is deliberately jobs[0] in the provider's pool:
		// a snapshot bug reading rateLimitPerMinute once from jobs[0]
		// disables rate limiting for the whole pool, not just that job.
		perTargetRate: map[string]int{"throttled-1": 60, "throttled-2": 60},
	}
	reg := provider.NewRegistry(probe)

	unthrottled := manifest.PlannedTarget{ID: "unthrottled", ResolvedProvider: "mixed"}
	throttled1 := manifest.PlannedTarget{ID: "throttled-1", ResolvedProvider: "mixed"}
	throttled2 := manifest.PlannedTarget{ID: "throttled-2", ResolvedProvider: "mixed"}
	plan := &manifest.PlanResult{InputHash: "x", Targets: []manifest.PlannedTarget{unthrottled, throttled1, throttled2}}

	start := time.Now()
	_, outcomes, err := Run(context.Background(), plan, Options{
		OutputRoot: t.TempDir(),
		RawDir:     t.TempDir(),
		Registry:   reg,
	})
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)

	// With DefaultConcurrency 1 the jobs run one at a time. Whichever
	// throttled target dispatches first finds no earlier throttled dispatch
	// and starts at once; the other must wait its own 1s rate delay after
	// it. A snapshot of jobs[0]'s rate (0, from "unthrottled") would zero
	// out every job's delay and finish near-instantly regardless of
	// scheduling order.
	assert.GreaterOrEqual(t, elapsed.Milliseconds(), int64(800))
}

type concurrencyProbeProvider struct {
	name  string
	caps  provider.Capabilities
	onRun func()
}

func (p *concurrencyProbeProvider) Name() string                      { return p.name }
func (p *concurrencyProbeProvider) Capabilities() provider.Capabilities { return p.caps }
func (p *concurrencyProbeProvider) Supports(f provider.Feature) bool   { return true }

func (p *concurrencyProbeProvider) PrepareJobs(targets []*manifest.PlannedTarget, rc provider.RunContext) ([]*manifest.ProviderJob, error) {
	var jobs []*manifest.ProviderJob
	for _, t := range targets {
		jobs = append(jobs, &manifest.ProviderJob{ID: t.ID + "-job", Target: t, TargetID: t.ID, Provider: p.name})
	}
	return jobs, nil
}

func (p *concurrencyProbeProvider) RunJob(job *manifest.ProviderJob, rc provider.RunContext) (*provider.RunResult, error) {
	p.onRun()
	return &provider.RunResult{Provider: p.name, PrimaryOutputPath: "/out/x.png"}, nil
}

func (p *concurrencyProbeProvider) RunEditJob(job *manifest.ProviderJob, rc provider.RunContext) (*provider.RunResult, error) {
	return p.RunJob(job, rc)
}

func (p *concurrencyProbeProvider) NormalizeError(err error) *provider.Error {
	return &provider.Error{Provider: p.name, Code: "unknown", Message: err.Error()}
}
