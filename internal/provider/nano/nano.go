// Package nano adapts Google's Gemini image-generation models ("nano
// banana") to the provider.Provider contract, grounded on the teacher's
// google.golang.org/genai client construction pattern
// (internal/embedding/genai.go's GenAIEngine), reused here for
// GenerateContent image calls instead of embeddings.
package nano

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/genai"

	"github.com/Someblueman/lootforge/internal/manifest"
	"github.com/Someblueman/lootforge/internal/pathsafe"
	"github.com/Someblueman/lootforge/internal/provider"
)

const maxImageBytes = 64 << 20

// Adapter is the Gemini/nano provider adapter.
type Adapter struct {
	APIKey  string
	Timeout time.Duration

	newClient func(ctx context.Context, apiKey string) (genClient, error)
}

// genClient is the narrow slice of *genai.Client this adapter calls,
// allowing tests to substitute a fake without a live API key.
type genClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type realClient struct{ c *genai.Client }

func (r realClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return r.c.Models.GenerateContent(ctx, model, contents, cfg)
}

// Config configures an Adapter.
type Config struct {
	APIKey  string
	Timeout time.Duration
}

// New constructs a nano adapter with sane defaults.
func New(cfg Config) *Adapter {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 90 * time.Second
	}
	return &Adapter{
		APIKey:  cfg.APIKey,
		Timeout: timeout,
		newClient: func(ctx context.Context, apiKey string) (genClient, error) {
			c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
			if err != nil {
				return nil, err
			}
			return realClient{c: c}, nil
		},
	}
}

func (a *Adapter) Name() string { return "nano" }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		DefaultOutputFormat:           "png",
		SupportedOutputFormats:        map[string]bool{"png": true, "webp": true},
		SupportsTransparentBackground: true,
		SupportsEdits:                 true,
		SupportsControlNet:            false,
		MaxCandidates:                 4,
		DefaultConcurrency:            4,
		MinDelayMs:                    100,
	}
}

func (a *Adapter) Supports(f provider.Feature) bool {
	switch f {
	case provider.FeatureImageGeneration, provider.FeatureTransparentBG, provider.FeatureImageEdits, provider.FeatureMultiCandidate:
		return true
	default:
		return false
	}
}

func (a *Adapter) PrepareJobs(targets []*manifest.PlannedTarget, rc provider.RunContext) ([]*manifest.ProviderJob, error) {
	var jobs []*manifest.ProviderJob
	for _, t := range targets {
		if t.GenerationDisabled {
			continue
		}
		candidateCount := t.GenerationPolicy.CandidateCount
		if candidateCount <= 0 {
			candidateCount = 1
		}
		job := &manifest.ProviderJob{
			Target:              t,
			TargetID:            t.ID,
			Provider:            a.Name(),
			Model:                t.ResolvedModel,
			Size:                 t.GenerationPolicy.Size,
			Quality:              t.GenerationPolicy.Quality,
			Background:           t.ResolvedBackground,
			Format:               t.ResolvedOutputFormat,
			CandidateCount:       candidateCount,
			MaxRetries:           t.GenerationPolicy.MaxRetries,
			FallbackProviders:    t.FallbackProviders,
			RateLimitPerMinute:   t.GenerationPolicy.RateLimitPerMinute,
			ProviderConcurrency:  t.GenerationPolicy.ProviderConcurrency,
			GenerationMode:       t.GenerationPolicy.GenerationMode,
		}
		job.InputHash = manifest.EditInputHash(t)
		job.ID = manifest.ComputeJobID(
			job.Provider, job.Model, job.TargetID, t.Out, t.ResolvedPrompt,
			job.Size, job.Quality, job.Background, job.Format, job.CandidateCount, job.InputHash,
		)
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (a *Adapter) RunJob(job *manifest.ProviderJob, rc provider.RunContext) (*provider.RunResult, error) {
	return a.run(job, rc, nil)
}

func (a *Adapter) RunEditJob(job *manifest.ProviderJob, rc provider.RunContext) (*provider.RunResult, error) {
	var basePath string
	for _, in := range job.EditInputs {
		if in.Role == "base" || in.Role == "reference" {
			basePath = in.Path
			break
		}
	}
	if basePath == "" {
		return nil, &provider.Error{Provider: a.Name(), Code: "nano_edit_missing_base_image", Message: "edit-first job has no base/reference input"}
	}
	resolved, err := pathsafe.ResolveUnderRoot(rc.OutputRoot, basePath)
	if err != nil {
		return nil, &provider.Error{Provider: a.Name(), Code: "nano_edit_input_unsafe_path", Message: err.Error()}
	}
	baseBytes, err := os.ReadFile(resolved)
	if err != nil {
		return nil, &provider.Error{Provider: a.Name(), Code: "nano_edit_missing_base_image", Message: err.Error()}
	}
	return a.run(job, rc, baseBytes)
}

func (a *Adapter) run(job *manifest.ProviderJob, rc provider.RunContext, baseImage []byte) (*provider.RunResult, error) {
	if a.APIKey == "" {
		return nil, &provider.Error{Provider: a.Name(), Code: "missing_api_key", Message: "GEMINI_API_KEY is not set", Actionable: true}
	}

	ctx := rc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	client, err := a.newClient(ctx, a.APIKey)
	if err != nil {
		return nil, &provider.Error{Provider: a.Name(), Code: "nano_http_error", Message: err.Error(), Cause: err}
	}

	var contents []*genai.Content
	prompt := ""
	if job.Target != nil {
		prompt = job.Target.ResolvedPrompt
	}
	if len(baseImage) > 0 {
		contents = append(contents, genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(prompt),
			genai.NewPartFromBytes(baseImage, "image/png"),
		}, genai.RoleUser))
	} else {
		contents = append(contents, genai.NewContentFromText(prompt, genai.RoleUser))
	}

	resp, err := client.GenerateContent(ctx, job.Model, contents, &genai.GenerateContentConfig{})
	if err != nil {
		if ctx.Err() != nil {
			return nil, &provider.Error{Provider: a.Name(), Code: "nano_request_timeout", Message: err.Error(), Cause: err}
		}
		return nil, &provider.Error{Provider: a.Name(), Code: "nano_http_error", Message: err.Error(), Cause: err}
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return nil, &provider.Error{Provider: a.Name(), Code: "nano_missing_image", Message: "response contained no candidates"}
	}

	if err := os.MkdirAll(rc.RawDir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw dir: %w", err)
	}

	start := time.Now().UTC()
	var candidates []provider.CandidateOutput
	idx := 0
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			raw := part.InlineData.Data
			if len(raw) > maxImageBytes {
				return nil, &provider.Error{Provider: a.Name(), Code: "nano_image_too_large", Message: fmt.Sprintf("decoded image is %d bytes, exceeds safety ceiling", len(raw))}
			}
			name := fmt.Sprintf("%s.candidate%d.%s", job.TargetID, idx, job.Format)
			outPath := filepath.Join(rc.RawDir, name)
			if err := os.WriteFile(outPath, raw, 0o644); err != nil {
				return nil, fmt.Errorf("write candidate: %w", err)
			}
			candidates = append(candidates, provider.CandidateOutput{Path: outPath, Bytes: int64(len(raw))})
			idx++
		}
	}
	if len(candidates) == 0 {
		return nil, &provider.Error{Provider: a.Name(), Code: "nano_missing_image", Message: "response contained no inline image data"}
	}

	return &provider.RunResult{
		Provider:          a.Name(),
		Model:             job.Model,
		PrimaryOutputPath: candidates[0].Path,
		Candidates:        candidates,
		StartedAt:         start.Format(time.RFC3339Nano),
		FinishedAt:        time.Now().UTC().Format(time.RFC3339Nano),
		InputHash:         job.InputHash,
	}, nil
}

func (a *Adapter) NormalizeError(err error) *provider.Error {
	if perr, ok := err.(*provider.Error); ok {
		return perr
	}
	return &provider.Error{Provider: a.Name(), Code: "nano_http_error", Message: err.Error(), Cause: err}
}
