// Package openai adapts the OpenAI Images API to the provider.Provider
// contract (spec §4.3). The concrete wire format is treated as an
// implementation detail per spec §1; this file implements just enough of
// it (an images/generations-shaped POST, base64 payload in the response)
// to exercise the adapter contract end to end.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Someblueman/lootforge/internal/manifest"
	"github.com/Someblueman/lootforge/internal/pathsafe"
	"github.com/Someblueman/lootforge/internal/provider"
)

const maxImageBytes = 64 << 20 // 64MiB safety ceiling (spec §4.3)

// Adapter is the OpenAI provider adapter.
type Adapter struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	httpClient *http.Client
}

// Config configures an Adapter; zero values take the defaults below
// unless overridden per spec §4.4's precedence (environment > manifest
// provider block > adapter default), applied by the caller before
// constructing the Adapter.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// New constructs an OpenAI adapter with sane defaults.
func New(cfg Config) *Adapter {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Adapter{
		APIKey:     cfg.APIKey,
		BaseURL:    baseURL,
		Timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		DefaultOutputFormat:           "png",
		SupportedOutputFormats:        map[string]bool{"png": true, "webp": true, "jpeg": true},
		SupportsTransparentBackground: true,
		SupportsEdits:                 true,
		SupportsControlNet:            false,
		MaxCandidates:                 4,
		DefaultConcurrency:            3,
		MinDelayMs:                    200,
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

// PrepareJobs computes one deterministic ProviderJob per target (spec
// §3, §4.2 step 6). The hash inputs are identical regardless of which
// adapter computes them, since ComputeJobID is a pure function of
// content, not of adapter state.
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

type generateRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Background     string `json:"background,omitempty"`
	N              int    `json:"n,omitempty"`
	OutputFormat   string `json:"output_format,omitempty"`
}

type generateResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

func (a *Adapter) RunJob(job *manifest.ProviderJob, rc provider.RunContext) (*provider.RunResult, error) {
	if a.APIKey == "" {
		return nil, &provider.Error{Provider: a.Name(), Code: "missing_api_key", Message: "OPENAI_API_KEY is not set", Actionable: true}
	}

	reqBody := generateRequest{
		Model:        job.Model,
		Prompt:       promptFor(job),
		Size:         job.Size,
		Quality:      job.Quality,
		Background:   job.Background,
		N:            job.CandidateCount,
		OutputFormat: job.Format,
	}
	return a.post(rc, "/images/generations", reqBody, job)
}

func (a *Adapter) RunEditJob(job *manifest.ProviderJob, rc provider.RunContext) (*provider.RunResult, error) {
	if a.APIKey == "" {
		return nil, &provider.Error{Provider: a.Name(), Code: "missing_api_key", Message: "OPENAI_API_KEY is not set", Actionable: true}
	}

	var basePath string
	for _, in := range job.EditInputs {
		if in.Role == "base" || in.Role == "reference" {
			basePath = in.Path
			break
		}
	}
	if basePath == "" {
		return nil, &provider.Error{Provider: a.Name(), Code: "openai_edit_missing_base_image", Message: "edit-first job has no base/reference input"}
	}
	if _, err := resolveEditInput(rc.OutputRoot, basePath); err != nil {
		return nil, &provider.Error{Provider: a.Name(), Code: "openai_edit_input_unsafe_path", Message: err.Error()}
	}

	reqBody := generateRequest{
		Model:        job.Model,
		Prompt:       promptFor(job),
		Size:         job.Size,
		Background:   job.Background,
		N:            job.CandidateCount,
		OutputFormat: job.Format,
	}
	return a.post(rc, "/images/edits", reqBody, job)
}

func (a *Adapter) post(rc provider.RunContext, path string, body generateRequest, job *manifest.ProviderJob) (*provider.RunResult, error) {
	ctx := rc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build openai request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &provider.Error{Provider: a.Name(), Code: "openai_request_timeout", Message: err.Error(), Cause: err}
		}
		return nil, &provider.Error{Provider: a.Name(), Code: "openai_http_error", Message: err.Error(), Cause: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.Error{
			Provider: a.Name(), Code: "openai_http_error",
			Message: fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(respBody, 512)),
			Status:  resp.StatusCode,
		}
	}

	var parsed generateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil || len(parsed.Data) == 0 {
		return nil, &provider.Error{Provider: a.Name(), Code: "openai_missing_image", Message: "response contained no image payload"}
	}

	if err := os.MkdirAll(rc.RawDir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw dir: %w", err)
	}

	start := time.Now().UTC()
	var candidates []provider.CandidateOutput
	for i, d := range parsed.Data {
		raw, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, &provider.Error{Provider: a.Name(), Code: "openai_missing_image", Message: "invalid base64 payload: " + err.Error()}
		}
		if len(raw) == 0 {
			return nil, &provider.Error{Provider: a.Name(), Code: "openai_empty_image", Message: "decoded image has zero bytes"}
		}
		if len(raw) > maxImageBytes {
			return nil, &provider.Error{Provider: a.Name(), Code: "openai_image_too_large", Message: fmt.Sprintf("decoded image is %d bytes, exceeds safety ceiling", len(raw))}
		}

		name := fmt.Sprintf("%s.candidate%d.%s", job.TargetID, i, job.Format)
		outPath := filepath.Join(rc.RawDir, name)
		if err := os.WriteFile(outPath, raw, 0o644); err != nil {
			return nil, fmt.Errorf("write candidate: %w", err)
		}
		candidates = append(candidates, provider.CandidateOutput{Path: outPath, Bytes: int64(len(raw))})
	}

	primary := ""
	if len(candidates) > 0 {
		primary = candidates[0].Path
	}

	return &provider.RunResult{
		Provider:          a.Name(),
		Model:             job.Model,
		PrimaryOutputPath: primary,
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
	return &provider.Error{Provider: a.Name(), Code: "openai_http_error", Message: err.Error(), Cause: err}
}

func promptFor(job *manifest.ProviderJob) string {
	if job.Target != nil {
		return job.Target.ResolvedPrompt
	}
	return ""
}

func resolveEditInput(outputRoot, path string) (string, error) {
	return pathsafe.ResolveUnderRoot(outputRoot, path)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
