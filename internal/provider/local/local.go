// Package local adapts a self-hosted diffusion server reachable over
// plain HTTP to the provider.Provider contract, grounded on the
// teacher's localhost-endpoint-default pattern (see
// internal/embedding/ollama.go's OllamaEngine) rather than the
// authenticated cloud-SDK pattern the openai/nano adapters follow.
package local

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

const maxImageBytes = 64 << 20

// Adapter talks to a local diffusion server (e.g. an Automatic1111 or
// ComfyUI-shaped HTTP API) running on the operator's own machine. It
// never requires an API key, and its default concurrency is lower than
// the cloud adapters' to avoid saturating a single local GPU.
type Adapter struct {
	Endpoint   string
	Timeout    time.Duration
	httpClient *http.Client
}

// Config configures an Adapter.
type Config struct {
	Endpoint string
	Timeout  time.Duration
}

// New constructs a local adapter, defaulting to a diffusion server
// listening on localhost.
func New(cfg Config) *Adapter {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "http://localhost:7860"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 180 * time.Second
	}
	return &Adapter{
		Endpoint:   endpoint,
		Timeout:    timeout,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (a *Adapter) Name() string { return "local" }

func (a *Adapter) Capabilities() provider.Capabilities {
	return provider.Capabilities{
		DefaultOutputFormat:           "png",
		SupportedOutputFormats:        map[string]bool{"png": true},
		SupportsTransparentBackground: false,
		SupportsEdits:                 true,
		SupportsControlNet:            true,
		MaxCandidates:                 4,
		DefaultConcurrency:            1,
		MinDelayMs:                    0,
	}
}

func (a *Adapter) Supports(f provider.Feature) bool {
	switch f {
	case provider.FeatureImageGeneration, provider.FeatureImageEdits, provider.FeatureMultiCandidate, provider.FeatureControlNet:
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

type txt2imgRequest struct {
	Prompt         string `json:"prompt"`
	Width          int    `json:"width,omitempty"`
	Height         int    `json:"height,omitempty"`
	BatchSize      int    `json:"batch_size,omitempty"`
	Model          string `json:"override_settings.sd_model_checkpoint,omitempty"`
}

type img2imgRequest struct {
	txt2imgRequest
	InitImages []string `json:"init_images"`
}

type diffusionResponse struct {
	Images []string `json:"images"`
}

func (a *Adapter) RunJob(job *manifest.ProviderJob, rc provider.RunContext) (*provider.RunResult, error) {
	w, h := parseSize(job.Size)
	body := txt2imgRequest{
		Prompt:    job.Target.ResolvedPrompt,
		Width:     w,
		Height:    h,
		BatchSize: job.CandidateCount,
		Model:     job.Model,
	}
	return a.post(rc, "/sdapi/v1/txt2img", body, job)
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
		return nil, &provider.Error{Provider: a.Name(), Code: "local_edit_missing_base_image", Message: "edit-first job has no base/reference input"}
	}
	resolved, err := pathsafe.ResolveUnderRoot(rc.OutputRoot, basePath)
	if err != nil {
		return nil, &provider.Error{Provider: a.Name(), Code: "local_edit_input_unsafe_path", Message: err.Error()}
	}
	raw, err := os.ReadFile(resolved)
	if err != nil {
		return nil, &provider.Error{Provider: a.Name(), Code: "local_edit_missing_base_image", Message: err.Error()}
	}

	w, h := parseSize(job.Size)
	body := img2imgRequest{
		txt2imgRequest: txt2imgRequest{
			Prompt:    job.Target.ResolvedPrompt,
			Width:     w,
			Height:    h,
			BatchSize: job.CandidateCount,
			Model:     job.Model,
		},
		InitImages: []string{base64.StdEncoding.EncodeToString(raw)},
	}
	return a.post(rc, "/sdapi/v1/img2img", body, job)
}

func (a *Adapter) post(rc provider.RunContext, path string, body interface{}, job *manifest.ProviderJob) (*provider.RunResult, error) {
	ctx := rc.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, a.Timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal local request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build local request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &provider.Error{Provider: a.Name(), Code: "local_request_timeout", Message: err.Error(), Cause: err}
		}
		return nil, &provider.Error{Provider: a.Name(), Code: "local_server_unreachable", Message: err.Error(), Cause: err, Actionable: true}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.Error{
			Provider: a.Name(), Code: "local_http_error",
			Message: fmt.Sprintf("status %d: %s", resp.StatusCode, truncate(respBody, 512)),
			Status:  resp.StatusCode,
		}
	}

	var parsed diffusionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil || len(parsed.Images) == 0 {
		return nil, &provider.Error{Provider: a.Name(), Code: "local_missing_image", Message: "response contained no image payload"}
	}

	if err := os.MkdirAll(rc.RawDir, 0o755); err != nil {
		return nil, fmt.Errorf("create raw dir: %w", err)
	}

	start := time.Now().UTC()
	var candidates []provider.CandidateOutput
	for i, img := range parsed.Images {
		raw, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			return nil, &provider.Error{Provider: a.Name(), Code: "local_missing_image", Message: "invalid base64 payload: " + err.Error()}
		}
		if len(raw) == 0 {
			return nil, &provider.Error{Provider: a.Name(), Code: "local_empty_image", Message: "decoded image has zero bytes"}
		}
		if len(raw) > maxImageBytes {
			return nil, &provider.Error{Provider: a.Name(), Code: "local_image_too_large", Message: fmt.Sprintf("decoded image is %d bytes, exceeds safety ceiling", len(raw))}
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
	return &provider.Error{Provider: a.Name(), Code: "local_http_error", Message: err.Error(), Cause: err}
}

func parseSize(size string) (int, int) {
	var w, h int
	if _, err := fmt.Sscanf(size, "%dx%d", &w, &h); err != nil {
		return 512, 512
	}
	return w, h
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
