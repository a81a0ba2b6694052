package manifest_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Someblueman/lootforge/internal/manifest"
)

func testCaps(name string) (manifest.ProviderCapabilities, bool) {
	switch name {
	case "openai":
		return manifest.ProviderCapabilities{Name: "openai", SupportsTransparentBackground: true, DefaultOrder: 0}, true
	case "nano":
		return manifest.ProviderCapabilities{Name: "nano", SupportsTransparentBackground: true, SupportsEdits: true, DefaultOrder: 1}, true
	case "local":
		return manifest.ProviderCapabilities{Name: "local", SupportsTransparentBackground: false, DefaultOrder: 2}, true
	}
	return manifest.ProviderCapabilities{}, false
}

func minimalManifestJSON() []byte {
	m := manifest.Manifest{
		Name:            "demo-pack",
		OutputRoot:      "assets/imagegen",
		DefaultProvider: "openai",
		Targets: []manifest.Target{
			{
				ID:   "hero",
				Kind: "sprite",
				Out:  "hero.png",
				Acceptance: manifest.AcceptanceSpec{
					Size:  "64x64",
					Alpha: true,
				},
				PromptSpec: manifest.PromptSpec{Primary: "a brave knight"},
				GenerationPolicy: manifest.GenerationPolicy{
					OutputFormat: "png",
					Background:   "transparent",
				},
			},
		},
	}
	raw, _ := json.Marshal(m)
	return raw
}

func TestPlan_MinimalManifest(t *testing.T) {
	raw := minimalManifestJSON()
	var m manifest.Manifest
	require.NoError(t, json.Unmarshal(raw, &m))

	result, err := manifest.Plan(&m, raw, manifest.PlanOptions{Caps: testCaps, GeneratedAt: "2026-01-01T00:00:00Z"})
	require.NoError(t, err)
	require.Len(t, result.Targets, 1)

	pt := result.Targets[0]
	assert.Equal(t, "openai", pt.ResolvedProvider)
	assert.Equal(t, "lanczos3", pt.ResolvedAlgorithm)
	assert.Contains(t, pt.ResolvedPrompt, "a brave knight")
	assert.Empty(t, issuesOfLevel(result.Issues, "error"))
}

func TestPlan_DuplicateOutRejected(t *testing.T) {
	m := manifest.Manifest{
		OutputRoot:      "out",
		DefaultProvider: "openai",
		Targets: []manifest.Target{
			{ID: "a", Kind: "sprite", Out: "Sprites/Hero.png", Acceptance: manifest.AcceptanceSpec{Size: "32x32"}, PromptSpec: manifest.PromptSpec{Primary: "x"}},
			{ID: "b", Kind: "sprite", Out: `sprites\hero.png`, Acceptance: manifest.AcceptanceSpec{Size: "32x32"}, PromptSpec: manifest.PromptSpec{Primary: "y"}},
		},
	}
	raw, _ := json.Marshal(m)
	_, err := manifest.Plan(&m, raw, manifest.PlanOptions{Caps: testCaps})
	require.Error(t, err)
	var perr *manifest.PlanError
	require.ErrorAs(t, err, &perr)
	assert.True(t, hasCode(perr.Issues, "duplicate_target_out"))
}

func TestPlan_TransparentJPEGRejected(t *testing.T) {
	m := manifest.Manifest{
		OutputRoot:      "out",
		DefaultProvider: "openai",
		Targets: []manifest.Target{
			{
				ID:         "hero",
				Kind:       "sprite",
				Out:        "hero.jpeg",
				Acceptance: manifest.AcceptanceSpec{Size: "32x32", Alpha: true},
				PromptSpec: manifest.PromptSpec{Primary: "x"},
				GenerationPolicy: manifest.GenerationPolicy{
					OutputFormat: "jpeg",
				},
			},
		},
	}
	raw, _ := json.Marshal(m)
	_, err := manifest.Plan(&m, raw, manifest.PlanOptions{Caps: testCaps})
	require.Error(t, err)
	var perr *manifest.PlanError
	require.ErrorAs(t, err, &perr)
	assert.True(t, hasCode(perr.Issues, "alpha_requires_png_or_webp"))
}

func TestPlan_PathEscapeRejected(t *testing.T) {
	m := manifest.Manifest{
		OutputRoot:      "out",
		DefaultProvider: "openai",
		Targets: []manifest.Target{
			{ID: "hero", Kind: "sprite", Out: "../../escape.png", Acceptance: manifest.AcceptanceSpec{Size: "32x32"}, PromptSpec: manifest.PromptSpec{Primary: "x"}},
		},
	}
	raw, _ := json.Marshal(m)
	_, err := manifest.Plan(&m, raw, manifest.PlanOptions{Caps: testCaps})
	require.Error(t, err)
	var perr *manifest.PlanError
	require.ErrorAs(t, err, &perr)
	assert.True(t, hasCode(perr.Issues, "invalid_target_out_path"))
}

// TestDeterminism_SamePlanSameJobIDs verifies spec §8's determinism
// corollary: job ids are a pure function of their content tuple.
func TestDeterminism_SamePlanSameJobIDs(t *testing.T) {
	raw := minimalManifestJSON()
	var m1, m2 manifest.Manifest
	require.NoError(t, json.Unmarshal(raw, &m1))
	require.NoError(t, json.Unmarshal(raw, &m2))

	r1, err := manifest.Plan(&m1, raw, manifest.PlanOptions{Caps: testCaps, GeneratedAt: "t1"})
	require.NoError(t, err)
	r2, err := manifest.Plan(&m2, raw, manifest.PlanOptions{Caps: testCaps, GeneratedAt: "t2"})
	require.NoError(t, err)

	require.Equal(t, len(r1.Targets), len(r2.Targets))
	for i := range r1.Targets {
		assert.Equal(t, r1.Targets[i].JobID, r2.Targets[i].JobID)
	}
	assert.Equal(t, r1.InputHash, r2.InputHash)
}

// TestProperty_NoDuplicateNormalizedOutSurvivesPlan is the uniqueness
// property test from spec §8: any accepted plan has no duplicate
// normalized runtime output paths.
func TestProperty_NoDuplicateNormalizedOutSurvivesPlan(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "n")
		var targets []manifest.Target
		for i := 0; i < n; i++ {
			id := rapid.StringMatching(`[a-z]{3,8}`).Draw(t, "id")
			out := rapid.StringMatching(`[a-zA-Z]{3,8}\.png`).Draw(t, "out")
			targets = append(targets, manifest.Target{
				ID:         id + "_" + itoaRapid(i),
				Kind:       "sprite",
				Out:        out,
				Acceptance: manifest.AcceptanceSpec{Size: "16x16"},
				PromptSpec: manifest.PromptSpec{Primary: "x"},
			})
		}
		m := manifest.Manifest{OutputRoot: "out", DefaultProvider: "openai", Targets: targets}
		raw, _ := json.Marshal(m)
		result, err := manifest.Plan(&m, raw, manifest.PlanOptions{Caps: testCaps})
		if err != nil {
			return // rejected plans trivially satisfy "no duplicates survive"
		}
		seen := map[string]bool{}
		for _, pt := range result.Targets {
			norm := manifest.NormalizeOut(pt.Out)
			if seen[norm] {
				t.Fatalf("duplicate normalized out %q survived planning", norm)
			}
			seen[norm] = true
		}
	})
}

func itoaRapid(i int) string {
	digits := "0123456789"
	if i == 0 {
		return "0"
	}
	out := ""
	for i > 0 {
		out = string(digits[i%10]) + out
		i /= 10
	}
	return out
}

func issuesOfLevel(issues []manifest.Issue, level string) []manifest.Issue {
	var out []manifest.Issue
	for _, i := range issues {
		if i.Level == level {
			out = append(out, i)
		}
	}
	return out
}

func hasCode(issues []manifest.Issue, code string) bool {
	for _, i := range issues {
		if i.Code == code {
			return true
		}
	}
	return false
}
