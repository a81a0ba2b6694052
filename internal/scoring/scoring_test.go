package scoring

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Someblueman/lootforge/internal/manifest"
)

func writePNG(t *testing.T, dir, name string, w, h int, alpha bool) string {
	t.Helper()
	var img image.Image
	if alpha {
		rgba := image.NewNRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				rgba.Set(x, y, color.NRGBA{R: 10, G: 20, B: 30, A: 128})
			}
		}
		img = rgba
	} else {
		rgb := image.NewRGBA(image.Rect(0, 0, w, h))
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				rgb.Set(x, y, color.RGBA{R: 10, G: 20, B: 30, A: 255})
			}
		}
		img = rgb
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestInspect_PassesWhenSizeAndAlphaMatch(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", 64, 64, true)

	cs, err := Inspect(path, manifest.AcceptanceSpec{Size: "64x64", Alpha: true}, 1000)
	require.NoError(t, err)
	assert.True(t, cs.AcceptancePassed)
	assert.Empty(t, cs.FailureReasons)
	assert.Equal(t, 1.0, cs.ReadabilityScore)
}

func TestInspect_FailsOnSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "b.png", 32, 32, false)

	cs, err := Inspect(path, manifest.AcceptanceSpec{Size: "64x64"}, 1000)
	require.NoError(t, err)
	assert.False(t, cs.AcceptancePassed)
	assert.Contains(t, cs.FailureReasons, "size_mismatch")
}

func TestInspect_FailsOnMissingAlpha(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "c.png", 32, 32, false)

	cs, err := Inspect(path, manifest.AcceptanceSpec{Size: "32x32", Alpha: true}, 1000)
	require.NoError(t, err)
	assert.False(t, cs.AcceptancePassed)
	assert.Contains(t, cs.FailureReasons, "missing_alpha")
}

func TestInspect_FailsOnFileSizeBudget(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "d.png", 32, 32, false)

	cs, err := Inspect(path, manifest.AcceptanceSpec{Size: "32x32", MaxFileSizeKB: 0.001}, 100000)
	require.NoError(t, err)
	assert.False(t, cs.AcceptancePassed)
	assert.Contains(t, cs.FailureReasons, "exceeds_file_size_budget")
}

func TestSelect_PrefersAcceptancePassOverHigherScore(t *testing.T) {
	candidates := []CandidateScore{
		{Path: "b.png", AcceptancePassed: false, ReadabilityScore: 0.99},
		{Path: "a.png", AcceptancePassed: true, ReadabilityScore: 0.40},
	}
	winner, ok := Select(candidates)
	require.True(t, ok)
	assert.Equal(t, "a.png", winner.Path)
}

func TestSelect_TiebreaksByLexicographicPath(t *testing.T) {
	candidates := []CandidateScore{
		{Path: "z.png", AcceptancePassed: true, ReadabilityScore: 1.0},
		{Path: "a.png", AcceptancePassed: true, ReadabilityScore: 1.0},
	}
	winner, ok := Select(candidates)
	require.True(t, ok)
	assert.Equal(t, "a.png", winner.Path)
}

func TestSelect_EmptyReturnsFalse(t *testing.T) {
	_, ok := Select(nil)
	assert.False(t, ok)
}

func TestSelect_IsDeterministicAcrossRepeatedCalls(t *testing.T) {
	candidates := []CandidateScore{
		{Path: "b.png", AcceptancePassed: true, ReadabilityScore: 0.7},
		{Path: "a.png", AcceptancePassed: true, ReadabilityScore: 0.7},
		{Path: "c.png", AcceptancePassed: false, ReadabilityScore: 0.99},
	}
	first, _ := Select(candidates)
	for i := 0; i < 10; i++ {
		again, _ := Select(candidates)
		assert.Equal(t, first.Path, again.Path)
	}
}

func TestPromoteDrafts_DiscardsBelowMinScoreAndRequiredAcceptance(t *testing.T) {
	drafts := []CandidateScore{
		{Path: "low.png", ReadabilityScore: 0.1},
		{Path: "unaccepted.png", ReadabilityScore: 0.9, AcceptancePassed: false},
		{Path: "good.png", ReadabilityScore: 0.8, AcceptancePassed: true},
	}
	policy := manifest.CoarseToFinePolicy{
		Enabled:                true,
		PromoteTopK:            1,
		MinDraftScore:          0.5,
		RequireDraftAcceptance: true,
	}
	decisions := PromoteDrafts(drafts, policy)

	var promoted []string
	reasons := map[string]string{}
	for _, d := range decisions {
		if d.Promoted {
			promoted = append(promoted, d.Path)
		} else {
			reasons[d.Path] = d.Reason
		}
	}
	assert.Equal(t, []string{"good.png"}, promoted)
	assert.Equal(t, "below_min_draft_score", reasons["low.png"])
	assert.Equal(t, "draft_failed_acceptance", reasons["unaccepted.png"])
}

func TestPromoteDrafts_RespectsTopK(t *testing.T) {
	drafts := []CandidateScore{
		{Path: "a.png", ReadabilityScore: 0.9, AcceptancePassed: true},
		{Path: "b.png", ReadabilityScore: 0.8, AcceptancePassed: true},
		{Path: "c.png", ReadabilityScore: 0.7, AcceptancePassed: true},
	}
	policy := manifest.CoarseToFinePolicy{PromoteTopK: 2}
	decisions := PromoteDrafts(drafts, policy)

	var promoted []string
	for _, d := range decisions {
		if d.Promoted {
			promoted = append(promoted, d.Path)
		}
	}
	assert.Equal(t, []string{"a.png", "b.png"}, promoted)
}
