package process

import (
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

func writeSourcePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 100, A: 255})
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestRun_SkipsStepsAbsentFromPolicy(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.png")
	writeSourcePNG(t, src, 32, 32)

	target := &manifest.PlannedTarget{}
	target.NormalizedOut = "sprite.png"
	target.Acceptance = manifest.AcceptanceSpec{Size: "32x32"}

	result, err := Run(target, src, filepath.Join(dir, "out"), ReferenceTransformer{}, false)
	require.NoError(t, err)
	require.NotEmpty(t, result.Steps)

	for _, s := range result.Steps {
		if s.Name == "encode" {
			assert.True(t, s.Applied)
			continue
		}
		if s.Name == "emit_raw" || s.Name == "trim" || s.Name == "pad" {
			assert.True(t, s.Skipped, "step %s should be skipped when not declared", s.Name)
		}
	}
	assert.Equal(t, 32, result.Width)
	assert.Equal(t, 32, result.Height)
}

func TestRun_ResizeProducesDeclaredDimensions(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.png")
	writeSourcePNG(t, src, 32, 32)

	target := &manifest.PlannedTarget{}
	target.NormalizedOut = "sprite.png"
	target.Acceptance = manifest.AcceptanceSpec{Size: "64x64"}
	target.PostProcess = &manifest.PostProcessPolicy{Resize: "64x64"}

	result, err := Run(target, src, filepath.Join(dir, "out"), ReferenceTransformer{}, false)
	require.NoError(t, err)
	assert.Equal(t, 64, result.Width)
	assert.Equal(t, 64, result.Height)
}

func TestRun_EmitsVariantsAndAuxMaps(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.png")
	writeSourcePNG(t, src, 16, 16)

	target := &manifest.PlannedTarget{}
	target.NormalizedOut = "tile.png"
	target.Acceptance = manifest.AcceptanceSpec{Size: "16x16"}
	target.PostProcess = &manifest.PostProcessPolicy{
		EmitVariants: []string{"pixel"},
		AuxMaps:      []string{"normal"},
	}

	outDir := filepath.Join(dir, "out")
	result, err := Run(target, src, outDir, ReferenceTransformer{}, false)
	require.NoError(t, err)

	pixelPath, ok := result.VariantPaths["pixel"]
	require.True(t, ok)
	assert.FileExists(t, pixelPath)

	normalPath, ok := result.VariantPaths["normal"]
	require.True(t, ok)
	assert.FileExists(t, normalPath)
}

func TestRun_StrictModeAbortsOnFirstFailure(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.png")
	writeSourcePNG(t, src, 16, 16)

	target := &manifest.PlannedTarget{}
	target.NormalizedOut = "tile.png"
	target.Acceptance = manifest.AcceptanceSpec{Size: "16x16"}
	target.PostProcess = &manifest.PostProcessPolicy{EmitRaw: true}

	outDir := filepath.Join(dir, "out")
	require.NoError(t, os.MkdirAll(outDir, 0o755))
	// Pre-create the raw-emit target path as a directory so writePNG's
	// os.Create fails, forcing emit_raw's error branch in strict mode.
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "raw_tile.png"), 0o755))

	result, err := Run(target, src, outDir, ReferenceTransformer{}, true)
	require.NoError(t, err)
	assert.True(t, result.Aborted)
}

func TestAssembleSheet_WritesOneRowSheetAndSidecar(t *testing.T) {
	dir := t.TempDir()
	framePaths := map[string]string{}
	for _, name := range []string{"walk_0", "walk_1", "idle_0"} {
		p := filepath.Join(dir, name+".png")
		writeSourcePNG(t, p, 8, 8)
		framePaths[name] = p
	}

	spec := &manifest.SpritesheetSpec{
		FrameWidth:  8,
		FrameHeight: 8,
		Animations: []manifest.Animation{
			{Name: "idle", Frames: 1},
			{Name: "walk", Frames: 2},
		},
	}

	frames := []FrameSource{
		{AnimationName: "walk", FrameIndex: 1, Path: framePaths["walk_1"]},
		{AnimationName: "idle", FrameIndex: 0, Path: framePaths["idle_0"]},
		{AnimationName: "walk", FrameIndex: 0, Path: framePaths["walk_0"]},
	}

	sheetOut := filepath.Join(dir, "sheet.png")
	require.NoError(t, AssembleSheet(spec, frames, sheetOut))

	assert.FileExists(t, sheetOut)
	assert.FileExists(t, sheetOut+".anim.json")

	f, err := os.Open(sheetOut)
	require.NoError(t, err)
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, 24, cfg.Width)
	assert.Equal(t, 8, cfg.Height)
}

func TestNewAcceptanceTarget_FlagsSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "raw.png")
	writeSourcePNG(t, src, 16, 16)

	target := &manifest.PlannedTarget{}
	target.NormalizedOut = "sprite.png"
	target.Acceptance = manifest.AcceptanceSpec{Size: "32x32"}

	result, err := Run(target, src, filepath.Join(dir, "out"), ReferenceTransformer{}, false)
	require.NoError(t, err)

	at, err := NewAcceptanceTarget("sprite", "sprite.png", false, result, 32, 32, 0)
	require.NoError(t, err)
	require.Len(t, at.Issues, 1)
	assert.Equal(t, "size_mismatch", at.Issues[0].Code)
}
