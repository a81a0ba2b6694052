package selectlock

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Someblueman/lootforge/internal/eval"
	"github.com/Someblueman/lootforge/internal/generate"
	"github.com/Someblueman/lootforge/internal/manifest"
)

func TestBuild_ApprovedMirrorsPassedHardGates(t *testing.T) {
	report := &eval.Report{Targets: []eval.TargetResult{
		{ID: "a", PassedHardGates: true},
		{ID: "b", PassedHardGates: false},
	}}
	run := &generate.ProvenanceRun{
		InputHash: "deadbeef",
		Results: []generate.ProvenanceResult{
			{TargetID: "a", PrimaryOutputPath: "/out/raw/a.png", Provider: "openai"},
		},
	}

	lock := Build(report, run)
	a, ok := lock.Find("a")
	require.True(t, ok)
	assert.True(t, a.Approved)
	assert.Equal(t, "/out/raw/a.png", a.SelectedOutputPath)
	assert.Equal(t, "openai", a.Provider)

	b, ok := lock.Find("b")
	require.True(t, ok)
	assert.False(t, b.Approved)
	assert.Empty(t, b.SelectedOutputPath)
}

func TestSeedRegenerate_RejectsPathOutsideRoot(t *testing.T) {
	root := t.TempDir()
	target := &manifest.PlannedTarget{}
	target.ID = "hero"

	locked := LockedTarget{ID: "lock-1", Approved: true, SelectedOutputPath: "/etc/passwd"}
	err := SeedRegenerate(target, locked, root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regenerate_unsafe_locked_path")
}

func TestSeedRegenerate_RejectsUnapprovedSource(t *testing.T) {
	root := t.TempDir()
	target := &manifest.PlannedTarget{}
	target.ID = "hero"

	locked := LockedTarget{ID: "lock-1", Approved: false}
	err := SeedRegenerate(target, locked, root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regenerate_missing_locked_output")
}

func TestSeedRegenerate_RewritesTargetForEditFirst(t *testing.T) {
	root := t.TempDir()
	outPath := filepath.Join(root, "raw", "hero.png")

	target := &manifest.PlannedTarget{}
	target.ID = "hero"

	locked := LockedTarget{ID: "lock-1", Approved: true, SelectedOutputPath: outPath}
	require.NoError(t, SeedRegenerate(target, locked, root))

	assert.Equal(t, "edit-first", target.GenerationPolicy.GenerationMode)
	require.NotNil(t, target.EditSpec)
	require.Len(t, target.EditSpec.Inputs, 1)
	assert.Equal(t, outPath, target.EditSpec.Inputs[0].Path)
	assert.Equal(t, "base", target.EditSpec.Inputs[0].Role)
	assert.Equal(t, "high", target.EditSpec.Fidelity)
	assert.Equal(t, "lock-1", target.RegenerationSource)
}
