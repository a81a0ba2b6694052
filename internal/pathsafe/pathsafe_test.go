package pathsafe_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Someblueman/lootforge/internal/pathsafe"
)

func TestNormalize_SlashAndCaseInsensitive(t *testing.T) {
	a := pathsafe.Normalize("Sprites/Hero.png")
	b := pathsafe.Normalize(`sprites\hero.png`)
	assert.Equal(t, a, b)
}

func TestResolveUnderRoot_RejectsEscape(t *testing.T) {
	root := t.TempDir()
	_, err := pathsafe.ResolveUnderRoot(root, "../../escape.png")
	require.Error(t, err)
}

func TestResolveUnderRoot_AcceptsNested(t *testing.T) {
	root := t.TempDir()
	p, err := pathsafe.ResolveUnderRoot(root, "sprites/hero.png")
	require.NoError(t, err)
	assert.Contains(t, p, root)
}

// TestProperty_EscapingPathsAlwaysRejected is the property test spec §8
// calls for: any path containing a ".." segment that nets outside root
// must be rejected, regardless of how deep the nesting is.
func TestProperty_EscapingPathsAlwaysRejected(t *testing.T) {
	root := t.TempDir()
	rapid.Check(t, func(t *rapid.T) {
		ups := rapid.IntRange(1, 12).Draw(t, "ups")
		leaf := rapid.StringMatching(`[a-zA-Z0-9_]{1,8}\.png`).Draw(t, "leaf")
		rel := ""
		for i := 0; i < ups; i++ {
			rel += "../"
		}
		rel += leaf
		_, err := pathsafe.ResolveUnderRoot(root, rel)
		if err == nil {
			t.Fatalf("expected escape rejection for %q", rel)
		}
	})
}
