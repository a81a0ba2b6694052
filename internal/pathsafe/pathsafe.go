// Package pathsafe centralizes the "resolve under root" and
// "normalize for uniqueness" helpers every ingress point for a
// user-supplied relative path must go through (spec §9, Design Notes:
// Path handling).
package pathsafe

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Normalize converts a manifest-authored relative path into forward-slash
// form suitable for case-insensitive, separator-insensitive uniqueness
// comparison. It does not resolve against any root.
func Normalize(rel string) string {
	s := strings.ReplaceAll(rel, "\\", "/")
	s = strings.ToLower(s)
	return s
}

// ResolveUnderRoot resolves rel (which may use either slash style) against
// root and verifies the result stays inside root. It returns the cleaned
// absolute path on success.
func ResolveUnderRoot(root, rel string) (string, error) {
	cleanRel := filepath.FromSlash(strings.ReplaceAll(rel, "\\", "/"))
	if strings.Contains(rel, "\x00") {
		return "", fmt.Errorf("path contains a null byte: %q", rel)
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	joined := filepath.Join(absRoot, cleanRel)
	resolved, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if resolved != absRoot && !strings.HasPrefix(resolved, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes root %q", rel, root)
	}
	return resolved, nil
}

// IsInsideRoot reports whether rel resolves inside root without erroring
// the caller's control flow; useful for predicate-style checks.
func IsInsideRoot(root, rel string) bool {
	_, err := ResolveUnderRoot(root, rel)
	return err == nil
}
