package contract

import (
	"strconv"

	"github.com/Someblueman/lootforge/internal/pathsafe"
)

func itoa(i int) string { return strconv.Itoa(i) }

func normalizeForUniqueness(out string) string { return pathsafe.Normalize(out) }

type targetsIndexSchema struct{}

func (targetsIndexSchema) validate(v map[string]interface{}, path []string) []Diagnostic {
	var diags []Diagnostic

	if _, d := requireString(v, "contractVersion", path); d != nil {
		diags = append(diags, d...)
	}
	if _, d := requireString(v, "inputHash", path); d != nil {
		diags = append(diags, d...)
	}
	targets, d := requireArray(v, "targets", path)
	if d != nil {
		return append(diags, d...)
	}

	seenIDs := map[string]bool{}
	seenOuts := map[string]bool{}
	for i, raw := range targets {
		tpath := appendPath(appendPath(path, "targets"), itoa(i))
		t, ok := raw.(map[string]interface{})
		if !ok {
			diags = append(diags, Diagnostic{Path: tpath, Code: "type_mismatch", Message: "expected object"})
			continue
		}

		id, d := requireString(t, "id", tpath)
		diags = append(diags, d...)
		if id != "" {
			if seenIDs[id] {
				diags = append(diags, Diagnostic{Path: appendPath(tpath, "id"), Code: "duplicate_target_id", Message: "duplicate target id " + id})
			}
			seenIDs[id] = true
		}

		kind, d := requireString(t, "kind", tpath)
		diags = append(diags, d...)
		if kind != "" {
			diags = append(diags, enumCheck(kind, "kind", []string{"sprite", "tile", "background", "effect", "spritesheet"}, tpath)...)
		}

		out, d := requireString(t, "out", tpath)
		diags = append(diags, d...)
		if out != "" {
			norm := normalizeForUniqueness(out)
			if seenOuts[norm] {
				diags = append(diags, Diagnostic{Path: appendPath(tpath, "out"), Code: "duplicate_target_out", Message: "duplicate normalized out path " + out})
			}
			seenOuts[norm] = true
		}

		if _, d := requireString(t, "provider", tpath); d != nil {
			diags = append(diags, d...)
		}
	}
	return diags
}
