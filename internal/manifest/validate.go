package manifest

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/Someblueman/lootforge/internal/pathsafe"
)

var sizeLiteralRE = regexp.MustCompile(`^\d+x\d+$`)

var validAlgorithms = map[string]bool{"nearest": true, "lanczos3": true}

// validateManifest runs spec §4.2 step 2's semantic validation rules,
// in the declared order, accumulating issues rather than failing fast.
func validateManifest(m *Manifest, caps CapabilityLookup) []Issue {
	var issues []Issue

	seenIDs := map[string]string{} // id -> first occurrence marker
	seenOuts := map[string]string{}

	for i := range m.Targets {
		t := &m.Targets[i]
		tid := t.ID
		if tid == "" {
			issues = append(issues, Issue{Level: "error", Code: "missing_target_id", Message: fmt.Sprintf("target at index %d has no id", i)})
			continue
		}

		if _, dup := seenIDs[tid]; dup {
			issues = append(issues, Issue{Level: "error", Code: "duplicate_target_id", TargetID: tid, Message: "duplicate target id " + tid})
		}
		seenIDs[tid] = tid

		if t.Out == "" {
			issues = append(issues, Issue{Level: "error", Code: "missing_target_out", TargetID: tid, Message: "target has no out path"})
		} else {
			if _, err := pathsafe.ResolveUnderRoot(m.OutputRoot, t.Out); err != nil {
				issues = append(issues, Issue{Level: "error", Code: "invalid_target_out_path", TargetID: tid, Message: err.Error()})
			}
			norm := pathsafe.Normalize(t.Out)
			if prior, dup := seenOuts[norm]; dup {
				issues = append(issues, Issue{Level: "error", Code: "duplicate_target_out", TargetID: tid, Message: fmt.Sprintf("out path %q normalizes the same as target %q's", t.Out, prior)})
			}
			seenOuts[norm] = tid
		}

		if t.Acceptance.Size != "" && !sizeLiteralRE.MatchString(t.Acceptance.Size) {
			issues = append(issues, Issue{Level: "error", Code: "invalid_size_literal", TargetID: tid, Message: "acceptance.size must match ^\\d+x\\d+$, got " + t.Acceptance.Size})
		}
		if t.GenerationPolicy.Size != "" && !sizeLiteralRE.MatchString(t.GenerationPolicy.Size) {
			issues = append(issues, Issue{Level: "error", Code: "invalid_size_literal", TargetID: tid, Message: "generationPolicy.size must match ^\\d+x\\d+$, got " + t.GenerationPolicy.Size})
		}

		if t.PostProcess != nil {
			pp := t.PostProcess
			if pp.Resize != "" && !sizeLiteralRE.MatchString(pp.Resize) {
				issues = append(issues, Issue{Level: "error", Code: "invalid_resize_literal", TargetID: tid, Message: "postProcess.resize must match ^\\d+x\\d+$, got " + pp.Resize})
			}
			for _, rv := range pp.ResizeVariants {
				if !sizeLiteralRE.MatchString(rv) {
					issues = append(issues, Issue{Level: "error", Code: "invalid_resize_variant_literal", TargetID: tid, Message: "resizeVariants entry must match ^\\d+x\\d+$, got " + rv})
				}
			}
			if pp.Algorithm != "" && !validAlgorithms[pp.Algorithm] {
				issues = append(issues, Issue{Level: "warning", Code: "unknown_algorithm_fallback", TargetID: tid, Message: fmt.Sprintf("algorithm %q unknown, falling back to lanczos3", pp.Algorithm)})
			}
			if pp.PaletteQuantization != nil && pp.PaletteQuantization.Strict && pp.PaletteQuantization.Colors > 0 {
				issues = append(issues, Issue{Level: "error", Code: "strict_palette_requires_exact_palette", TargetID: tid, Message: "strict palette quantization is only valid when colors come from an exact (non-quantized) palette"})
			}
		}

		if t.WrapGrid != "" {
			w, h, ok := parseSize(t.Acceptance.Size)
			gw, gh, gok := parseSize(t.WrapGrid)
			if ok && gok {
				if gw == 0 || gh == 0 || w%gw != 0 || h%gh != 0 {
					issues = append(issues, Issue{Level: "error", Code: "wrap_grid_not_divisible", TargetID: tid, Message: fmt.Sprintf("wrapGrid %s does not evenly divide target size %s", t.WrapGrid, t.Acceptance.Size)})
				}
			}
		}

		if t.ConsistencyGroup != "" {
			cg, ok := m.ConsistencyGroups[t.ConsistencyGroup]
			if !ok {
				issues = append(issues, Issue{Level: "error", Code: "unknown_consistency_group", TargetID: tid, Message: "references unknown consistency group " + t.ConsistencyGroup})
			} else {
				if cg.StyleKit != "" && t.StyleKit != "" && cg.StyleKit != t.StyleKit {
					issues = append(issues, Issue{Level: "error", Code: "consistency_group_style_kit_mismatch", TargetID: tid, Message: fmt.Sprintf("target style-kit %q does not match consistency group style-kit %q", t.StyleKit, cg.StyleKit)})
				}
				if !containsString(cg.Members, tid) {
					issues = append(issues, Issue{Level: "warning", Code: "target_not_listed_in_consistency_group", TargetID: tid, Message: "target references a consistency group that does not list it in members"})
				}
			}
		}

		if t.StyleKit != "" {
			sk, ok := m.StyleKits[t.StyleKit]
			if !ok {
				issues = append(issues, Issue{Level: "error", Code: "unknown_style_kit", TargetID: tid, Message: "references unknown style kit " + t.StyleKit})
			} else {
				for _, ref := range sk.ReferenceImages {
					if _, err := os.Stat(ref); err != nil {
						issues = append(issues, Issue{Level: "warning", Code: "missing_reference_asset", TargetID: tid, Message: "style kit reference image not found: " + ref})
					}
				}
				if sk.PalettePath != "" {
					if _, err := os.Stat(sk.PalettePath); err != nil {
						issues = append(issues, Issue{Level: "warning", Code: "missing_palette_asset", TargetID: tid, Message: "style kit palette file not found: " + sk.PalettePath})
					}
				}
			}
		}

		alphaRequired := t.Acceptance.Alpha || t.RuntimeSpec.AlphaRequired
		if alphaRequired {
			format := resolveOutputFormat(t)
			if format != "png" && format != "webp" {
				issues = append(issues, Issue{Level: "error", Code: "alpha_requires_png_or_webp", TargetID: tid, Message: "alpha required but output format is " + format})
			}
			providerName := t.Provider
			if providerName == "" {
				providerName = m.DefaultProvider
			}
			if providerName != "" && caps != nil {
				if c, ok := caps(providerName); ok && !c.SupportsTransparentBackground {
					issues = append(issues, Issue{Level: "error", Code: "provider_alpha_incompatible", TargetID: tid, Message: "provider " + providerName + " does not support transparent-background but target requires alpha"})
				}
			}
		}

		if t.Provider != "" && !isKnownProvider(t.Provider) {
			issues = append(issues, Issue{Level: "error", Code: "unknown_provider", TargetID: tid, Message: "unknown provider " + t.Provider})
		}
	}

	for name, cg := range m.ConsistencyGroups {
		for _, member := range cg.Members {
			if _, ok := seenIDs[member]; !ok {
				issues = append(issues, Issue{Level: "error", Code: "consistency_group_unknown_member", Message: fmt.Sprintf("consistency group %q references unknown target %q", name, member)})
			}
		}
	}

	return issues
}

func resolveOutputFormat(t *Target) string {
	if t.GenerationPolicy.OutputFormat != "" {
		return t.GenerationPolicy.OutputFormat
	}
	ext := strings.TrimPrefix(strings.ToLower(extOf(t.Out)), ".")
	if ext != "" {
		return ext
	}
	return "png"
}

func extOf(p string) string {
	idx := strings.LastIndex(p, ".")
	if idx < 0 {
		return ""
	}
	return p[idx:]
}

func parseSize(s string) (w, h int, ok bool) {
	if !sizeLiteralRE.MatchString(s) {
		return 0, 0, false
	}
	parts := strings.SplitN(s, "x", 2)
	w64, err1 := strconv.Atoi(parts[0])
	h64, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return w64, h64, true
}

func containsString(ss []string, s string) bool {
	for _, x := range ss {
		if x == s {
			return true
		}
	}
	return false
}

func hasErrorIssue(issues []Issue) bool {
	for _, i := range issues {
		if i.Level == "error" {
			return true
		}
	}
	return false
}
