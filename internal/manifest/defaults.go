package manifest

import (
	"bufio"
	"os"
	"strings"
)

// resolveDefaults implements spec §4.2 step 3. It mutates pt in place
// from the raw Target already copied into it.
func resolveDefaults(m *Manifest, pt *PlannedTarget) {
	provider := pt.Target.Provider
	if provider == "" {
		provider = m.DefaultProvider
	}
	pt.ResolvedProvider = provider

	model := pt.Target.Model
	if model == "" {
		model = m.DefaultModel
	}
	pt.ResolvedModel = model

	alphaRequired := pt.Acceptance.Alpha || pt.RuntimeSpec.AlphaRequired
	pt.ResolvedAlpha = alphaRequired

	background := pt.GenerationPolicy.Background
	if background == "" {
		if alphaRequired {
			background = "transparent"
		} else {
			background = "opaque"
		}
	}
	pt.ResolvedBackground = background

	pt.ResolvedOutputFormat = resolveOutputFormat(&pt.Target)

	var palette []string
	if pt.Palette != nil && len(pt.Palette.Colors) > 0 {
		palette = pt.Palette.Colors
	} else if pt.StyleKit != "" {
		if sk, ok := m.StyleKits[pt.StyleKit]; ok && sk.PalettePath != "" {
			palette = loadPaletteFile(sk.PalettePath)
		}
	}
	pt.ResolvedPalette = palette

	algorithm := ""
	if pt.PostProcess != nil {
		algorithm = pt.PostProcess.Algorithm
	}
	if algorithm == "" || !validAlgorithms[algorithm] {
		if pt.StyleKit != "" {
			if sk, ok := m.StyleKits[pt.StyleKit]; ok && sk.StylePreset == "pixel-art-16bit" {
				algorithm = "nearest"
			}
		}
	}
	if algorithm == "" || !validAlgorithms[algorithm] {
		algorithm = "lanczos3"
	}
	pt.ResolvedAlgorithm = algorithm

	pt.ResolvedPrompt = composePrompt(m, &pt.Target)

	fallbacks := pt.GenerationPolicy.FallbackProviders
	if len(fallbacks) == 0 {
		fallbacks = m.FallbackProviders
	}
	pt.FallbackProviders = fallbacks

	pt.NormalizedOut = NormalizeOut(pt.Out)
}

// NormalizeOut exposes the slash/case normalization used for output-path
// uniqueness (spec invariant 1), kept here so every consumer shares one
// definition.
func NormalizeOut(out string) string {
	return strings.ToLower(strings.ReplaceAll(out, "\\", "/"))
}

// composePrompt injects style-kit rules and consistency-group
// constraints into the primary prompt (spec §4.2 step 3 / §3
// PlannedTarget "consistency-group constraints injected into prompt").
func composePrompt(m *Manifest, t *Target) string {
	var b strings.Builder
	b.WriteString(t.PromptSpec.Primary)

	if t.StyleKit != "" {
		if sk, ok := m.StyleKits[t.StyleKit]; ok {
			for _, rule := range sk.Rules {
				b.WriteString(" | style: ")
				b.WriteString(rule)
			}
		}
	}

	if t.ConsistencyGroup != "" {
		if cg, ok := m.ConsistencyGroups[t.ConsistencyGroup]; ok {
			b.WriteString(" | consistency-group: ")
			b.WriteString(t.ConsistencyGroup)
			if cg.StyleKit != "" {
				b.WriteString(" (style-kit ")
				b.WriteString(cg.StyleKit)
				b.WriteString(")")
			}
		}
	}

	for k, v := range t.PromptSpec.Facets {
		b.WriteString(" | ")
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
	}

	return b.String()
}

// loadPaletteFile reads a simple newline-delimited hex-color palette
// file. Missing or unreadable files yield no colors; the missing-asset
// warning is already recorded by validateManifest.
func loadPaletteFile(path string) []string {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	var colors []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "# ") {
			continue
		}
		colors = append(colors, line)
	}
	return colors
}
