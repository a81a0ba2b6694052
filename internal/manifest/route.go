package manifest

import "sort"

// routeProvider implements spec §4.2 step 5 / §4.4: explicit
// target.provider wins; otherwise an already-resolved manifest default
// provider is kept when the capability lookup knows it; otherwise
// auto-selection picks the first provider (by declared default order)
// whose capabilities satisfy the target's requirements, preserving the
// manifest's fallback-providers list either way. A nil caps leaves the
// resolved provider as it is.
func routeProvider(pt *PlannedTarget, caps CapabilityLookup) {
	if pt.Target.Provider != "" {
		pt.ResolvedProvider = pt.Target.Provider
		return
	}
	if caps == nil {
		return
	}
	if pt.ResolvedProvider != "" {
		if _, ok := caps(pt.ResolvedProvider); ok {
			return
		}
	}

	needsAlpha := pt.ResolvedAlpha
	needsEdits := pt.GenerationPolicy.GenerationMode == "edit-first"

	type candidate struct {
		name  string
		order int
	}
	var candidates []candidate
	for _, name := range KnownProviders {
		c, ok := caps(name)
		if !ok {
			continue
		}
		if needsAlpha && !c.SupportsTransparentBackground {
			continue
		}
		if needsEdits && !c.SupportsEdits {
			continue
		}
		candidates = append(candidates, candidate{name: name, order: c.DefaultOrder})
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].order < candidates[j].order })
	if len(candidates) > 0 {
		pt.ResolvedProvider = candidates[0].name
	}
}

// FallbackChain returns the fallback providers filtered by the same
// capability predicate used for auto-selection (spec §4.4 step 4).
func FallbackChain(pt *PlannedTarget, caps CapabilityLookup) []string {
	needsAlpha := pt.ResolvedAlpha
	needsEdits := pt.GenerationPolicy.GenerationMode == "edit-first"

	var out []string
	for _, name := range pt.FallbackProviders {
		if caps == nil {
			out = append(out, name)
			continue
		}
		c, ok := caps(name)
		if !ok {
			continue
		}
		if needsAlpha && !c.SupportsTransparentBackground {
			continue
		}
		if needsEdits && !c.SupportsEdits {
			continue
		}
		out = append(out, name)
	}
	return out
}
