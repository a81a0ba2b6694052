package provider

import (
	"fmt"

	"github.com/Someblueman/lootforge/internal/manifest"
)

// Registry holds one adapter instance per provider name (spec §4.4).
// Configuration precedence (environment > manifest provider block >
// adapter default) is applied by the caller that constructs each
// adapter; the registry itself is just a name -> Provider map plus a
// declared default order for auto-selection ties.
type Registry struct {
	providers map[string]Provider
	order     []string // declared default order, lowest index wins ties
}

// NewRegistry builds a registry from a set of adapters, in the order
// they should be preferred when auto-selecting (spec §4.4 step 3: "ties
// broken by a declared default order").
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: map[string]Provider{}}
	for _, p := range providers {
		r.providers[p.Name()] = p
		r.order = append(r.order, p.Name())
	}
	return r
}

// Get returns the adapter registered under name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// CapabilityLookup adapts the registry to manifest.CapabilityLookup so
// the planner can validate/route without importing this package (see
// internal/manifest/capabilities.go).
func (r *Registry) CapabilityLookup() manifest.CapabilityLookup {
	return func(name string) (manifest.ProviderCapabilities, bool) {
		p, ok := r.providers[name]
		if !ok {
			return manifest.ProviderCapabilities{}, false
		}
		c := p.Capabilities()
		order := len(r.order)
		for i, n := range r.order {
			if n == name {
				order = i
				break
			}
		}
		return manifest.ProviderCapabilities{
			Name:                           name,
			SupportsTransparentBackground:  c.SupportsTransparentBackground,
			SupportsEdits:                  c.SupportsEdits,
			SupportedOutputFormats:         c.SupportedOutputFormats,
			DefaultOrder:                   order,
		}, true
	}
}

// Route is the output of routing one target: a primary provider plus an
// ordered fallback chain (spec §4.4 "Output").
type Route struct {
	Primary   string
	Fallbacks []string
}

// RouteTarget resolves the primary provider and fallback chain for a
// single already-planned target. The provider the planner
// (internal/manifest) chose in pt.ResolvedProvider is kept as is;
// requestedProvider applies only when the plan left it empty, and
// autoSelect, which repeats the planner's capability predicate over the
// registry's declared order, runs only when both are empty.
func (r *Registry) RouteTarget(pt *manifest.PlannedTarget, requestedProvider string) (Route, error) {
	primary := pt.ResolvedProvider
	if primary == "" && requestedProvider != "" {
		primary = requestedProvider
	}
	if primary == "" {
		primary = r.autoSelect(pt)
	}
	if primary == "" {
		return Route{}, fmt.Errorf("no provider could be routed for target %q", pt.ID)
	}
	if _, ok := r.providers[primary]; !ok {
		return Route{}, fmt.Errorf("unknown provider %q for target %q", primary, pt.ID)
	}

	fallbacks := manifest.FallbackChain(pt, r.CapabilityLookup())
	var filtered []string
	for _, f := range fallbacks {
		if f == primary {
			continue
		}
		if _, ok := r.providers[f]; ok {
			filtered = append(filtered, f)
		}
	}
	return Route{Primary: primary, Fallbacks: filtered}, nil
}

func (r *Registry) autoSelect(pt *manifest.PlannedTarget) string {
	needsAlpha := pt.ResolvedAlpha
	needsEdits := pt.GenerationPolicy.GenerationMode == "edit-first"

	for _, name := range r.order {
		p := r.providers[name]
		c := p.Capabilities()
		if needsAlpha && !c.SupportsTransparentBackground {
			continue
		}
		if needsEdits && !c.SupportsEdits {
			continue
		}
		return name
	}
	return ""
}
