package manifest

// ProviderCapabilities is the narrow slice of a provider adapter's
// capabilities (spec §4.3) the planner needs in order to validate and
// route targets, without importing the provider package (which in turn
// depends on manifest's PlannedTarget type for PrepareJobs). The
// provider registry supplies a CapabilityLookup at call sites in
// cmd/lootforge, keeping the dependency direction one-way.
type ProviderCapabilities struct {
	Name                          string
	SupportsTransparentBackground bool
	SupportsEdits                 bool
	SupportedOutputFormats        map[string]bool
	DefaultOrder                  int // lower sorts first in auto-selection ties
}

// CapabilityLookup resolves a provider name to its capabilities. ok is
// false for an unknown provider name.
type CapabilityLookup func(providerName string) (caps ProviderCapabilities, ok bool)

// KnownProviders lists every provider name the planner will accept in a
// manifest's "provider" field (spec §4.3: one of {openai, nano, local}).
var KnownProviders = []string{"openai", "nano", "local"}

func isKnownProvider(name string) bool {
	for _, p := range KnownProviders {
		if p == name {
			return true
		}
	}
	return false
}
