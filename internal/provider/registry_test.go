package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Someblueman/lootforge/internal/manifest"
)

type fakeProvider struct {
	name string
	caps Capabilities
}

func (f *fakeProvider) Name() string                   { return f.name }
func (f *fakeProvider) Capabilities() Capabilities      { return f.caps }
func (f *fakeProvider) Supports(feat Feature) bool      { return true }
func (f *fakeProvider) PrepareJobs(t []*manifest.PlannedTarget, rc RunContext) ([]*manifest.ProviderJob, error) {
	return nil, nil
}
func (f *fakeProvider) RunJob(j *manifest.ProviderJob, rc RunContext) (*RunResult, error) {
	return nil, nil
}
func (f *fakeProvider) RunEditJob(j *manifest.ProviderJob, rc RunContext) (*RunResult, error) {
	return nil, nil
}
func (f *fakeProvider) NormalizeError(err error) *Error {
	return &Error{Provider: f.name, Code: "fake_error", Message: err.Error()}
}

func newTestRegistry() *Registry {
	return NewRegistry(
		&fakeProvider{name: "nano", caps: Capabilities{SupportsTransparentBackground: true, SupportsEdits: true}},
		&fakeProvider{name: "openai", caps: Capabilities{SupportsTransparentBackground: true, SupportsEdits: true}},
		&fakeProvider{name: "local", caps: Capabilities{SupportsTransparentBackground: false, SupportsEdits: true}},
	)
}

func TestRegistry_GetKnownAndUnknown(t *testing.T) {
	r := newTestRegistry()

	p, ok := r.Get("openai")
	require.True(t, ok)
	assert.Equal(t, "openai", p.Name())

	_, ok = r.Get("does-not-exist")
	assert.False(t, ok)
}

func TestRegistry_CapabilityLookup_PreservesDeclaredOrder(t *testing.T) {
	r := newTestRegistry()
	lookup := r.CapabilityLookup()

	nano, ok := lookup("nano")
	require.True(t, ok)
	assert.Equal(t, 0, nano.DefaultOrder)

	local, ok := lookup("local")
	require.True(t, ok)
	assert.Equal(t, 2, local.DefaultOrder)

	_, ok = lookup("unregistered")
	assert.False(t, ok)
}

func TestRegistry_RouteTarget_UsesResolvedProviderWhenSet(t *testing.T) {
	r := newTestRegistry()
	pt := &manifest.PlannedTarget{ResolvedProvider: "local"}

	route, err := r.RouteTarget(pt, "")
	require.NoError(t, err)
	assert.Equal(t, "local", route.Primary)
}

func TestRegistry_RouteTarget_FallsBackToRequestedProvider(t *testing.T) {
	r := newTestRegistry()
	pt := &manifest.PlannedTarget{}

	route, err := r.RouteTarget(pt, "openai")
	require.NoError(t, err)
	assert.Equal(t, "openai", route.Primary)
}

func TestRegistry_RouteTarget_AutoSelectRespectsAlphaRequirement(t *testing.T) {
	r := newTestRegistry()
	pt := &manifest.PlannedTarget{}
	pt.ResolvedAlpha = true

	route, err := r.RouteTarget(pt, "")
	require.NoError(t, err)
	// "local" doesn't support transparent background; declared order
	// picks "nano" first among the providers that do.
	assert.Equal(t, "nano", route.Primary)
}

func TestRegistry_RouteTarget_UnknownProviderErrors(t *testing.T) {
	r := newTestRegistry()
	pt := &manifest.PlannedTarget{ResolvedProvider: "ghost"}

	_, err := r.RouteTarget(pt, "")
	assert.Error(t, err)
}

func TestRegistry_RouteTarget_FallbackChainExcludesPrimaryAndUnregistered(t *testing.T) {
	r := newTestRegistry()
	pt := &manifest.PlannedTarget{ResolvedProvider: "openai"}
	pt.FallbackProviders = []string{"openai", "ghost", "local", "nano"}

	route, err := r.RouteTarget(pt, "")
	require.NoError(t, err)
	assert.Equal(t, "openai", route.Primary)
	assert.Equal(t, []string{"local", "nano"}, route.Fallbacks)
}

func TestError_RetriableRules(t *testing.T) {
	cases := []struct {
		code      string
		retriable bool
	}{
		{"missing_api_key", false},
		{"nano_edit_unsupported_model", false},
		{"openai_edit_missing_base_image", false},
		{"openai_edit_input_unsafe_path", false},
		{"nano_edit_missing_base_image", false},
		{"local_edit_input_unsafe_path", false},
		{"openai_http_error", true},
		{"local_request_timeout", true},
	}
	for _, c := range cases {
		e := &Error{Code: c.code}
		assert.Equal(t, c.retriable, e.Retriable(), c.code)
	}
}
