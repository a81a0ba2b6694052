// Package manifest implements C2: parsing and semantic validation of the
// author-owned manifest, default resolution, spritesheet expansion,
// provider routing, and deterministic job-id assignment (spec §4.2).
package manifest

// Manifest is the author-owned top-level document (spec §3).
type Manifest struct {
	Name               string                        `json:"name"`
	OutputRoot         string                        `json:"outputRoot"`
	DefaultProvider    string                        `json:"defaultProvider"`
	DefaultModel       string                        `json:"defaultModel"`
	FallbackProviders  []string                      `json:"fallbackProviders,omitempty"`
	StyleKits          map[string]StyleKit           `json:"styleKits,omitempty"`
	ConsistencyGroups  map[string]ConsistencyGroup   `json:"consistencyGroups,omitempty"`
	EvaluationProfiles map[string]EvaluationProfile  `json:"evaluationProfiles,omitempty"`
	Atlas              *AtlasConfig                  `json:"atlas,omitempty"`
	Targets            []Target                      `json:"targets"`
}

// StyleKit bundles shared style rules, reference images, and a palette
// file applied across every target that references it.
type StyleKit struct {
	Rules           []string `json:"rules,omitempty"`
	ReferenceImages []string `json:"referenceImages,omitempty"`
	PalettePath     string   `json:"palettePath,omitempty"`
	StylePreset     string   `json:"stylePreset,omitempty"`
}

// ConsistencyGroup is a set of targets that must share visual identity.
type ConsistencyGroup struct {
	StyleKit            string   `json:"styleKit"`
	Members             []string `json:"members"`
	DriftWarnThreshold   float64  `json:"driftWarnThreshold,omitempty"`
	DriftErrorThreshold  float64  `json:"driftErrorThreshold,omitempty"`
}

// EvaluationProfile is a reusable bundle of hard-gate thresholds and
// score weights.
type EvaluationProfile struct {
	TextureBudgetKB   float64            `json:"textureBudgetKB,omitempty"`
	ScoreWeights      map[string]float64 `json:"scoreWeights,omitempty"`
	ConsistencyWarnAt float64            `json:"consistencyWarnAt,omitempty"`
}

// AtlasConfig declares optional atlas grouping. Atlas packing itself is
// an out-of-scope external collaborator (spec §1); we only carry the
// grouping declaration through the plan.
type AtlasConfig struct {
	Groups map[string][]string `json:"groups,omitempty"`
}

// Target is a single asset declaration (spec §3).
type Target struct {
	ID                  string             `json:"id"`
	Kind                string             `json:"kind"`
	Out                 string             `json:"out"`
	StyleKit            string             `json:"styleKit,omitempty"`
	ConsistencyGroup    string             `json:"consistencyGroup,omitempty"`
	EvaluationProfile   string             `json:"evaluationProfile,omitempty"`
	Acceptance          AcceptanceSpec     `json:"acceptance"`
	RuntimeSpec         RuntimeSpec        `json:"runtimeSpec,omitempty"`
	PromptSpec          PromptSpec         `json:"promptSpec"`
	GenerationPolicy    GenerationPolicy   `json:"generationPolicy"`
	PostProcess         *PostProcessPolicy `json:"postProcess,omitempty"`
	Palette             *PalettePolicy     `json:"palette,omitempty"`
	Tileable            bool               `json:"tileable,omitempty"`
	SeamHeal            bool               `json:"seamHeal,omitempty"`
	WrapGrid            string             `json:"wrapGrid,omitempty"`
	Provider            string             `json:"providerOverride,omitempty"`
	Model               string             `json:"modelOverride,omitempty"`
	EditSpec            *EditSpec          `json:"editSpec,omitempty"`
	Spritesheet         *SpritesheetSpec   `json:"spritesheet,omitempty"`
	RegenerationSource  string             `json:"regenerationSource,omitempty"`
}

// AcceptanceSpec declares hard-gate expectations.
type AcceptanceSpec struct {
	Size          string  `json:"size"` // "WxH"
	Alpha         bool    `json:"alpha,omitempty"`
	MaxFileSizeKB float64 `json:"maxFileSizeKB,omitempty"`
}

// RuntimeSpec declares how the output is consumed at runtime.
type RuntimeSpec struct {
	Anchor          string `json:"anchor,omitempty"`
	PreviewWidth    int    `json:"previewWidth,omitempty"`
	PreviewHeight   int    `json:"previewHeight,omitempty"`
	AlphaRequired   bool   `json:"alphaRequired,omitempty"`
}

// PromptSpec is the primary prompt plus structured facets.
type PromptSpec struct {
	Primary string            `json:"primary"`
	Facets  map[string]string `json:"facets,omitempty"`
}

// CoarseToFinePolicy controls the draft-then-refine promotion described
// in spec §4.6 and resolved in DESIGN.md.
type CoarseToFinePolicy struct {
	Enabled                bool `json:"enabled"`
	PromoteTopK            int  `json:"promoteTopK,omitempty"`
	MinDraftScore          float64 `json:"minDraftScore,omitempty"`
	RequireDraftAcceptance bool `json:"requireDraftAcceptance,omitempty"`
}

// GenerationPolicy controls how a target is generated.
type GenerationPolicy struct {
	Size                string              `json:"size,omitempty"`
	Quality             string              `json:"quality,omitempty"`
	Background          string              `json:"background,omitempty"` // transparent, opaque, ...
	OutputFormat        string              `json:"outputFormat,omitempty"`
	CandidateCount      int                 `json:"candidateCount,omitempty"`
	MaxRetries          int                 `json:"maxRetries,omitempty"`
	FallbackProviders   []string            `json:"fallbackProviders,omitempty"`
	RateLimitPerMinute  int                 `json:"rateLimitPerMinute,omitempty"`
	ProviderConcurrency int                 `json:"providerConcurrency,omitempty"`
	VLMGateThreshold    float64             `json:"vlmGateThreshold,omitempty"`
	VLMGateRubric       string              `json:"vlmGateRubric,omitempty"`
	CoarseToFine        *CoarseToFinePolicy `json:"coarseToFine,omitempty"`
	GenerationMode      string              `json:"generationMode,omitempty"` // "text", "edit-first"
}

// PostProcessPolicy is the declared post-process pipeline (spec §4.7).
type PostProcessPolicy struct {
	EmitRaw             bool                 `json:"emitRaw,omitempty"`
	Trim                bool                 `json:"trim,omitempty"`
	Pad                 *PadSpec             `json:"pad,omitempty"`
	SmartCrop           bool                 `json:"smartCrop,omitempty"`
	Resize              string               `json:"resize,omitempty"` // "WxH"
	Algorithm           string               `json:"algorithm,omitempty"`
	PixelPerfect        bool                 `json:"pixelPerfect,omitempty"`
	Outline             *OutlineSpec         `json:"outline,omitempty"`
	PaletteQuantization *PaletteQuantization `json:"paletteQuantization,omitempty"`
	EmitVariants        []string             `json:"emitVariants,omitempty"`
	ResizeVariants      []string             `json:"resizeVariants,omitempty"`
	AuxMaps             []string             `json:"auxMaps,omitempty"` // normal, specular, ao
}

// PadSpec declares uniform or per-edge padding.
type PadSpec struct {
	Uniform int `json:"uniform,omitempty"`
	Top     int `json:"top,omitempty"`
	Right   int `json:"right,omitempty"`
	Bottom  int `json:"bottom,omitempty"`
	Left    int `json:"left,omitempty"`
}

// OutlineSpec declares an outline post-process operation.
type OutlineSpec struct {
	WidthPx int    `json:"widthPx"`
	Color   string `json:"color,omitempty"`
}

// PaletteQuantization declares palette-reduction post-processing.
type PaletteQuantization struct {
	Colors int  `json:"colors,omitempty"`
	Strict bool `json:"strict,omitempty"`
}

// PalettePolicy is the target-level palette override.
type PalettePolicy struct {
	Colors []string `json:"colors,omitempty"`
	Strict bool     `json:"strict,omitempty"`
}

// EditSpec declares edit-first generation inputs.
type EditSpec struct {
	Inputs              []EditInput `json:"inputs"`
	Fidelity            string      `json:"fidelity,omitempty"`
	Instruction         string      `json:"instruction,omitempty"`
	PreserveComposition bool        `json:"preserveComposition,omitempty"`
}

// EditInput is one role-tagged image input to an edit-first job.
type EditInput struct {
	Path string `json:"path"`
	Role string `json:"role"` // base, mask, reference
}

// SpritesheetSpec declares frame/sheet linkage for kind=spritesheet.
type SpritesheetSpec struct {
	FrameWidth  int         `json:"frameWidth"`
	FrameHeight int         `json:"frameHeight"`
	Animations  []Animation `json:"animations"`
}

// Animation is one named animation within a spritesheet target.
type Animation struct {
	Name   string `json:"name"`
	Frames int    `json:"frames"`
	Prompt string `json:"prompt,omitempty"`
}
