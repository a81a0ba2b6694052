// Package process implements the post-generation pipeline (spec §4.7):
// a fixed ordered sequence of image transforms run over a provider's
// selected output, followed by acceptance verification and catalog
// sidecar emission.
//
// The ordered-phase-with-status-tracking shape is grounded on the
// teacher's campaign orchestrator (internal/campaign/
// orchestrator_phases.go): a fixed slice walked in declared order, each
// step's completion gating the next, with a "strict" abort mode
// standing in for the teacher's phase-blocked state.
package process

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"github.com/Someblueman/lootforge/internal/manifest"
)

// StepResult records the outcome of one pipeline step for the
// acceptance report.
type StepResult struct {
	Name    string
	Applied bool
	Skipped bool
	Error   string
}

// Result is everything Process produced for one target.
type Result struct {
	Steps        []StepResult
	OutputPath   string
	VariantPaths map[string]string
	Width        int
	Height       int
	Aborted      bool
}

// Transformer is the seam between pipeline sequencing and a concrete
// pixel kernel. LootForge ships ReferenceTransformer, a stdlib-`image`
// based implementation; spec §1 treats the transform kernels themselves
// as an external black box, so any Transformer implementation — a
// faster native one, a GPU-backed one — can be substituted without
// touching the ordering logic below.
type Transformer interface {
	Trim(img image.Image) image.Image
	Pad(img image.Image, spec manifest.PadSpec) image.Image
	SmartCrop(img image.Image, targetW, targetH int) image.Image
	Resize(img image.Image, w, h int, algorithm string) image.Image
	PixelPerfect(img image.Image) image.Image
	Outline(img image.Image, spec manifest.OutlineSpec) image.Image
	SeamHeal(img image.Image, wrapGrid string) image.Image
	QuantizePalette(img image.Image, spec manifest.PaletteQuantization) image.Image
}

// Run executes the fixed pipeline order from spec §4.7: emit-raw, trim,
// pad, smart-crop, resize, pixel-perfect, outline, seam-heal, palette
// quantization, encode, emit-variants, resize variants, aux maps. A step
// absent from the target's PostProcessPolicy is recorded Skipped, not
// Applied. When strict is true, the first step error aborts the
// remaining pipeline instead of carrying the unprocessed image forward.
func Run(t *manifest.PlannedTarget, sourcePath, outDir string, xf Transformer, strict bool) (*Result, error) {
	policy := t.PostProcess
	if policy == nil {
		policy = &manifest.PostProcessPolicy{}
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("process: open source: %w", err)
	}
	img, _, err := image.Decode(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("process: decode source: %w", err)
	}

	result := &Result{VariantPaths: map[string]string{}}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("process: create out dir: %w", err)
	}

	if policy.EmitRaw {
		rawOut := filepath.Join(outDir, "raw_"+filepath.Base(t.NormalizedOut))
		if err := writePNG(img, rawOut); err != nil {
			result.Steps = append(result.Steps, StepResult{Name: "emit_raw", Error: err.Error()})
			if strict {
				result.Aborted = true
				return result, nil
			}
		} else {
			result.Steps = append(result.Steps, StepResult{Name: "emit_raw", Applied: true})
		}
	} else {
		result.Steps = append(result.Steps, StepResult{Name: "emit_raw", Skipped: true})
	}

	img = applyStep(result, "trim", policy.Trim, img, func(in image.Image) image.Image {
		return xf.Trim(in)
	})
	img = applyStep(result, "pad", policy.Pad != nil, img, func(in image.Image) image.Image {
		return xf.Pad(in, *policy.Pad)
	})
	wantW, wantH, sizeOK := parseWxH(t.Acceptance.Size)

	img = applyStep(result, "smart_crop", policy.SmartCrop && sizeOK, img, func(in image.Image) image.Image {
		return xf.SmartCrop(in, wantW, wantH)
	})
	resizeW, resizeH, resizeOK := parseWxH(policy.Resize)
	img = applyStep(result, "resize", resizeOK, img, func(in image.Image) image.Image {
		return xf.Resize(in, resizeW, resizeH, policy.Algorithm)
	})
	img = applyStep(result, "pixel_perfect", policy.PixelPerfect, img, func(in image.Image) image.Image {
		return xf.PixelPerfect(in)
	})
	img = applyStep(result, "outline", policy.Outline != nil, img, func(in image.Image) image.Image {
		return xf.Outline(in, *policy.Outline)
	})
	img = applyStep(result, "seam_heal", t.SeamHeal, img, func(in image.Image) image.Image {
		return xf.SeamHeal(in, t.WrapGrid)
	})
	img = applyStep(result, "palette_quantization", policy.PaletteQuantization != nil, img, func(in image.Image) image.Image {
		return xf.QuantizePalette(in, *policy.PaletteQuantization)
	})
	finalOut := filepath.Join(outDir, filepath.Base(t.NormalizedOut))
	if err := writePNG(img, finalOut); err != nil {
		return nil, fmt.Errorf("process: encode final: %w", err)
	}
	result.Steps = append(result.Steps, StepResult{Name: "encode", Applied: true})
	result.OutputPath = finalOut
	b := img.Bounds()
	result.Width, result.Height = b.Dx(), b.Dy()

	for _, variant := range policy.EmitVariants {
		variantOut := filepath.Join(outDir, variant+"_"+filepath.Base(t.NormalizedOut))
		if err := writePNG(img, variantOut); err != nil {
			result.Steps = append(result.Steps, StepResult{Name: "emit_variant_" + variant, Error: err.Error()})
			if strict {
				result.Aborted = true
				return result, nil
			}
			continue
		}
		result.VariantPaths[variant] = variantOut
		result.Steps = append(result.Steps, StepResult{Name: "emit_variant_" + variant, Applied: true})
	}

	for _, rv := range policy.ResizeVariants {
		w, h, ok := parseWxH(rv)
		if !ok {
			result.Steps = append(result.Steps, StepResult{Name: "resize_variant_" + rv, Skipped: true})
			continue
		}
		resized := xf.Resize(img, w, h, policy.Algorithm)
		variantOut := filepath.Join(outDir, rv+"_"+filepath.Base(t.NormalizedOut))
		if err := writePNG(resized, variantOut); err != nil {
			result.Steps = append(result.Steps, StepResult{Name: "resize_variant_" + rv, Error: err.Error()})
			if strict {
				result.Aborted = true
				return result, nil
			}
			continue
		}
		result.VariantPaths[rv] = variantOut
		result.Steps = append(result.Steps, StepResult{Name: "resize_variant_" + rv, Applied: true})
	}

	for _, aux := range policy.AuxMaps {
		auxOut := filepath.Join(outDir, aux+"_"+filepath.Base(t.NormalizedOut))
		auxImg := deriveAuxMap(img, aux)
		if err := writePNG(auxImg, auxOut); err != nil {
			result.Steps = append(result.Steps, StepResult{Name: "aux_" + aux, Error: err.Error()})
			if strict {
				result.Aborted = true
				return result, nil
			}
			continue
		}
		result.VariantPaths[aux] = auxOut
		result.Steps = append(result.Steps, StepResult{Name: "aux_" + aux, Applied: true})
	}

	return result, nil
}

func applyStep(result *Result, name string, enabled bool, img image.Image, fn func(image.Image) image.Image) image.Image {
	if !enabled {
		result.Steps = append(result.Steps, StepResult{Name: name, Skipped: true})
		return img
	}
	out := fn(img)
	result.Steps = append(result.Steps, StepResult{Name: name, Applied: true})
	return out
}

func writePNG(img image.Image, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func parseWxH(s string) (int, int, bool) {
	if s == "" {
		return 0, 0, false
	}
	var w, h int
	n, err := fmt.Sscanf(s, "%dx%d", &w, &h)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	return w, h, true
}

// deriveAuxMap produces a placeholder auxiliary map (normal, specular,
// ao) by flattening the source image to greyscale intensity. Real aux
// map synthesis is a pixel-kernel concern out of scope per spec §1; the
// pipeline still needs a file to exist at the declared path so
// downstream consumers (an atlas packer, a runtime) can depend on it.
func deriveAuxMap(img image.Image, kind string) image.Image {
	b := img.Bounds()
	out := image.NewGray(b)
	draw.Draw(out, b, img, b.Min, draw.Src)
	return out
}
