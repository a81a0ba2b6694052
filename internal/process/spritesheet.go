package process

import (
	"encoding/json"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"
	"sort"

	"github.com/Someblueman/lootforge/internal/manifest"
)

// AnimFrameRect is one frame's placement within the assembled sheet.
type AnimFrameRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// AnimEntry describes one animation's frame range within the sheet.
type AnimEntry struct {
	Name       string `json:"name"`
	FirstFrame int    `json:"firstFrame"`
	FrameCount int    `json:"frameCount"`
}

// AnimSidecar is the `.anim.json` document emitted alongside an
// assembled spritesheet: frame rectangles in sheet order, plus the
// named animation ranges declared in the manifest.
type AnimSidecar struct {
	FrameWidth  int             `json:"frameWidth"`
	FrameHeight int             `json:"frameHeight"`
	Frames      []AnimFrameRect `json:"frames"`
	Animations  []AnimEntry     `json:"animations"`
}

// FrameSource is one generated (and already post-processed) frame image
// ready to be composed into a sheet.
type FrameSource struct {
	AnimationName string
	FrameIndex    int
	Path          string
}

// AssembleSheet composes frame images into one sheet PNG, ordered by
// declared animation order then frame index (spec §4.7, invariant 6:
// "the sheet target itself is never generated, only assembled from its
// frames"), and writes the accompanying .anim.json sidecar next to it.
func AssembleSheet(spec *manifest.SpritesheetSpec, frames []FrameSource, sheetOutPath string) error {
	order := map[string]int{}
	for i, a := range spec.Animations {
		order[a.Name] = i
	}

	sorted := make([]FrameSource, len(frames))
	copy(sorted, frames)
	sort.SliceStable(sorted, func(i, j int) bool {
		oi, oj := order[sorted[i].AnimationName], order[sorted[j].AnimationName]
		if oi != oj {
			return oi < oj
		}
		return sorted[i].FrameIndex < sorted[j].FrameIndex
	})

	fw, fh := spec.FrameWidth, spec.FrameHeight
	if fw <= 0 || fh <= 0 {
		return fmt.Errorf("process: spritesheet frame dimensions must be positive")
	}

	cols := len(sorted)
	sheet := image.NewNRGBA(image.Rect(0, 0, fw*cols, fh))
	rects := make([]AnimFrameRect, 0, len(sorted))

	for i, fs := range sorted {
		f, err := os.Open(fs.Path)
		if err != nil {
			return fmt.Errorf("process: open frame %s: %w", fs.Path, err)
		}
		img, err := png.Decode(f)
		f.Close()
		if err != nil {
			return fmt.Errorf("process: decode frame %s: %w", fs.Path, err)
		}
		dst := image.Rect(i*fw, 0, i*fw+fw, fh)
		draw.Draw(sheet, dst, img, img.Bounds().Min, draw.Src)
		rects = append(rects, AnimFrameRect{X: i * fw, Y: 0, W: fw, H: fh})
	}

	if err := writePNG(sheet, sheetOutPath); err != nil {
		return fmt.Errorf("process: write sheet: %w", err)
	}

	anims := make([]AnimEntry, 0, len(spec.Animations))
	cursor := 0
	for _, a := range spec.Animations {
		anims = append(anims, AnimEntry{Name: a.Name, FirstFrame: cursor, FrameCount: a.Frames})
		cursor += a.Frames
	}

	sidecar := AnimSidecar{FrameWidth: fw, FrameHeight: fh, Frames: rects, Animations: anims}
	sidecarPath := sheetOutPath + ".anim.json"
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return fmt.Errorf("process: marshal anim sidecar: %w", err)
	}
	return os.WriteFile(sidecarPath, data, 0o644)
}
