package manifest

import "fmt"

// expandSpritesheet implements spec §4.2 step 4: a manifest target of
// kind "spritesheet" becomes one sheet PlannedTarget (generation
// disabled, assembled later from its frames) plus one frame
// PlannedTarget per animation frame (catalog disabled, carrying a
// frame-specific prompt derived from the animation's prompt).
//
// Invariant 6 (spec §3): every frame target produced here shares sheetID
// as its Spritesheet.SheetID, and the sheet target itself is never
// generated.
func expandSpritesheet(m *Manifest, t Target) []PlannedTarget {
	sheetID := t.ID
	var out []PlannedTarget

	sheet := PlannedTarget{Target: t}
	sheet.GenerationDisabled = true
	sheet.Spritesheet = SpritesheetPlanInfo{IsSheet: true, SheetID: sheetID}
	resolveDefaults(m, &sheet)
	out = append(out, sheet)

	if t.Spritesheet == nil {
		return out
	}

	for _, anim := range t.Spritesheet.Animations {
		for frameIdx := 0; frameIdx < anim.Frames; frameIdx++ {
			frame := t
			frame.ID = fmt.Sprintf("%s.%s.%d", sheetID, anim.Name, frameIdx)
			frame.Kind = "sprite"
			frame.Out = fmt.Sprintf("%s.%s.%04d.png", trimExt(t.Out), anim.Name, frameIdx)
			if anim.Prompt != "" {
				frame.PromptSpec.Primary = anim.Prompt
			}

			pf := PlannedTarget{Target: frame}
			pf.CatalogDisabled = true
			pf.Spritesheet = SpritesheetPlanInfo{
				SheetID:       sheetID,
				AnimationName: anim.Name,
				FrameIndex:    frameIdx,
			}
			resolveDefaults(m, &pf)
			out = append(out, pf)
		}
	}

	return out
}

func trimExt(p string) string {
	ext := extOf(p)
	if ext == "" {
		return p
	}
	return p[:len(p)-len(ext)]
}
