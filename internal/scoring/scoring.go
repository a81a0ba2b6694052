// Package scoring implements candidate scoring and selection (spec §4.6):
// a base readability score per candidate, acceptance pass/fail against a
// target's hard-gate spec, the optional VLM-gate and coarse-to-fine
// promotion hooks, and the deterministic selection rule that picks one
// winning candidate per job.
//
// The selection rule's multi-criteria, stable-sort-plus-lexicographic-
// tiebreak shape is grounded on the teacher's candidate-ranking pattern
// in internal/prompt/selector.go (priority, then token cost, then a
// stable id compare).
package scoring

import (
	"fmt"
	"image"
	"image/color"
	_ "image/png"
	"os"
	"sort"

	"github.com/Someblueman/lootforge/internal/manifest"
	"github.com/Someblueman/lootforge/internal/provider"
)

// CandidateScore is the scored record for one generated candidate image.
type CandidateScore struct {
	Path             string
	Width            int
	Height           int
	HasAlpha         bool
	Bytes            int64
	ReadabilityScore float64
	AcceptancePassed bool
	FailureReasons   []string
	VLMGateScore     *float64
}

// Inspect opens the candidate image and derives its base readability
// score and raw dimensions/alpha presence. Pixel-kernel specifics (edge
// density, silhouette clarity) are out of scope per spec §1; this
// reference score rewards images that hit their declared acceptance
// size exactly and penalizes missing alpha when alpha was required.
func Inspect(path string, acceptance manifest.AcceptanceSpec, bytes int64) (CandidateScore, error) {
	f, err := os.Open(path)
	if err != nil {
		return CandidateScore{}, err
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return CandidateScore{}, err
	}

	hasAlpha := colorModelHasAlpha(cfg.ColorModel)

	cs := CandidateScore{
		Path:     path,
		Width:    cfg.Width,
		Height:   cfg.Height,
		HasAlpha: hasAlpha,
		Bytes:    bytes,
	}
	cs.ReadabilityScore, cs.AcceptancePassed, cs.FailureReasons = score(cs, acceptance)
	return cs, nil
}

// colorModelHasAlpha reports whether a decoded PNG carries an alpha
// channel. The PNG decoder maps truecolor-without-alpha to
// color.RGBAModel and truecolor-with-alpha (and grayscale+alpha) to
// color.NRGBAModel/NRGBA64Model (see image/png's DecodeConfig), so only
// the NRGBA family indicates a genuine alpha chunk.
func colorModelHasAlpha(cm color.Model) bool {
	switch cm {
	case color.NRGBAModel, color.NRGBA64Model:
		return true
	default:
		return false
	}
}

func score(cs CandidateScore, acceptance manifest.AcceptanceSpec) (float64, bool, []string) {
	var reasons []string
	wantW, wantH, sizeOK := parseSize(acceptance.Size)
	dimensionScore := 1.0
	if sizeOK {
		if cs.Width != wantW || cs.Height != wantH {
			reasons = append(reasons, "size_mismatch")
			dimensionScore = 0.0
		}
	}

	alphaScore := 1.0
	if acceptance.Alpha && !cs.HasAlpha {
		reasons = append(reasons, "missing_alpha")
		alphaScore = 0.0
	}

	budgetScore := 1.0
	if acceptance.MaxFileSizeKB > 0 {
		limitBytes := acceptance.MaxFileSizeKB * 1024
		if float64(cs.Bytes) > limitBytes {
			reasons = append(reasons, "exceeds_file_size_budget")
			budgetScore = 0.0
		}
	}

	total := (dimensionScore + alphaScore + budgetScore) / 3.0
	passed := len(reasons) == 0
	return total, passed, reasons
}

func parseSize(size string) (int, int, bool) {
	var w, h int
	n, err := fmt.Sscanf(size, "%dx%d", &w, &h)
	if err != nil || n != 2 {
		return 0, 0, false
	}
	return w, h, true
}

// InspectCandidates scores every candidate in a successful RunResult.
func InspectCandidates(res *provider.RunResult, acceptance manifest.AcceptanceSpec) ([]CandidateScore, error) {
	var scores []CandidateScore
	for _, c := range res.Candidates {
		cs, err := Inspect(c.Path, acceptance, c.Bytes)
		if err != nil {
			return nil, err
		}
		scores = append(scores, cs)
	}
	return scores, nil
}

// Select implements the deterministic selection rule (spec §4.6): among
// a job's scored candidates, acceptance-passing candidates always win
// over failing ones; among candidates with equal acceptance status the
// highest score wins; ties are broken by lexicographically smallest
// output path, so reruns with byte-identical candidate sets always pick
// the same winner.
func Select(candidates []CandidateScore) (CandidateScore, bool) {
	if len(candidates) == 0 {
		return CandidateScore{}, false
	}
	sorted := make([]CandidateScore, len(candidates))
	copy(sorted, candidates)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].AcceptancePassed != sorted[j].AcceptancePassed {
			return sorted[i].AcceptancePassed
		}
		if sorted[i].ReadabilityScore != sorted[j].ReadabilityScore {
			return sorted[i].ReadabilityScore > sorted[j].ReadabilityScore
		}
		return sorted[i].Path < sorted[j].Path
	})

	return sorted[0], true
}
