package scoring

import (
	"sort"

	"github.com/Someblueman/lootforge/internal/manifest"
)

// DraftDecision records why a coarse-to-fine draft was or wasn't
// promoted to the refinement pass (spec §4.6, resolved in DESIGN.md's
// Open Question 1).
type DraftDecision struct {
	CandidateScore
	Promoted bool
	Reason   string // empty when promoted
}

// PromoteDrafts applies the coarse-to-fine policy to a set of scored
// drafts: drafts below MinDraftScore are discarded outright, drafts
// failing acceptance are discarded when RequireDraftAcceptance is set,
// and the remaining drafts are ranked by score (ties broken by output
// path) with only the top PromoteTopK promoted.
func PromoteDrafts(drafts []CandidateScore, policy manifest.CoarseToFinePolicy) []DraftDecision {
	decisions := make([]DraftDecision, 0, len(drafts))
	var survivors []CandidateScore

	for _, d := range drafts {
		if policy.MinDraftScore > 0 && d.ReadabilityScore < policy.MinDraftScore {
			decisions = append(decisions, DraftDecision{CandidateScore: d, Reason: "below_min_draft_score"})
			continue
		}
		if policy.RequireDraftAcceptance && !d.AcceptancePassed {
			decisions = append(decisions, DraftDecision{CandidateScore: d, Reason: "draft_failed_acceptance"})
			continue
		}
		survivors = append(survivors, d)
	}

	sort.SliceStable(survivors, func(i, j int) bool {
		if survivors[i].ReadabilityScore != survivors[j].ReadabilityScore {
			return survivors[i].ReadabilityScore > survivors[j].ReadabilityScore
		}
		return survivors[i].Path < survivors[j].Path
	})

	topK := policy.PromoteTopK
	if topK <= 0 || topK > len(survivors) {
		topK = len(survivors)
	}
	for i, s := range survivors {
		if i < topK {
			decisions = append(decisions, DraftDecision{CandidateScore: s, Promoted: true})
		} else {
			decisions = append(decisions, DraftDecision{CandidateScore: s, Reason: "not_in_top_k"})
		}
	}

	return decisions
}
