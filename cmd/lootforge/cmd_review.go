package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Someblueman/lootforge/internal/contract"
	"github.com/Someblueman/lootforge/internal/eval"
	"github.com/Someblueman/lootforge/internal/selectlock"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "summarize the eval report and selection lock for human review",
	RunE:  runReview,
}

// reviewSummaryRow is one target's reviewer-facing line: the score and
// gate outcome from eval, joined with the lock entry selection made from
// it. Rendering this into the review HTML is an out-of-scope external
// collaborator (spec §1); this command only resolves the join.
type reviewSummaryRow struct {
	ID               string   `json:"id"`
	FinalScore       float64  `json:"finalScore"`
	PassedHardGates  bool     `json:"passedHardGates"`
	HardGateErrors   []string `json:"hardGateErrors,omitempty"`
	HardGateWarnings []string `json:"hardGateWarnings,omitempty"`
	Approved         bool     `json:"approved"`
	SelectedOutput   string   `json:"selectedOutputPath,omitempty"`
	Provider         string   `json:"provider,omitempty"`
}

type reviewSummaryDocument struct {
	Targets []reviewSummaryRow `json:"targets"`
}

func runReview(cmd *cobra.Command, args []string) error {
	l := newLayout(outputRoot)

	var report eval.Report
	if err := readArtifact(contract.KindEvalReport, l.evalReportPath(), &report); err != nil {
		return fmt.Errorf("lootforge review: %w", err)
	}

	var lock selectlock.Lock
	if err := readArtifact(contract.KindSelectionLock, l.selectionLockPath(), &lock); err != nil {
		return fmt.Errorf("lootforge review: %w", err)
	}

	doc := reviewSummaryDocument{}
	approved, rejected := 0, 0
	for _, t := range report.Targets {
		row := reviewSummaryRow{
			ID:               t.ID,
			FinalScore:       t.FinalScore,
			PassedHardGates:  t.PassedHardGates,
			HardGateErrors:   t.HardGateErrors,
			HardGateWarnings: t.HardGateWarnings,
		}
		if locked, ok := lock.Find(t.ID); ok {
			row.Approved = locked.Approved
			row.SelectedOutput = locked.SelectedOutputPath
			row.Provider = locked.Provider
		}
		if row.Approved {
			approved++
		} else {
			rejected++
		}
		doc.Targets = append(doc.Targets, row)
	}

	if err := os.MkdirAll(l.reviewDir(), 0o755); err != nil {
		return fmt.Errorf("lootforge review: %w", err)
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("lootforge review: %w", err)
	}
	if err := os.WriteFile(l.reviewSummaryPath(), raw, 0o644); err != nil {
		return fmt.Errorf("lootforge review: %w", err)
	}

	stageSummary("review", approved, rejected, 0)
	fmt.Printf("wrote %s\n", l.reviewSummaryPath())
	return nil
}
