package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Someblueman/lootforge/internal/contract"
	"github.com/Someblueman/lootforge/internal/eval"
	"github.com/Someblueman/lootforge/internal/generate"
	"github.com/Someblueman/lootforge/internal/selectlock"
)

var selectCmd = &cobra.Command{
	Use:   "select",
	Short: "derive the selection lock from the eval report and provenance run",
	RunE:  runSelect,
}

func runSelect(cmd *cobra.Command, args []string) error {
	l := newLayout(outputRoot)

	var report eval.Report
	if err := readArtifact(contract.KindEvalReport, l.evalReportPath(), &report); err != nil {
		return fmt.Errorf("lootforge select: %w", err)
	}
	var run generate.ProvenanceRun
	if err := readArtifact(contract.KindProvenanceRun, l.provenancePath(), &run); err != nil {
		return fmt.Errorf("lootforge select: %w", err)
	}

	lock := selectlock.Build(&report, &run)

	if err := os.MkdirAll(l.locksDir(), 0o755); err != nil {
		return fmt.Errorf("lootforge select: %w", err)
	}
	if err := lock.Write(contract.Version, l.selectionLockPath()); err != nil {
		return fmt.Errorf("lootforge select: %w", err)
	}

	approved, rejected := 0, 0
	for _, t := range lock.Targets {
		if t.Approved {
			approved++
		} else {
			rejected++
		}
	}
	stageSummary("select", approved, rejected, 0)
	fmt.Printf("wrote %s\n", l.selectionLockPath())
	return nil
}
