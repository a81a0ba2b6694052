package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Minimal styling: LootForge's commands are one-shot batch stages, not
// the teacher's interactive chat TUI, so this borrows lipgloss's color
// primitives for a single pass/fail/warn summary line per stage rather
// than the teacher's bubbletea-driven styling system.
var (
	styleOK   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	styleWarn = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	styleFail = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleDim  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

// stageSummary prints a one-line passed/failed/warned count, colored by
// whether the stage overall succeeded, matching the user-visible failure
// policy of one line plus a written report per stage.
func stageSummary(stage string, passed, failed, warned int) {
	label := styleOK.Render(stage + " ok")
	if failed > 0 {
		label = styleFail.Render(stage + " failed")
	} else if warned > 0 {
		label = styleWarn.Render(stage + " warnings")
	}
	fmt.Printf("%s %s\n", label, styleDim.Render(fmt.Sprintf("(passed=%d failed=%d warned=%d)", passed, failed, warned)))
}
