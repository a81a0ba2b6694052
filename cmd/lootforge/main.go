// Package main implements the lootforge CLI: one command per pipeline
// stage (init, plan, validate, generate, regenerate, process, atlas,
// eval, review, select, package), driving the internal stage packages
// in sequence over a manifest-declared asset pack.
//
// This file is the entry point; command registration is split across
// cmd_*.go files.
//
// # File Index
//
//   - main.go         - entry point
//   - root.go         - rootCmd, global flags, zap logger init
//   - style.go        - lipgloss one-line summary helpers
//   - layout.go       - on-disk output layout paths
//   - registry.go     - provider registry construction from config
//   - artifact.go     - stage-artifact read/validate/decode helper
//   - cmd_init.go     - lootforge init
//   - cmd_plan.go     - lootforge plan
//   - cmd_validate.go - lootforge validate
//   - cmd_generate.go - lootforge generate
//   - cmd_process.go  - lootforge process
//   - cmd_eval.go     - lootforge eval
//   - cmd_select.go   - lootforge select
//   - cmd_regenerate.go - lootforge regenerate
//   - cmd_atlas.go    - lootforge atlas
//   - cmd_review.go   - lootforge review
//   - cmd_package.go  - lootforge package
//   - cmd_serve.go    - lootforge serve (internal/service HTTP facade)
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
