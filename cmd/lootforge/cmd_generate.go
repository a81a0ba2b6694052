package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Someblueman/lootforge/internal/generate"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "run every routed target through its provider and record provenance",
	RunE:  runGenerate,
}

func runGenerate(cmd *cobra.Command, args []string) error {
	plan, err := loadAndPlan()
	if err != nil {
		return fmt.Errorf("lootforge generate: %w", err)
	}
	printIssues(plan)

	l := newLayout(outputRoot)
	registry := buildRegistry(cfg)

	run, outcomes, err := generate.Run(context.Background(), plan, generate.Options{
		OutputRoot:        outputRoot,
		RawDir:            l.rawDir(),
		Registry:          registry,
		Logger:            logger,
		RequestedProvider: providerFlag,
		Metrics:           generate.DefaultMetrics(),
	})
	if err != nil {
		return fmt.Errorf("lootforge generate: %w", err)
	}

	if err := os.MkdirAll(l.provenanceDir(), 0o755); err != nil {
		return fmt.Errorf("lootforge generate: %w", err)
	}
	if err := run.Write(l.provenancePath()); err != nil {
		return fmt.Errorf("lootforge generate: %w", err)
	}

	succeeded, failed := 0, 0
	for _, o := range outcomes {
		if o.Succeeded {
			succeeded++
		} else {
			failed++
		}
	}
	stageSummary("generate", succeeded, failed, 0)
	fmt.Printf("wrote %s\n", l.provenancePath())
	return nil
}
