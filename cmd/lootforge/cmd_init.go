package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Someblueman/lootforge/internal/manifest"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "scaffold a manifest and the on-disk output layout",
	RunE:  runInit,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "overwrite an existing manifest")
}

func runInit(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(manifestPath); err == nil && !forceInit {
		return fmt.Errorf("lootforge init: %s already exists (use --force to overwrite)", manifestPath)
	}

	if err := os.MkdirAll(filepath.Dir(manifestPath), 0o755); err != nil {
		return fmt.Errorf("lootforge init: %w", err)
	}

	skeleton := manifest.Manifest{
		Name:            "untitled-pack",
		OutputRoot:      ".",
		DefaultProvider: "openai",
		DefaultModel:    "gpt-image-1",
		StyleKits: map[string]manifest.StyleKit{
			"default": {Rules: []string{"flat shading", "16px grid"}},
		},
		Targets: []manifest.Target{
			{
				ID:       "example-hero",
				Kind:     "sprite",
				Out:      "example-hero.png",
				StyleKit: "default",
				Acceptance: manifest.AcceptanceSpec{
					Size:  "64x64",
					Alpha: true,
				},
				PromptSpec: manifest.PromptSpec{
					Primary: "a stylized fantasy hero portrait icon",
				},
				GenerationPolicy: manifest.GenerationPolicy{
					Background:   "transparent",
					OutputFormat: "png",
				},
			},
		},
	}

	raw, err := json.MarshalIndent(skeleton, "", "  ")
	if err != nil {
		return fmt.Errorf("lootforge init: marshal skeleton manifest: %w", err)
	}
	if err := os.WriteFile(manifestPath, raw, 0o644); err != nil {
		return fmt.Errorf("lootforge init: write manifest: %w", err)
	}

	root := outputRoot
	if root == "" {
		root = "."
	}
	l := newLayout(root)
	for _, dir := range l.dirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("lootforge init: create %s: %w", dir, err)
		}
	}

	fmt.Printf("initialized manifest at %s and output layout under %s\n", manifestPath, root)
	return nil
}
