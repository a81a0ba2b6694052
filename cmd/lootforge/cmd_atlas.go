package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Someblueman/lootforge/internal/manifest"
)

var atlasCmd = &cobra.Command{
	Use:   "atlas",
	Short: "emit the declared atlas grouping of processed outputs",
	RunE:  runAtlas,
}

// atlasGroupsDocument records which processed outputs belong to each
// declared atlas group. Packing the grouped images into a texture atlas
// is an external collaborator (spec §1); this command only resolves the
// declaration against the processed catalog so a packer has a concrete
// file list to consume.
type atlasGroupsDocument struct {
	Groups map[string][]string `json:"groups"`
}

func runAtlas(cmd *cobra.Command, args []string) error {
	l := newLayout(outputRoot)

	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return fmt.Errorf("lootforge atlas: %w", err)
	}
	var m manifest.Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return fmt.Errorf("lootforge atlas: parse manifest: %w", err)
	}
	if m.Atlas == nil || len(m.Atlas.Groups) == 0 {
		fmt.Println("no atlas groups declared")
		return nil
	}

	catalog := map[string]string{}
	if raw, err := os.ReadFile(l.catalogPath()); err == nil {
		_ = json.Unmarshal(raw, &catalog)
	}

	doc := atlasGroupsDocument{Groups: map[string][]string{}}
	for group, members := range m.Atlas.Groups {
		for _, id := range members {
			if path, ok := catalog[id]; ok {
				doc.Groups[group] = append(doc.Groups[group], path)
			}
		}
	}

	if err := os.MkdirAll(l.atlasDir(), 0o755); err != nil {
		return fmt.Errorf("lootforge atlas: %w", err)
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("lootforge atlas: %w", err)
	}
	if err := os.WriteFile(l.atlasGroupsPath(), out, 0o644); err != nil {
		return fmt.Errorf("lootforge atlas: %w", err)
	}

	stageSummary("atlas", len(doc.Groups), 0, 0)
	fmt.Printf("wrote %s\n", l.atlasGroupsPath())
	return nil
}
