package service

import "path/filepath"

// layout mirrors cmd/lootforge/layout.go's on-disk path resolution so
// the HTTP facade and the CLI write/read the exact same artifact
// locations under a shared output root.
type layout struct {
	root string
}

func newLayout(root string) layout { return layout{root: root} }

func (l layout) rawDir() string               { return filepath.Join(l.root, "assets", "imagegen", "raw") }
func (l layout) processedImagesDir() string   { return filepath.Join(l.root, "assets", "imagegen", "processed", "images") }
func (l layout) catalogPath() string          { return filepath.Join(l.root, "assets", "imagegen", "processed", "catalog.json") }
func (l layout) jobsDir() string              { return filepath.Join(l.root, "jobs") }
func (l layout) targetsIndexPath() string     { return filepath.Join(l.jobsDir(), "targets-index.json") }
func (l layout) provenanceDir() string        { return filepath.Join(l.root, "provenance") }
func (l layout) provenancePath() string       { return filepath.Join(l.provenanceDir(), "run.json") }
func (l layout) checksDir() string            { return filepath.Join(l.root, "checks") }
func (l layout) acceptanceReportPath() string { return filepath.Join(l.checksDir(), "image-acceptance-report.json") }
func (l layout) evalReportPath() string       { return filepath.Join(l.checksDir(), "eval-report.json") }
func (l layout) locksDir() string             { return filepath.Join(l.root, "locks") }
func (l layout) selectionLockPath() string    { return filepath.Join(l.locksDir(), "selection-lock.json") }
