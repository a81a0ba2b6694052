package main

import "path/filepath"

// layout resolves every on-disk path a stage reads or writes, rooted at
// the run's output root (spec §6's fixed directory shape).
type layout struct {
	root string
}

func newLayout(root string) layout { return layout{root: root} }

func (l layout) assetsDir() string            { return filepath.Join(l.root, "assets", "imagegen") }
func (l layout) rawDir() string                { return filepath.Join(l.assetsDir(), "raw") }
func (l layout) processedDir() string          { return filepath.Join(l.assetsDir(), "processed") }
func (l layout) processedImagesDir() string    { return filepath.Join(l.processedDir(), "images") }
func (l layout) catalogPath() string           { return filepath.Join(l.processedDir(), "catalog.json") }
func (l layout) jobsDir() string               { return filepath.Join(l.root, "jobs") }
func (l layout) targetsIndexPath() string      { return filepath.Join(l.jobsDir(), "targets-index.json") }
func (l layout) provenanceDir() string         { return filepath.Join(l.root, "provenance") }
func (l layout) provenancePath() string        { return filepath.Join(l.provenanceDir(), "run.json") }
func (l layout) checksDir() string             { return filepath.Join(l.root, "checks") }
func (l layout) acceptanceReportPath() string  { return filepath.Join(l.checksDir(), "image-acceptance-report.json") }
func (l layout) evalReportPath() string        { return filepath.Join(l.checksDir(), "eval-report.json") }
func (l layout) locksDir() string              { return filepath.Join(l.root, "locks") }
func (l layout) selectionLockPath() string     { return filepath.Join(l.locksDir(), "selection-lock.json") }
func (l layout) packDir() string               { return filepath.Join(l.root, "pack") }
func (l layout) packManifestPath() string      { return filepath.Join(l.packDir(), "manifest.json") }
func (l layout) reviewDir() string             { return filepath.Join(l.root, "review") }
func (l layout) reviewSummaryPath() string     { return filepath.Join(l.reviewDir(), "summary.json") }
func (l layout) atlasDir() string               { return filepath.Join(l.root, "atlas") }
func (l layout) atlasGroupsPath() string       { return filepath.Join(l.atlasDir(), "atlas-groups.json") }

func (l layout) dirs() []string {
	return []string{
		l.assetsDir(), l.rawDir(), l.processedImagesDir(), l.jobsDir(),
		l.provenanceDir(), l.checksDir(), l.locksDir(), l.packDir(),
		l.reviewDir(), l.atlasDir(),
	}
}
