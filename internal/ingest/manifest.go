// Package ingest turns a job's PDF files into chunks: per-file processing plus
// batch coordination with per-file failure isolation.
package ingest

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// ManifestEntry is one input file of a job.
type ManifestEntry struct {
	Name string // path relative to the job directory, used in persistence keys
	Path string
}

// Manifest is the ordered list of a job's input files, fixed at job start.
type Manifest struct {
	Dir     string
	Entries []ManifestEntry // PDFs, sorted by name
	Ignored []string        // other files; never processed, never errors
}

// InputCount is every file found, including ignored ones.
func (m Manifest) InputCount() int {
	return len(m.Entries) + len(m.Ignored)
}

// IsPDF reports whether name has a .pdf extension, ignoring case.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".pdf")
}

// BuildManifest walks dir once. Files in subdirectories are named by their
// slash-separated path relative to dir.
func BuildManifest(dir string) (Manifest, error) {
	var names []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return Manifest{}, fmt.Errorf("list %s: %w", dir, err)
	}
	return NewManifest(dir, names...), nil
}

// NewManifest builds a manifest from explicit file names inside dir.
func NewManifest(dir string, names ...string) Manifest {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	m := Manifest{Dir: dir}
	for _, name := range sorted {
		if !IsPDF(name) {
			m.Ignored = append(m.Ignored, name)
			continue
		}
		m.Entries = append(m.Entries, ManifestEntry{
			Name: name,
			Path: filepath.Join(dir, filepath.FromSlash(name)),
		})
	}
	return m
}
