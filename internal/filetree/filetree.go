// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package filetree applies the replacer to files on disk, for pipelines that
// do not run esbuild.
package filetree

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"codeberg.org/oliverandrich/scss-asset-replacer/internal/replacer"
	"github.com/bmatcuk/doublestar/v4"
)

// DefaultSourcePatterns match the stylesheets handled by default.
var DefaultSourcePatterns = []string{"**/*.scss", "**/*.sass", "**/*.css"}

// DefaultBundlePattern matches emitted CSS in a dist directory.
const DefaultBundlePattern = "**/*.css"

// Report lists the files a run looked at and the ones it changed.
type Report struct {
	Scanned []string
	Changed []string
}

// Glob returns the files under root matching any pattern, relative to root
// with forward slashes, sorted and deduplicated.
func Glob(root string, patterns []string) ([]string, error) {
	fsys := os.DirFS(root)
	seen := make(map[string]bool)
	var out []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid pattern %q", pattern)
		}
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("failed to glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	slices.Sort(out)
	return out, nil
}

// RewriteSources runs Transform over stylesheets under root and writes the
// changed ones back unless dryRun is set.
func RewriteSources(r *replacer.Replacer, root string, patterns []string, dryRun bool) (Report, error) {
	var report Report

	files, err := Glob(root, patterns)
	if err != nil {
		return report, err
	}

	for _, rel := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		data, err := os.ReadFile(path)
		if err != nil {
			return report, fmt.Errorf("failed to read %s: %w", rel, err)
		}
		report.Scanned = append(report.Scanned, rel)

		res := r.Transform(string(data), path)
		if !res.Changed() {
			continue
		}
		report.Changed = append(report.Changed, rel)

		if dryRun {
			continue
		}
		if err := writeKeepingMode(path, []byte(res.Code())); err != nil {
			return report, fmt.Errorf("failed to write %s: %w", rel, err)
		}
	}

	return report, nil
}

// LoadBundle reads the files under dir matching pattern into a Bundle keyed
// by their slash separated path relative to dir.
func LoadBundle(dir, pattern string) (replacer.Bundle, error) {
	files, err := Glob(dir, []string{pattern})
	if err != nil {
		return nil, err
	}

	bundle := make(replacer.Bundle, len(files))
	for _, rel := range files {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", rel, err)
		}
		bundle[rel] = &replacer.OutputAsset{Type: replacer.AssetTypeAsset, Source: data}
	}
	return bundle, nil
}

// Snapshot copies the sources of a bundle so changes can be detected after
// GenerateBundle mutates it.
func Snapshot(bundle replacer.Bundle) map[string][]byte {
	snap := make(map[string][]byte, len(bundle))
	for name, asset := range bundle {
		if asset != nil {
			snap[name] = bytes.Clone(asset.Source)
		}
	}
	return snap
}

// WriteBundle writes the bundle entries whose source differs from before.
// It returns the changed names, sorted.
func WriteBundle(dir string, before map[string][]byte, bundle replacer.Bundle) ([]string, error) {
	var changed []string
	for name, asset := range bundle {
		if asset == nil || bytes.Equal(before[name], asset.Source) {
			continue
		}
		changed = append(changed, name)
	}
	slices.Sort(changed)

	for _, name := range changed {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := writeKeepingMode(path, bundle[name].Source); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return changed, nil
}

// FinalizeDir runs GenerateBundle over emitted CSS under dir and writes the
// changed files back.
func FinalizeDir(r *replacer.Replacer, dir, pattern string) ([]string, error) {
	bundle, err := LoadBundle(dir, pattern)
	if err != nil {
		return nil, err
	}
	before := Snapshot(bundle)
	r.GenerateBundle(bundle)
	return WriteBundle(dir, before, bundle)
}

func writeKeepingMode(path string, data []byte) error {
	mode := os.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}
	return os.WriteFile(path, data, mode)
}
