// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package replacer

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// AssetType discriminates emitted outputs.
type AssetType string

const (
	AssetTypeAsset AssetType = "asset"
	AssetTypeChunk AssetType = "chunk"
)

// OutputAsset is one emitted build output. Source is mutated in place.
type OutputAsset struct {
	Type   AssetType
	Source []byte
}

// Bundle maps output file names to emitted outputs.
type Bundle map[string]*OutputAsset

// GenerateBundle rebases image paths in emitted CSS assets.
// It does nothing in serve mode.
func (r *Replacer) GenerateBundle(bundle Bundle) {
	if r.serve {
		return
	}

	for name, asset := range bundle {
		if asset == nil || asset.Type != AssetTypeAsset || !strings.HasSuffix(name, ".css") || len(asset.Source) == 0 {
			continue
		}

		source := string(asset.Source)
		rebased, err := r.rebase.apply(source)
		if err != nil {
			r.logger.Warn("path replacement failed", "file", name, "error", err)
			continue
		}
		if rebased == source {
			continue
		}

		asset.Source = []byte(rebased)
		r.logger.Info("path replacement complete",
			"from", r.rebase.from,
			"to", r.rebase.to,
			"file", name,
		)
	}
}

// rebaser replaces a path prefix unless it is already preceded by "..".
type rebaser struct {
	re   *regexp2.Regexp
	from string
	to   string
}

func newRebaser(from, to string) *rebaser {
	return &rebaser{
		re:   regexp2.MustCompile(`(?<!\.\.)`+regexp2.Escape(from), regexp2.None),
		from: from,
		to:   to,
	}
}

func (rb *rebaser) apply(source string) (string, error) {
	return rb.re.Replace(source, escapeReplacement(rb.to), -1, -1)
}

// escapeReplacement quotes "$" so the replacement is taken literally.
func escapeReplacement(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
