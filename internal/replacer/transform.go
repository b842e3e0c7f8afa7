// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package replacer

import (
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// urlPattern matches url(...) references to raster and vector images.
	// The first group is the unquoted path.
	urlPattern = regexp.MustCompile(`(?i)url\(['"]?([^'")]+\.(?:png|jpe?g|svg|gif|webp))['"]?\)`)

	webpPattern = regexp.MustCompile(`(?i)\.webp`)
)

// Transform rewrites the url() references in a stylesheet.
// It returns NoChange when id is not a handled stylesheet or nothing changed.
func (r *Replacer) Transform(code, id string) Result {
	if !r.Accepts(id) {
		return NoChange()
	}

	out := urlPattern.ReplaceAllStringFunc(code, func(match string) string {
		sub := urlPattern.FindStringSubmatch(match)
		if sub == nil {
			return match
		}
		return r.rewriteURL(match, sub[1])
	})

	if out == code {
		return NoChange()
	}
	return Changed(out)
}

// rewriteURL applies .webp stripping and the @2x fallback to one reference.
func (r *Replacer) rewriteURL(match, assetPath string) string {
	target := webpPattern.ReplaceAllString(assetPath, "")

	normalized := trimPrefixStyle(target)
	if !r.exists(normalized) {
		ext := extname(normalized)
		if ext == "" {
			return match
		}

		retina := strings.TrimSuffix(normalized, ext) + "@2x" + ext
		if r.exists(retina) {
			target = prefixStyle(assetPath) + retina
		}
	}

	return `url("` + target + `")`
}

// exists reports whether rel names a file in the public directory.
// Any stat error counts as missing.
func (r *Replacer) exists(rel string) bool {
	p := filepath.FromSlash(rel)
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.publicDir, p)
	}
	_, err := os.Stat(p)
	return err == nil
}

// prefixStyle returns the leading "/" or "../" of an asset path, if any.
func prefixStyle(p string) string {
	switch {
	case strings.HasPrefix(p, "/"):
		return "/"
	case strings.HasPrefix(p, "../"):
		return "../"
	default:
		return ""
	}
}

func trimPrefixStyle(p string) string {
	return strings.TrimPrefix(p, prefixStyle(p))
}

// extname returns the extension of the last path element. Dotfiles such as
// ".png" have no extension.
func extname(p string) string {
	base := path.Base(p)
	if strings.LastIndex(base, ".") <= 0 {
		return ""
	}
	return path.Ext(base)
}
