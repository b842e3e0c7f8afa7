// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package esbuildplugin hooks the replacer into esbuild's plugin API.
package esbuildplugin

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"codeberg.org/oliverandrich/scss-asset-replacer/internal/replacer"
	"github.com/evanw/esbuild/pkg/api"
)

// Name is the plugin name reported in esbuild messages.
const Name = "scss-asset-replacer"

// New returns an esbuild plugin running the replacer in the given mode.
func New(r *replacer.Replacer, mode replacer.Command, publicDir string) api.Plugin {
	return api.Plugin{
		Name: Name,
		Setup: func(build api.PluginBuild) {
			r.ConfigResolved(replacer.ResolvedConfig{Command: mode, PublicDir: publicDir})
			slog.Debug("esbuild plugin installed",
				"plugin", Name,
				"serve", r.Serve(),
				"public_dir", r.PublicDir(),
			)

			build.OnLoad(api.OnLoadOptions{Filter: loadFilter(r.Extensions()), Namespace: "file"},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					return load(r, args.Path)
				})

			build.OnEnd(func(result *api.BuildResult) (api.OnEndResult, error) {
				finalize(r, result.OutputFiles)
				return api.OnEndResult{}, nil
			})
		},
	}
}

// loadFilter builds the OnLoad path filter for the given extensions.
func loadFilter(exts []string) string {
	quoted := make([]string, 0, len(exts))
	for _, ext := range exts {
		quoted = append(quoted, regexp.QuoteMeta(ext))
	}
	return `(` + strings.Join(quoted, "|") + `)$`
}

// load reads a stylesheet and returns rewritten contents. An empty result
// lets esbuild fall through to its own loader.
func load(r *replacer.Replacer, path string) (api.OnLoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return api.OnLoadResult{}, err
	}

	res := r.Transform(string(data), path)
	if !res.Changed() {
		return api.OnLoadResult{}, nil
	}

	code := res.Code()
	return api.OnLoadResult{
		Contents:   &code,
		Loader:     api.LoaderCSS,
		ResolveDir: filepath.Dir(path),
	}, nil
}

// finalize runs GenerateBundle over in-memory output files.
// Outputs are only present when the build runs with Write disabled.
func finalize(r *replacer.Replacer, files []api.OutputFile) {
	if len(files) == 0 {
		return
	}

	bundle := make(replacer.Bundle, len(files))
	for _, f := range files {
		bundle[f.Path] = &replacer.OutputAsset{Type: assetType(f.Path), Source: f.Contents}
	}

	r.GenerateBundle(bundle)

	for i := range files {
		files[i].Contents = bundle[files[i].Path].Source
	}
}

// assetType classifies esbuild outputs. Scripts are chunks, everything else
// (stylesheets, source maps, copied files) is an asset.
func assetType(path string) replacer.AssetType {
	switch filepath.Ext(path) {
	case ".js", ".mjs", ".cjs":
		return replacer.AssetTypeChunk
	default:
		return replacer.AssetTypeAsset
	}
}
