// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package esbuildplugin

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"codeberg.org/oliverandrich/scss-asset-replacer/internal/config"
	"codeberg.org/oliverandrich/scss-asset-replacer/internal/replacer"
	"github.com/evanw/esbuild/pkg/api"
)

// imageExtensions are copied into the outdir when referenced relatively.
var imageExtensions = []string{".png", ".jpg", ".jpeg", ".svg", ".gif", ".webp"}

// BuildOptions assembles esbuild options with the replacer plugin installed.
// Build mode keeps outputs in memory so the plugin can finalize them.
func BuildOptions(cfg config.BuildConfig, r *replacer.Replacer, mode replacer.Command) api.BuildOptions {
	loaders := map[string]api.Loader{
		".scss": api.LoaderCSS,
		".sass": api.LoaderCSS,
	}
	for _, ext := range imageExtensions {
		loaders[ext] = api.LoaderFile
	}

	opts := api.BuildOptions{
		EntryPoints:       cfg.EntryPoints,
		Outdir:            cfg.Outdir,
		Bundle:            true,
		Write:             mode == replacer.CommandServe,
		Loader:            loaders,
		External:          cfg.External,
		MinifyWhitespace:  cfg.Minify,
		MinifySyntax:      cfg.Minify,
		MinifyIdentifiers: cfg.Minify,
		LogLevel:          api.LogLevelSilent,
		Plugins:           []api.Plugin{New(r, mode, cfg.PublicDir)},
	}
	if cfg.Sourcemap {
		opts.Sourcemap = api.SourceMapLinked
	}
	return opts
}

// Build runs a production build and writes the finalized outputs.
func Build(cfg config.BuildConfig, r *replacer.Replacer) ([]string, error) {
	if len(cfg.EntryPoints) == 0 {
		return nil, errors.New("no entry points configured")
	}

	result := api.Build(BuildOptions(cfg, r, replacer.CommandBuild))
	for _, w := range result.Warnings {
		slog.Warn("esbuild warning", "text", w.Text, "location", location(w))
	}
	if err := MessagesError(result.Errors); err != nil {
		return nil, fmt.Errorf("esbuild failed: %w", err)
	}

	return WriteOutputs(result.OutputFiles)
}

// WriteOutputs persists in-memory output files and returns their paths.
func WriteOutputs(files []api.OutputFile) ([]string, error) {
	written := make([]string, 0, len(files))
	for _, f := range files {
		if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
			return written, fmt.Errorf("failed to create output directory: %w", err)
		}
		if err := os.WriteFile(f.Path, f.Contents, 0644); err != nil { //nolint:gosec // build outputs are world readable
			return written, fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
		written = append(written, f.Path)
	}
	return written, nil
}

// MessagesError joins esbuild error messages into one error.
func MessagesError(msgs []api.Message) error {
	errs := make([]error, 0, len(msgs))
	for _, m := range msgs {
		if loc := location(m); loc != "" {
			errs = append(errs, fmt.Errorf("%s: %s", loc, m.Text))
		} else {
			errs = append(errs, errors.New(m.Text))
		}
	}
	return errors.Join(errs...)
}

func location(m api.Message) string {
	if m.Location == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", m.Location.File, m.Location.Line, m.Location.Column)
}
