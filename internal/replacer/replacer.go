// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package replacer rewrites asset URLs in stylesheets.
//
// Sources get .webp stripped from url() paths and fall back to @2x images when
// the nominal file is missing from the public directory. Emitted CSS bundles get
// root-relative image paths rebased so they resolve from the CSS output folder.
package replacer

import (
	"log/slog"
	"path/filepath"
	"strings"
)

// Command is the host build tool's execution mode.
type Command string

const (
	CommandServe Command = "serve"
	CommandBuild Command = "build"
)

// ResolvedConfig is the part of the host configuration the replacer reads.
type ResolvedConfig struct {
	Command   Command
	PublicDir string
}

// DefaultExtensions are the stylesheet extensions handled by Transform.
var DefaultExtensions = []string{".scss", ".sass", ".css"}

const (
	DefaultRebaseFrom = "/images"
	DefaultRebaseTo   = "../images"
)

// Replacer holds the build context captured by ConfigResolved.
type Replacer struct {
	logger     *slog.Logger
	extensions []string
	rebase     *rebaser

	serve     bool
	publicDir string
}

// Option configures a Replacer.
type Option func(*Replacer)

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Replacer) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithExtensions sets the stylesheet extensions Transform accepts.
func WithExtensions(exts ...string) Option {
	return func(r *Replacer) {
		var normalized []string
		for _, ext := range exts {
			ext = strings.TrimSpace(ext)
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			normalized = append(normalized, ext)
		}
		if len(normalized) > 0 {
			r.extensions = normalized
		}
	}
}

// WithRebase sets the path prefix GenerateBundle rewrites and its replacement.
func WithRebase(from, to string) Option {
	return func(r *Replacer) {
		if from != "" && to != "" {
			r.rebase = newRebaser(from, to)
		}
	}
}

// New creates a Replacer. ConfigResolved must be called before use.
func New(opts ...Option) *Replacer {
	r := &Replacer{
		logger:     slog.Default(),
		extensions: DefaultExtensions,
		rebase:     newRebaser(DefaultRebaseFrom, DefaultRebaseTo),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ConfigResolved captures the mode flag and the public directory.
func (r *Replacer) ConfigResolved(cfg ResolvedConfig) {
	r.serve = cfg.Command == CommandServe

	dir := cfg.PublicDir
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	r.publicDir = dir

	r.logger.Debug("replacer configured",
		"command", cfg.Command,
		"public_dir", r.publicDir,
	)
}

// Serve reports whether the captured mode is the development server.
func (r *Replacer) Serve() bool {
	return r.serve
}

// PublicDir returns the absolute public directory.
func (r *Replacer) PublicDir() string {
	return r.publicDir
}

// Extensions returns the stylesheet extensions Transform accepts.
func (r *Replacer) Extensions() []string {
	return append([]string(nil), r.extensions...)
}

// Accepts reports whether id names a stylesheet Transform handles.
func (r *Replacer) Accepts(id string) bool {
	for _, ext := range r.extensions {
		if strings.HasSuffix(id, ext) {
			return true
		}
	}
	return false
}
