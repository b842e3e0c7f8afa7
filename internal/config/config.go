// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"strings"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var configFile = altsrc.StringSourcer("assetreplacer.toml")

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Build  BuildConfig
	Rebase RebaseConfig
	Server ServerConfig
	Log    LogConfig
}

type BuildConfig struct { //nolint:govet // fieldalignment not critical for config structs
	EntryPoints []string
	Outdir      string
	PublicDir   string
	Extensions  []string // stylesheet extensions handled by the transform
	External    []string // url() targets esbuild leaves alone
	Minify      bool
	Sourcemap   bool
}

type RebaseConfig struct {
	From string // e.g. "/images"
	To   string // e.g. "../images"
}

type ServerConfig struct {
	Host string
	Port int
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Build: BuildConfig{
			EntryPoints: cmd.StringSlice("entry"),
			Outdir:      cmd.String("outdir"),
			PublicDir:   cmd.String("public-dir"),
			Extensions:  splitList(cmd.StringSlice("extensions")),
			External:    splitList(cmd.StringSlice("external")),
			Minify:      cmd.Bool("minify"),
			Sourcemap:   cmd.Bool("sourcemap"),
		},
		Rebase: RebaseConfig{
			From: cmd.String("rebase-from"),
			To:   cmd.String("rebase-to"),
		},
		Server: ServerConfig{
			Host: cmd.String("host"),
			Port: int(cmd.Int("port")),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
	}

	cfg.Build.EntryPoints = splitList(cfg.Build.EntryPoints)

	return cfg
}

// splitList flattens comma separated values coming from env vars or TOML strings.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "entry",
			Aliases: []string{"e"},
			Usage:   "Entry point passed to esbuild (repeatable)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("ENTRY_POINTS"), toml.TOML("build.entry_points", configFile)),
		},
		&cli.StringFlag{
			Name:    "outdir",
			Value:   "dist/assets",
			Usage:   "Output directory for bundled assets",
			Sources: cli.NewValueSourceChain(cli.EnvVar("OUTDIR"), toml.TOML("build.outdir", configFile)),
		},
		&cli.StringFlag{
			Name:    "public-dir",
			Value:   "public",
			Usage:   "Directory of static assets checked for image existence",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PUBLIC_DIR"), toml.TOML("build.public_dir", configFile)),
		},
		&cli.StringSliceFlag{
			Name:    "extensions",
			Value:   []string{".scss", ".sass", ".css"},
			Usage:   "Stylesheet extensions whose url() references are rewritten",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EXTENSIONS"), toml.TOML("build.extensions", configFile)),
		},
		&cli.StringSliceFlag{
			Name:    "external",
			Value:   []string{"/images/*"},
			Usage:   "url() targets left unresolved by esbuild",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EXTERNAL"), toml.TOML("build.external", configFile)),
		},
		&cli.BoolFlag{
			Name:    "minify",
			Usage:   "Minify bundled output",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MINIFY"), toml.TOML("build.minify", configFile)),
		},
		&cli.BoolFlag{
			Name:    "sourcemap",
			Usage:   "Emit source maps next to bundled output",
			Sources: cli.NewValueSourceChain(cli.EnvVar("SOURCEMAP"), toml.TOML("build.sourcemap", configFile)),
		},
		&cli.StringFlag{
			Name:    "rebase-from",
			Value:   "/images",
			Usage:   "Path prefix rebased in emitted CSS",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REBASE_FROM"), toml.TOML("rebase.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "rebase-to",
			Value:   "../images",
			Usage:   "Replacement for the rebased path prefix",
			Sources: cli.NewValueSourceChain(cli.EnvVar("REBASE_TO"), toml.TOML("rebase.to", configFile)),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host the dev server binds to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   5173,
			Usage:   "Port the dev server listens on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
	}
}
