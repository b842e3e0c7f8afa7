// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"log/slog"

	"codeberg.org/oliverandrich/scss-asset-replacer/internal/config"
	"codeberg.org/oliverandrich/scss-asset-replacer/internal/esbuildplugin"
	"codeberg.org/oliverandrich/scss-asset-replacer/internal/filetree"
	"codeberg.org/oliverandrich/scss-asset-replacer/internal/replacer"
	"codeberg.org/oliverandrich/scss-asset-replacer/internal/server"
	"github.com/urfave/cli/v3"
)

// setup builds the configuration, logger and replacer shared by all commands.
func setup(cmd *cli.Command) (*config.Config, *replacer.Replacer) {
	cfg := config.NewFromCLI(cmd)
	logger := server.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	r := replacer.New(
		replacer.WithLogger(logger),
		replacer.WithExtensions(cfg.Build.Extensions...),
		replacer.WithRebase(cfg.Rebase.From, cfg.Rebase.To),
	)
	return cfg, r
}

func buildCommand() *cli.Command {
	return &cli.Command{
		Name:  "build",
		Usage: "Bundle the entry points with esbuild and rebase image paths in emitted CSS",
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, r := setup(cmd)

			written, err := esbuildplugin.Build(cfg.Build, r)
			if err != nil {
				return err
			}
			for _, path := range written {
				slog.Info("wrote output", "file", path)
			}
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Watch the entry points and serve them with live reload",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, r := setup(cmd)
			return server.Run(ctx, cfg, r)
		},
	}
}

func rewriteCommand() *cli.Command {
	return &cli.Command{
		Name:      "rewrite",
		Usage:     "Rewrite url() references in stylesheet sources in place",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "pattern",
				Value: append([]string(nil), filetree.DefaultSourcePatterns...),
				Usage: "Glob pattern selecting stylesheets, relative to dir",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Report files that would change without writing them",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, r := setup(cmd)
			r.ConfigResolved(replacer.ResolvedConfig{Command: replacer.CommandBuild, PublicDir: cfg.Build.PublicDir})

			dir := dirArg(cmd, ".")
			report, err := filetree.RewriteSources(r, dir, cmd.StringSlice("pattern"), cmd.Bool("dry-run"))
			if err != nil {
				return fmt.Errorf("failed to rewrite sources: %w", err)
			}

			for _, rel := range report.Changed {
				slog.Info("rewrote stylesheet", "file", rel, "dry_run", cmd.Bool("dry-run"))
			}
			slog.Info("rewrite complete", "scanned", len(report.Scanned), "changed", len(report.Changed))
			return nil
		},
	}
}

func finalizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "finalize",
		Usage:     "Rebase image paths in CSS already emitted to dir",
		ArgsUsage: "[dir]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "pattern",
				Value: filetree.DefaultBundlePattern,
				Usage: "Glob pattern selecting emitted CSS, relative to dir",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, r := setup(cmd)
			r.ConfigResolved(replacer.ResolvedConfig{Command: replacer.CommandBuild, PublicDir: cfg.Build.PublicDir})

			changed, err := filetree.FinalizeDir(r, dirArg(cmd, cfg.Build.Outdir), cmd.String("pattern"))
			if err != nil {
				return fmt.Errorf("failed to finalize bundle: %w", err)
			}
			slog.Info("finalize complete", "changed", len(changed))
			return nil
		},
	}
}

// dirArg returns the first positional argument or def.
func dirArg(cmd *cli.Command, def string) string {
	if cmd.Args().Len() > 0 {
		return cmd.Args().First()
	}
	return def
}
