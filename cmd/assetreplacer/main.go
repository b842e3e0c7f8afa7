// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"os"

	"codeberg.org/oliverandrich/scss-asset-replacer/internal/config"
	"github.com/urfave/cli/v3"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "assetreplacer",
		Usage:   "Rewrite image URLs in stylesheets for retina fallbacks and bundled output",
		Version: fmt.Sprintf("%s (built %s)", Version, BuildTime),
		Flags:   config.Flags(),
		Commands: []*cli.Command{
			buildCommand(),
			serveCommand(),
			rewriteCommand(),
			finalizeCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
