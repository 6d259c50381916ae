// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docent-dev/docent/internal/ingest"
	"github.com/docent-dev/docent/internal/watch"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

func (c *cli) newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [dir]",
		Short: "Ingest bundles dropped into a directory",
		Long:  "Ingest every YAML or JSON bundle already in the directory, then each one written there, until interrupted.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  c.runWatch,
	}
	cmd.Flags().Bool("extract", false, "extract actions and entities with the generator when a bundle has none")
	return cmd
}

func (c *cli) runWatch(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		c.v.Set("watch.dir", args[0])
	}
	if cmd.Flags().Changed("extract") {
		extract, _ := cmd.Flags().GetBool("extract")
		c.v.Set("watch.extract", extract)
	}
	cfg, err := c.config()
	if err != nil {
		return err
	}
	if cfg.Watch.Dir == "" {
		return docerr.New(docerr.CodeCLIInputInvalid, "no directory given and watch.dir is not configured")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := Wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	w, err := watch.New(watch.Config{Dir: cfg.Watch.Dir, Options: ingest.Options{Extract: cfg.Watch.Extract}}, rt.Pipeline)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "watching %s for bundles\n", cfg.Watch.Dir)
	return w.Run(ctx)
}
