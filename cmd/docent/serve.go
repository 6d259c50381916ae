// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docent-dev/docent/internal/ingest"
	"github.com/docent-dev/docent/internal/watch"
)

func (c *cli) newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long:  "Open the corpus, wire the configured providers and serve the chat, ingest and conversation endpoints until interrupted.",
		RunE:  c.runServe,
	}

	cmd.Flags().String("listen", "", "override listen address (host:port)")
	cmd.Flags().String("watch", "", "also ingest bundles dropped into this directory")

	return cmd
}

func (c *cli) runServe(cmd *cobra.Command, _ []string) error {
	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		c.v.Set("server.listen", listen)
	}
	if dir, _ := cmd.Flags().GetString("watch"); dir != "" {
		c.v.Set("watch.dir", dir)
	}
	cfg, err := c.config()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := Wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	rt.Memory.StartJanitor(ctx, cfg.Memory.JanitorInterval)

	srv, err := rt.Server()
	if err != nil {
		return err
	}

	if cfg.Watch.Dir != "" {
		if err := startWatcher(ctx, cfg.Watch.Dir, cfg.Watch.Extract, rt.Pipeline); err != nil {
			return err
		}
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "docent serving on %s\n", cfg.Server.Listen)
	return srv.Start(ctx)
}

// startWatcher runs an inbox watcher until ctx ends.
func startWatcher(ctx context.Context, dir string, extract bool, ing watch.Ingester) error {
	w, err := watch.New(watch.Config{Dir: dir, Options: ingest.Options{Extract: extract}}, ing)
	if err != nil {
		return err
	}
	go func() {
		defer func() { _ = w.Close() }()
		_ = w.Run(ctx)
	}()
	return nil
}
