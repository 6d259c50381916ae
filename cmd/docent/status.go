// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docent-dev/docent/internal/provider"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

func (c *cli) newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show server and provider status",
		Long:  "Check a running server's health endpoint and list the availability of its generation providers.",
		RunE:  c.runStatus,
	}

	cmd.Flags().String("address", "", "server address to check (default: server.listen)")

	return cmd
}

func (c *cli) runStatus(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("address")
	if addr == "" {
		addr = c.v.GetString("server.listen")
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	api := newAPIClient(addr)
	var health struct {
		Status string `json:"status"`
	}
	if err := api.getJSON(ctx, "/health", &health); err != nil {
		if docerr.HasCode(err, docerr.CodeCLIServerNotRunning) {
			_, _ = fmt.Fprintf(out, "Server at %s is not running (connection refused)\n", addr)
			return nil
		}
		_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, err)
		return nil
	}
	_, _ = fmt.Fprintf(out, "Server at %s: %s\n", addr, health.Status)

	var providers struct {
		Providers []provider.ProviderStatus `json:"providers"`
	}
	if err := api.getJSON(ctx, "/api/v1/providers", &providers); err != nil {
		_, _ = fmt.Fprintf(out, "Providers: %s\n", err)
		return nil
	}
	if len(providers.Providers) == 0 {
		_, _ = fmt.Fprintln(out, "Providers: none registered")
		return nil
	}
	_, _ = fmt.Fprintln(out, "Providers:")
	for _, p := range providers.Providers {
		state := "available"
		if !p.Available {
			state = "unavailable"
		}
		line := fmt.Sprintf("  %-10s %s", p.Provider, state)
		if p.Message != "" {
			line += " (" + p.Message + ")"
		}
		_, _ = fmt.Fprintln(out, line)
	}
	return nil
}
