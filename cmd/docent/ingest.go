// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docent-dev/docent/internal/ingest"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

func (c *cli) newIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest <bundle>...",
		Short: "Store document bundles in the corpus",
		Long: `Store one or more YAML or JSON bundles in the configured corpus.

A bundle lists a document's cleaned page texts and, optionally, its action
records:

  doc_id: lease-2026
  pages:
    - "Rent is due on the first of each month."
  actions:
    - action: pay rent
      who: tenant
      when: monthly

Without doc_id the file name is used.`,
		Args: cobra.MinimumNArgs(1),
		RunE: c.runIngest,
	}
	cmd.Flags().Bool("extract", false, "extract actions and entities with the generator when a bundle has none")
	cmd.Flags().String("doc-id", "", "document id to use instead of the bundle's (single bundle only)")
	return cmd
}

func (c *cli) runIngest(cmd *cobra.Command, args []string) error {
	docID, _ := cmd.Flags().GetString("doc-id")
	if docID != "" && len(args) > 1 {
		return docerr.New(docerr.CodeCLIInputInvalid, "--doc-id needs exactly one bundle")
	}
	extract, _ := cmd.Flags().GetBool("extract")

	cfg, err := c.config()
	if err != nil {
		return err
	}
	rt, err := Wire(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	out := cmd.OutOrStdout()
	for _, path := range args {
		b, err := ingest.LoadBundle(path)
		if err != nil {
			return err
		}
		if docID != "" {
			b.DocID = docID
		}
		n, err := rt.Pipeline.IngestBundle(cmd.Context(), b, ingest.Options{Extract: extract})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "%s: %d fragments stored\n", b.DocID, n)
	}
	return nil
}
