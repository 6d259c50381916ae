// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docent-dev/docent/internal/answer"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

func (c *cli) newAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask <doc-id> <question>...",
		Short: "Ask a question about a document",
		Long: `Answer a question from the document's stored fragments.

By default the corpus is opened directly and the conversation lasts for this
invocation only. With --server the question goes to a running docent server,
which remembers earlier questions about the same document.`,
		Args: cobra.MinimumNArgs(2),
		RunE: c.runAsk,
	}
	cmd.Flags().String("server", "", "address of a running docent server (host:port)")
	cmd.Flags().Bool("reset", false, "forget the server's earlier conversation about the document first")
	return cmd
}

func (c *cli) runAsk(cmd *cobra.Command, args []string) error {
	docID := args[0]
	question := strings.Join(args[1:], " ")
	ctx := cmd.Context()

	if addr, _ := cmd.Flags().GetString("server"); addr != "" {
		api := newAPIClient(addr)
		if reset, _ := cmd.Flags().GetBool("reset"); reset {
			if err := api.delete(ctx, documentPath(docID, "conversation")); err != nil && !docerr.IsNotFound(err) {
				return err
			}
		}
		var resp answer.Response
		err := api.postJSON(ctx, "/api/v1/chat", map[string]string{
			"doc_id":   docID,
			"question": question,
		}, &resp)
		if err != nil {
			return err
		}
		printAnswer(cmd.OutOrStdout(), &resp)
		return nil
	}

	cfg, err := c.config()
	if err != nil {
		return err
	}
	rt, err := Wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	resp, err := rt.Composer.Answer(ctx, docID, question)
	if err != nil {
		return err
	}
	printAnswer(cmd.OutOrStdout(), resp)
	return nil
}

func printAnswer(w io.Writer, resp *answer.Response) {
	_, _ = fmt.Fprintln(w, resp.Answer)
	if resp.Source != nil && *resp.Source != "" {
		_, _ = fmt.Fprintf(w, "\nSources:\n%s\n", *resp.Source)
	}
}

// documentPath builds an API path under /api/v1/documents/{docId}.
func documentPath(docID, rest string) string {
	return "/api/v1/documents/" + url.PathEscape(docID) + "/" + rest
}
