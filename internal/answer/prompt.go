// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package answer

import (
	"strings"

	"github.com/docent-dev/docent/internal/memory"
	"github.com/docent-dev/docent/internal/retrieve"
)

const groundingPreamble = `You are a careful assistant that answers only from the document excerpts provided.
Take the earlier conversation into account and answer in a warm, friendly tone.`

func (c *Composer) buildPrompt(docID, summary string, recent []memory.Turn, results []retrieve.Result, query string) string {
	grounding := make([]string, len(results))
	for i, r := range results {
		grounding[i] = fragmentLine(r.Record.Kind, r.Record.Text)
	}

	var b strings.Builder
	b.WriteString(groundingPreamble)
	section(&b, "Document ID", docID)
	section(&b, "Conversation summary", summary)
	section(&b, "Recent conversation", memory.FormatTurns(recent))
	section(&b, "Excerpts from the document", strings.Join(grounding, "\n"))
	section(&b, "Question", query)

	b.WriteString("\n\nRules:\n")
	b.WriteString("- Say nothing the excerpts do not support and never invent facts.\n")
	b.WriteString("- Open with one natural sentence that responds to the question.\n")
	b.WriteString("- Every line between the first and the last is a single \"- \" bullet, one per line.\n")
	b.WriteString("- Finish with exactly this line: ")
	b.WriteString(c.opts.ClosingLine)
	b.WriteString("\n\nExample layout:\nOpening sentence\n- first point\n- second point\n")
	b.WriteString(c.opts.ClosingLine)
	return b.String()
}

func section(b *strings.Builder, title, body string) {
	b.WriteString("\n\n[")
	b.WriteString(title)
	b.WriteString("]\n")
	if strings.TrimSpace(body) == "" {
		body = "(none)"
	}
	b.WriteString(body)
}
