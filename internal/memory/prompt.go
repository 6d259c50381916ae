// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package memory

import "strings"

const compactionInstructions = `You maintain a running summary of a question-and-answer session about a single document.
Merge the earlier summary with the exchanges below into one concise summary.
Keep names, figures, dates and obligations that later questions may refer back to.
Reply with the summary text only.`

func compactionPrompt(prior string, dropped []Turn) string {
	var b strings.Builder
	b.WriteString(compactionInstructions)
	b.WriteString("\n\nEarlier summary:\n")
	if strings.TrimSpace(prior) == "" {
		b.WriteString("(none)")
	} else {
		b.WriteString(prior)
	}
	b.WriteString("\n\nExchanges to fold in:\n")
	b.WriteString(FormatTurns(dropped))
	return b.String()
}

// FormatTurns renders turns as Q:/A: pairs separated by blank lines.
func FormatTurns(turns []Turn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, "Q: "+t.Question+"\nA: "+t.Answer)
	}
	return strings.Join(parts, "\n\n")
}

func joinSummary(prior, more string) string {
	if strings.TrimSpace(prior) == "" {
		return more
	}
	return prior + "\n\n" + more
}
