// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package ingest

import "strings"

const sentenceSeparator = " / "

// ActionRecord is a structured obligation found in a document: who has to
// do what, by when, how and where. Any field may be empty.
type ActionRecord struct {
	Action string `json:"action,omitempty" yaml:"action,omitempty"`
	Who    string `json:"who,omitempty" yaml:"who,omitempty"`
	When   string `json:"when,omitempty" yaml:"when,omitempty"`
	How    string `json:"how,omitempty" yaml:"how,omitempty"`
	Where  string `json:"where,omitempty" yaml:"where,omitempty"`
}

type labelled struct {
	label, key, value string
}

func (a ActionRecord) fields() []labelled {
	return []labelled{
		{"subject", "who", a.Who},
		{"action", "action", a.Action},
		{"deadline", "when", a.When},
		{"method", "how", a.How},
		{"location", "where", a.Where},
	}
}

// Sentence renders the present fields as "subject: …", "action: …",
// "deadline: …", "method: …", "location: …" in that order, joined by " / ".
func (a ActionRecord) Sentence() string {
	var parts []string
	for _, f := range a.fields() {
		if v := strings.TrimSpace(f.value); v != "" {
			parts = append(parts, f.label+": "+v)
		}
	}
	return strings.Join(parts, sentenceSeparator)
}

// Metadata returns the present fields keyed by their input names.
func (a ActionRecord) Metadata() map[string]any {
	md := make(map[string]any)
	for _, f := range a.fields() {
		if v := strings.TrimSpace(f.value); v != "" {
			md[f.key] = v
		}
	}
	return md
}

// ActionFromMap builds a record from the {action, who, when, how, where}
// map shape produced by extraction.
func ActionFromMap(m map[string]string) ActionRecord {
	return ActionRecord{
		Action: m["action"],
		Who:    m["who"],
		When:   m["when"],
		How:    m["how"],
		Where:  m["where"],
	}
}
