// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

// Package guard screens text crossing the service boundary: document text
// before it is embedded and questions before they reach the Generator.
package guard

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Stage identifies which text a rule applies to.
type Stage string

const (
	StageDocument Stage = "document"
	StageQuestion Stage = "question"
)

// Valid reports whether the stage is known.
func (s Stage) Valid() bool {
	return s == StageDocument || s == StageQuestion
}

// Severity indicates how critical a detection is.
type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityHigh, SeverityMedium, SeverityLow:
		return true
	default:
		return false
	}
}

// Rule is a named detection pattern for one stage.
type Rule struct {
	Stage    Stage
	Name     string
	Pattern  *regexp.Regexp
	Severity Severity
}

// Match is one rule hit. Location and Length are byte offsets into
// Result.Content.
type Match struct {
	Rule     string
	Location int
	Length   int
	Severity Severity
}

// Result is the outcome of a scan.
type Result struct {
	Threat  bool
	Matches []Match
	// Content is the normalized text the match offsets refer to.
	Content string
}

// DefaultMaxContentLength is the largest text scanned; longer text is
// reported as a single content_too_large match.
const DefaultMaxContentLength = 1 << 20

// Scanner matches text against compiled rules.
type Scanner struct {
	rules            []Rule
	maxContentLength int
}

// NewScanner validates rules and returns a scanner over them.
func NewScanner(rules []Rule) (*Scanner, error) {
	for i, r := range rules {
		switch {
		case r.Pattern == nil:
			return nil, docerr.Errorf(docerr.CodeGuardRuleInvalid, "rule %d (%s) has nil pattern", i, r.Name)
		case !r.Stage.Valid():
			return nil, docerr.Errorf(docerr.CodeGuardRuleInvalid, "rule %d (%s) has invalid stage %q", i, r.Name, r.Stage)
		case r.Name == "":
			return nil, docerr.Errorf(docerr.CodeGuardRuleInvalid, "rule %d has empty name", i)
		case !r.Severity.Valid():
			return nil, docerr.Errorf(docerr.CodeGuardRuleInvalid, "rule %d (%s) has invalid severity %q", i, r.Name, r.Severity)
		}
	}
	return &Scanner{rules: rules, maxContentLength: DefaultMaxContentLength}, nil
}

// invisible strips zero-width and other invisible characters used to split
// a pattern so it no longer matches.
var invisible = strings.NewReplacer(
	"\u200b", "", // zero-width space
	"\u200c", "", // zero-width non-joiner
	"\u200d", "", // zero-width joiner
	"\ufeff", "", // byte order mark
	"\u00ad", "", // soft hyphen
	"\u034f", "", // combining grapheme joiner
	"\u2060", "", // word joiner
	"\u2061", "", // invisible function application
	"\u2062", "", // invisible times
	"\u2063", "", // invisible separator
	"\u2064", "", // invisible plus
)

func normalize(s string) string {
	return norm.NFKC.String(invisible.Replace(s))
}

// Scan checks content against the rules for stage.
func (s *Scanner) Scan(content string, stage Stage) (Result, error) {
	if !stage.Valid() {
		return Result{}, docerr.Errorf(docerr.CodeGuardRuleInvalid, "invalid scan stage %q", stage)
	}

	content = normalize(content)
	if len(content) > s.maxContentLength {
		return Result{Threat: true, Content: content, Matches: []Match{{
			Rule:     "content_too_large",
			Length:   len(content),
			Severity: SeverityHigh,
		}}}, nil
	}

	result := Result{Content: content}
	for _, rule := range s.rules {
		if rule.Stage != stage {
			continue
		}
		for _, loc := range rule.Pattern.FindAllStringIndex(content, -1) {
			result.Threat = true
			result.Matches = append(result.Matches, Match{
				Rule:     rule.Name,
				Location: loc[0],
				Length:   loc[1] - loc[0],
				Severity: rule.Severity,
			})
		}
	}
	return result, nil
}

// Redacted is the placeholder written over redacted matches.
const Redacted = "[REDACTED]"

// redact replaces matched regions of content with Redacted, merging
// overlapping matches first.
func redact(content string, matches []Match) string {
	sorted := slices.DeleteFunc(slices.Clone(matches), func(m Match) bool {
		return m.Location < 0 || m.Length < 0
	})
	if len(sorted) == 0 {
		return content
	}
	slices.SortFunc(sorted, func(a, b Match) int { return a.Location - b.Location })

	type span struct{ start, end int }
	spans := []span{{sorted[0].Location, sorted[0].Location + sorted[0].Length}}
	for _, m := range sorted[1:] {
		last := &spans[len(spans)-1]
		end := m.Location + m.Length
		if m.Location <= last.end {
			last.end = max(last.end, end)
			continue
		}
		spans = append(spans, span{m.Location, end})
	}

	var b strings.Builder
	b.Grow(len(content))
	pos := 0
	for _, sp := range spans {
		b.WriteString(content[pos:sp.start])
		b.WriteString(Redacted)
		pos = min(sp.end, len(content))
	}
	b.WriteString(content[pos:])
	return b.String()
}
