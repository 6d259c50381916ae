// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package guard

import (
	"log/slog"
	"strings"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Mode decides what happens to text with matches.
type Mode string

const (
	// ModeOff skips scanning.
	ModeOff Mode = "off"
	// ModeFlag logs matches and passes the text through unchanged.
	ModeFlag Mode = "flag"
	// ModeRedact replaces matches with Redacted.
	ModeRedact Mode = "redact"
	// ModeBlock rejects the text.
	ModeBlock Mode = "block"
)

// Modes lists every valid mode.
var Modes = []Mode{ModeOff, ModeFlag, ModeRedact, ModeBlock}

// ParseMode parses a mode name, case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, valid := range Modes {
		if m == valid {
			return m, nil
		}
	}
	return "", docerr.Errorf(docerr.CodeConfigValidateInvalidValue, "invalid guard mode %q", s)
}

// Recorder counts matches by stage and rule.
type Recorder interface {
	IncGuardMatch(stage, rule string)
}

// Config selects the mode for each stage.
type Config struct {
	Documents Mode
	Questions Mode
}

// Guard applies a Scanner to documents and questions.
type Guard struct {
	scanner  *Scanner
	cfg      Config
	recorder Recorder
}

// New creates a Guard over the default rules. recorder may be nil.
func New(cfg Config, recorder Recorder) (*Guard, error) {
	s, err := NewScanner(DefaultRules())
	if err != nil {
		return nil, err
	}
	return NewWithScanner(s, cfg, recorder)
}

// NewWithScanner creates a Guard over a custom scanner.
func NewWithScanner(s *Scanner, cfg Config, recorder Recorder) (*Guard, error) {
	for _, m := range []Mode{cfg.Documents, cfg.Questions} {
		if _, err := ParseMode(string(m)); err != nil {
			return nil, err
		}
	}
	return &Guard{scanner: s, cfg: cfg, recorder: recorder}, nil
}

// Document screens text about to be stored for docID.
func (g *Guard) Document(docID, text string) (string, error) {
	return g.apply(StageDocument, g.cfg.Documents, docID, text)
}

// Question screens a question about docID.
func (g *Guard) Question(docID, question string) (string, error) {
	return g.apply(StageQuestion, g.cfg.Questions, docID, question)
}

func (g *Guard) apply(stage Stage, mode Mode, docID, text string) (string, error) {
	if mode == ModeOff || strings.TrimSpace(text) == "" {
		return text, nil
	}
	res, err := g.scanner.Scan(text, stage)
	if err != nil {
		return "", err
	}
	if !res.Threat {
		return text, nil
	}

	rules := make([]string, 0, len(res.Matches))
	for _, m := range res.Matches {
		rules = append(rules, m.Rule)
		if g.recorder != nil {
			g.recorder.IncGuardMatch(string(stage), m.Rule)
		}
	}
	slog.Warn("guard matched",
		"stage", stage,
		"mode", mode,
		"doc_id", docID,
		"rules", rules)

	switch mode {
	case ModeBlock:
		return "", docerr.New(docerr.CodeGuardContentBlocked, string(stage)+" rejected by content guard",
			docerr.FieldDocID(docID),
			docerr.Field("first_rule", rules[0]),
			docerr.Field("matches", len(rules)))
	case ModeRedact:
		return redact(res.Content, res.Matches), nil
	default:
		return text, nil
	}
}
