// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package guard

import (
	"regexp"
	"slices"
)

// DefaultRules returns the built-in rules for both stages.
func DefaultRules() []Rule {
	return slices.Concat(QuestionRules(), DocumentRules())
}

// QuestionRules detects attempts to override the answering instructions
// from inside a question.
func QuestionRules() []Rule {
	return []Rule{
		{
			Name:     "instruction_override",
			Pattern:  regexp.MustCompile(`(?i)(ignore|disregard|override|forget|do\s+not\s+follow)\s+(all\s+)?(previous|prior|above|the)\s+(instructions|prompts|rules|documents?|fragments?)`),
			Stage:    StageQuestion,
			Severity: SeverityHigh,
		},
		{
			Name:     "role_confusion",
			Pattern:  regexp.MustCompile(`(?i)you\s+are\s+now\s+\w+[,.]?\s*(do|ignore|forget|disregard)`),
			Stage:    StageQuestion,
			Severity: SeverityHigh,
		},
		{
			Name:     "answer_outside_document",
			Pattern:  regexp.MustCompile(`(?i)(answer|respond)\s+(without|regardless\s+of)\s+the\s+(document|fragments?|context)`),
			Stage:    StageQuestion,
			Severity: SeverityMedium,
		},
		{
			Name:     "delimiter_abuse",
			Pattern:  regexp.MustCompile("(?i)```system\\b"),
			Stage:    StageQuestion,
			Severity: SeverityMedium,
		},
		{
			Name:     "system_block_injection",
			Pattern:  regexp.MustCompile(`(?i)(?:<\|?system\|?>|\[system\]|<<SYS>>)`),
			Stage:    StageQuestion,
			Severity: SeverityHigh,
		},
	}
}

// DocumentRules detects credentials that should not be embedded or quoted
// back in answers.
func DocumentRules() []Rule {
	specs := []struct {
		name     string
		pattern  string
		severity Severity
	}{
		{"aws_access_key", `AKIA[0-9A-Z]{16}`, SeverityHigh},
		{"openai_api_key", `sk-proj-[A-Za-z0-9_-]{20,}`, SeverityHigh},
		{"openai_legacy_key", `sk-[A-Za-z0-9]{40,}`, SeverityMedium},
		{"anthropic_api_key", `sk-ant-api\d{2}-[A-Za-z0-9_-]{20,}`, SeverityHigh},
		{"google_api_key", `AIza[0-9A-Za-z_-]{35}`, SeverityHigh},
		{"github_pat", `ghp_[A-Za-z0-9]{36}`, SeverityHigh},
		{"github_fine_grained_pat", `github_pat_[A-Za-z0-9_]{22,}`, SeverityHigh},
		{"slack_token", `xox[bpas]-[A-Za-z0-9-]+`, SeverityHigh},
		{"bearer_token", `(?i)bearer\s+[A-Za-z0-9_\-.]{20,}`, SeverityHigh},
		{"pem_private_key", `-----BEGIN\s+(RSA |EC |DSA |OPENSSH )?PRIVATE KEY-----`, SeverityHigh},
		{"database_connection_string", `(?i)(postgres(?:ql)?|mysql|mongodb|redis|jdbc:[a-z]+)://[^\s:@]+:(?:[^@\s%]|%[0-9A-Fa-f]{2})+@(?:\[[0-9A-Fa-f:]+\]|[^\s/:]+)(?:[:/][^\s]*)?`, SeverityHigh},
		{"keyring_uri", `keyring://[^\s]+`, SeverityMedium},
	}

	rules := make([]Rule, 0, len(specs))
	for _, s := range specs {
		rules = append(rules, Rule{
			Stage:    StageDocument,
			Name:     s.name,
			Pattern:  regexp.MustCompile(s.pattern),
			Severity: s.severity,
		})
	}
	return rules
}
