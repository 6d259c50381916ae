// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

// Package extract recovers structured data from free-form generator output.
// Models asked for JSON often wrap it in code fences, surround it with prose
// or use single quotes; Parse tolerates all of these and reports failure as
// a value instead of panicking.
package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Result is the outcome of Parse. Recovered is set when the raw text was
// not valid JSON as given and had to be repaired.
type Result struct {
	Value     any
	Recovered bool
	Err       error
}

// OK reports whether parsing succeeded.
func (r Result) OK() bool { return r.Err == nil }

var fence = regexp.MustCompile("(?s)```[a-zA-Z0-9_-]*\\s*\n?(.*?)```")

// Parse decodes raw as JSON, falling back to progressively more lenient
// repairs: unwrapping code fences, slicing from the first opening bracket
// to the last closing one, reading the slice as YAML flow syntax (which
// accepts single-quoted strings) and finally replacing single quotes.
func Parse(raw string) Result {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Result{Err: docerr.New(docerr.CodeExtractParseInvalidFormat, "empty input")}
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return Result{Value: v}
	}

	candidate := sliceBrackets(unfence(text))
	if candidate == "" {
		return Result{Err: docerr.New(docerr.CodeExtractParseInvalidFormat, "no JSON object or array found")}
	}

	if err := json.Unmarshal([]byte(candidate), &v); err == nil {
		return Result{Value: v, Recovered: true}
	}
	if err := yaml.Unmarshal([]byte(candidate), &v); err == nil && isContainer(v) {
		return Result{Value: normalize(v), Recovered: true}
	}
	err := json.Unmarshal([]byte(strings.ReplaceAll(candidate, "'", `"`)), &v)
	if err == nil {
		return Result{Value: v, Recovered: true}
	}
	return Result{Err: docerr.Wrap(err, docerr.CodeExtractParseInvalidFormat, "unrecoverable output")}
}

func unfence(text string) string {
	if m := fence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

func sliceBrackets(text string) string {
	start := strings.IndexAny(text, "[{")
	end := strings.LastIndexAny(text, "]}")
	if start < 0 || end < start {
		return ""
	}
	return text[start : end+1]
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// normalize converts YAML-decoded values to the shapes encoding/json
// produces so callers see one representation.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = normalize(e)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[fmt.Sprint(k)] = normalize(e)
		}
		return out
	case []any:
		for i, e := range t {
			t[i] = normalize(e)
		}
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case uint64:
		return float64(t)
	default:
		return v
	}
}
