// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package extract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// ActionFields are the keys an action record may carry, in sentence order.
var ActionFields = []string{"who", "action", "when", "how", "where"}

// ParseActions reads action records from raw generator output. It accepts
// a bare array or an object holding the array under "actions" or
// "action_info". Unknown keys are dropped and scalar values are coerced to
// strings; records left with no fields are skipped.
func ParseActions(raw string) ([]map[string]string, Result) {
	res := Parse(raw)
	if !res.OK() {
		return nil, res
	}

	var items []any
	switch v := res.Value.(type) {
	case []any:
		items = v
	case map[string]any:
		list, ok := firstList(v, "actions", "action_info")
		if !ok {
			res.Err = docerr.New(docerr.CodeExtractParseInvalidFormat, "object has no action list")
			return nil, res
		}
		items = list
	default:
		res.Err = docerr.New(docerr.CodeExtractParseInvalidFormat, "expected an array of actions")
		return nil, res
	}

	actions := make([]map[string]string, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rec := make(map[string]string, len(ActionFields))
		for _, key := range ActionFields {
			s, ok := scalar(obj[key])
			if ok && strings.TrimSpace(s) != "" {
				rec[key] = strings.TrimSpace(s)
			}
		}
		if len(rec) > 0 {
			actions = append(actions, rec)
		}
	}
	return actions, res
}

// Entities maps an entity type chosen by the generator to its mentions.
// Only the top-level shape is checked; keys are open-ended.
type Entities map[string][]string

// Keys returns the entity types in sorted order.
func (e Entities) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseEntities reads an object of entity type to mention list. An object
// nested under "entities" is unwrapped. Scalars become one-element lists
// and null becomes an empty list; nested objects or lists of non-scalars
// are rejected.
func ParseEntities(raw string) (Entities, Result) {
	res := Parse(raw)
	if !res.OK() {
		return nil, res
	}

	obj, ok := res.Value.(map[string]any)
	if !ok {
		res.Err = docerr.New(docerr.CodeExtractParseInvalidFormat, "expected an object of entity lists")
		return nil, res
	}
	if inner, ok := obj["entities"].(map[string]any); ok {
		obj = inner
	}

	out := make(Entities, len(obj))
	for key, val := range obj {
		mentions, err := mentionList(val)
		if err != nil {
			res.Err = docerr.Wrap(err, docerr.CodeExtractParseInvalidFormat, "invalid entity list",
				docerr.Field("entity", key))
			return nil, res
		}
		out[key] = mentions
	}
	return out, res
}

func mentionList(v any) ([]string, error) {
	if v == nil {
		return []string{}, nil
	}
	if s, ok := scalar(v); ok {
		return []string{s}, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
	out := make([]string, 0, len(list))
	for i, e := range list {
		s, ok := scalar(e)
		if !ok {
			return nil, fmt.Errorf("element %d has unsupported type %T", i, e)
		}
		out = append(out, s)
	}
	return out, nil
}

func firstList(obj map[string]any, keys ...string) ([]any, bool) {
	for _, k := range keys {
		if list, ok := obj[k].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}
