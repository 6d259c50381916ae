// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package provider

import (
	"context"
	"strings"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Collect drains a chat stream into the full response text. A stream that
// closes without a done event is treated as truncated.
func Collect(ctx context.Context, events <-chan ChatEvent) (string, Usage, error) {
	var (
		b     strings.Builder
		usage Usage
	)
	for {
		select {
		case <-ctx.Done():
			return "", usage, ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return "", usage, docerr.New(docerr.CodeProviderUpstreamFailure, "stream closed before completion")
			}
			switch ev.Type {
			case EventTypeTextDelta:
				b.WriteString(ev.Text)
			case EventTypeUsage:
				if ev.Usage != nil {
					usage.InputTokens += ev.Usage.InputTokens
					usage.OutputTokens += ev.Usage.OutputTokens
				}
			case EventTypeError:
				return "", usage, docerr.New(docerr.CodeProviderUpstreamFailure, ev.Error)
			case EventTypeDone:
				return b.String(), usage, nil
			}
		}
	}
}
