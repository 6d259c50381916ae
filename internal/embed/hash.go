// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashProvider is an offline embedder based on feature hashing of word
// tokens and character trigrams. It needs no network and is deterministic,
// which makes it the default for local runs and tests. Character trigrams
// keep it useful for scripts without whitespace word boundaries.
type HashProvider struct {
	dimensions int
}

func NewHashProvider(dimensions int) *HashProvider {
	return &HashProvider{dimensions: dimensions}
}

func (h *HashProvider) Name() string { return "hash" }

func (h *HashProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := make([]float32, h.dimensions)
	if h.dimensions == 0 {
		return v, nil
	}

	for _, word := range tokenize(text) {
		h.add(v, "w:"+word, 1)
		runes := []rune(" " + word + " ")
		for i := 0; i+3 <= len(runes); i++ {
			h.add(v, "c:"+string(runes[i:i+3]), 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v, nil
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= inv
	}
	return v, nil
}

// add hashes feature into a bucket; the top hash bit picks the sign so
// collisions tend to cancel rather than accumulate.
func (h *HashProvider) add(v []float32, feature string, weight float32) {
	f := fnv.New32a()
	_, _ = f.Write([]byte(feature))
	sum := f.Sum32()
	idx := int(sum % uint32(len(v)))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	v[idx] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
