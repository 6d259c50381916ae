// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package store

import (
	"encoding/binary"
	"math"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Vectors are persisted as packed little-endian float32 values, the same
// layout sqlite-vec uses for its float[] columns.

// EncodeVector packs v into a little-endian float32 blob.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks a blob produced by EncodeVector.
func DecodeVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, docerr.Errorf(docerr.CodeStoreRecordDecodeFailed, "vector blob length %d is not a multiple of 4", len(blob))
	}
	v := make([]float32, len(blob)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return v, nil
}
