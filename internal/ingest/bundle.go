// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package ingest

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// Bundle is a document ready for ingestion: its cleaned page texts and any
// action records already extracted from it.
type Bundle struct {
	DocID   string         `json:"doc_id" yaml:"doc_id"`
	Pages   []string       `json:"pages" yaml:"pages"`
	Actions []ActionRecord `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// IsBundleFile reports whether path has a bundle extension.
func IsBundleFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// LoadBundle reads a YAML or JSON bundle. A bundle without doc_id takes
// the file name without extension.
func LoadBundle(path string) (*Bundle, error) {
	if !IsBundleFile(path) {
		return nil, docerr.New(docerr.CodeIngestInvalidInput, "bundle must be .yaml, .yml or .json",
			docerr.FieldPath(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, docerr.Wrap(err, docerr.CodeIngestBundleReadFailure, "opening bundle", docerr.FieldPath(path))
	}
	defer f.Close()

	b, err := DecodeBundle(f, filepath.Ext(path))
	if err != nil {
		return nil, docerr.With(err, docerr.FieldPath(path))
	}
	if strings.TrimSpace(b.DocID) == "" {
		base := filepath.Base(path)
		b.DocID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return b, nil
}

// DecodeBundle decodes a bundle from r. ext selects the format: ".json"
// for JSON, anything else for YAML.
func DecodeBundle(r io.Reader, ext string) (*Bundle, error) {
	var b Bundle
	var err error
	if strings.EqualFold(ext, ".json") {
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		err = dec.Decode(&b)
	} else {
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		err = dec.Decode(&b)
	}
	if err != nil {
		return nil, docerr.Wrap(err, docerr.CodeIngestInvalidInput, "decoding bundle")
	}
	return &b, nil
}
