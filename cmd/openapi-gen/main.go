// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

// Command openapi-gen writes the HTTP API's OpenAPI document.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/docent-dev/docent/internal/answer"
	"github.com/docent-dev/docent/internal/ingest"
	"github.com/docent-dev/docent/internal/memory"
	"github.com/docent-dev/docent/internal/server"
	docerr "github.com/docent-dev/docent/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/docent.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI document written to %s\n", outPath)
}

// generateSpec builds a server over inert services and returns the document
// huma derives from the route types.
func generateSpec() ([]byte, error) {
	var s stub
	svc, err := server.NewServices(s, s, s, s, nil)
	if err != nil {
		return nil, err
	}
	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, svc)
	if err != nil {
		return nil, docerr.Wrap(err, docerr.CodeCLISetupFailure, "creating server")
	}
	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}

// stub satisfies every service interface; handlers never run here.
type stub struct{}

func (stub) Answer(context.Context, string, string) (*answer.Response, error) { return nil, nil }

func (stub) IngestBundle(context.Context, *ingest.Bundle, ingest.Options) (int, error) {
	return 0, nil
}

func (stub) Get(string) (ingest.Progress, error)         { return ingest.Progress{}, nil }
func (stub) Snapshot(string) (memory.State, bool)        { return memory.State{}, false }
func (stub) Evict(context.Context, string) (bool, error) { return false, nil }
