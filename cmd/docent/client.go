// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	docerr "github.com/docent-dev/docent/pkg/errors"
)

// defaultHTTPClient is used by commands that talk to a running server.
// Answers can take a while, hence the generous timeout.
var defaultHTTPClient = &http.Client{Timeout: 2 * time.Minute}

// apiClient provides HTTP access to a running docent server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

// newAPIClient targets addr, given as host:port or a full URL.
func newAPIClient(addr string) *apiClient {
	base := addr
	if !strings.Contains(addr, "://") {
		base = "http://" + addr
	}
	return &apiClient{baseURL: strings.TrimRight(base, "/"), http: defaultHTTPClient}
}

func (c *apiClient) getJSON(ctx context.Context, path string, dest any) error {
	return c.do(ctx, http.MethodGet, path, nil, dest)
}

func (c *apiClient) postJSON(ctx context.Context, path string, body, dest any) error {
	return c.do(ctx, http.MethodPost, path, body, dest)
}

func (c *apiClient) delete(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *apiClient) do(ctx context.Context, method, path string, body, dest any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return docerr.Wrap(err, docerr.CodeCLIRequestFailure, "encoding request")
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return docerr.Wrap(err, docerr.CodeCLIRequestFailure, "building request")
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if isDialError(err) {
			return docerr.Errorf(docerr.CodeCLIServerNotRunning, "docent server at %s is not running", c.baseURL)
		}
		return docerr.Wrap(err, docerr.CodeCLIRequestFailure, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return docerr.New(docerr.CodeCLIEntityNotFound, problemDetail(resp.Body))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return docerr.Errorf(docerr.CodeCLIRequestFailure, "server returned %d: %s", resp.StatusCode, problemDetail(resp.Body))
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return docerr.Wrap(err, docerr.CodeCLIResponseInvalid, "decoding response")
	}
	return nil
}

// problemDetail extracts the message from an RFC 9457 error body.
func problemDetail(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	var p struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if json.Unmarshal(raw, &p) == nil && (p.Detail != "" || p.Title != "") {
		if p.Detail != "" {
			return p.Detail
		}
		return p.Title
	}
	return strings.TrimSpace(string(raw))
}

// isDialError reports whether err is a failure to connect.
func isDialError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}
