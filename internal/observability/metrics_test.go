// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Docent Contributors

package observability_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docent-dev/docent/internal/observability"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *observability.Metrics
	assert.NotPanics(t, func() {
		m.IncFragment("page")
		m.IncEmbeddingDegraded("openai")
		m.IncRetrieval(true)
		m.IncAnswer("ok")
		m.IncCompaction("ok")
		m.SetActiveDocuments(3)
		m.ObserveGenerateLatency(time.Second)
		m.IncGuardMatch("document", "aws_access_key")
	})
}

func TestCounters(t *testing.T) {
	m := observability.NewMetrics("docent_test")

	m.IncFragment("page")
	m.IncFragment("page")
	m.IncFragment("action")
	m.IncRetrieval(false)
	m.IncRetrieval(true)
	m.IncEmbeddingDegraded("hash")
	m.IncGuardMatch("question", "instruction_override")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.FragmentsIngested.WithLabelValues("page")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.FragmentsIngested.WithLabelValues("action")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Retrievals))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EmptyRetrievals))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.EmbeddingDegraded.WithLabelValues("hash")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.GuardMatches.WithLabelValues("question", "instruction_override")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := observability.NewMetrics("docent_test")
	m.IncAnswer("not_found")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `docent_test_answers_total{outcome="not_found"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
