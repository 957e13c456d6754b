// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCounts(t *testing.T) {
	m := New()
	m.Observe(StageDownload, OutcomeDone)
	m.Observe(StageDownload, OutcomeDone)
	m.Observe(StageDownload, OutcomeFailed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.items.WithLabelValues(StageDownload, OutcomeDone)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues(StageDownload, OutcomeFailed)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Observe(StageEmbed, OutcomeDone)
	m.Since(StageEmbed, time.Now())
	m.EmbedRequest("ok")
	m.AddTokens(10)
	assert.NoError(t, m.WriteFile(filepath.Join(t.TempDir(), "x.prom")))
	assert.Nil(t, m.Registry())
}

func TestWriteFile(t *testing.T) {
	m := New()
	m.Observe(StageChunk, OutcomeDone)
	m.AddTokens(42)

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, m.WriteFile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `legal_ingest_items_total{outcome="done",stage="chunk"} 1`)
	assert.Contains(t, string(data), "legal_ingest_chunk_tokens_total 42")
}
