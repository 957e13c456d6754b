// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics counts per-stage outcomes of an ingestion run on a private
// Prometheus registry and writes them in text exposition format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage names.
const (
	StageCatalog  = "catalog"
	StageDownload = "download"
	StageConvert  = "convert"
	StageChunk    = "chunk"
	StageEmbed    = "embed"
	StageIndex    = "index"
)

// Outcome labels.
const (
	OutcomeDone    = "done"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics holds the run's collectors. A nil *Metrics is valid and records
// nothing, so components can take one optionally.
type Metrics struct {
	reg *prometheus.Registry

	items      *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	embedCalls *prometheus.CounterVec
	tokens     prometheus.Counter
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		items: f.NewCounterVec(prometheus.CounterOpts{
			Name: "legal_ingest_items_total",
			Help: "Documents processed by stage and outcome",
		}, []string{"stage", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "legal_ingest_item_duration_seconds",
			Help:    "Per-document stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		}, []string{"stage"}),
		embedCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "legal_ingest_embedding_requests_total",
			Help: "Embedding API requests by result",
		}, []string{"result"}),
		tokens: f.NewCounter(prometheus.CounterOpts{
			Name: "legal_ingest_chunk_tokens_total",
			Help: "Tokens written into chunks",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Observe counts one document at stage with outcome.
func (m *Metrics) Observe(stage, outcome string) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(stage, outcome).Inc()
}

// Since records the time elapsed from start for stage.
func (m *Metrics) Since(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

// EmbedRequest counts one embedding API call; result is "ok",
// "rate_limited" or "error".
func (m *Metrics) EmbedRequest(result string) {
	if m == nil {
		return
	}
	m.embedCalls.WithLabelValues(result).Inc()
}

// AddTokens adds n chunked tokens.
func (m *Metrics) AddTokens(n int) {
	if m == nil {
		return
	}
	m.tokens.Add(float64(n))
}

// WriteFile writes every collector to path in text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.reg); err != nil {
		return fmt.Errorf("writing metrics: %w", err)
	}
	return nil
}
