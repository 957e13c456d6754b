// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package embed turns chunk texts into vectors through an embedding API. A
// Batcher splits the input into fixed-size batches, runs them on a bounded
// pool, backs off only on rate limits, and reassembles the output by the
// index each returned item carries.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/pdiddy/legal-ingest/internal/metrics"
)

// ErrRateLimited marks a provider rejection that is worth retrying later.
var ErrRateLimited = errors.New("embedding rate limited")

// BaseDelay is the first backoff delay after a rate-limit error; it doubles
// on every further attempt. Tests lower it.
var BaseDelay = 1 * time.Second

// Embedding is one vector returned by a provider. Index is the position of
// its input within the request.
type Embedding struct {
	Index  int
	Vector []float32
}

// Provider calls an embedding API for one batch. Rate-limit failures must
// wrap ErrRateLimited. Results may arrive in any order.
type Provider interface {
	CreateEmbeddings(ctx context.Context, texts []string) ([]Embedding, error)
}

// Batcher embeds texts in batches.
type Batcher struct {
	Provider Provider

	// BatchSize is the number of texts per request. Default: 10.
	BatchSize int

	// MaxAttempts bounds tries per batch on rate limits. Default: 6.
	MaxAttempts int

	// Workers bounds in-flight batches. Default: 1.
	Workers int

	// Limiter paces requests; nil means unpaced.
	Limiter *rate.Limiter

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (b *Batcher) log() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Embed returns one vector per text, out[i] belonging to texts[i].
func (b *Batcher) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	size := b.BatchSize
	if size <= 0 {
		size = 10
	}
	workers := b.Workers
	if workers <= 0 {
		workers = 1
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		g.Go(func() error {
			vecs, err := b.embedBatch(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding batch %d-%d: %w", start, end-1, err)
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// embedBatch calls the provider, retrying with exponential backoff while it
// reports rate limits.
func (b *Batcher) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	attempts := b.MaxAttempts
	if attempts <= 0 {
		attempts = 6
	}

	delay := BaseDelay
	for attempt := 1; ; attempt++ {
		if b.Limiter != nil {
			if err := b.Limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		res, err := b.Provider.CreateEmbeddings(ctx, texts)
		if err == nil {
			b.Metrics.EmbedRequest("ok")
			return reassemble(res, len(texts))
		}
		if !errors.Is(err, ErrRateLimited) {
			b.Metrics.EmbedRequest("error")
			return nil, err
		}
		b.Metrics.EmbedRequest("rate_limited")
		if attempt >= attempts {
			return nil, fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		b.log().Warn("embedding rate limited, backing off", "attempt", attempt, "delay", delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// reassemble places every embedding at its declared index. Indices outside
// the batch, duplicates, and gaps are errors.
func reassemble(res []Embedding, n int) ([][]float32, error) {
	if len(res) != n {
		return nil, fmt.Errorf("provider returned %d embeddings for %d inputs", len(res), n)
	}
	out := make([][]float32, n)
	for _, e := range res {
		if e.Index < 0 || e.Index >= n {
			return nil, fmt.Errorf("embedding index %d out of range [0, %d)", e.Index, n)
		}
		if out[e.Index] != nil {
			return nil, fmt.Errorf("duplicate embedding index %d", e.Index)
		}
		if len(e.Vector) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", e.Index)
		}
		out[e.Index] = e.Vector
	}
	return out, nil
}
