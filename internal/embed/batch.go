// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdiddy/legal-ingest/internal/chunk"
	"github.com/pdiddy/legal-ingest/internal/metrics"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

// BatchResult holds the outcome of an embedding run.
type BatchResult struct {
	Embedded int
	Resumed  int
	Failed   int
}

// Total returns the number of documents processed.
func (r BatchResult) Total() int {
	return r.Embedded + r.Resumed + r.Failed
}

// HasFailures reports whether any document failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Sink receives the vector records of each embedded document.
type Sink interface {
	// Has reports whether n records of fileID are already durable.
	Has(fileID string, n int) bool
	// Add stages records for fileID. Nil records mark an already indexed
	// document as complete.
	Add(ctx context.Context, fileID string, records []types.VectorRecord) error
}

// DocumentStore lists the documents to embed.
type DocumentStore interface {
	Documents(ctx context.Context) ([]types.DownloadedDocument, error)
}

// Batch embeds every chunked document not yet in the vector index.
type Batch struct {
	Batcher *Batcher
	Store   DocumentStore
	Sink    Sink
	Metrics *metrics.Metrics
}

// RecordID is the vector record key of one chunk.
func RecordID(fileID string, chunkIdx int) string {
	return fmt.Sprintf("%s:%d", fileID, chunkIdx)
}

// Records pairs chunks with their vectors.
func Records(fileID string, chunks []types.Chunk, vectors [][]float32) []types.VectorRecord {
	out := make([]types.VectorRecord, len(chunks))
	for i, c := range chunks {
		out[i] = types.VectorRecord{
			ID:       RecordID(fileID, c.Index),
			FileID:   fileID,
			ChunkIdx: c.Index,
			Text:     c.Content,
			Metadata: c.Metadata,
			Vector:   vectors[i],
		}
	}
	return out
}

// Run embeds pending documents in catalog order. A document whose records
// are already durable from an interrupted run is handed to the sink without
// calling the provider again. Provider failures are counted and the run
// continues; sink and context failures stop it.
func (b *Batch) Run(ctx context.Context, w io.Writer) (BatchResult, error) {
	var result BatchResult

	docs, err := b.Store.Documents(ctx)
	if err != nil {
		return result, fmt.Errorf("listing documents: %w", err)
	}

	for _, d := range docs {
		if d.FileChunksPath == "" || d.InVectorDB {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		chunks, err := chunk.ReadArtifacts(d.FileChunksPath)
		if err != nil {
			b.Batcher.log().Warn("reading chunks failed", "file_id", d.FileID, "error", err)
			fmt.Fprintf(w, "failed:  %s (%v)\n", d.Filename, err)
			result.Failed++
			b.Metrics.Observe(metrics.StageEmbed, metrics.OutcomeFailed)
			continue
		}

		if b.Sink.Has(d.FileID, len(chunks)) {
			if err := b.Sink.Add(ctx, d.FileID, nil); err != nil {
				return result, err
			}
			fmt.Fprintf(w, "skipped: %s (already indexed)\n", d.Filename)
			result.Resumed++
			b.Metrics.Observe(metrics.StageEmbed, metrics.OutcomeSkipped)
			continue
		}

		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Content
		}

		start := time.Now()
		vectors, err := b.Batcher.Embed(ctx, texts)
		b.Metrics.Since(metrics.StageEmbed, start)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			b.Batcher.log().Warn("embedding failed", "file_id", d.FileID, "error", err)
			fmt.Fprintf(w, "failed:  %s (%v)\n", d.Filename, err)
			result.Failed++
			b.Metrics.Observe(metrics.StageEmbed, metrics.OutcomeFailed)
			continue
		}

		if err := b.Sink.Add(ctx, d.FileID, Records(d.FileID, chunks, vectors)); err != nil {
			return result, err
		}
		fmt.Fprintf(w, "embedded: %s (%d chunks)\n", d.Filename, len(chunks))
		result.Embedded++
		b.Metrics.Observe(metrics.StageEmbed, metrics.OutcomeDone)
	}

	fmt.Fprintf(w, "\nEmbed summary: %d embedded, %d resumed, %d failed (total: %d)\n",
		result.Embedded, result.Resumed, result.Failed, result.Total())
	return result, nil
}
