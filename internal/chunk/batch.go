// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chunk

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/legal-ingest/internal/fsutil"
	"github.com/pdiddy/legal-ingest/internal/metrics"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

// BatchResult holds the outcome of a chunking run.
type BatchResult struct {
	Chunked int
	Skipped int
	Failed  int
}

// Total returns the number of documents processed.
func (r BatchResult) Total() int {
	return r.Chunked + r.Skipped + r.Failed
}

// HasFailures reports whether any document failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// DocumentStore reads and records the documents being chunked.
type DocumentStore interface {
	Documents(ctx context.Context) ([]types.DownloadedDocument, error)
	UpsertDocument(ctx context.Context, d types.DownloadedDocument) error
}

// Batch chunks every converted document that has no chunk artifacts yet.
type Batch struct {
	Chunker *Chunker
	Store   DocumentStore
	OutDir  string
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (b *Batch) log() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// FileMetadata is the provenance every chunk of d carries.
func FileMetadata(d types.DownloadedDocument) types.ChunkMetadata {
	m := types.ChunkMetadata{
		FileID:          d.FileID,
		AreaName:        d.Area,
		ReferenceName:   d.Subarea,
		DetailsSection:  d.Section,
		DetailsHrefName: d.Filename,
		SourceLink:      d.DownloadedPath,
		RawFilepath:     d.RawFilepath,
	}
	if !d.DateDownloaded.IsZero() {
		m.DateDownloaded = d.DateDownloaded.Format(time.RFC3339)
	}
	return m
}

func ready(d types.DownloadedDocument) bool {
	if d.ProcessedFilepath == "" {
		return false
	}
	if d.FileChunksPath == "" {
		return true
	}
	return !fsutil.Exists(d.FileChunksPath)
}

// Run chunks ready documents one at a time and records FileChunksPath after
// each. Artifacts already on disk are recorded without re-chunking.
func (b *Batch) Run(ctx context.Context, w io.Writer) (BatchResult, error) {
	var result BatchResult

	docs, err := b.Store.Documents(ctx)
	if err != nil {
		return result, fmt.Errorf("listing documents: %w", err)
	}

	for _, d := range docs {
		if !ready(d) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := strings.TrimSuffix(filepath.Base(d.ProcessedFilepath), filepath.Ext(d.ProcessedFilepath))
		textPath, metaPath := ArtifactPaths(b.OutDir, name)
		if fsutil.Exists(textPath) && fsutil.Exists(metaPath) {
			d.FileChunksPath = textPath
			if err := b.Store.UpsertDocument(ctx, d); err != nil {
				return result, fmt.Errorf("recording %s: %w", d.FileID, err)
			}
			fmt.Fprintf(w, "skipped: %s (already exists)\n", name)
			result.Skipped++
			b.Metrics.Observe(metrics.StageChunk, metrics.OutcomeSkipped)
			continue
		}

		start := time.Now()
		path, n, err := b.chunkDocument(d, name)
		b.Metrics.Since(metrics.StageChunk, start)
		if err != nil {
			b.log().Warn("chunking failed", "file_id", d.FileID, "path", d.ProcessedFilepath, "error", err)
			fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
			result.Failed++
			b.Metrics.Observe(metrics.StageChunk, metrics.OutcomeFailed)
			continue
		}

		d.FileChunksPath = path
		if err := b.Store.UpsertDocument(ctx, d); err != nil {
			return result, fmt.Errorf("recording %s: %w", d.FileID, err)
		}
		fmt.Fprintf(w, "chunked: %s (%d chunks)\n", name, n)
		result.Chunked++
		b.Metrics.Observe(metrics.StageChunk, metrics.OutcomeDone)
	}

	fmt.Fprintf(w, "\nChunk summary: %d chunked, %d skipped, %d failed (total: %d)\n",
		result.Chunked, result.Skipped, result.Failed, result.Total())
	return result, nil
}

func (b *Batch) chunkDocument(d types.DownloadedDocument, name string) (string, int, error) {
	text, err := os.ReadFile(d.ProcessedFilepath)
	if err != nil {
		return "", 0, fmt.Errorf("reading text: %w", err)
	}
	chunks, tokens := b.Chunker.Chunks(string(text), FileMetadata(d))
	if len(chunks) == 0 {
		return "", 0, fmt.Errorf("no chunks from %s", filepath.Base(d.ProcessedFilepath))
	}
	b.Metrics.AddTokens(tokens)

	path, err := WriteArtifacts(b.OutDir, name, chunks)
	if err != nil {
		return "", 0, err
	}
	return path, len(chunks), nil
}
