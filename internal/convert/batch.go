// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/legal-ingest/internal/metrics"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
}

// Total returns the number of documents processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed
}

// HasFailures reports whether any conversion failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// DocumentStore reads and records the documents being converted.
type DocumentStore interface {
	Documents(ctx context.Context) ([]types.DownloadedDocument, error)
	UpsertDocument(ctx context.Context, d types.DownloadedDocument) error
}

// Batch converts every downloaded document that has no text yet.
type Batch struct {
	Converter *Converter
	Store     DocumentStore
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

func (b *Batch) log() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// pending reports whether d still needs conversion.
func pending(d types.DownloadedDocument) bool {
	if d.ProcessedFilepath == "" {
		return true
	}
	_, err := os.Stat(d.ProcessedFilepath)
	return err != nil
}

// Run converts pending documents one at a time, persisting each success
// before moving on. A text file already on disk for a document is recorded
// without reconverting. Failures are logged and counted; the only error
// returned is a state failure or a cancelled context.
func (b *Batch) Run(ctx context.Context, w io.Writer) (BatchResult, error) {
	var result BatchResult

	docs, err := b.Store.Documents(ctx)
	if err != nil {
		return result, fmt.Errorf("listing documents: %w", err)
	}

	for _, d := range docs {
		if !pending(d) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		name := filepath.Base(d.RawFilepath)
		if !b.Converter.Supports(d.FileType) {
			fmt.Fprintf(w, "skipped: %s (unsupported type %s)\n", name, d.FileType)
			result.Skipped++
			b.Metrics.Observe(metrics.StageConvert, metrics.OutcomeSkipped)
			continue
		}

		if out := b.Converter.OutputPath(d.RawFilepath); nonEmptyFile(out) {
			d.ProcessedFilepath = out
			if err := b.Store.UpsertDocument(ctx, d); err != nil {
				return result, fmt.Errorf("recording %s: %w", d.FileID, err)
			}
			fmt.Fprintf(w, "skipped: %s (already exists)\n", name)
			result.Skipped++
			b.Metrics.Observe(metrics.StageConvert, metrics.OutcomeSkipped)
			continue
		}

		start := time.Now()
		out, err := b.Converter.Convert(ctx, d.RawFilepath, d.FileType)
		b.Metrics.Since(metrics.StageConvert, start)
		if err != nil {
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			b.log().Warn("conversion failed", "file_id", d.FileID, "path", d.RawFilepath, "error", err)
			if errors.Is(err, ErrEmptyOutput) {
				fmt.Fprintf(w, "failed:  %s (empty output)\n", name)
			} else {
				fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
			}
			result.Failed++
			b.Metrics.Observe(metrics.StageConvert, metrics.OutcomeFailed)
			continue
		}

		d.ProcessedFilepath = out
		if err := b.Store.UpsertDocument(ctx, d); err != nil {
			return result, fmt.Errorf("recording %s: %w", d.FileID, err)
		}
		fmt.Fprintf(w, "converted: %s\n", filepath.Base(out))
		result.Converted++
		b.Metrics.Observe(metrics.StageConvert, metrics.OutcomeDone)
	}

	fmt.Fprintf(w, "\nConvert summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	return result, nil
}

func nonEmptyFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}
