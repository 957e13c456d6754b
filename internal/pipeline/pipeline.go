// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pipeline sequences the ingestion stages. Every stage reads the
// persisted state, skips work whose output already exists, and commits per
// document, so an interrupted run resumes where it stopped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/pdiddy/legal-ingest/internal/acquire"
	"github.com/pdiddy/legal-ingest/internal/catalog"
	"github.com/pdiddy/legal-ingest/internal/chunk"
	"github.com/pdiddy/legal-ingest/internal/convert"
	"github.com/pdiddy/legal-ingest/internal/embed"
	"github.com/pdiddy/legal-ingest/internal/fsutil"
	"github.com/pdiddy/legal-ingest/internal/index"
	"github.com/pdiddy/legal-ingest/internal/metrics"
	"github.com/pdiddy/legal-ingest/internal/state"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

// Discoverer enumerates the source catalog.
type Discoverer interface {
	Discover(ctx context.Context) ([]types.CatalogRow, error)
}

// Backup uploads a directory tree; *backup.Uploader satisfies it.
type Backup interface {
	UploadDir(ctx context.Context, localDir, prefix string) (int, error)
}

// ArtifactsPresent reports whether a previous update left both the state
// database and the vector index behind.
func ArtifactsPresent(cfg types.Config) bool {
	return fsutil.Exists(state.Path(cfg.Paths.MetadataDir)) && index.Exists(cfg.Paths.VectorDBPath)
}

// EffectiveMode returns the mode a run actually uses: load falls back to
// update when the persisted artifacts are missing.
func EffectiveMode(cfg types.Config, requested types.Mode) types.Mode {
	if requested == types.ModeLoad && !ArtifactsPresent(cfg) {
		return types.ModeUpdate
	}
	return requested
}

// Controller owns one run over the stages. Discoverer and Backup are
// optional; every other stage is required for an update.
type Controller struct {
	Store       *state.Store
	MetadataDir string

	Discoverer Discoverer
	Differ     *catalog.Differ
	Downloader *acquire.Orchestrator
	Converter  *convert.Batch
	Chunker    *chunk.Batch
	Embedder   *embed.Batch
	Updater    *index.Updater

	Backup      Backup
	BackupPaths []string

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

func (c *Controller) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Run executes mode. Load only reports what is already persisted. Update
// runs discovery and every ingestion stage. Status lines go to w.
//
// Only configuration errors, a malformed catalog, state failures and
// cancellation are returned; per-document failures are counted in the
// report.
func (c *Controller) Run(ctx context.Context, mode types.Mode, w io.Writer) (Report, error) {
	rep := newReport(mode)
	if mode == types.ModeLoad {
		return rep, c.summarize(ctx, &rep)
	}
	if mode != types.ModeUpdate {
		return rep, fmt.Errorf("%w: unknown mode %q", types.ErrConfig, mode)
	}

	if err := c.discover(ctx, &rep, w); err != nil {
		return rep, err
	}

	entries, err := c.Store.Entries(ctx)
	if err != nil {
		return rep, fmt.Errorf("loading catalog: %w", err)
	}
	_, dl, err := c.Downloader.DownloadAll(ctx, entries, w)
	rep.Downloaded = dl.Downloaded
	rep.Failed[metrics.StageDownload] = dl.Failed
	if err != nil {
		return rep, fmt.Errorf("download: %w", err)
	}

	cv, err := c.Converter.Run(ctx, w)
	rep.Converted = cv.Converted
	rep.Failed[metrics.StageConvert] = cv.Failed
	if err != nil {
		return rep, fmt.Errorf("convert: %w", err)
	}

	ch, err := c.Chunker.Run(ctx, w)
	rep.Chunked = ch.Chunked
	rep.Failed[metrics.StageChunk] = ch.Failed
	if err != nil {
		return rep, fmt.Errorf("chunk: %w", err)
	}

	em, err := c.Embedder.Run(ctx, w)
	rep.Embedded = em.Embedded
	rep.Failed[metrics.StageEmbed] = em.Failed
	if err != nil {
		// Records already embedded are still checkpointed.
		if cerr := c.Updater.Close(context.WithoutCancel(ctx)); cerr != nil {
			c.log().Error("final checkpoint failed", "error", cerr)
		}
		return rep, fmt.Errorf("embed: %w", err)
	}
	if err := c.Updater.Close(ctx); err != nil {
		return rep, fmt.Errorf("index checkpoint: %w", err)
	}

	if c.MetadataDir != "" {
		if err := c.Store.ExportCSV(ctx, c.MetadataDir); err != nil {
			return rep, fmt.Errorf("exporting state: %w", err)
		}
	}
	c.backup(ctx)
	return rep, c.summarize(ctx, &rep)
}

// discover refreshes the catalog. A discovery failure is counted and the
// run continues on the persisted catalog; a malformed catalog is fatal.
func (c *Controller) discover(ctx context.Context, rep *Report, w io.Writer) error {
	if c.Discoverer == nil {
		return nil
	}
	rows, err := c.Discoverer.Discover(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log().Warn("discovery failed, continuing with persisted catalog", "error", err)
		rep.Failed[metrics.StageCatalog]++
		c.Metrics.Observe(metrics.StageCatalog, metrics.OutcomeFailed)
		return nil
	}
	res, err := c.Differ.Apply(ctx, rows, w)
	if err != nil {
		if errors.Is(err, catalog.ErrMalformedCatalog) {
			return err
		}
		return fmt.Errorf("catalog: %w", err)
	}
	rep.Catalogued = res.New
	for range res.New {
		c.Metrics.Observe(metrics.StageCatalog, metrics.OutcomeDone)
	}
	return nil
}

// backup uploads the configured paths. Failures are logged only.
func (c *Controller) backup(ctx context.Context) {
	if c.Backup == nil {
		return
	}
	for _, p := range c.BackupPaths {
		n, err := c.Backup.UploadDir(ctx, p, filepath.Base(p))
		if err != nil {
			c.log().Warn("backup failed", "path", p, "error", err)
			continue
		}
		c.log().Info("backup uploaded", "path", p, "files", n)
	}
}

// summarize fills the totals read back from state.
func (c *Controller) summarize(ctx context.Context, rep *Report) error {
	entries, err := c.Store.Entries(ctx)
	if err != nil {
		return fmt.Errorf("loading catalog: %w", err)
	}
	docs, err := c.Store.Documents(ctx)
	if err != nil {
		return fmt.Errorf("loading documents: %w", err)
	}
	rep.Entries = len(entries)
	rep.Documents = len(docs)
	for _, d := range docs {
		if d.InVectorDB {
			rep.Indexed++
		}
	}
	if c.Updater != nil && c.Updater.Index != nil {
		rep.Vectors = c.Updater.Index.Len()
	}
	return nil
}
