// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/pdiddy/legal-ingest/internal/acquire"
	"github.com/pdiddy/legal-ingest/internal/backup"
	"github.com/pdiddy/legal-ingest/internal/browser"
	"github.com/pdiddy/legal-ingest/internal/catalog"
	"github.com/pdiddy/legal-ingest/internal/chunk"
	"github.com/pdiddy/legal-ingest/internal/container"
	"github.com/pdiddy/legal-ingest/internal/convert"
	"github.com/pdiddy/legal-ingest/internal/embed"
	"github.com/pdiddy/legal-ingest/internal/httputil"
	"github.com/pdiddy/legal-ingest/internal/index"
	"github.com/pdiddy/legal-ingest/internal/metrics"
	"github.com/pdiddy/legal-ingest/internal/pipeline"
	"github.com/pdiddy/legal-ingest/internal/resolve"
	"github.com/pdiddy/legal-ingest/internal/state"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ingestion pipeline",
	Long: `Run executes one pass of the pipeline.

In update mode it refreshes the catalog, downloads new references, then
converts, chunks and embeds every document whose output is missing. In load
mode it only reports the persisted state; when the state database or the
vector index is missing, load falls back to update.`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("mode", string(types.ModeLoad), "run mode: load or update")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg := loadConfig()
	requested, _ := cmd.Flags().GetString("mode")
	mode := types.Mode(requested)
	switch mode {
	case types.ModeLoad, types.ModeUpdate:
	default:
		return fmt.Errorf("%w: unknown mode %q", types.ErrConfig, requested)
	}
	if eff := pipeline.EffectiveMode(cfg, mode); eff != mode {
		logger.Info("persisted state missing, falling back to update", "requested", mode)
		mode = eff
	}
	if err := cfg.Validate(mode == types.ModeUpdate); err != nil {
		return err
	}

	a, err := openApp(cmd, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	ctrl := &pipeline.Controller{
		Store:       a.store,
		MetadataDir: cfg.Paths.MetadataDir,
		Updater:     a.updater(),
		Logger:      logger,
		Metrics:     a.metrics,
	}
	if mode == types.ModeUpdate {
		if err := a.wireUpdate(ctx, ctrl); err != nil {
			return err
		}
	}

	rep, err := ctrl.Run(ctx, mode, os.Stdout)
	rep.Print(os.Stdout)
	if err != nil {
		return err
	}
	if rep.HasFailures() {
		return fmt.Errorf("%d document(s) failed", rep.TotalFailed())
	}
	return nil
}

// app holds the shared resources every command opens: state, the vector
// index, the browser pool and the metrics. Stage components are built on
// demand from them.
type app struct {
	cfg     types.Config
	metrics *metrics.Metrics
	store   *state.Store
	index   *index.Index
	pool    *browser.Pool
	upd     *index.Updater

	metricsFile string
	closers     []func() error
}

func openApp(cmd *cobra.Command, cfg types.Config) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}
	a.metricsFile, _ = cmd.Flags().GetString("metrics-file")

	store, err := state.Open(cfg.Paths.MetadataDir)
	if err != nil {
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	ix, err := index.Open(cfg.Paths.VectorDBPath)
	if err != nil {
		a.close()
		return nil, err
	}
	a.index = ix
	a.closers = append(a.closers, ix.Close)
	return a, nil
}

// close releases resources in reverse order and writes the metrics file.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("closing resource", "error", err)
		}
	}
	if a.metricsFile != "" {
		if err := a.metrics.WriteFile(a.metricsFile); err != nil {
			logger.Warn("metrics not written", "error", err)
		}
	}
}

func (a *app) httpClient() *httputil.Client {
	d := a.cfg.Download
	return &httputil.Client{
		HTTP:      &http.Client{Timeout: d.Timeout},
		UserAgent: d.UserAgent,
		Policy: httputil.RetryPolicy{
			MaxRetries: d.MaxRetries,
			MaxElapsed: d.MaxElapsed,
			Logger:     logger,
		},
	}
}

func (a *app) browserPool() *browser.Pool {
	if a.pool == nil {
		d := a.cfg.Download
		a.pool = browser.New(browser.Config{
			RemoteURL:     d.BrowserURL,
			Tabs:          d.BrowserWorkers,
			RenderTimeout: d.RenderTimeout,
			Stealth:       d.Stealth,
			Logger:        logger,
		})
		a.closers = append(a.closers, a.pool.Close)
	}
	return a.pool
}

func (a *app) discoverer() *catalog.Discoverer {
	return &catalog.Discoverer{Fetcher: a.httpClient(), RootURL: a.cfg.Paths.RootURL, Logger: logger}
}

func (a *app) differ() *catalog.Differ {
	return &catalog.Differ{Store: a.store, ExportDir: a.cfg.Paths.MetadataDir, Logger: logger}
}

// registry wires the site connectors. The legal register renders
// client-side and goes through the browser pool; the other sites are plain
// HTTP.
func (a *app) registry() *resolve.Registry {
	client := a.httpClient()
	reg := resolve.NewRegistry(
		resolve.DirectFile{Downloader: client, Logger: logger},
		resolve.Unsupported{Logger: logger},
	)
	reg.Register("pisrs.si", resolve.PISRS{Fetcher: a.browserPool(), Downloader: client, Logger: logger})
	reg.Register("eur-lex.europa.eu", resolve.EurLex{Fetcher: client, Logger: logger})
	reg.Register("uradni-list.si", resolve.UradniList{Fetcher: client, Downloader: client})
	reg.Register("fu.gov.si", resolve.FURS{Fetcher: client})
	return reg
}

func (a *app) orchestrator() *acquire.Orchestrator {
	return &acquire.Orchestrator{
		Resolver: a.registry(),
		Store:    a.store,
		RawDir:   a.cfg.Paths.RawDataDir,
		Workers:  a.cfg.Download.Workers,
		Logger:   logger,
		Metrics:  a.metrics,
	}
}

func (a *app) convertBatch() (*convert.Batch, error) {
	runner, err := container.NewRunner(a.cfg.Conversion.Tools)
	if err != nil {
		return nil, err
	}
	return &convert.Batch{
		Converter: convert.New(a.cfg.Paths.ConvertedDataDir, runner, a.cfg.Conversion),
		Store:     a.store,
		Logger:    logger,
		Metrics:   a.metrics,
	}, nil
}

func (a *app) chunkBatch() (*chunk.Batch, error) {
	tok, err := chunk.NewTokenizer(a.cfg.Embed.Model)
	if err != nil {
		return nil, err
	}
	c, err := chunk.New(tok, a.cfg.Chunk)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrConfig, err)
	}
	return &chunk.Batch{
		Chunker: c,
		Store:   a.store,
		OutDir:  a.cfg.Paths.ChunksDataDir,
		Logger:  logger,
		Metrics: a.metrics,
	}, nil
}

func (a *app) batcher() *embed.Batcher {
	e := a.cfg.Embed
	var limiter *rate.Limiter
	if e.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(e.RequestsPerSecond), 1)
	}
	return &embed.Batcher{
		Provider:    embed.NewOpenAIProvider(e.APIKey, e.BaseURL, e.Model),
		BatchSize:   e.BatchSize,
		MaxAttempts: e.MaxAttempts,
		Workers:     e.Workers,
		Limiter:     limiter,
		Logger:      logger,
		Metrics:     a.metrics,
	}
}

func (a *app) updater() *index.Updater {
	if a.upd == nil {
		a.upd = &index.Updater{
			Index:   a.index,
			Store:   a.store,
			Cadence: a.cfg.Index.CheckpointEvery,
			Logger:  logger,
			Metrics: a.metrics,
		}
	}
	return a.upd
}

func (a *app) embedBatch() *embed.Batch {
	return &embed.Batch{
		Batcher: a.batcher(),
		Store:   a.store,
		Sink:    a.updater(),
		Metrics: a.metrics,
	}
}

// uploader returns nil when no backup bucket is configured.
func (a *app) uploader(ctx context.Context) (*backup.Uploader, error) {
	if a.cfg.Backup.Bucket == "" {
		return nil, nil
	}
	u, err := backup.New(ctx, a.cfg.Backup)
	if err != nil {
		return nil, err
	}
	u.Logger = logger
	a.closers = append(a.closers, u.Close)
	return u, nil
}

// wireUpdate fills in every stage an update run needs.
func (a *app) wireUpdate(ctx context.Context, ctrl *pipeline.Controller) error {
	conv, err := a.convertBatch()
	if err != nil {
		return err
	}
	chunker, err := a.chunkBatch()
	if err != nil {
		return err
	}
	up, err := a.uploader(ctx)
	if err != nil {
		return err
	}

	ctrl.Discoverer = a.discoverer()
	ctrl.Differ = a.differ()
	ctrl.Downloader = a.orchestrator()
	ctrl.Converter = conv
	ctrl.Chunker = chunker
	ctrl.Embedder = a.embedBatch()
	if up != nil {
		ctrl.Backup = up
		ctrl.BackupPaths = []string{a.cfg.Paths.MetadataDir, filepath.Dir(a.cfg.Paths.VectorDBPath)}
	}
	return nil
}
