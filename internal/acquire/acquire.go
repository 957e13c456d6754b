// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package acquire downloads every unscraped catalog entry through the
// resolver registry and records the outcome per entry.
package acquire

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/legal-ingest/internal/metrics"
	"github.com/pdiddy/legal-ingest/internal/resolve"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

// BatchResult holds the outcome of a download run.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Expanded   int
}

// Total returns the number of entries processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any entry failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Resolver resolves a URL into a saved file; *resolve.Registry satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, url, title, outputDir string) (resolve.Result, error)
}

// Store is the durable state the orchestrator commits to after every entry.
type Store interface {
	CommitDownload(ctx context.Context, e types.ReferenceEntry, doc *types.DownloadedDocument) error
	DocumentByRawPath(ctx context.Context, path string) (types.DownloadedDocument, bool, error)
	ReplaceEntry(ctx context.Context, containerID string, children []types.ReferenceEntry, docs []types.DownloadedDocument) error
}

// Orchestrator drives the resolvers over a catalog.
type Orchestrator struct {
	Resolver Resolver
	Store    Store
	RawDir   string

	// Workers bounds concurrent entries. Default: 1.
	Workers int

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// now is overridden in tests.
	now func() time.Time
}

// pick returns the URL and title an entry downloads from. The details link
// takes precedence over the primary link whenever it is set; the registry
// then tries it as a direct file before treating it as a website.
func pick(e types.ReferenceEntry) (url, title string) {
	if details := types.CleanURL(e.DetailsHref); details != "" {
		title = e.DetailsName
		if title == "" {
			title = e.Subarea
		}
		return details, title
	}
	return types.CleanURL(e.SourceHref), e.Subarea
}

// call memoizes one resolution per clean URL within a run.
type call struct {
	done chan struct{}
	res  resolve.Result
	err  error
}

type runState struct {
	mu    sync.Mutex
	calls map[string]*call
	res   BatchResult
}

// resolveOnce resolves url unless another entry already did in this run. The
// second return value reports whether the result was reused.
func (o *Orchestrator) resolveOnce(ctx context.Context, rs *runState, url, title string) (resolve.Result, bool, error) {
	rs.mu.Lock()
	if c, ok := rs.calls[url]; ok {
		rs.mu.Unlock()
		select {
		case <-c.done:
		case <-ctx.Done():
			return resolve.Result{}, false, ctx.Err()
		}
		return c.res, true, c.err
	}
	c := &call{done: make(chan struct{})}
	rs.calls[url] = c
	rs.mu.Unlock()

	c.res, c.err = o.Resolver.Resolve(ctx, url, title, o.RawDir)
	close(c.done)
	return c.res, false, c.err
}

// syncWriter serializes status lines from concurrent workers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type outcome int

const (
	outcomeDownloaded outcome = iota
	outcomeSkipped
	outcomeFailed
)

// DownloadAll processes every entry that is not yet scraped. Each processed
// entry is committed with IsScraped=true whether it succeeded or failed;
// entries already scraped are returned unchanged. Archive containers are
// replaced in the returned catalog by their extracted children. Per-entry
// status lines are written to w.
//
// The only error returned is a failure to commit state or a cancelled
// context; resolution and download failures are counted in the result.
func (o *Orchestrator) DownloadAll(ctx context.Context, entries []types.ReferenceEntry, w io.Writer) ([]types.ReferenceEntry, BatchResult, error) {
	workers := o.Workers
	if workers <= 0 {
		workers = 1
	}
	w = &syncWriter{w: w}
	rs := &runState{calls: make(map[string]*call)}
	out := make([][]types.ReferenceEntry, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, e := range entries {
		if e.IsScraped {
			out[i] = []types.ReferenceEntry{e}
			continue
		}
		g.Go(func() error {
			start := time.Now()
			result, oc, err := o.downloadEntry(gctx, rs, e, w)
			if err != nil {
				return err
			}
			o.Metrics.Since(metrics.StageDownload, start)

			rs.mu.Lock()
			defer rs.mu.Unlock()
			out[i] = result
			switch oc {
			case outcomeDownloaded:
				rs.res.Downloaded++
				o.Metrics.Observe(metrics.StageDownload, metrics.OutcomeDone)
			case outcomeSkipped:
				rs.res.Skipped++
				o.Metrics.Observe(metrics.StageDownload, metrics.OutcomeSkipped)
			case outcomeFailed:
				rs.res.Failed++
				o.Metrics.Observe(metrics.StageDownload, metrics.OutcomeFailed)
			}
			if len(result) != 1 || result[0].ID != e.ID {
				rs.res.Expanded++
			}
			return nil
		})
	}
	err := g.Wait()

	var merged []types.ReferenceEntry
	for i, part := range out {
		if part == nil {
			part = []types.ReferenceEntry{entries[i]}
		}
		merged = append(merged, part...)
	}
	res := rs.res
	fmt.Fprintf(w, "\nDownload summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		res.Downloaded, res.Skipped, res.Failed, res.Total())
	return merged, res, err
}

func (o *Orchestrator) log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o *Orchestrator) clock() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now().UTC()
}

// downloadEntry resolves, records and, for archives, expands one entry. The
// returned slice is what replaces e in the catalog.
func (o *Orchestrator) downloadEntry(ctx context.Context, rs *runState, e types.ReferenceEntry, w io.Writer) ([]types.ReferenceEntry, outcome, error) {
	url, title := pick(e)
	e.IsScraped = true
	e.UsedDownloadHref = url
	if e.SourceHrefClean == "" {
		e.SourceHrefClean = types.CleanURL(e.SourceHref)
	}

	res, reused, err := o.resolveOnce(ctx, rs, url, title)
	if err != nil {
		if ctx.Err() != nil {
			return nil, outcomeFailed, ctx.Err()
		}
		o.log().Warn("download failed", "id", e.ID, "url", url, "error", err)
		fmt.Fprintf(w, "failed:  %s (%v)\n", url, err)
		if cerr := o.Store.CommitDownload(ctx, e, nil); cerr != nil {
			return nil, outcomeFailed, fmt.Errorf("committing %s: %w", e.ID, cerr)
		}
		return []types.ReferenceEntry{e}, outcomeFailed, nil
	}

	if res.DownloadURL == "" {
		fmt.Fprintf(w, "skipped: %s (no download)\n", url)
		if cerr := o.Store.CommitDownload(ctx, e, nil); cerr != nil {
			return nil, outcomeFailed, fmt.Errorf("committing %s: %w", e.ID, cerr)
		}
		return []types.ReferenceEntry{e}, outcomeSkipped, nil
	}

	e.ActualDownloadLink = res.DownloadURL
	e.ActualDownloadLocation = res.SavedPath
	e.DateDownloaded = o.clock()

	ext := strings.TrimPrefix(filepath.Ext(res.SavedPath), ".")
	if types.FileTypeFromExt(ext) == types.FileTypeZIP && !reused {
		children, docs, err := o.expand(e, res.SavedPath)
		if err != nil {
			o.log().Warn("archive expansion failed", "id", e.ID, "path", res.SavedPath, "error", err)
			fmt.Fprintf(w, "failed:  %s (%v)\n", url, err)
			if cerr := o.Store.CommitDownload(ctx, e, nil); cerr != nil {
				return nil, outcomeFailed, fmt.Errorf("committing %s: %w", e.ID, cerr)
			}
			return []types.ReferenceEntry{e}, outcomeFailed, nil
		}
		if err := o.Store.ReplaceEntry(ctx, e.ID, children, docs); err != nil {
			return nil, outcomeFailed, fmt.Errorf("replacing archive entry %s: %w", e.ID, err)
		}
		fmt.Fprintf(w, "expanded: %s (%d files)\n", filepath.Base(res.SavedPath), len(children))
		return children, outcomeDownloaded, nil
	}

	doc, err := o.documentFor(ctx, e, res, reused)
	if err != nil {
		return nil, outcomeFailed, err
	}
	if err := o.Store.CommitDownload(ctx, e, doc); err != nil {
		return nil, outcomeFailed, fmt.Errorf("committing %s: %w", e.ID, err)
	}

	if reused || res.Existed {
		fmt.Fprintf(w, "skipped: %s (already exists)\n", filepath.Base(res.SavedPath))
		return []types.ReferenceEntry{e}, outcomeSkipped, nil
	}
	fmt.Fprintf(w, "downloaded: %s\n", filepath.Base(res.SavedPath))
	return []types.ReferenceEntry{e}, outcomeDownloaded, nil
}

// documentFor builds the document row for a saved file. A reused result or
// a raw file already owned by another entry gets no second row, so its
// content is chunked and embedded once.
func (o *Orchestrator) documentFor(ctx context.Context, e types.ReferenceEntry, res resolve.Result, reused bool) (*types.DownloadedDocument, error) {
	if reused {
		return nil, nil
	}
	existing, ok, err := o.Store.DocumentByRawPath(ctx, res.SavedPath)
	if err != nil {
		return nil, err
	}
	if ok {
		if existing.FileID != e.ID {
			return nil, nil
		}
		return &existing, nil
	}
	return newDocument(e, res.SavedPath, res.DownloadURL), nil
}

func newDocument(e types.ReferenceEntry, path, downloadedFrom string) *types.DownloadedDocument {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	return &types.DownloadedDocument{
		FileID:         e.ID,
		Filename:       filepath.Base(path),
		DateDownloaded: e.DateDownloaded,
		Area:           e.Area,
		Subarea:        e.Subarea,
		Section:        e.Section,
		FileType:       types.FileTypeFromExt(ext),
		RawFilepath:    path,
		DownloadedPath: downloadedFrom,
	}
}
