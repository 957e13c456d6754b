// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/legal-ingest/internal/httputil"
	"github.com/pdiddy/legal-ingest/internal/resolve"
	"github.com/pdiddy/legal-ingest/internal/state"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

func init() {
	httputil.RetryBaseDelay = 1 * time.Millisecond
}

// fakeResolver answers from a map of URL to result and counts calls.
type fakeResolver struct {
	mu      sync.Mutex
	results map[string]resolve.Result
	errs    map[string]error
	calls   map[string]int
}

func newFakeResolver() *fakeResolver {
	return &fakeResolver{
		results: map[string]resolve.Result{},
		errs:    map[string]error{},
		calls:   map[string]int{},
	}
}

func (f *fakeResolver) Resolve(_ context.Context, url, _, _ string) (resolve.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[url]++
	if err, ok := f.errs[url]; ok {
		return resolve.Result{}, err
	}
	return f.results[url], nil
}

func openStore(t *testing.T) *state.Store {
	t.Helper()
	s, err := state.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func ref(id, source, details string) types.ReferenceEntry {
	return types.ReferenceEntry{
		ID: id,
		CatalogRow: types.CatalogRow{
			Area:        "Davki",
			Subarea:     "DDV",
			SourceHref:  source,
			Section:     "Zakonodaja",
			DetailsName: "Zakon " + id,
			DetailsHref: details,
		},
	}
}

func TestPick(t *testing.T) {
	tests := []struct {
		name      string
		entry     types.ReferenceEntry
		wantURL   string
		wantTitle string
	}{
		{"details file wins", ref("a", "https://x/page", "https://x/a.pdf#p1"), "https://x/a.pdf", "Zakon a"},
		{"details site wins over primary file", ref("b", "https://x/b.pdf", "https://x/site"), "https://x/site", "Zakon b"},
		{"primary when no details", ref("c", "https://x/c.docx#top", ""), "https://x/c.docx", "DDV"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, title := pick(tt.entry)
			assert.Equal(t, tt.wantURL, url)
			assert.Equal(t, tt.wantTitle, title)
		})
	}
}

func TestDownloadAllOutcomes(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	raw := t.TempDir()

	fr := newFakeResolver()
	fr.results["https://x/a.pdf"] = resolve.Result{DownloadURL: "https://x/a.pdf", SavedPath: filepath.Join(raw, "a.pdf")}
	fr.errs["https://pisrs.si/bad"] = fmt.Errorf("x: %w", resolve.ErrAmbiguousValidity)
	// https://example.com/page resolves to nothing.

	entries := []types.ReferenceEntry{
		ref("a", "https://x/page", "https://x/a.pdf"),
		ref("dup", "https://y/other", "https://x/a.pdf#again"),
		ref("bad", "https://pisrs.si/bad", ""),
		ref("none", "https://example.com/page", ""),
	}
	done := ref("done", "https://x/old.pdf", "")
	done.IsScraped = true
	entries = append(entries, done)

	o := &Orchestrator{Resolver: fr, Store: store, RawDir: raw, Workers: 3}
	var buf bytes.Buffer
	out, res, err := o.DownloadAll(ctx, entries, &buf)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Downloaded)
	assert.Equal(t, 2, res.Skipped, "duplicate URL and empty resolution")
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, fr.calls["https://x/a.pdf"], "identical clean URL resolved once")
	assert.Zero(t, fr.calls["https://x/old.pdf"], "scraped entries are not revisited")

	require.Len(t, out, 5)
	byID := map[string]types.ReferenceEntry{}
	for _, e := range out {
		byID[e.ID] = e
		assert.True(t, e.IsScraped, e.ID)
	}
	assert.Equal(t, filepath.Join(raw, "a.pdf"), byID["a"].ActualDownloadLocation)
	assert.Equal(t, filepath.Join(raw, "a.pdf"), byID["dup"].ActualDownloadLocation)
	assert.Empty(t, byID["bad"].ActualDownloadLocation)
	assert.Empty(t, byID["none"].ActualDownloadLocation)
	assert.Equal(t, "https://pisrs.si/bad", byID["bad"].UsedDownloadHref)

	docs, err := store.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1, "a shared raw file gets one document row")
	assert.Equal(t, types.FileTypePDF, docs[0].FileType)

	persisted, err := store.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, persisted, 4, "every processed entry is committed")

	assert.Contains(t, buf.String(), "failed:  https://pisrs.si/bad")
	assert.Contains(t, buf.String(), "Download summary: 1 downloaded, 2 skipped, 1 failed (total: 4)")
}

func writeZip(t *testing.T, path string, members map[string]string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestDownloadAllExpandsArchive(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	raw := t.TempDir()
	zipPath := filepath.Join(raw, "Obrazci.zip")
	writeZip(t, zipPath, map[string]string{
		"obrazec.pdf":      "%PDF",
		"navodila/b.docx":  "docx",
		"navodila/":        "",
		"readme.xyz":       "?",
		"nested/inner.zip": "PK",
	})

	fr := newFakeResolver()
	fr.results["https://x/obrazci.zip"] = resolve.Result{DownloadURL: "https://x/obrazci.zip", SavedPath: zipPath}

	orig := NewID
	ids := 0
	NewID = func() string { ids++; return fmt.Sprintf("child-%d", ids) }
	t.Cleanup(func() { NewID = orig })

	container := ref("zip", "https://x/obrazci.zip", "")
	require.NoError(t, store.UpsertEntry(ctx, container))

	o := &Orchestrator{Resolver: fr, Store: store, RawDir: raw}
	out, res, err := o.DownloadAll(ctx, []types.ReferenceEntry{container}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Downloaded)
	assert.Equal(t, 1, res.Expanded)

	require.Len(t, out, 2)
	for _, c := range out {
		assert.NotEqual(t, "zip", c.ID)
		assert.Equal(t, "Davki", c.Area)
		assert.True(t, c.IsScraped)
		assert.FileExists(t, c.ActualDownloadLocation)
	}

	_, ok, err := store.Entry(ctx, "zip")
	require.NoError(t, err)
	assert.False(t, ok, "container is removed from the catalog")

	docs, err := store.Documents(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestDownloadAllRejectsZipSlip(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	raw := t.TempDir()
	zipPath := filepath.Join(raw, "evil.zip")
	writeZip(t, zipPath, map[string]string{"../escape.pdf": "%PDF"})

	fr := newFakeResolver()
	fr.results["https://x/evil.zip"] = resolve.Result{DownloadURL: "https://x/evil.zip", SavedPath: zipPath}

	o := &Orchestrator{Resolver: fr, Store: store, RawDir: raw}
	out, res, err := o.DownloadAll(ctx, []types.ReferenceEntry{ref("z", "https://x/evil.zip", "")}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	require.Len(t, out, 1)
	assert.True(t, out[0].IsScraped)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(raw), "escape.pdf"))
}

// failingReplaceStore wraps a real store and fails archive replacement.
type failingReplaceStore struct {
	*state.Store
	err error
}

func (s failingReplaceStore) ReplaceEntry(context.Context, string, []types.ReferenceEntry, []types.DownloadedDocument) error {
	return s.err
}

func TestDownloadAllArchiveCommitFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	raw := t.TempDir()
	zipPath := filepath.Join(raw, "Obrazci.zip")
	writeZip(t, zipPath, map[string]string{"obrazec.pdf": "%PDF"})

	fr := newFakeResolver()
	fr.results["https://x/obrazci.zip"] = resolve.Result{DownloadURL: "https://x/obrazci.zip", SavedPath: zipPath}

	container := ref("zip", "https://x/obrazci.zip", "")
	require.NoError(t, store.UpsertEntry(ctx, container))

	diskFull := errors.New("disk full")
	o := &Orchestrator{Resolver: fr, Store: failingReplaceStore{Store: store, err: diskFull}, RawDir: raw}
	_, res, err := o.DownloadAll(ctx, []types.ReferenceEntry{container}, &bytes.Buffer{})
	require.ErrorIs(t, err, diskFull)
	assert.Equal(t, 0, res.Failed, "state errors are not download failures")

	got, ok, err := store.Entry(ctx, "zip")
	require.NoError(t, err)
	require.True(t, ok, "container stays in the catalog")
	assert.False(t, got.IsScraped, "container is retried on the next run")
}

func TestMemberPath(t *testing.T) {
	dir := "/raw/archive"
	p, err := memberPath(dir, "a/b.pdf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a", "b.pdf"), p)

	for _, bad := range []string{"../x.pdf", "/etc/passwd", "a/../../x.pdf"} {
		_, err := memberPath(dir, bad)
		assert.True(t, errors.Is(err, ErrUnsafeArchivePath), bad)
	}
}

func TestDownloadAllDirectFileOverHTTP(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	ctx := context.Background()
	store := openStore(t)
	raw := t.TempDir()

	client := &httputil.Client{HTTP: srv.Client(), Policy: httputil.RetryPolicy{MaxRetries: 2}}
	reg := resolve.NewRegistry(resolve.DirectFile{Downloader: client}, resolve.Unsupported{})
	o := &Orchestrator{Resolver: reg, Store: store, RawDir: raw}

	entries := []types.ReferenceEntry{ref("a", srv.URL+"/podrocje", srv.URL+"/files/zakon.pdf?v=2")}
	out, res, err := o.DownloadAll(ctx, entries, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Downloaded)
	assert.Equal(t, filepath.Join(raw, "Zakon_a.pdf"), out[0].ActualDownloadLocation)
	assert.FileExists(t, out[0].ActualDownloadLocation)

	// A second run over the returned catalog does no work.
	_, res, err = o.DownloadAll(ctx, out, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Zero(t, res.Total())
	assert.Equal(t, 1, hits)
}
