// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/legal-ingest/internal/state"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

func row(src, details string) types.CatalogRow {
	return types.CatalogRow{Area: "Davki", Subarea: "DDV", SourceHref: src, DetailsHref: details}
}

func TestDiffWithoutBackup(t *testing.T) {
	fresh := []types.CatalogRow{
		row("https://www.fu.gov.si/ddv", "https://www.fu.gov.si/ddv/a.pdf"),
		row("https://www.fu.gov.si/ddv", "https://www.fu.gov.si/ddv/b.pdf"),
		row("https://www.fu.gov.si/ddv", "https://www.fu.gov.si/ddv/b.pdf"),
	}
	got, res, err := Diff(fresh, nil)
	require.NoError(t, err)
	assert.Equal(t, DiffResult{New: 2}, res)
	require.Len(t, got, 2)
	assert.NotEqual(t, got[0].ID, got[1].ID)
	for _, e := range got {
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.IsScraped)
	}
}

func TestDiffDedupesByLinks(t *testing.T) {
	first := row("https://www.fu.gov.si/ddv", "https://www.fu.gov.si/ddv/a.pdf")
	first.Section = "Zakonodaja"
	again := row("https://www.fu.gov.si/ddv#top", "https://www.fu.gov.si/ddv/a.pdf")
	again.Section = "Navodila in Pojasnila"
	again.DetailsName = "Isti zakon"

	got, res, err := Diff([]types.CatalogRow{first, again}, nil)
	require.NoError(t, err)
	assert.Equal(t, DiffResult{New: 1}, res)
	require.Len(t, got, 1)
	assert.Equal(t, "Zakonodaja", got[0].Section, "first occurrence wins")

	// A later run treats the same link as known, so both runs agree.
	_, res, err = Diff([]types.CatalogRow{again}, got)
	require.NoError(t, err)
	assert.Equal(t, 0, res.New)
}

func TestDiffWithBackup(t *testing.T) {
	backup := []types.ReferenceEntry{
		{ID: "old-1", CatalogRow: row("https://a/1", "https://a/1/x.pdf"), IsScraped: true},
		{ID: "old-2", CatalogRow: row("https://a/2", "")},
	}
	fresh := []types.CatalogRow{
		row("https://a/1", "https://a/1/y.pdf"),  // primary known
		row("https://a/3", "https://a/1/x.pdf"),  // details known
		row("https://a/4", ""),                   // new, empty details never matches
		row("https://a/5", "https://a/5/z.docx"), // new
	}

	got, res, err := Diff(fresh, backup)
	require.NoError(t, err)
	assert.Equal(t, DiffResult{New: 2, Retained: 2}, res)
	require.Len(t, got, 4)
	assert.Equal(t, backup[0], got[0], "backup rows are retained unchanged")
	assert.Equal(t, backup[1], got[1])
	assert.Equal(t, "https://a/4", got[2].SourceHref)
	assert.Equal(t, "https://a/5", got[3].SourceHref)
}

func TestDiffMalformedRow(t *testing.T) {
	fresh := []types.CatalogRow{row("https://a/1", ""), {Area: "Davki", SourceHref: "https://a/2"}}
	_, _, err := Diff(fresh, nil)
	assert.True(t, errors.Is(err, ErrMalformedCatalog))
}

// TestDiffProperties checks on random inputs that the union contains the
// backup and that exactly the rows with unseen links receive new ids.
func TestDiffProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	link := func() string { return fmt.Sprintf("https://s/%d", rng.Intn(12)) }

	for iter := 0; iter < 50; iter++ {
		var backup []types.ReferenceEntry
		for i := 0; i < rng.Intn(6); i++ {
			backup = append(backup, types.ReferenceEntry{ID: fmt.Sprintf("b%d", i), CatalogRow: row(link(), link())})
		}
		var fresh []types.CatalogRow
		for i := 0; i < rng.Intn(8); i++ {
			fresh = append(fresh, row(link(), link()))
		}

		got, res, err := Diff(fresh, backup)
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(got), len(backup))
		assert.Equal(t, backup, got[:len(backup)])

		src, det := map[string]bool{}, map[string]bool{}
		for _, b := range backup {
			src[b.SourceHref] = true
			det[b.DetailsHref] = true
		}
		want := map[linkPair]bool{}
		for _, r := range fresh {
			if !src[r.SourceHref] && !det[r.DetailsHref] {
				want[linkPair{r.SourceHref, r.DetailsHref}] = true
			}
		}
		assert.Equal(t, len(want), res.New)
		for _, e := range got[len(backup):] {
			key := linkPair{e.SourceHref, e.DetailsHref}
			assert.True(t, want[key], "unexpected new row %+v", e.CatalogRow)
		}
	}
}

func TestDifferApply(t *testing.T) {
	dir := t.TempDir()
	store, err := state.Open(dir)
	require.NoError(t, err)
	defer store.Close()

	d := &Differ{Store: store, ExportDir: dir}
	ctx := context.Background()
	var buf bytes.Buffer

	fresh := []types.CatalogRow{row("https://a/1", "https://a/1/x.pdf")}
	res, err := d.Apply(ctx, fresh, &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, res.New)
	assert.Contains(t, buf.String(), "Catalog summary: 1 new, 0 retained")

	entries, err := store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	firstID := entries[0].ID

	// Re-running discovery must not mint a second id for the same link.
	res, err = d.Apply(ctx, fresh, &buf)
	require.NoError(t, err)
	assert.Equal(t, DiffResult{Retained: 1}, res)
	entries, err = store.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, firstID, entries[0].ID)

	_, err = os.Stat(filepath.Join(dir, state.ReferencesFile))
	assert.NoError(t, err)

	// A malformed scrape leaves the catalog untouched.
	_, err = d.Apply(ctx, []types.CatalogRow{{SourceHref: "https://a/9"}}, &buf)
	assert.ErrorIs(t, err, ErrMalformedCatalog)
	entries, err = store.Entries(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
