// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package catalog discovers reference documents on the source site and
// reconciles them with the persisted catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pdiddy/legal-ingest/internal/state"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

// ErrMalformedCatalog marks a scraped row missing a required column.
var ErrMalformedCatalog = errors.New("malformed catalog")

// NewID returns a fresh entry identifier. Tests replace it for determinism.
var NewID = func() string { return uuid.NewString() }

// DiffResult counts the outcome of a diff.
type DiffResult struct {
	New      int
	Retained int
}

// Total returns the number of entries in the union.
func (r DiffResult) Total() int {
	return r.New + r.Retained
}

func validateRow(i int, r types.CatalogRow) error {
	missing := ""
	switch {
	case r.Area == "":
		missing = "area_name"
	case r.Subarea == "":
		missing = "reference_name"
	case r.SourceHref == "":
		missing = "reference_href"
	}
	if missing != "" {
		return fmt.Errorf("%w: row %d has no %s", ErrMalformedCatalog, i, missing)
	}
	return nil
}

// linkPair identifies a row by its cleaned primary and details links.
type linkPair struct {
	source, details string
}

// Diff reconciles freshly scraped rows with the backup catalog.
//
// Without a backup every row becomes a new entry. With a backup a row is new
// only when neither its primary link nor its details link appears in the
// backup's corresponding column; empty details links never match. Backup
// entries are returned unchanged and first, followed by the new entries in
// scrape order. Fresh rows sharing both links, fragments aside, get a
// single id; the first row's columns are kept.
//
// A row missing a required column aborts the diff with ErrMalformedCatalog.
func Diff(fresh []types.CatalogRow, backup []types.ReferenceEntry) ([]types.ReferenceEntry, DiffResult, error) {
	for i, r := range fresh {
		if err := validateRow(i, r); err != nil {
			return nil, DiffResult{}, err
		}
	}

	knownSource := make(map[string]bool, len(backup))
	knownDetails := make(map[string]bool, len(backup))
	for _, e := range backup {
		knownSource[e.SourceHref] = true
		if e.DetailsHref != "" {
			knownDetails[e.DetailsHref] = true
		}
	}

	union := make([]types.ReferenceEntry, 0, len(backup)+len(fresh))
	union = append(union, backup...)
	result := DiffResult{Retained: len(backup)}

	seen := make(map[linkPair]bool, len(fresh))
	for _, r := range fresh {
		if knownSource[r.SourceHref] || (r.DetailsHref != "" && knownDetails[r.DetailsHref]) {
			continue
		}
		key := linkPair{types.CleanURL(r.SourceHref), types.CleanURL(r.DetailsHref)}
		if seen[key] {
			continue
		}
		seen[key] = true
		union = append(union, types.ReferenceEntry{
			ID:              NewID(),
			CatalogRow:      r,
			SourceHrefClean: types.CleanURL(r.SourceHref),
			IsScraped:       false,
		})
		result.New++
	}
	return union, result, nil
}

// Differ applies diffs against the persisted catalog.
type Differ struct {
	Store     *state.Store
	ExportDir string
	Logger    *slog.Logger
}

// Apply diffs fresh against the persisted catalog and stores the union.
// New entries are written in one transaction, then the tabular export is
// replaced atomically. On any error the persisted catalog is unchanged.
func (d *Differ) Apply(ctx context.Context, fresh []types.CatalogRow, w io.Writer) (DiffResult, error) {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	backup, err := d.Store.Entries(ctx)
	if err != nil {
		return DiffResult{}, fmt.Errorf("loading catalog: %w", err)
	}

	union, result, err := Diff(fresh, backup)
	if err != nil {
		return DiffResult{}, err
	}

	added := union[len(backup):]
	if err := d.Store.UpsertEntries(ctx, added); err != nil {
		return DiffResult{}, fmt.Errorf("persisting catalog: %w", err)
	}
	if d.ExportDir != "" {
		if err := d.Store.ExportCSV(ctx, d.ExportDir); err != nil {
			return result, fmt.Errorf("exporting catalog: %w", err)
		}
	}

	for _, e := range added {
		fmt.Fprintf(w, "catalogued: %s (%s)\n", e.Title(), e.SourceHref)
	}
	log.Info("catalog diff applied", "new", result.New, "retained", result.Retained)
	fmt.Fprintf(w, "\nCatalog summary: %d new, %d retained (total: %d)\n", result.New, result.Retained, result.Total())
	return result, nil
}
