// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package state

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/legal-ingest/internal/fsutil"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

const (
	// ReferencesFile is the tabular catalog export.
	ReferencesFile = "references.csv"
	// DocumentsFile is the tabular downloaded-document index export.
	DocumentsFile = "downloaded.csv"
	// SnapshotFile is the YAML export of both tables.
	SnapshotFile = "state.yaml"
)

var referenceHeader = []string{
	"id", "area_name", "area_desc", "reference_name", "reference_href", "reference_href_clean",
	"details_section", "details_section_text", "details_href_name", "details_href", "is_scraped",
	"used_download_href", "actual_download_link", "actual_download_location", "date_downloaded",
}

var documentHeader = []string{
	"file_id", "filename", "date_downloaded", "area", "subarea", "section", "file_type",
	"raw_filepath", "processed_filepath", "downloaded_path", "file_summary", "file_chunks_path", "in_vector_db",
}

func referenceRecord(e types.ReferenceEntry) []string {
	return []string{
		e.ID, e.Area, e.AreaDesc, e.Subarea, e.SourceHref, e.SourceHrefClean,
		e.Section, e.SectionText, e.DetailsName, e.DetailsHref, strconv.FormatBool(e.IsScraped),
		e.UsedDownloadHref, e.ActualDownloadLink, e.ActualDownloadLocation, formatTime(e.DateDownloaded),
	}
}

func documentRecord(d types.DownloadedDocument) []string {
	return []string{
		d.FileID, d.Filename, formatTime(d.DateDownloaded), d.Area, d.Subarea, d.Section, string(d.FileType),
		d.RawFilepath, d.ProcessedFilepath, d.DownloadedPath, d.FileSummary, d.FileChunksPath,
		strconv.FormatBool(d.InVectorDB),
	}
}

func writeCSV(path string, header []string, records [][]string) error {
	return fsutil.WriteAtomic(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		if err := cw.WriteAll(records); err != nil {
			return err
		}
		return cw.Error()
	})
}

// ExportCSV writes references.csv and downloaded.csv into dir. Each file is
// replaced atomically.
func (s *Store) ExportCSV(ctx context.Context, dir string) error {
	entries, err := s.Entries(ctx)
	if err != nil {
		return err
	}
	refs := make([][]string, 0, len(entries))
	for _, e := range entries {
		refs = append(refs, referenceRecord(e))
	}
	if err := writeCSV(filepath.Join(dir, ReferencesFile), referenceHeader, refs); err != nil {
		return fmt.Errorf("exporting references: %w", err)
	}

	docs, err := s.Documents(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, documentRecord(d))
	}
	if err := writeCSV(filepath.Join(dir, DocumentsFile), documentHeader, rows); err != nil {
		return fmt.Errorf("exporting documents: %w", err)
	}
	return nil
}

// ReadReferencesCSV reads a catalog export. Columns are matched by header
// name, so files written before a column existed load with that field
// empty. Only the id column is mandatory.
func ReadReferencesCSV(path string) ([]types.ReferenceEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header of %s: %w", path, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	if _, ok := col["id"]; !ok {
		return nil, fmt.Errorf("%s has no id column", path)
	}

	var out []types.ReferenceEntry
	for line := 2; ; line++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s line %d: %w", path, line, err)
		}
		get := func(name string) string {
			i, ok := col[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return rec[i]
		}
		scraped, _ := strconv.ParseBool(get("is_scraped"))
		out = append(out, types.ReferenceEntry{
			ID: get("id"),
			CatalogRow: types.CatalogRow{
				Area:        get("area_name"),
				AreaDesc:    get("area_desc"),
				Subarea:     get("reference_name"),
				SourceHref:  get("reference_href"),
				Section:     get("details_section"),
				SectionText: get("details_section_text"),
				DetailsName: get("details_href_name"),
				DetailsHref: get("details_href"),
			},
			SourceHrefClean:        get("reference_href_clean"),
			IsScraped:              scraped,
			UsedDownloadHref:       get("used_download_href"),
			ActualDownloadLink:     get("actual_download_link"),
			ActualDownloadLocation: get("actual_download_location"),
			DateDownloaded:         parseTime(get("date_downloaded")),
		})
	}
	return out, nil
}

// ImportCSV seeds the catalog from a references.csv written by ExportCSV.
// Entries whose id is already stored are left untouched; the rest are
// inserted in one transaction. It returns how many entries were added.
func (s *Store) ImportCSV(ctx context.Context, path string) (int, error) {
	read, err := ReadReferencesCSV(path)
	if err != nil {
		return 0, err
	}
	stored, err := s.Entries(ctx)
	if err != nil {
		return 0, err
	}
	known := make(map[string]bool, len(stored))
	for _, e := range stored {
		known[e.ID] = true
	}

	var add []types.ReferenceEntry
	for _, e := range read {
		if e.ID == "" || known[e.ID] {
			continue
		}
		if e.SourceHrefClean == "" {
			e.SourceHrefClean = types.CleanURL(e.SourceHref)
		}
		known[e.ID] = true
		add = append(add, e)
	}
	if err := s.UpsertEntries(ctx, add); err != nil {
		return 0, fmt.Errorf("importing %s: %w", path, err)
	}
	return len(add), nil
}

// Snapshot is the YAML export of the whole state.
type Snapshot struct {
	References []types.ReferenceEntry     `yaml:"references"`
	Documents  []types.DownloadedDocument `yaml:"documents"`
}

// ExportYAML writes both tables to a single YAML file, replaced atomically.
func (s *Store) ExportYAML(ctx context.Context, path string) error {
	entries, err := s.Entries(ctx)
	if err != nil {
		return err
	}
	docs, err := s.Documents(ctx)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(Snapshot{References: entries, Documents: docs})
	if err != nil {
		return fmt.Errorf("marshaling snapshot: %w", err)
	}
	return fsutil.WriteFileAtomic(path, data)
}
