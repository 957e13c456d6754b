// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package state persists the reference catalog and the downloaded-document
// index in a keyed SQLite store. Every write is an upsert inside a
// transaction, so a crash never leaves a half-written record and a reader
// never observes a partial catalog.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/legal-ingest/pkg/types"
)

const dbFile = "state.db"

// Path returns the state database location inside metadataDir.
func Path(metadataDir string) string {
	return filepath.Join(metadataDir, dbFile)
}

// Store manages the state SQLite database.
type Store struct {
	db *sql.DB

	// mu serializes writers; SQLite allows one writer at a time and the
	// download workers commit concurrently.
	mu sync.Mutex
}

// Open opens or creates the state database at metadataDir/state.db and
// creates the schema if it does not exist.
func Open(metadataDir string) (*Store, error) {
	if err := os.MkdirAll(metadataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating metadata directory: %w", err)
	}

	db, err := sql.Open("sqlite3", Path(metadataDir)+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=FULL")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS refs (
			id TEXT PRIMARY KEY,
			area_name TEXT NOT NULL,
			area_desc TEXT,
			reference_name TEXT NOT NULL,
			reference_href TEXT NOT NULL,
			reference_href_clean TEXT,
			details_section TEXT,
			details_section_text TEXT,
			details_href_name TEXT,
			details_href TEXT,
			is_scraped INTEGER NOT NULL DEFAULT 0,
			used_download_href TEXT,
			actual_download_link TEXT,
			actual_download_location TEXT,
			date_downloaded TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_refs_href ON refs(reference_href)`,
		`CREATE INDEX IF NOT EXISTS idx_refs_details ON refs(details_href)`,
		`CREATE TABLE IF NOT EXISTS documents (
			file_id TEXT PRIMARY KEY,
			filename TEXT NOT NULL,
			date_downloaded TEXT,
			area TEXT,
			subarea TEXT,
			section TEXT,
			file_type TEXT NOT NULL,
			raw_filepath TEXT NOT NULL,
			processed_filepath TEXT,
			downloaded_path TEXT,
			file_summary TEXT,
			file_chunks_path TEXT,
			in_vector_db INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_raw ON documents(raw_filepath)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HasCatalog reports whether any reference entry has been persisted.
func (s *Store) HasCatalog(ctx context.Context) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM refs`).Scan(&n); err != nil {
		return false, fmt.Errorf("counting references: %w", err)
	}
	return n > 0, nil
}

const refColumns = `id, area_name, area_desc, reference_name, reference_href, reference_href_clean,
	details_section, details_section_text, details_href_name, details_href, is_scraped,
	used_download_href, actual_download_link, actual_download_location, date_downloaded`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (types.ReferenceEntry, error) {
	var (
		e                                     types.ReferenceEntry
		areaDesc, clean, section, sectionText sql.NullString
		detailsName, detailsHref, used, link  sql.NullString
		location, date                        sql.NullString
		scraped                               int
	)
	err := row.Scan(&e.ID, &e.Area, &areaDesc, &e.Subarea, &e.SourceHref, &clean,
		&section, &sectionText, &detailsName, &detailsHref, &scraped,
		&used, &link, &location, &date)
	if err != nil {
		return e, err
	}
	e.AreaDesc = areaDesc.String
	e.SourceHrefClean = clean.String
	e.Section = section.String
	e.SectionText = sectionText.String
	e.DetailsName = detailsName.String
	e.DetailsHref = detailsHref.String
	e.IsScraped = scraped != 0
	e.UsedDownloadHref = used.String
	e.ActualDownloadLink = link.String
	e.ActualDownloadLocation = location.String
	e.DateDownloaded = parseTime(date.String)
	return e, nil
}

// Entries returns every reference entry in catalogue order.
func (s *Store) Entries(ctx context.Context) ([]types.ReferenceEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+refColumns+` FROM refs ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying references: %w", err)
	}
	defer rows.Close()

	var out []types.ReferenceEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning reference: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Entry returns the reference entry with the given id.
func (s *Store) Entry(ctx context.Context, id string) (types.ReferenceEntry, bool, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx, `SELECT `+refColumns+` FROM refs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.ReferenceEntry{}, false, nil
	}
	if err != nil {
		return types.ReferenceEntry{}, false, fmt.Errorf("querying reference %s: %w", id, err)
	}
	return e, true, nil
}

const upsertEntrySQL = `INSERT INTO refs (` + refColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		area_name = excluded.area_name,
		area_desc = excluded.area_desc,
		reference_name = excluded.reference_name,
		reference_href = excluded.reference_href,
		reference_href_clean = excluded.reference_href_clean,
		details_section = excluded.details_section,
		details_section_text = excluded.details_section_text,
		details_href_name = excluded.details_href_name,
		details_href = excluded.details_href,
		is_scraped = excluded.is_scraped,
		used_download_href = excluded.used_download_href,
		actual_download_link = excluded.actual_download_link,
		actual_download_location = excluded.actual_download_location,
		date_downloaded = excluded.date_downloaded`

func upsertEntry(ctx context.Context, tx *sql.Tx, e types.ReferenceEntry) error {
	if e.ID == "" {
		return fmt.Errorf("reference entry has no id")
	}
	scraped := 0
	if e.IsScraped {
		scraped = 1
	}
	_, err := tx.ExecContext(ctx, upsertEntrySQL,
		e.ID, e.Area, e.AreaDesc, e.Subarea, e.SourceHref, e.SourceHrefClean,
		e.Section, e.SectionText, e.DetailsName, e.DetailsHref, scraped,
		e.UsedDownloadHref, e.ActualDownloadLink, e.ActualDownloadLocation, formatTime(e.DateDownloaded))
	if err != nil {
		return fmt.Errorf("upserting reference %s: %w", e.ID, err)
	}
	return nil
}

// inTx runs fn inside a serialized write transaction.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// UpsertEntries writes all entries in one transaction: either every entry
// is stored or none is.
func (s *Store) UpsertEntries(ctx context.Context, entries []types.ReferenceEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, e := range entries {
			if err := upsertEntry(ctx, tx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpsertEntry commits a single entry.
func (s *Store) UpsertEntry(ctx context.Context, e types.ReferenceEntry) error {
	return s.UpsertEntries(ctx, []types.ReferenceEntry{e})
}

// ReplaceEntry removes the container entry and inserts its children and
// their document rows in one transaction. Any document row recorded for the
// container is removed too.
func (s *Store) ReplaceEntry(ctx context.Context, containerID string, children []types.ReferenceEntry, docs []types.DownloadedDocument) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM refs WHERE id = ?`, containerID); err != nil {
			return fmt.Errorf("deleting container %s: %w", containerID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE file_id = ?`, containerID); err != nil {
			return fmt.Errorf("deleting container document %s: %w", containerID, err)
		}
		for _, c := range children {
			if err := upsertEntry(ctx, tx, c); err != nil {
				return err
			}
		}
		for _, d := range docs {
			if err := upsertDocument(ctx, tx, d); err != nil {
				return err
			}
		}
		return nil
	})
}

const docColumns = `file_id, filename, date_downloaded, area, subarea, section, file_type,
	raw_filepath, processed_filepath, downloaded_path, file_summary, file_chunks_path, in_vector_db`

func scanDocument(row scanner) (types.DownloadedDocument, error) {
	var (
		d                                      types.DownloadedDocument
		date, area, subarea, section           sql.NullString
		processed, downloaded, summary, chunks sql.NullString
		fileType                               string
		inDB                                   int
	)
	err := row.Scan(&d.FileID, &d.Filename, &date, &area, &subarea, &section, &fileType,
		&d.RawFilepath, &processed, &downloaded, &summary, &chunks, &inDB)
	if err != nil {
		return d, err
	}
	d.DateDownloaded = parseTime(date.String)
	d.Area = area.String
	d.Subarea = subarea.String
	d.Section = section.String
	d.FileType = types.FileType(fileType)
	d.ProcessedFilepath = processed.String
	d.DownloadedPath = downloaded.String
	d.FileSummary = summary.String
	d.FileChunksPath = chunks.String
	d.InVectorDB = inDB != 0
	return d, nil
}

// Documents returns every downloaded document in insertion order.
func (s *Store) Documents(ctx context.Context) ([]types.DownloadedDocument, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+docColumns+` FROM documents ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var out []types.DownloadedDocument
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Document returns the downloaded document with the given file id.
func (s *Store) Document(ctx context.Context, fileID string) (types.DownloadedDocument, bool, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx, `SELECT `+docColumns+` FROM documents WHERE file_id = ?`, fileID))
	if errors.Is(err, sql.ErrNoRows) {
		return types.DownloadedDocument{}, false, nil
	}
	if err != nil {
		return types.DownloadedDocument{}, false, fmt.Errorf("querying document %s: %w", fileID, err)
	}
	return d, true, nil
}

const upsertDocumentSQL = `INSERT INTO documents (` + docColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(file_id) DO UPDATE SET
		filename = excluded.filename,
		date_downloaded = excluded.date_downloaded,
		area = excluded.area,
		subarea = excluded.subarea,
		section = excluded.section,
		file_type = excluded.file_type,
		raw_filepath = excluded.raw_filepath,
		processed_filepath = excluded.processed_filepath,
		downloaded_path = excluded.downloaded_path,
		file_summary = excluded.file_summary,
		file_chunks_path = excluded.file_chunks_path,
		in_vector_db = excluded.in_vector_db`

func upsertDocument(ctx context.Context, tx *sql.Tx, d types.DownloadedDocument) error {
	if d.FileID == "" {
		return fmt.Errorf("document has no file id")
	}
	inDB := 0
	if d.InVectorDB {
		inDB = 1
	}
	_, err := tx.ExecContext(ctx, upsertDocumentSQL,
		d.FileID, d.Filename, formatTime(d.DateDownloaded), d.Area, d.Subarea, d.Section,
		string(d.FileType), d.RawFilepath, d.ProcessedFilepath, d.DownloadedPath,
		d.FileSummary, d.FileChunksPath, inDB)
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", d.FileID, err)
	}
	return nil
}

// UpsertDocument commits a single document record.
func (s *Store) UpsertDocument(ctx context.Context, d types.DownloadedDocument) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertDocument(ctx, tx, d)
	})
}

// DocumentByRawPath returns the document whose raw file is path.
func (s *Store) DocumentByRawPath(ctx context.Context, path string) (types.DownloadedDocument, bool, error) {
	d, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+docColumns+` FROM documents WHERE raw_filepath = ? ORDER BY rowid LIMIT 1`, path))
	if errors.Is(err, sql.ErrNoRows) {
		return types.DownloadedDocument{}, false, nil
	}
	if err != nil {
		return types.DownloadedDocument{}, false, fmt.Errorf("querying document for %s: %w", path, err)
	}
	return d, true, nil
}

// CommitDownload records the outcome of one download: the updated entry and,
// when doc is non-nil, its document row, in a single transaction.
func (s *Store) CommitDownload(ctx context.Context, e types.ReferenceEntry, doc *types.DownloadedDocument) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := upsertEntry(ctx, tx, e); err != nil {
			return err
		}
		if doc == nil {
			return nil
		}
		return upsertDocument(ctx, tx, *doc)
	})
}

// MarkInVectorDB sets in_vector_db for every listed document in one transaction.
func (s *Store) MarkInVectorDB(ctx context.Context, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(fileIDs)), ",")
		args := make([]any, len(fileIDs))
		for i, id := range fileIDs {
			args[i] = id
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE documents SET in_vector_db = 1 WHERE file_id IN (`+placeholders+`)`, args...); err != nil {
			return fmt.Errorf("marking documents in vector db: %w", err)
		}
		return nil
	})
}
