// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index is the persistent vector index: records are staged in
// memory, flushed to SQLite in one transaction per checkpoint, and searched
// by cosine similarity.
package index

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/legal-ingest/internal/fsutil"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

// ErrDimension marks a vector whose length differs from the index's.
var ErrDimension = errors.New("vector dimension mismatch")

// Exists reports whether an index has been written at path.
func Exists(path string) bool {
	return fsutil.Exists(path)
}

// Index holds every persisted record in memory for search.
type Index struct {
	path string

	mu      sync.RWMutex
	db      *sql.DB
	records map[string]types.VectorRecord
	perFile map[string]int
	staged  []types.VectorRecord
	dim     int
}

// Open loads the index at path. A missing file is not an error: the index
// starts empty and the database is created by the first Upsert.
func Open(path string) (*Index, error) {
	ix := &Index{
		path:    path,
		records: map[string]types.VectorRecord{},
		perFile: map[string]int{},
	}
	if !Exists(path) {
		return ix, nil
	}
	if err := ix.init(); err != nil {
		return nil, err
	}
	if err := ix.load(); err != nil {
		ix.db.Close()
		return nil, err
	}
	return ix, nil
}

func (ix *Index) init() error {
	if err := os.MkdirAll(filepath.Dir(ix.path), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}
	db, err := sql.Open("sqlite3", ix.path+"?_journal_mode=WAL&_busy_timeout=5000&_synchronous=FULL")
	if err != nil {
		return fmt.Errorf("opening index: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS vectors (
		id TEXT PRIMARY KEY,
		file_id TEXT NOT NULL,
		chunk_idx INTEGER NOT NULL,
		text TEXT NOT NULL,
		metadata TEXT NOT NULL,
		vector BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return fmt.Errorf("creating index schema: %w", err)
	}
	ix.db = db
	return nil
}

func (ix *Index) load() error {
	rows, err := ix.db.Query(`SELECT id, file_id, chunk_idx, text, metadata, vector FROM vectors`)
	if err != nil {
		return fmt.Errorf("loading index: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r       types.VectorRecord
			meta    string
			encoded []byte
		)
		if err := rows.Scan(&r.ID, &r.FileID, &r.ChunkIdx, &r.Text, &meta, &encoded); err != nil {
			return fmt.Errorf("scanning vector: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return fmt.Errorf("decoding metadata of %s: %w", r.ID, err)
		}
		r.Vector = decodeVector(encoded)
		ix.dim = len(r.Vector)
		ix.keep(r)
	}
	return rows.Err()
}

// keep adds r to the searchable set. The caller holds mu.
func (ix *Index) keep(r types.VectorRecord) {
	if _, ok := ix.records[r.ID]; !ok {
		ix.perFile[r.FileID]++
	}
	ix.records[r.ID] = r
}

// Upsert stages records for the next Persist. Every vector must have the
// index's dimension; the first record on an empty index sets it.
func (ix *Index) Upsert(records []types.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if ix.db == nil {
		if err := ix.init(); err != nil {
			return err
		}
	}
	dim := ix.dim
	for _, r := range records {
		if dim == 0 {
			dim = len(r.Vector)
		}
		if len(r.Vector) == 0 || len(r.Vector) != dim {
			return fmt.Errorf("%w: record %s has %d, index has %d", ErrDimension, r.ID, len(r.Vector), dim)
		}
	}
	ix.dim = dim
	ix.staged = append(ix.staged, records...)
	return nil
}

// Persist writes staged records in one transaction and makes them
// searchable. On error nothing is written and the records stay staged.
func (ix *Index) Persist(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if len(ix.staged) == 0 {
		return nil
	}
	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning index transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO vectors (id, file_id, chunk_idx, text, metadata, vector)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET file_id = excluded.file_id, chunk_idx = excluded.chunk_idx,
			text = excluded.text, metadata = excluded.metadata, vector = excluded.vector`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing index insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range ix.staged {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encoding metadata of %s: %w", r.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.FileID, r.ChunkIdx, r.Text, string(meta), encodeVector(r.Vector)); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing index: %w", err)
	}

	for _, r := range ix.staged {
		ix.keep(r)
	}
	ix.staged = nil
	return nil
}

// Len returns the number of persisted records.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.records)
}

// FileCount returns the number of persisted records of fileID.
func (ix *Index) FileCount(fileID string) int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.perFile[fileID]
}

// Search returns up to k persisted records ranked by cosine similarity to
// query, best first. Ties are broken by record id.
func (ix *Index) Search(query []float32, k int) ([]types.SearchHit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if k <= 0 || len(ix.records) == 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimension, len(query), ix.dim)
	}

	hits := make([]types.SearchHit, 0, len(ix.records))
	for _, r := range ix.records {
		hits = append(hits, types.SearchHit{Record: r, Score: cosine(query, r.Vector)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Record.ID < hits[j].Record.ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Close releases the database. Staged records that were never persisted
// are dropped.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.db == nil {
		return nil
	}
	err := ix.db.Close()
	ix.db = nil
	return err
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float32 {
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v
}
