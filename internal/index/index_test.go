// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/legal-ingest/pkg/types"
)

func rec(fileID string, idx int, vec ...float32) types.VectorRecord {
	return types.VectorRecord{
		ID:       fileID + ":" + string(rune('0'+idx)),
		FileID:   fileID,
		ChunkIdx: idx,
		Text:     "chunk " + fileID,
		Metadata: types.ChunkMetadata{ChunkIdx: idx, FileID: fileID, AreaName: "Davki"},
		Vector:   vec,
	}
}

func TestIndexCreatedOnFirstUpsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vector_db", "index.db")
	ix, err := Open(path)
	require.NoError(t, err)
	assert.False(t, Exists(path))
	assert.Equal(t, 0, ix.Len())

	require.NoError(t, ix.Upsert([]types.VectorRecord{rec("a", 0, 1, 0)}))
	assert.True(t, Exists(path))
	require.NoError(t, ix.Close())
}

func TestPersistAndReload(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "index.db")

	ix, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, ix.Upsert([]types.VectorRecord{rec("a", 0, 1, 0), rec("a", 1, 0, 1), rec("b", 0, 1, 1)}))
	assert.Equal(t, 0, ix.Len(), "staged records are not searchable")
	require.NoError(t, ix.Persist(ctx))
	assert.Equal(t, 3, ix.Len())

	// Re-upserting the same ids replaces instead of duplicating.
	require.NoError(t, ix.Upsert([]types.VectorRecord{rec("a", 0, 1, 0)}))
	require.NoError(t, ix.Persist(ctx))
	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, 2, ix.FileCount("a"))
	require.NoError(t, ix.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, 3, reopened.Len())
	assert.Equal(t, 1, reopened.FileCount("b"))

	hits, err := reopened.Search([]float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a:0", hits[0].Record.ID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.Equal(t, "b:0", hits[1].Record.ID)
	assert.Equal(t, "Davki", hits[0].Record.Metadata.AreaName)
}

func TestDimensionMismatch(t *testing.T) {
	ix, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer ix.Close()

	require.NoError(t, ix.Upsert([]types.VectorRecord{rec("a", 0, 1, 0)}))
	err = ix.Upsert([]types.VectorRecord{rec("b", 0, 1, 0, 0)})
	assert.ErrorIs(t, err, ErrDimension)

	require.NoError(t, ix.Persist(context.Background()))
	_, err = ix.Search([]float32{1}, 3)
	assert.ErrorIs(t, err, ErrDimension)
}

type fakeMarker struct {
	marked [][]string
	err    error
}

func (f *fakeMarker) MarkInVectorDB(_ context.Context, ids []string) error {
	if f.err != nil {
		return f.err
	}
	f.marked = append(f.marked, append([]string(nil), ids...))
	return nil
}

func TestUpdaterCadence(t *testing.T) {
	ctx := context.Background()
	ix, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer ix.Close()

	m := &fakeMarker{}
	u := &Updater{Index: ix, Store: m, Cadence: 2}

	require.NoError(t, u.Add(ctx, "a", []types.VectorRecord{rec("a", 0, 1, 0)}))
	assert.Empty(t, m.marked)
	assert.Equal(t, 0, ix.Len())

	require.NoError(t, u.Add(ctx, "b", []types.VectorRecord{rec("b", 0, 0, 1)}))
	assert.Equal(t, [][]string{{"a", "b"}}, m.marked)
	assert.Equal(t, 2, ix.Len())
	assert.True(t, u.Has("a", 1))
	assert.False(t, u.Has("a", 2))

	require.NoError(t, u.Add(ctx, "c", []types.VectorRecord{rec("c", 0, 1, 1)}))
	assert.Equal(t, 1, u.Pending())
	require.NoError(t, u.Close(ctx))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, m.marked)
	assert.Equal(t, 0, u.Pending())
}

func TestUpdaterKeepsPendingWhenMarkFails(t *testing.T) {
	ctx := context.Background()
	ix, err := Open(filepath.Join(t.TempDir(), "index.db"))
	require.NoError(t, err)
	defer ix.Close()

	m := &fakeMarker{err: errors.New("locked")}
	u := &Updater{Index: ix, Store: m, Cadence: 1}
	err = u.Add(ctx, "a", []types.VectorRecord{rec("a", 0, 1, 0)})
	require.Error(t, err)
	assert.Equal(t, 1, u.Pending())

	// The records are durable, so a resumed run can mark without re-embedding.
	assert.True(t, u.Has("a", 1))
}
