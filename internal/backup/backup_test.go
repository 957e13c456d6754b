// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package backup

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/legal-ingest/pkg/types"
)

type memBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

type memWriter struct {
	bytes.Buffer
	b    *memBucket
	name string
}

func (w *memWriter) Close() error {
	w.b.mu.Lock()
	defer w.b.mu.Unlock()
	w.b.objects[w.name] = w.Bytes()
	return nil
}

func (b *memBucket) NewWriter(_ context.Context, name string) io.WriteCloser {
	return &memWriter{b: b, name: name}
}

func (b *memBucket) NewReader(_ context.Context, name string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[name]
	if !ok {
		return nil, errors.New("object not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *memBucket) Exists(_ context.Context, name string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[name]
	return ok, nil
}

func (b *memBucket) names() []string {
	var out []string
	for k := range b.objects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestUploadDirAndDownload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "vector_db"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "references.csv"), []byte("id\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "vector_db", "index.db"), []byte("sqlite"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".state.db-123.tmp"), []byte("partial"), 0o644))

	b := &memBucket{objects: map[string][]byte{}}
	u := &Uploader{Bucket: b, Prefix: "legal"}

	n, err := u.UploadDir(ctx, dir, "data")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"legal/data/references.csv", "legal/data/vector_db/index.db"}, b.names())

	ok, err := u.Exists(ctx, "data/references.csv")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = u.Exists(ctx, "data/missing.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	restored := filepath.Join(t.TempDir(), "restore", "index.db")
	require.NoError(t, u.Download(ctx, "data/vector_db/index.db", restored))
	data, err := os.ReadFile(restored)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", string(data))

	assert.Error(t, u.Download(ctx, "data/none", filepath.Join(t.TempDir(), "x")))
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), types.BackupConfig{})
	assert.ErrorIs(t, err, types.ErrConfig)

	_, err = New(context.Background(), types.BackupConfig{Bucket: "b", CredentialsFile: filepath.Join(t.TempDir(), "nope.json")})
	assert.ErrorIs(t, err, types.ErrConfig)
}
