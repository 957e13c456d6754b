// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package embed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/legal-ingest/internal/chunk"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

func init() {
	BaseDelay = 1 * time.Millisecond
}

// shuffleProvider returns one vector per text, vector[0] = the text's
// number, in shuffled order. It fails with the queued errors first.
type shuffleProvider struct {
	mu    sync.Mutex
	errs  []error
	calls int
	sizes []int
}

func (p *shuffleProvider) CreateEmbeddings(_ context.Context, texts []string) ([]Embedding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	p.sizes = append(p.sizes, len(texts))
	out := make([]Embedding, len(texts))
	for i, t := range texts {
		var n float32
		fmt.Sscanf(t, "t%f", &n)
		out[i] = Embedding{Index: i, Vector: []float32{n, 1}}
	}
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out, nil
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("t%d", i)
	}
	return out
}

func TestEmbedPreservesOrder(t *testing.T) {
	p := &shuffleProvider{}
	b := &Batcher{Provider: p, BatchSize: 10, Workers: 4}

	in := texts(95)
	vecs, err := b.Embed(context.Background(), in)
	require.NoError(t, err)
	require.Len(t, vecs, len(in))
	for i, v := range vecs {
		assert.Equal(t, float32(i), v[0], "position %d", i)
	}
	assert.Equal(t, 10, p.calls)
	assert.ElementsMatch(t, []int{10, 10, 10, 10, 10, 10, 10, 10, 10, 5}, p.sizes)
}

func TestEmbedRetriesOnlyRateLimits(t *testing.T) {
	t.Run("rate limit then success", func(t *testing.T) {
		p := &shuffleProvider{errs: []error{ErrRateLimited, fmt.Errorf("429: %w", ErrRateLimited)}}
		b := &Batcher{Provider: p, MaxAttempts: 3}
		vecs, err := b.Embed(context.Background(), texts(3))
		require.NoError(t, err)
		assert.Len(t, vecs, 3)
		assert.Equal(t, 3, p.calls)
	})

	t.Run("attempts exhausted", func(t *testing.T) {
		p := &shuffleProvider{errs: []error{ErrRateLimited, ErrRateLimited, ErrRateLimited}}
		b := &Batcher{Provider: p, MaxAttempts: 2}
		_, err := b.Embed(context.Background(), texts(3))
		assert.ErrorIs(t, err, ErrRateLimited)
		assert.Equal(t, 2, p.calls)
	})

	t.Run("other errors propagate immediately", func(t *testing.T) {
		boom := errors.New("invalid input")
		p := &shuffleProvider{errs: []error{boom}}
		b := &Batcher{Provider: p, MaxAttempts: 5}
		_, err := b.Embed(context.Background(), texts(3))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, p.calls)
	})
}

func TestReassembleRejectsBadIndices(t *testing.T) {
	v := []float32{1}
	tests := []struct {
		name string
		res  []Embedding
	}{
		{"out of range", []Embedding{{Index: 0, Vector: v}, {Index: 2, Vector: v}}},
		{"negative", []Embedding{{Index: -1, Vector: v}, {Index: 1, Vector: v}}},
		{"duplicate", []Embedding{{Index: 0, Vector: v}, {Index: 0, Vector: v}}},
		{"missing", []Embedding{{Index: 0, Vector: v}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reassemble(tt.res, 2)
			assert.Error(t, err)
		})
	}
}

func TestOpenAIProvider(t *testing.T) {
	var status int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if status != 0 {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"error":{"message":"slow down","type":"requests"}}`)
			return
		}
		fmt.Fprint(w, `{"object":"list","model":"m","data":[
			{"object":"embedding","index":1,"embedding":[0.5,0.5]},
			{"object":"embedding","index":0,"embedding":[1,0]}]}`)
	}))
	defer srv.Close()

	p := NewOpenAIProvider("key", srv.URL, "text-embedding-3-large")
	res, err := p.CreateEmbeddings(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	out, err := reassemble(res, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, out[0])
	assert.Equal(t, []float32{0.5, 0.5}, out[1])

	status = http.StatusTooManyRequests
	_, err = p.CreateEmbeddings(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrRateLimited)

	status = http.StatusBadRequest
	_, err = p.CreateEmbeddings(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRateLimited)
}

// memSink records what the batch hands over.
type memSink struct {
	durable map[string]int
	added   map[string][]types.VectorRecord
}

func (s *memSink) Has(fileID string, n int) bool { return s.durable[fileID] >= n }

func (s *memSink) Add(_ context.Context, fileID string, records []types.VectorRecord) error {
	s.added[fileID] = records
	return nil
}

type docList []types.DownloadedDocument

func (d docList) Documents(context.Context) ([]types.DownloadedDocument, error) { return d, nil }

func TestBatchRun(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, n int) string {
		chunks := make([]types.Chunk, n)
		for i := range chunks {
			chunks[i] = types.Chunk{Index: i, Content: fmt.Sprintf("t%d", i), Metadata: types.ChunkMetadata{ChunkIdx: i}}
		}
		p, err := chunk.WriteArtifacts(dir, name, chunks)
		require.NoError(t, err)
		return p
	}

	docs := docList{
		{FileID: "a", Filename: "A.pdf", FileChunksPath: write("A", 12)},
		{FileID: "done", Filename: "B.pdf", FileChunksPath: write("B", 2), InVectorDB: true},
		{FileID: "resume", Filename: "C.pdf", FileChunksPath: write("C", 2)},
		{FileID: "broken", Filename: "D.pdf", FileChunksPath: filepath.Join(dir, "missing.txt")},
		{FileID: "unchunked", Filename: "E.pdf"},
	}
	sink := &memSink{durable: map[string]int{"resume": 2}, added: map[string][]types.VectorRecord{}}
	p := &shuffleProvider{}
	b := &Batch{Batcher: &Batcher{Provider: p, BatchSize: 5, Workers: 2}, Store: docs, Sink: sink}

	var buf bytes.Buffer
	res, err := b.Run(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Embedded: 1, Resumed: 1, Failed: 1}, res)
	assert.Equal(t, 3, p.calls)

	recs := sink.added["a"]
	require.Len(t, recs, 12)
	for i, r := range recs {
		assert.Equal(t, fmt.Sprintf("a:%d", i), r.ID)
		assert.Equal(t, float32(i), r.Vector[0])
	}
	assert.Contains(t, sink.added, "resume")
	assert.Nil(t, sink.added["resume"])
	assert.NotContains(t, sink.added, "done")
	assert.Contains(t, buf.String(), "Embed summary: 1 embedded, 1 resumed, 1 failed (total: 3)")
}
