// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package chunk splits normalized document text into overlapping
// token-bounded windows and persists them with their provenance metadata.
package chunk

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pdiddy/legal-ingest/pkg/types"
)

// ErrInvalidWindow marks a window whose stride would not be positive.
var ErrInvalidWindow = errors.New("invalid chunk window")

// Chunker slides a window of MaxTokens over a token sequence with stride
// MaxTokens-Overlap.
type Chunker struct {
	tok       Tokenizer
	maxTokens int
	overlap   int
	overview  bool
}

// New validates the window and returns a Chunker.
func New(tok Tokenizer, cfg types.ChunkConfig) (*Chunker, error) {
	if cfg.MaxTokens <= 0 {
		return nil, fmt.Errorf("%w: max tokens %d", ErrInvalidWindow, cfg.MaxTokens)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.MaxTokens {
		return nil, fmt.Errorf("%w: overlap %d with max tokens %d", ErrInvalidWindow, cfg.Overlap, cfg.MaxTokens)
	}
	return &Chunker{tok: tok, maxTokens: cfg.MaxTokens, overlap: cfg.Overlap, overview: cfg.Overview}, nil
}

// windowCount is the number of windows over n tokens: one for any
// non-empty text up to the first full window, then one per stride.
func windowCount(n, maxTokens, overlap int) int {
	if n <= 0 {
		return 0
	}
	if n <= maxTokens {
		return 1
	}
	stride := maxTokens - overlap
	return 1 + (n-maxTokens+stride-1)/stride
}

// Split returns the text of each window in order. The last window may be
// shorter than MaxTokens. Empty text yields no chunks.
func (c *Chunker) Split(text string) ([]string, error) {
	chunks, _ := c.split(text)
	return chunks, nil
}

// split also returns the token count of text.
func (c *Chunker) split(text string) ([]string, int) {
	tokens := c.tok.Encode(text)
	n := len(tokens)
	stride := c.maxTokens - c.overlap

	chunks := make([]string, 0, windowCount(n, c.maxTokens, c.overlap))
	for start := 0; start < n; start += stride {
		end := min(start+c.maxTokens, n)
		chunks = append(chunks, c.tok.Decode(tokens[start:end]))
		if end == n {
			break
		}
	}
	return chunks, n
}

// Chunks splits text and attaches meta to every window. When the overview
// chunk is enabled it is appended last with index len(content chunks). The
// second return value is the token count of text.
func (c *Chunker) Chunks(text string, meta types.ChunkMetadata) ([]types.Chunk, int) {
	parts, n := c.split(text)
	out := make([]types.Chunk, 0, len(parts)+1)
	for i, p := range parts {
		m := meta
		m.ChunkIdx = i
		m.Overview = false
		out = append(out, types.Chunk{Index: i, Content: p, Metadata: m})
	}
	if c.overview && len(parts) > 0 {
		m := meta
		m.ChunkIdx = len(parts)
		m.Overview = true
		out = append(out, types.Chunk{Index: len(parts), Content: Overview(meta), Metadata: m})
	}
	return out, n
}

// Overview describes a document's place in the catalog in one paragraph.
func Overview(meta types.ChunkMetadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dokument %q", meta.DetailsHrefName)
	if meta.AreaName != "" {
		fmt.Fprintf(&sb, " spada na davčno področje %s", meta.AreaName)
	}
	if meta.ReferenceName != "" {
		fmt.Fprintf(&sb, ", podpodročje %s", meta.ReferenceName)
	}
	if meta.DetailsSection != "" {
		fmt.Fprintf(&sb, ", v razdelek %s", meta.DetailsSection)
	}
	sb.WriteString(".")
	if meta.SourceLink != "" {
		fmt.Fprintf(&sb, " Vir: %s.", meta.SourceLink)
	}
	return sb.String()
}
