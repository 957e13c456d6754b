// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package retrieve builds the context block a question-answering client
// sends to its model: the nearest chunks to a query, formatted with their
// provenance and cut to a token budget.
package retrieve

import (
	"context"
	"fmt"
	"strings"

	"github.com/pdiddy/legal-ingest/internal/chunk"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

// Header opens every non-empty context block.
const Header = "Here is some relevant context extracted from the law: \n\n"

// Defaults for the retrieve command.
const (
	DefaultK         = 10
	DefaultMaxTokens = 4096
)

// Embedder embeds the query; *embed.Batcher satisfies it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher ranks indexed records; *index.Index satisfies it.
type Searcher interface {
	Search(query []float32, k int) ([]types.SearchHit, error)
}

// Retriever answers context queries against the vector index.
type Retriever struct {
	Embedder  Embedder
	Index     Searcher
	Tokenizer chunk.Tokenizer
}

// FormatHit renders one hit as it appears in the context block. The source
// line names the document title followed by its classification; without a
// title only the classification is shown.
func FormatHit(h types.SearchHit) string {
	m := h.Record.Metadata
	source := fmt.Sprintf("%s / %s / %s", m.AreaName, m.ReferenceName, m.DetailsSection)
	if m.DetailsHrefName != "" {
		source = fmt.Sprintf("%s (%s)", m.DetailsHrefName, source)
	}
	return fmt.Sprintf("Source: %s\nLink: %s\nText: %s\n\n", source, m.SourceLink, h.Record.Text)
}

// Retrieve returns the context for query from the k nearest chunks. Hits
// are added best first while the whole block stays within maxTokens; a hit
// that would overflow is left out and later, shorter hits may still fit.
// When the header alone exceeds the budget the result is empty.
func (r *Retriever) Retrieve(ctx context.Context, query string, k, maxTokens int) (string, error) {
	vecs, err := r.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return "", fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return "", fmt.Errorf("embedding query: got %d vectors", len(vecs))
	}
	hits, err := r.Index.Search(vecs[0], k)
	if err != nil {
		return "", fmt.Errorf("searching index: %w", err)
	}
	return Build(r.Tokenizer, hits, maxTokens), nil
}

// Build assembles the context block from ranked hits within maxTokens.
func Build(tok chunk.Tokenizer, hits []types.SearchHit, maxTokens int) string {
	if len(tok.Encode(Header)) > maxTokens {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(Header)
	for _, h := range hits {
		candidate := sb.String() + FormatHit(h)
		if len(tok.Encode(candidate)) > maxTokens {
			continue
		}
		sb.Reset()
		sb.WriteString(candidate)
	}
	return sb.String()
}
