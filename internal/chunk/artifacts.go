// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chunk

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/legal-ingest/internal/fsutil"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

const (
	textExt     = ".txt"
	metadataExt = ".metadata"
)

// ArtifactPaths returns the chunk-text and metadata paths for name in dir.
func ArtifactPaths(dir, name string) (text, metadata string) {
	base := filepath.Join(dir, name)
	return base + textExt, base + metadataExt
}

// metadataPath derives the metadata artifact from a chunk-text path.
func metadataPath(textPath string) string {
	return strings.TrimSuffix(textPath, textExt) + metadataExt
}

// WriteArtifacts stores chunks as two aligned JSON arrays: chunk strings in
// <name>.txt and their metadata in <name>.metadata. The metadata file is
// written first so a present .txt always has its partner. It returns the
// chunk-text path.
func WriteArtifacts(dir, name string, chunks []types.Chunk) (string, error) {
	texts := make([]string, len(chunks))
	metas := make([]types.ChunkMetadata, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
		metas[i] = c.Metadata
	}

	textPath, metaPath := ArtifactPaths(dir, name)
	metaJSON, err := json.Marshal(metas)
	if err != nil {
		return "", fmt.Errorf("encoding chunk metadata: %w", err)
	}
	textJSON, err := json.Marshal(texts)
	if err != nil {
		return "", fmt.Errorf("encoding chunks: %w", err)
	}
	if err := fsutil.WriteFileAtomic(metaPath, metaJSON); err != nil {
		return "", err
	}
	if err := fsutil.WriteFileAtomic(textPath, textJSON); err != nil {
		return "", err
	}
	return textPath, nil
}

// ReadArtifacts loads the chunks written by WriteArtifacts. The two
// artifacts must have the same length.
func ReadArtifacts(textPath string) ([]types.Chunk, error) {
	var texts []string
	if err := readJSON(textPath, &texts); err != nil {
		return nil, err
	}
	var metas []types.ChunkMetadata
	if err := readJSON(metadataPath(textPath), &metas); err != nil {
		return nil, err
	}
	if len(texts) != len(metas) {
		return nil, fmt.Errorf("chunk artifacts for %s disagree: %d texts, %d metadata",
			filepath.Base(textPath), len(texts), len(metas))
	}

	chunks := make([]types.Chunk, len(texts))
	for i := range texts {
		chunks[i] = types.Chunk{Index: metas[i].ChunkIdx, Content: texts[i], Metadata: metas[i]}
	}
	return chunks, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
