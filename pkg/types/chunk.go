// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ChunkMetadata is the provenance attached to every chunk: a per-chunk
// index merged with the file-level metadata of its document.
type ChunkMetadata struct {
	ChunkIdx        int    `json:"chunk_idx" yaml:"chunk_idx"`
	FileID          string `json:"file_id" yaml:"file_id"`
	DateDownloaded  string `json:"date_downloaded" yaml:"date_downloaded"`
	AreaName        string `json:"area_name" yaml:"area_name"`
	ReferenceName   string `json:"reference_name" yaml:"reference_name"`
	DetailsSection  string `json:"details_section" yaml:"details_section"`
	DetailsHrefName string `json:"details_href_name" yaml:"details_href_name"`
	SourceLink      string `json:"source_link" yaml:"source_link"`
	RawFilepath     string `json:"raw_filepath" yaml:"raw_filepath"`

	// Overview marks the synthetic document-overview chunk.
	Overview bool `json:"overview,omitempty" yaml:"overview,omitempty"`
}

// Chunk is a token-bounded slice of a document's normalized text.
type Chunk struct {
	Index    int           `json:"chunk_idx" yaml:"chunk_idx"`
	Content  string        `json:"content" yaml:"content"`
	Metadata ChunkMetadata `json:"metadata" yaml:"metadata"`
}

// VectorRecord is a chunk with its embedding, as stored in the vector index.
type VectorRecord struct {
	// ID is "<file_id>:<chunk_idx>".
	ID       string        `json:"id" yaml:"id"`
	FileID   string        `json:"file_id" yaml:"file_id"`
	ChunkIdx int           `json:"chunk_idx" yaml:"chunk_idx"`
	Text     string        `json:"text" yaml:"text"`
	Metadata ChunkMetadata `json:"metadata" yaml:"metadata"`
	Vector   []float32     `json:"-" yaml:"-"`
}

// SearchHit is one ranked result from the vector index.
type SearchHit struct {
	Record VectorRecord `json:"record" yaml:"record"`
	Score  float64      `json:"score" yaml:"score"`
}
