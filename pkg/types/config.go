// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"fmt"
	"time"
)

// ErrConfig marks configuration problems that are fatal before a run starts.
var ErrConfig = errors.New("configuration error")

// Mode selects how the pipeline command treats persisted artifacts.
type Mode string

const (
	// ModeLoad opens the existing index and state without ingesting.
	ModeLoad Mode = "load"
	// ModeUpdate runs discovery and every ingestion stage.
	ModeUpdate Mode = "update"
)

// PathsConfig holds the directories and files shared by every stage.
type PathsConfig struct {
	// RootURL is the source site root (e.g. "https://www.fu.gov.si").
	RootURL string `json:"root_url" yaml:"root_url"`

	// MetadataDir holds the state database and the tabular exports.
	MetadataDir string `json:"metadata_dir" yaml:"metadata_dir"`

	// RawDataDir holds downloaded source files.
	RawDataDir string `json:"raw_data_dir" yaml:"raw_data_dir"`

	// ConvertedDataDir holds normalized text produced by the converter.
	ConvertedDataDir string `json:"converted_data_dir" yaml:"converted_data_dir"`

	// ChunksDataDir holds chunk text and chunk metadata artifacts.
	ChunksDataDir string `json:"chunks_data_dir" yaml:"chunks_data_dir"`

	// VectorDBPath is the vector index database file.
	VectorDBPath string `json:"vector_db_path" yaml:"vector_db_path"`
}

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// DownloadConfig holds settings for the download stage and its resolvers.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// MaxRetries bounds retry attempts for transient network failures (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MaxElapsed bounds the total wall-clock time spent retrying one fetch (default 2m).
	MaxElapsed time.Duration `json:"max_elapsed" yaml:"max_elapsed"`

	// Workers is the number of entries downloaded concurrently (default 4).
	Workers int `json:"workers" yaml:"workers"`

	// BrowserWorkers bounds concurrently open browser pages (default 2).
	BrowserWorkers int `json:"browser_workers" yaml:"browser_workers"`

	// RenderTimeout bounds the wait for a content marker on rendered pages (default 10s).
	RenderTimeout time.Duration `json:"render_timeout" yaml:"render_timeout"`

	// Stealth applies anti-detection patches to browser pages.
	Stealth bool `json:"stealth" yaml:"stealth"`

	// BrowserURL connects to a running browser instead of launching one.
	BrowserURL string `json:"browser_url,omitempty" yaml:"browser_url,omitempty"`
}

// ToolMode selects where external converters (pandoc, soffice) run.
type ToolMode string

const (
	ToolLocal     ToolMode = "local"
	ToolContainer ToolMode = "container"
)

// ConversionConfig holds settings for the conversion stage.
type ConversionConfig struct {
	// Tools selects local binaries or a container runtime for pandoc and soffice.
	Tools ToolMode `json:"tools" yaml:"tools"`

	// PandocImage is the container image used when Tools is "container".
	PandocImage string `json:"pandoc_image" yaml:"pandoc_image"`

	// OfficeImage is the container image providing soffice when Tools is "container".
	OfficeImage string `json:"office_image" yaml:"office_image"`
}

// ChunkConfig holds settings for the chunking stage.
type ChunkConfig struct {
	// MaxTokens is the window size in tokens (default 2048).
	MaxTokens int `json:"max_tokens" yaml:"max_tokens"`

	// Overlap is the number of tokens shared by consecutive chunks (default 512).
	Overlap int `json:"overlap" yaml:"overlap"`

	// Overview appends a synthetic document-overview chunk after the content chunks.
	Overview bool `json:"overview" yaml:"overview"`
}

// EmbedConfig holds settings for the embedding stage.
type EmbedConfig struct {
	// Model is the embedding model identifier; it also selects the tokenizer.
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the embedding API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// BaseURL overrides the API endpoint (OpenAI-compatible servers).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`

	// BatchSize is the number of texts per API request (default 10).
	BatchSize int `json:"batch_size" yaml:"batch_size"`

	// MaxAttempts bounds attempts per batch on rate-limit errors (default 6).
	MaxAttempts int `json:"max_attempts" yaml:"max_attempts"`

	// Workers bounds concurrently in-flight batches (default 2).
	Workers int `json:"workers" yaml:"workers"`

	// RequestsPerSecond paces batch requests (default 3).
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// IndexConfig holds settings for the vector index.
type IndexConfig struct {
	// CheckpointEvery is the number of documents between durable index flushes (default 100).
	CheckpointEvery int `json:"checkpoint_every" yaml:"checkpoint_every"`
}

// BackupConfig holds settings for the optional bucket backup.
type BackupConfig struct {
	// Bucket is the bucket name; empty disables backup.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Prefix is prepended to every object name.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// CredentialsFile is an optional service account key path.
	CredentialsFile string `json:"credentials_file,omitempty" yaml:"credentials_file,omitempty"`
}

// Config groups all stage configurations for the pipeline.
type Config struct {
	Paths      PathsConfig      `json:"paths" yaml:"paths"`
	Download   DownloadConfig   `json:"download" yaml:"download"`
	Conversion ConversionConfig `json:"conversion" yaml:"conversion"`
	Chunk      ChunkConfig      `json:"chunk" yaml:"chunk"`
	Embed      EmbedConfig      `json:"embed" yaml:"embed"`
	Index      IndexConfig      `json:"index" yaml:"index"`
	Backup     BackupConfig     `json:"backup" yaml:"backup"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			RootURL:          "https://www.fu.gov.si",
			MetadataDir:      "data",
			RawDataDir:       "data/raw_files",
			ConvertedDataDir: "data/converted_files",
			ChunksDataDir:    "data/file_chunks",
			VectorDBPath:     "data/vector_db/index.db",
		},
		Download: DownloadConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   60 * time.Second,
				UserAgent: "legal-ingest/0.1",
			},
			MaxRetries:     5,
			MaxElapsed:     2 * time.Minute,
			Workers:        4,
			BrowserWorkers: 2,
			RenderTimeout:  10 * time.Second,
			Stealth:        true,
		},
		Conversion: ConversionConfig{
			Tools:       ToolLocal,
			PandocImage: "docker.io/pandoc/core:latest",
			OfficeImage: "docker.io/linuxserver/libreoffice:latest",
		},
		Chunk: ChunkConfig{
			MaxTokens: 2048,
			Overlap:   512,
		},
		Embed: EmbedConfig{
			Model:             "text-embedding-3-large",
			BatchSize:         10,
			MaxAttempts:       6,
			Workers:           2,
			RequestsPerSecond: 3,
		},
		Index: IndexConfig{
			CheckpointEvery: 100,
		},
	}
}

// Validate reports the first configuration problem. Every returned error
// wraps ErrConfig. The API key is only required when the run embeds.
func (c Config) Validate(needsAPIKey bool) error {
	required := []struct {
		name, value string
	}{
		{"ROOT_URL", c.Paths.RootURL},
		{"METADATA_DIR", c.Paths.MetadataDir},
		{"RAW_DATA_DIR", c.Paths.RawDataDir},
		{"CONVERTED_DATA_DIR", c.Paths.ConvertedDataDir},
		{"FILE_CHUNKS_DATA_DIR", c.Paths.ChunksDataDir},
		{"VECTOR_DB_PATH", c.Paths.VectorDBPath},
		{"EMBEDDING_MODEL", c.Embed.Model},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("%w: %s is not set", ErrConfig, r.name)
		}
	}
	if c.Chunk.MaxTokens <= 0 {
		return fmt.Errorf("%w: chunk max tokens must be positive, got %d", ErrConfig, c.Chunk.MaxTokens)
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap >= c.Chunk.MaxTokens {
		return fmt.Errorf("%w: chunk overlap %d must be in [0, %d)", ErrConfig, c.Chunk.Overlap, c.Chunk.MaxTokens)
	}
	if c.Embed.BatchSize <= 0 {
		return fmt.Errorf("%w: embedding batch size must be positive", ErrConfig)
	}
	if c.Index.CheckpointEvery <= 0 {
		return fmt.Errorf("%w: checkpoint cadence must be positive", ErrConfig)
	}
	switch c.Conversion.Tools {
	case ToolLocal, ToolContainer:
	default:
		return fmt.Errorf("%w: unknown conversion tools mode %q", ErrConfig, c.Conversion.Tools)
	}
	if needsAPIKey && c.Embed.APIKey == "" {
		return fmt.Errorf("%w: OPENAI_API_KEY is not set", ErrConfig)
	}
	return nil
}
