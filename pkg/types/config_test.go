// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		needsAPIKey bool
		wantErr     bool
	}{
		{name: "defaults without embedding", mutate: func(c *Config) {}},
		{name: "defaults need api key", mutate: func(c *Config) {}, needsAPIKey: true, wantErr: true},
		{name: "api key present", mutate: func(c *Config) { c.Embed.APIKey = "sk-test" }, needsAPIKey: true},
		{name: "missing raw dir", mutate: func(c *Config) { c.Paths.RawDataDir = "" }, wantErr: true},
		{name: "overlap equals window", mutate: func(c *Config) { c.Chunk.Overlap = c.Chunk.MaxTokens }, wantErr: true},
		{name: "negative overlap", mutate: func(c *Config) { c.Chunk.Overlap = -1 }, wantErr: true},
		{name: "zero window", mutate: func(c *Config) { c.Chunk.MaxTokens = 0 }, wantErr: true},
		{name: "zero checkpoint cadence", mutate: func(c *Config) { c.Index.CheckpointEvery = 0 }, wantErr: true},
		{name: "unknown tools mode", mutate: func(c *Config) { c.Conversion.Tools = "remote" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate(tt.needsAPIKey)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrConfig), "want ErrConfig, got %v", err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFileTypeFromExt(t *testing.T) {
	assert.Equal(t, FileTypePDF, FileTypeFromExt(".PDF"))
	assert.Equal(t, FileTypeHTML, FileTypeFromExt("htm"))
	assert.Equal(t, FileTypeUnknown, FileTypeFromExt("exe"))
	assert.True(t, IsFileExtension("ods"))
	assert.False(t, IsFileExtension("html"))
}

func TestReferenceEntryTitle(t *testing.T) {
	e := ReferenceEntry{CatalogRow: CatalogRow{Subarea: "DDV", DetailsName: "Zakon o DDV", DetailsHref: "http://x/zakon.pdf"}}
	assert.Equal(t, "Zakon o DDV", e.Title())
	e.DetailsHref = ""
	assert.Equal(t, "DDV", e.Title())
	assert.Equal(t, "http://a/b", CleanURL(" http://a/b#top "))
}
