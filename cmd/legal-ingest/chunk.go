// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var chunkCmd = &cobra.Command{
	Use:   "chunk",
	Short: "Split converted documents into overlapping token windows",
	Long: `Chunk tokenizes each converted document with the tokenizer of the
embedding model and writes its chunks and their metadata next to each other
under the chunks directory. Documents that already have chunk artifacts are
skipped.`,
	RunE: runChunk,
}

func init() {
	chunkCmd.Flags().Int("max-tokens", 0, "window size in tokens (default from config)")
	chunkCmd.Flags().Int("overlap", -1, "tokens shared by consecutive chunks (default from config)")

	rootCmd.AddCommand(chunkCmd)
}

func runChunk(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg := loadConfig()
	if n, _ := cmd.Flags().GetInt("max-tokens"); n > 0 {
		cfg.Chunk.MaxTokens = n
	}
	if n, _ := cmd.Flags().GetInt("overlap"); n >= 0 {
		cfg.Chunk.Overlap = n
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	a, err := openApp(cmd, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	b, err := a.chunkBatch()
	if err != nil {
		return err
	}
	result, err := b.Run(ctx, os.Stdout)
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d document(s) failed chunking", result.Failed)
	}
	return nil
}
