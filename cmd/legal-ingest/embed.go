// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Embed chunked documents into the vector index",
	Long: `Embed sends the chunks of every document not yet in the vector index to
the embedding API and adds the vectors to the index. The index is flushed
every index.checkpoint_every documents and once more at the end; only then
are the documents marked as indexed.`,
	RunE: runEmbed,
}

func init() {
	rootCmd.AddCommand(embedCmd)
}

func runEmbed(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg := loadConfig()
	if err := cfg.Validate(true); err != nil {
		return err
	}
	a, err := openApp(cmd, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	result, runErr := a.embedBatch().Run(ctx, os.Stdout)
	// Whatever was embedded before a failure is still checkpointed.
	if err := a.updater().Close(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("index checkpoint: %w", err)
	}
	if runErr != nil {
		return runErr
	}
	if result.HasFailures() {
		return fmt.Errorf("%d document(s) failed embedding", result.Failed)
	}
	return nil
}
