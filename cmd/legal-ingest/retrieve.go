// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/legal-ingest/internal/chunk"
	"github.com/pdiddy/legal-ingest/internal/index"
	"github.com/pdiddy/legal-ingest/internal/retrieve"
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Print the law context for a question",
	Long: `Retrieve embeds the query, finds the nearest chunks in the vector index
and prints them with their source, best match first, within a token budget.
The output is the context block a question-answering model receives.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().Int("k", retrieve.DefaultK, "number of nearest chunks to consider")
	retrieveCmd.Flags().Int("max-tokens", retrieve.DefaultMaxTokens, "token budget of the context block")

	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg := loadConfig()
	if err := cfg.Validate(true); err != nil {
		return err
	}
	if !index.Exists(cfg.Paths.VectorDBPath) {
		return fmt.Errorf("no vector index at %s: run \"legal-ingest run --mode=update\" first", cfg.Paths.VectorDBPath)
	}
	k, _ := cmd.Flags().GetInt("k")
	maxTokens, _ := cmd.Flags().GetInt("max-tokens")

	a, err := openApp(cmd, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	tok, err := chunk.NewTokenizer(cfg.Embed.Model)
	if err != nil {
		return err
	}
	r := &retrieve.Retriever{Embedder: a.batcher(), Index: a.index, Tokenizer: tok}
	text, err := r.Retrieve(ctx, strings.Join(args, " "), k, maxTokens)
	if err != nil {
		return err
	}
	if text == "" {
		fmt.Fprintln(os.Stderr, "No context fits within the token budget.")
		return nil
	}
	fmt.Fprint(os.Stdout, text)
	return nil
}
