// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/legal-ingest/internal/state"
)

var importCmd = &cobra.Command{
	Use:   "import [references.csv]",
	Short: "Seed the catalog from a previous CSV export",
	Long: `Import reads a references.csv written by "export" and adds every entry
whose id is not yet in the state database. Stored entries keep their
progress. Without an argument the export in the metadata directory is read.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg := loadConfig()
	if err := cfg.Validate(false); err != nil {
		return err
	}
	path := filepath.Join(cfg.Paths.MetadataDir, state.ReferencesFile)
	if len(args) == 1 {
		path = args[0]
	}

	a, err := openApp(cmd, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	n, err := a.store.ImportCSV(ctx, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "imported: %d entries from %s\n", n, path)
	return nil
}
