// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download every catalogued reference not yet scraped",
	Long: `Download resolves each unscraped catalog entry through the site
connectors and saves the document under the raw data directory. Archives
are expanded into one entry per contained file. Entries that reached a
terminal outcome in an earlier run are not revisited.`,
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().Int("workers", 0, "concurrent downloads (default from config)")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg := loadConfig()
	if w, _ := cmd.Flags().GetInt("workers"); w > 0 {
		cfg.Download.Workers = w
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	a, err := openApp(cmd, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	entries, err := a.store.Entries(ctx)
	if err != nil {
		return err
	}
	_, result, err := a.orchestrator().DownloadAll(ctx, entries, os.Stdout)
	if err != nil {
		return err
	}
	if err := a.store.ExportCSV(ctx, cfg.Paths.MetadataDir); err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d reference(s) failed download", result.Failed)
	}
	return nil
}
