// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/legal-ingest/internal/state"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the persisted state to CSV and YAML",
	Long: `Export writes references.csv, downloaded.csv and a state.yaml snapshot
into the metadata directory. With --backup the metadata directory and the
vector index are also uploaded to the configured bucket.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().Bool("backup", false, "upload the exports and the vector index to BACKUP_BUCKET")

	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg := loadConfig()
	if err := cfg.Validate(false); err != nil {
		return err
	}
	a, err := openApp(cmd, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	dir := cfg.Paths.MetadataDir
	if err := a.store.ExportCSV(ctx, dir); err != nil {
		return err
	}
	if err := a.store.ExportYAML(ctx, filepath.Join(dir, state.SnapshotFile)); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "exported: %s\n", dir)

	if doBackup, _ := cmd.Flags().GetBool("backup"); !doBackup {
		return nil
	}
	if cfg.Backup.Bucket == "" {
		return fmt.Errorf("--backup needs BACKUP_BUCKET")
	}
	up, err := a.uploader(ctx)
	if err != nil {
		return err
	}
	for _, p := range []string{dir, filepath.Dir(cfg.Paths.VectorDBPath)} {
		n, err := up.UploadDir(ctx, p, filepath.Base(p))
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "uploaded: %s (%d files)\n", p, n)
	}
	return nil
}
