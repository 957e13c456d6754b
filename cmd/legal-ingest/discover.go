// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Refresh the reference catalog from the source site",
	Long: `Discover walks the areas overview of the source site and every subarea
page, then merges the result into the persisted catalog. Entries that are
already catalogued keep their identifiers; only new references are added.`,
	RunE: runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
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

	rows, err := a.discoverer().Discover(ctx)
	if err != nil {
		return fmt.Errorf("discovering catalog: %w", err)
	}
	res, err := a.differ().Apply(ctx, rows, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "\nCatalog summary: %d new, %d retained (total: %d)\n", res.New, res.Retained, res.Total())
	return nil
}
