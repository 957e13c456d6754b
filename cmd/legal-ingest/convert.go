// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/legal-ingest/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert downloaded documents to normalized text",
	Long: `Convert extracts text from every downloaded document that has no
converted output yet. PDF, HTML and XLSX are handled in-process; DOCX and
DOC go through pandoc and soffice, either from PATH or inside a container
(conversion.tools).`,
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().String("tools", "", "external tool mode: local or container (default from config)")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	cfg := loadConfig()
	if tools, _ := cmd.Flags().GetString("tools"); tools != "" {
		cfg.Conversion.Tools = types.ToolMode(tools)
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	a, err := openApp(cmd, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	b, err := a.convertBatch()
	if err != nil {
		return err
	}
	result, err := b.Run(ctx, os.Stdout)
	if err != nil {
		return err
	}
	if result.HasFailures() {
		return fmt.Errorf("%d document(s) failed conversion", result.Failed)
	}
	return nil
}
