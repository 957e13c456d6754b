// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/legal-ingest/internal/container"
	"github.com/pdiddy/legal-ingest/internal/fsutil"
)

// Office converts word-processor documents with pandoc. Legacy .doc files
// are first upgraded to .docx with LibreOffice.
type Office struct {
	Runner  container.Runner
	Pandoc  container.Tool
	Soffice container.Tool
}

// ExtractDOCX returns the Markdown pandoc produces for the .docx at path.
func (o *Office) ExtractDOCX(ctx context.Context, path string) (string, error) {
	out, err := o.Runner.Run(ctx, o.Pandoc, filepath.Dir(path),
		"-f", "docx", "-t", "markdown", "--wrap=none", filepath.Base(path))
	if err != nil {
		return "", fmt.Errorf("pandoc: %w", err)
	}
	return string(out), nil
}

// ExtractDOC copies the .doc at path into a scratch directory beside it,
// converts it to .docx there, and extracts that. The scratch directory is
// removed afterwards.
func (o *Office) ExtractDOC(ctx context.Context, path string) (string, error) {
	scratch, err := os.MkdirTemp(filepath.Dir(path), ".doc-*")
	if err != nil {
		return "", fmt.Errorf("creating scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	name := filepath.Base(path)
	if err := fsutil.WriteFileAtomic(filepath.Join(scratch, name), data); err != nil {
		return "", err
	}

	if _, err := o.Runner.Run(ctx, o.Soffice, scratch,
		"--headless", "--convert-to", "docx", "--outdir", ".", name); err != nil {
		return "", fmt.Errorf("soffice: %w", err)
	}

	docx := filepath.Join(scratch, strings.TrimSuffix(name, filepath.Ext(name))+".docx")
	if !fsutil.Exists(docx) {
		return "", fmt.Errorf("soffice produced no .docx for %s", name)
	}
	return o.ExtractDOCX(ctx, docx)
}
