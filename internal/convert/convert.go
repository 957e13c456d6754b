// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns downloaded documents into normalized text. A
// Converter dispatches on file type to a Backend, strips inline image
// payloads, and writes <converted dir>/<base>.txt.
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdiddy/legal-ingest/internal/container"
	"github.com/pdiddy/legal-ingest/internal/fsutil"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

var (
	// ErrEmptyOutput marks a conversion that produced no text once inline
	// images were stripped. The output file is removed.
	ErrEmptyOutput = errors.New("conversion produced empty output")

	// ErrUnsupportedType marks a file type with no backend. Callers treat
	// it as a skip.
	ErrUnsupportedType = errors.New("unsupported file type")
)

// Backend extracts text from one kind of document.
type Backend interface {
	Extract(ctx context.Context, path string) (string, error)
}

// BackendFunc adapts a function to Backend.
type BackendFunc func(ctx context.Context, path string) (string, error)

func (f BackendFunc) Extract(ctx context.Context, path string) (string, error) { return f(ctx, path) }

// Converter dispatches conversions by file type.
type Converter struct {
	// OutDir receives the normalized text files.
	OutDir string

	backends map[types.FileType]Backend
}

// New returns a Converter with the pdf, html, docx, doc and xlsx backends.
// Office formats run through runner using the tools from cfg.
func New(outDir string, runner container.Runner, cfg types.ConversionConfig) *Converter {
	c := &Converter{OutDir: outDir, backends: map[types.FileType]Backend{}}
	office := &Office{
		Runner:  runner,
		Pandoc:  container.Tool{Bin: "pandoc", Image: cfg.PandocImage},
		Soffice: container.Tool{Bin: "soffice", Image: cfg.OfficeImage},
	}
	c.Register(types.FileTypePDF, BackendFunc(ExtractPDF))
	c.Register(types.FileTypeHTML, NewHTML())
	c.Register(types.FileTypeDOCX, BackendFunc(office.ExtractDOCX))
	c.Register(types.FileTypeDOC, BackendFunc(office.ExtractDOC))
	c.Register(types.FileTypeXLSX, BackendFunc(ExtractXLSX))
	return c
}

// Register sets the backend for ft, replacing any existing one.
func (c *Converter) Register(ft types.FileType, b Backend) {
	if c.backends == nil {
		c.backends = map[types.FileType]Backend{}
	}
	c.backends[ft] = b
}

// Supports reports whether ft has a backend.
func (c *Converter) Supports(ft types.FileType) bool {
	_, ok := c.backends[ft]
	return ok
}

// OutputPath returns where the text for rawPath is written.
func (c *Converter) OutputPath(rawPath string) string {
	base := strings.TrimSuffix(filepath.Base(rawPath), filepath.Ext(rawPath))
	return filepath.Join(c.OutDir, base+".txt")
}

// Convert extracts rawPath with the backend for ft and writes the cleaned
// text atomically. It returns the output path. An empty result deletes any
// output at that path and returns ErrEmptyOutput.
func (c *Converter) Convert(ctx context.Context, rawPath string, ft types.FileType) (string, error) {
	b, ok := c.backends[ft]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ft)
	}

	text, err := b.Extract(ctx, rawPath)
	if err != nil {
		return "", fmt.Errorf("converting %s: %w", filepath.Base(rawPath), err)
	}
	text = Clean(text)

	out := c.OutputPath(rawPath)
	if text == "" {
		if err := os.Remove(out); err != nil && !os.IsNotExist(err) {
			return "", fmt.Errorf("removing empty output: %w", err)
		}
		return "", fmt.Errorf("%w: %s", ErrEmptyOutput, filepath.Base(rawPath))
	}
	if err := fsutil.WriteFileAtomic(out, []byte(text+"\n")); err != nil {
		return "", fmt.Errorf("writing %s: %w", out, err)
	}
	return out, nil
}
