// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package acquire

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/pdiddy/legal-ingest/pkg/types"
)

// ErrUnsafeArchivePath marks a zip member whose name escapes the extraction
// directory.
var ErrUnsafeArchivePath = errors.New("archive member escapes extraction directory")

// NewID generates child entry ids. Tests replace it for stable output.
var NewID = uuid.NewString

// extractDir is where members of archive path are written:
// <dir>/<archive base name without extension>.
func extractDir(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// memberPath validates a zip member name and returns its destination.
func memberPath(dir, name string) (string, error) {
	clean := filepath.FromSlash(name)
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %q", ErrUnsafeArchivePath, name)
	}
	return filepath.Join(dir, clean), nil
}

func extractMember(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening %s: %w", f.Name, err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".extract-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, copyErr := io.Copy(tmp, rc)
	closeErr := tmp.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("extracting %s: %w", f.Name, copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// expand extracts every member of the archive at path whose extension is a
// recognized document type and builds one child entry and document per
// member. Children inherit the container's classification and get fresh
// ids. Directories, nested archives and unrecognized members are skipped; a
// member whose name escapes the extraction directory fails the whole
// archive. The caller commits the replacement.
func (o *Orchestrator) expand(container types.ReferenceEntry, path string) ([]types.ReferenceEntry, []types.DownloadedDocument, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}
	defer zr.Close()

	dir := extractDir(path)
	var (
		children []types.ReferenceEntry
		docs     []types.DownloadedDocument
	)
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		dest, err := memberPath(dir, f.Name)
		if err != nil {
			return nil, nil, err
		}
		ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(f.Name), "."))
		ft := types.FileTypeFromExt(ext)
		if ft == types.FileTypeUnknown || ft == types.FileTypeZIP {
			o.log().Info("skipping archive member", "archive", path, "member", f.Name)
			continue
		}
		if err := extractMember(f, dest); err != nil {
			return nil, nil, err
		}

		child := container
		child.ID = NewID()
		child.ActualDownloadLocation = dest
		children = append(children, child)
		docs = append(docs, *newDocument(child, dest, container.ActualDownloadLink))
	}
	return children, docs, nil
}
