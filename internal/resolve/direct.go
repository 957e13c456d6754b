// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/pdiddy/legal-ingest/internal/fsutil"
	"github.com/pdiddy/legal-ingest/internal/httputil"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

func pathExt(p string) string {
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		p = p[i+1:]
	}
	if i := strings.LastIndexByte(p, '.'); i >= 0 {
		return strings.ToLower(p[i+1:])
	}
	return ""
}

// InferExtension returns the lower-case file extension a URL points to.
// The fragment is dropped and the path's extension wins when recognized;
// otherwise download scripts such as "get.php?file=law.pdf" or
// "x.aspx?type=docx" are handled by taking the text after the last "."
// and then after the last "=". The result may be an unrecognized
// extension or empty.
func InferExtension(rawURL string) string {
	u := types.CleanURL(rawURL)
	path, query, hasQuery := strings.Cut(u, "?")
	ext := pathExt(path)
	if types.IsFileExtension(ext) || !hasQuery {
		return ext
	}

	tail := u
	if i := strings.LastIndexByte(tail, '.'); i >= 0 {
		tail = tail[i+1:]
	}
	if i := strings.LastIndexByte(tail, '='); i >= 0 {
		tail = tail[i+1:]
	}
	tail = strings.ToLower(tail)
	if types.IsFileExtension(tail) {
		return tail
	}
	if i := strings.LastIndexByte(query, '='); i >= 0 {
		if q := strings.ToLower(query[i+1:]); types.IsFileExtension(q) {
			return q
		}
	}
	return ext
}

// IsFileURL reports whether rawURL points directly at a recognized file type.
func IsFileURL(rawURL string) bool {
	return types.IsFileExtension(InferExtension(rawURL))
}

// saveDownload fetches downloadURL to outputDir/SafeTitle(title).ext unless
// that file already exists.
func saveDownload(ctx context.Context, dl httputil.Downloader, downloadURL, title, ext, outputDir string) (Result, error) {
	safe, err := SafeTitle(title)
	if err != nil {
		return Result{}, fmt.Errorf("naming %s: %w", downloadURL, err)
	}
	path := filepath.Join(outputDir, safe+"."+ext)
	res := Result{DownloadURL: downloadURL, SavedPath: path, Title: title, Validity: ValidityCurrent}
	if fsutil.Exists(path) {
		res.Existed = true
		return res, nil
	}
	if _, err := dl.Download(ctx, downloadURL, path); err != nil {
		return Result{}, fmt.Errorf("downloading %s: %w", downloadURL, err)
	}
	return res, nil
}

// saveContent writes already-fetched page content to
// outputDir/SafeTitle(title).ext unless that file already exists.
func saveContent(pageURL, title, ext, outputDir, content string) (Result, error) {
	safe, err := SafeTitle(title)
	if err != nil {
		return Result{}, fmt.Errorf("naming %s: %w", pageURL, err)
	}
	path := filepath.Join(outputDir, safe+"."+ext)
	res := Result{DownloadURL: pageURL, SavedPath: path, Title: title, Validity: ValidityCurrent}
	if fsutil.Exists(path) {
		res.Existed = true
		return res, nil
	}
	if err := fsutil.WriteFileAtomic(path, []byte(content)); err != nil {
		return Result{}, err
	}
	return res, nil
}

// DirectFile downloads URLs that name a file by extension.
type DirectFile struct {
	Downloader httputil.Downloader
	Logger     *slog.Logger
}

func (d DirectFile) Name() string { return "direct-file" }

// Resolve downloads rawURL to outputDir/SafeTitle(title).ext. An
// unrecognized extension is logged and yields an empty Result.
func (d DirectFile) Resolve(ctx context.Context, rawURL, title, outputDir string) (Result, error) {
	ext := InferExtension(rawURL)
	if !types.IsFileExtension(ext) {
		log := d.Logger
		if log == nil {
			log = slog.Default()
		}
		log.Info("unrecognized file extension, skipping", "url", rawURL, "ext", ext)
		return Result{}, nil
	}
	return saveDownload(ctx, d.Downloader, types.CleanURL(rawURL), title, ext, outputDir)
}
