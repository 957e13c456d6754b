// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backup copies pipeline artifacts to a Google Cloud Storage bucket
// and restores them.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/pdiddy/legal-ingest/internal/fsutil"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

// Bucket is the object store the uploader writes to.
type Bucket interface {
	NewWriter(ctx context.Context, object string) io.WriteCloser
	NewReader(ctx context.Context, object string) (io.ReadCloser, error)
	Exists(ctx context.Context, object string) (bool, error)
}

type gcsBucket struct {
	h *storage.BucketHandle
}

func (b gcsBucket) NewWriter(ctx context.Context, object string) io.WriteCloser {
	w := b.h.Object(object).NewWriter(ctx)
	w.ContentType = "application/octet-stream"
	w.CacheControl = "no-cache, no-store, must-revalidate"
	return w
}

func (b gcsBucket) NewReader(ctx context.Context, object string) (io.ReadCloser, error) {
	return b.h.Object(object).NewReader(ctx)
}

func (b gcsBucket) Exists(ctx context.Context, object string) (bool, error) {
	_, err := b.h.Object(object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Uploader mirrors local files under Prefix in a bucket.
type Uploader struct {
	Bucket Bucket
	Prefix string
	Logger *slog.Logger

	name   string
	client *storage.Client
}

// New connects to the bucket in cfg. Credentials come from
// cfg.CredentialsFile when set, else from the environment.
func New(ctx context.Context, cfg types.BackupConfig) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: backup bucket is not set", types.ErrConfig)
	}
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("%w: service account key: %v", types.ErrConfig, err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &Uploader{
		Bucket: gcsBucket{h: client.Bucket(cfg.Bucket)},
		Prefix: cfg.Prefix,
		name:   cfg.Bucket,
		client: client,
	}, nil
}

// Close releases the storage client.
func (u *Uploader) Close() error {
	if u.client == nil {
		return nil
	}
	return u.client.Close()
}

func (u *Uploader) log() *slog.Logger {
	if u.Logger != nil {
		return u.Logger
	}
	return slog.Default()
}

// object joins the uploader prefix and name with forward slashes.
func (u *Uploader) object(name string) string {
	return path.Join(u.Prefix, filepath.ToSlash(name))
}

// UploadFile copies localPath to the object name under Prefix.
func (u *Uploader) UploadFile(ctx context.Context, localPath, name string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer f.Close()

	obj := u.object(name)
	w := u.Bucket.NewWriter(ctx, obj)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return fmt.Errorf("copying %s to %s: %w", localPath, obj, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finishing %s: %w", obj, err)
	}
	u.log().Debug("uploaded", "bucket", u.name, "object", obj)
	return nil
}

// UploadDir uploads every regular file below localDir, keeping relative
// paths under prefix. Temporary files from atomic writes are skipped. It
// returns the number of files uploaded.
func (u *Uploader) UploadDir(ctx context.Context, localDir, prefix string) (int, error) {
	n := 0
	err := filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && strings.HasSuffix(d.Name(), ".tmp") {
			return nil
		}
		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return err
		}
		if err := u.UploadFile(ctx, p, path.Join(prefix, filepath.ToSlash(rel))); err != nil {
			return err
		}
		n++
		return nil
	})
	if err != nil {
		return n, fmt.Errorf("uploading %s: %w", localDir, err)
	}
	return n, nil
}

// Exists reports whether the object name exists under Prefix.
func (u *Uploader) Exists(ctx context.Context, name string) (bool, error) {
	ok, err := u.Bucket.Exists(ctx, u.object(name))
	if err != nil {
		return false, fmt.Errorf("checking %s: %w", u.object(name), err)
	}
	return ok, nil
}

// Download copies the object name to localPath atomically.
func (u *Uploader) Download(ctx context.Context, name, localPath string) error {
	r, err := u.Bucket.NewReader(ctx, u.object(name))
	if err != nil {
		return fmt.Errorf("reading %s: %w", u.object(name), err)
	}
	defer r.Close()
	return fsutil.WriteAtomic(localPath, func(w io.Writer) error {
		_, err := io.Copy(w, r)
		return err
	})
}
