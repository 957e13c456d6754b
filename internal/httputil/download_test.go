// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientDownload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "legal-ingest/test", r.Header.Get("User-Agent"))
		if r.URL.Path == "/missing.pdf" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("%PDF-1.4 body"))
	}))
	defer ts.Close()

	c := &Client{HTTP: ts.Client(), UserAgent: "legal-ingest/test", Policy: RetryPolicy{MaxRetries: 1}}
	dir := t.TempDir()

	t.Run("writes file", func(t *testing.T) {
		dest := filepath.Join(dir, "sub", "law.pdf")
		n, err := c.Download(context.Background(), ts.URL+"/law.pdf", dest)
		require.NoError(t, err)
		assert.Equal(t, int64(len("%PDF-1.4 body")), n)
		data, err := os.ReadFile(dest)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 body", string(data))
	})

	t.Run("non-200 leaves no file", func(t *testing.T) {
		dest := filepath.Join(dir, "missing.pdf")
		_, err := c.Download(context.Background(), ts.URL+"/missing.pdf", dest)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 404")
		_, statErr := os.Stat(dest)
		assert.True(t, os.IsNotExist(statErr))
	})

	t.Run("fetch returns body", func(t *testing.T) {
		body, err := c.Fetch(context.Background(), ts.URL+"/page", "div#content")
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4 body", body)
	})
}
