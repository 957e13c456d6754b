// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/legal-ingest/internal/dom"
	"github.com/pdiddy/legal-ingest/internal/httputil"
)

// UradniList resolves Official Gazette pages: the first PDF link on the
// page is the publication.
type UradniList struct {
	Fetcher    httputil.Fetcher
	Downloader httputil.Downloader
}

func (u UradniList) Name() string { return "uradni-list" }

func (u UradniList) Resolve(ctx context.Context, pageURL, title, outputDir string) (Result, error) {
	body, err := u.Fetcher.Fetch(ctx, pageURL, "")
	if err != nil {
		return Result{}, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	doc, err := dom.Parse(body)
	if err != nil {
		return Result{}, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	pdf := dom.Find(doc, func(n *html.Node) bool {
		if !dom.Tag(atom.A)(n) {
			return false
		}
		href, _ := dom.Attr(n, "href")
		return InferExtension(dom.Resolve(pageURL, href)) == "pdf"
	})
	if pdf == nil {
		return Result{}, fmt.Errorf("%w: no pdf link on %s", ErrPageStructure, pageURL)
	}
	href, _ := dom.Attr(pdf, "href")

	name := headingTitle(dom.Text(dom.Find(doc, dom.Tag(atom.H1))))
	if strings.TrimSpace(name) == "" {
		name = title
	}
	return saveDownload(ctx, u.Downloader, dom.Resolve(pageURL, href), name, "pdf", outputDir)
}
