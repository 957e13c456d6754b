// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"html"

	"golang.org/x/net/html/atom"

	"github.com/pdiddy/legal-ingest/internal/dom"
	"github.com/pdiddy/legal-ingest/internal/httputil"
)

var fursContentID = "content"

// FURS resolves pages on the Financial Administration site by saving the
// main content block as a standalone HTML document.
type FURS struct {
	Fetcher httputil.Fetcher
}

func (f FURS) Name() string { return "furs" }

func (f FURS) Resolve(ctx context.Context, pageURL, title, outputDir string) (Result, error) {
	body, err := f.Fetcher.Fetch(ctx, pageURL, "")
	if err != nil {
		return Result{}, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	doc, err := dom.Parse(body)
	if err != nil {
		return Result{}, fmt.Errorf("parsing %s: %w", pageURL, err)
	}
	content := dom.Find(doc, dom.And(dom.Tag(atom.Div), dom.ID(fursContentID)))
	if content == nil {
		return Result{}, fmt.Errorf("%w: no div#%s on %s", ErrPageStructure, fursContentID, pageURL)
	}

	name := headingTitle(dom.Text(dom.Find(content, dom.Tag(atom.H1))))
	if name == "" {
		name = title
	}
	page := "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>" +
		html.EscapeString(name) + "</title></head><body>\n" +
		dom.Render(content) + "\n</body></html>\n"
	return saveContent(pageURL, name, "html", outputDir, page)
}
