// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"golang.org/x/net/html/atom"

	"github.com/pdiddy/legal-ingest/internal/dom"
	"github.com/pdiddy/legal-ingest/internal/httputil"
)

var (
	eurlexTitleClass     = "title-doc-first"
	eurlexIndicatorClass = "forceIndicator"
)

// EurLex resolves EUR-Lex legal-content URLs by saving the HTML text view
// of the act.
type EurLex struct {
	Fetcher httputil.Fetcher
	Logger  *slog.Logger
}

func (e EurLex) Name() string { return "eur-lex" }

// textView rewrites a legal-content URL to its /TXT/HTML/ form, keeping the
// uri query. Other URLs are returned unchanged.
func textView(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	i := strings.Index(u.Path, "/legal-content/")
	if i < 0 || u.Query().Get("uri") == "" {
		return rawURL
	}
	parts := strings.Split(strings.Trim(u.Path[i+len("/legal-content/"):], "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return rawURL
	}
	u.Path = u.Path[:i] + "/legal-content/" + parts[0] + "/TXT/HTML/"
	return u.String()
}

// Resolve fetches the act's HTML view and saves it as .html. Validity comes
// from the page's force indicator; a page without one is taken as current.
func (e EurLex) Resolve(ctx context.Context, rawURL, title, outputDir string) (Result, error) {
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}

	pageURL := textView(rawURL)
	body, err := e.Fetcher.Fetch(ctx, pageURL, "")
	if err != nil {
		return Result{}, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	doc, err := dom.Parse(body)
	if err != nil {
		return Result{}, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	validity := ValidityCurrent
	if ind := dom.Find(doc, dom.Class(eurlexIndicatorClass)); ind != nil {
		flag := FlagAbsent
		if c, _ := dom.Attr(ind, "class"); strings.Contains(c, "notInForce") {
			flag = FlagInvalid
		} else if strings.Contains(c, "inForce") {
			flag = FlagValid
		}
		validity, err = Classify(flag, dom.Text(ind), "")
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", pageURL, err)
		}
		if validity == ValidityUnknown {
			validity = ValidityCurrent
		}
	}
	if !validity.Downloadable() {
		log.Info("act not downloadable", "url", pageURL, "validity", validity)
		return Result{Validity: validity}, nil
	}

	name := headingTitle(dom.Text(dom.Find(doc, dom.Class(eurlexTitleClass))))
	if name == "" {
		name = headingTitle(dom.Text(dom.Find(doc, dom.Tag(atom.Title))))
	}
	if name == "" {
		name = title
	}
	return saveContent(pageURL, name, "html", outputDir, body)
}
