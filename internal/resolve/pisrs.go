// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/legal-ingest/internal/dom"
	"github.com/pdiddy/legal-ingest/internal/httputil"
)

// PISRS page structure. The register renders client-side: the download
// buttons live in div#fileBtns, the title in the first h1, and the validity
// badge in div#statusPredpisa whose class is "veljaven" or "neveljaven".
// A superseded act links its successor from a.naslednik inside the badge.
var (
	pisrsMarker       = "div#fileBtns"
	pisrsButtonsID    = "fileBtns"
	pisrsStatusID     = "statusPredpisa"
	pisrsSuccessorCls = "naslednik"
)

// PISRS resolves acts in the Slovenian legal information system.
type PISRS struct {
	// Fetcher must render client-side pages (see browser.Pool).
	Fetcher    httputil.Fetcher
	Downloader httputil.Downloader
	Logger     *slog.Logger
}

func (p PISRS) Name() string { return "pisrs" }

type pisrsPage struct {
	title     string
	pdfURL    string
	validity  Validity
	successor string
}

func (p PISRS) read(ctx context.Context, pageURL string) (pisrsPage, error) {
	body, err := p.Fetcher.Fetch(ctx, pageURL, pisrsMarker)
	if err != nil {
		return pisrsPage{}, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	doc, err := dom.Parse(body)
	if err != nil {
		return pisrsPage{}, fmt.Errorf("parsing %s: %w", pageURL, err)
	}

	var page pisrsPage
	page.title = headingTitle(dom.Text(dom.Find(doc, dom.Tag(atom.H1))))

	flag, status, successor := pisrsStatus(doc, pageURL)
	page.successor = successor
	page.validity, err = Classify(flag, status, successor)
	if err != nil {
		return page, fmt.Errorf("%s: %w", pageURL, err)
	}

	if btns := dom.Find(doc, dom.ID(pisrsButtonsID)); btns != nil {
		for _, a := range dom.FindAll(btns, dom.And(dom.Tag(atom.A), dom.HasAttr("href"))) {
			href, _ := dom.Attr(a, "href")
			if strings.HasSuffix(strings.ToLower(strings.TrimSpace(href)), "pdf") {
				page.pdfURL = dom.Resolve(pageURL, href)
				break
			}
		}
	}
	return page, nil
}

func pisrsStatus(doc *html.Node, pageURL string) (Flag, string, string) {
	badge := dom.Find(doc, dom.ID(pisrsStatusID))
	if badge == nil {
		return FlagAbsent, "", ""
	}
	flag := FlagAbsent
	switch {
	case dom.Class("neveljaven")(badge):
		flag = FlagInvalid
	case dom.Class("veljaven")(badge):
		flag = FlagValid
	}
	successor := ""
	if a := dom.Find(badge, dom.And(dom.Tag(atom.A), dom.Class(pisrsSuccessorCls), dom.HasAttr("href"))); a != nil {
		href, _ := dom.Attr(a, "href")
		successor = dom.Resolve(pageURL, href)
	}
	return flag, dom.Text(badge), successor
}

// Resolve reads the act page, follows a successor link once when the act
// has been superseded, and downloads the act's PDF. Terminal and unknown
// versions produce no download.
func (p PISRS) Resolve(ctx context.Context, pageURL, title, outputDir string) (Result, error) {
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	page, err := p.read(ctx, pageURL)
	if err != nil {
		return Result{}, err
	}
	if page.validity == ValiditySupersededWithSuccessor {
		log.Info("act superseded, following successor", "url", pageURL, "successor", page.successor)
		page, err = p.read(ctx, page.successor)
		if err != nil {
			return Result{}, err
		}
	}
	if !page.validity.Downloadable() {
		log.Info("act not downloadable", "url", pageURL, "validity", page.validity)
		return Result{Title: page.title, Validity: page.validity}, nil
	}
	if page.pdfURL == "" {
		return Result{}, fmt.Errorf("%w: no pdf link in div#%s on %s", ErrPageStructure, pisrsButtonsID, pageURL)
	}

	name := page.title
	if name == "" {
		name = title
	}
	return saveDownload(ctx, p.Downloader, page.pdfURL, name, "pdf", outputDir)
}
