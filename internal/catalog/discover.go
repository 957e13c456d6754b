// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/legal-ingest/internal/dom"
	"github.com/pdiddy/legal-ingest/internal/httputil"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

// AreasPath is the overview page listing every area, relative to the root URL.
var AreasPath = "/podrocja"

// detailSections are the subarea page headings whose links become catalog rows.
var detailSections = map[string]bool{
	"Opis":                  true,
	"Podrobnejši opisi":     true,
	"Zakonodaja":            true,
	"Navodila in Pojasnila": true,
}

// contentMarker is the element the source site renders its content into.
const contentMarker = "div#content"

// Discoverer enumerates the reference catalog of the financial
// administration site: the areas overview, then each subarea page.
type Discoverer struct {
	Fetcher httputil.Fetcher
	RootURL string
	Logger  *slog.Logger
}

type subarea struct {
	area, areaDesc, name, href string
}

// Discover returns one row per details link found under a subarea, or one
// row with an empty details link when a subarea page has none. A subarea
// page that fails to load still yields its bare row so the subarea itself
// is catalogued.
func (d *Discoverer) Discover(ctx context.Context) ([]types.CatalogRow, error) {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}

	root := strings.TrimRight(d.RootURL, "/")
	page, err := d.Fetcher.Fetch(ctx, root+AreasPath, contentMarker)
	if err != nil {
		return nil, fmt.Errorf("fetching areas overview: %w", err)
	}
	subs, err := parseAreas(page, root)
	if err != nil {
		return nil, err
	}
	log.Info("areas overview parsed", "subareas", len(subs))

	var rows []types.CatalogRow
	for _, s := range subs {
		base := types.CatalogRow{Area: s.area, AreaDesc: s.areaDesc, Subarea: s.name, SourceHref: s.href}

		var details []types.CatalogRow
		if strings.HasPrefix(s.href, root) && !isFileLink(s.href) {
			subPage, err := d.Fetcher.Fetch(ctx, types.CleanURL(s.href), contentMarker)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Warn("subarea page failed", "url", s.href, "error", err)
			} else {
				details = parseDetails(subPage, root, base)
			}
		}
		if len(details) == 0 {
			rows = append(rows, base)
			continue
		}
		rows = append(rows, details...)
	}
	return rows, nil
}

func isFileLink(u string) bool {
	clean := types.CleanURL(u)
	if i := strings.IndexByte(clean, '?'); i >= 0 {
		clean = clean[:i]
	}
	if i := strings.LastIndexByte(clean, '.'); i >= 0 {
		return types.IsFileExtension(clean[i+1:])
	}
	return false
}

func absolute(root, href string) string {
	href = strings.TrimSpace(href)
	if strings.HasPrefix(href, "/") {
		return root + href
	}
	return href
}

// headingAnchors returns the a[href="#"] toggles inside div#content; the
// site renders every collapsible heading that way.
func headingAnchors(doc *html.Node) ([]*html.Node, error) {
	content := dom.Find(doc, dom.And(dom.Tag(atom.Div), dom.ID("content")))
	if content == nil {
		return nil, fmt.Errorf("page has no div#content")
	}
	return dom.FindAll(content, dom.And(dom.Tag(atom.A), dom.AttrEquals("href", "#"))), nil
}

// parseAreas reads the areas overview: each heading anchor holds the area
// name with its description in <em>; the lists following the anchor's
// parent hold the subarea links.
func parseAreas(page, root string) ([]subarea, error) {
	doc, err := dom.Parse(page)
	if err != nil {
		return nil, fmt.Errorf("parsing areas overview: %w", err)
	}
	anchors, err := headingAnchors(doc)
	if err != nil {
		return nil, err
	}

	var out []subarea
	for _, a := range anchors {
		desc := dom.Text(dom.Find(a, dom.Tag(atom.Em)))
		name := strings.TrimSpace(strings.Replace(dom.Text(a), desc, "", 1))
		if a.Parent == nil {
			continue
		}
		for _, sib := range dom.NextElementSiblings(a.Parent) {
			for _, li := range dom.FindAll(sib, dom.Tag(atom.Li)) {
				link := dom.Find(li, dom.And(dom.Tag(atom.A), dom.HasAttr("href")))
				if link == nil {
					continue
				}
				href, _ := dom.Attr(link, "href")
				out = append(out, subarea{
					area:     name,
					areaDesc: desc,
					name:     dom.Text(li),
					href:     absolute(root, href),
				})
			}
		}
	}
	return out, nil
}

// parseDetails reads a subarea page and returns one row per link found in
// the recognized sections.
func parseDetails(page, root string, base types.CatalogRow) []types.CatalogRow {
	doc, err := dom.Parse(page)
	if err != nil {
		return nil
	}
	anchors, err := headingAnchors(doc)
	if err != nil {
		return nil
	}

	var rows []types.CatalogRow
	for _, a := range anchors {
		title := dom.Text(a)
		if !detailSections[title] || a.Parent == nil {
			continue
		}
		siblings := dom.NextElementSiblings(a.Parent)
		var texts []string
		for _, sib := range siblings {
			texts = append(texts, dom.Text(sib))
		}
		sectionText := strings.TrimSpace(strings.ReplaceAll(strings.Join(texts, "\n"), " Bigstock", " "))

		for _, sib := range siblings {
			for _, link := range dom.FindAll(sib, dom.And(dom.Tag(atom.A), dom.HasAttr("href"))) {
				href, _ := dom.Attr(link, "href")
				if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "mailto:") {
					continue
				}
				row := base
				row.Section = title
				row.SectionText = sectionText
				row.DetailsName = dom.Text(link)
				row.DetailsHref = absolute(root, href)
				rows = append(rows, row)
			}
		}
	}
	return rows
}
