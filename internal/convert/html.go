// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"os"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pdiddy/legal-ingest/internal/dom"
)

// boilerplate elements are removed with their content.
var boilerplate = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
	atom.Img:      true,
	atom.Picture:  true,
	atom.Svg:      true,
	atom.Iframe:   true,
	atom.Form:     true,
	atom.Button:   true,
}

// HTML renders saved web pages as Markdown text without links or images.
type HTML struct {
	md *converter.Converter
}

// NewHTML returns the HTML backend.
func NewHTML() *HTML {
	return &HTML{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// prune removes boilerplate subtrees and replaces every anchor by its
// children, so link text survives and targets do not.
func prune(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.CommentNode:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && boilerplate[c.DataAtom]:
			n.RemoveChild(c)
		case c.Type == html.ElementNode && c.DataAtom == atom.A:
			prune(c)
			for gc := c.FirstChild; gc != nil; {
				gnext := gc.NextSibling
				c.RemoveChild(gc)
				n.InsertBefore(gc, c)
				gc = gnext
			}
			n.RemoveChild(c)
		default:
			prune(c)
		}
		c = next
	}
}

// Extract reads the page at path and returns its Markdown rendering.
func (h *HTML) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading HTML: %w", err)
	}
	return h.Convert(string(data))
}

// Convert renders an HTML document as Markdown.
func (h *HTML) Convert(page string) (string, error) {
	doc, err := dom.Parse(page)
	if err != nil {
		return "", fmt.Errorf("parsing HTML: %w", err)
	}
	prune(doc)
	md, err := h.md.ConvertString(dom.Render(doc))
	if err != nil {
		return "", fmt.Errorf("rendering markdown: %w", err)
	}
	return md, nil
}
