// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dom holds the small set of HTML tree queries the resolvers,
// discovery and the HTML converter share.
package dom

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Matcher selects nodes during a tree walk.
type Matcher func(n *html.Node) bool

// Parse parses an HTML document.
func Parse(s string) (*html.Node, error) {
	return html.Parse(strings.NewReader(s))
}

// Tag matches element nodes of the given type.
func Tag(a atom.Atom) Matcher {
	return func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == a
	}
}

// ID matches the element with the given id attribute.
func ID(id string) Matcher {
	return func(n *html.Node) bool {
		v, ok := Attr(n, "id")
		return n.Type == html.ElementNode && ok && v == id
	}
}

// Class matches elements carrying class c among their classes.
func Class(c string) Matcher {
	return func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		v, _ := Attr(n, "class")
		for _, f := range strings.Fields(v) {
			if f == c {
				return true
			}
		}
		return false
	}
}

// HasAttr matches elements with the attribute key present.
func HasAttr(key string) Matcher {
	return func(n *html.Node) bool {
		_, ok := Attr(n, key)
		return n.Type == html.ElementNode && ok
	}
}

// AttrEquals matches elements whose attribute key equals val.
func AttrEquals(key, val string) Matcher {
	return func(n *html.Node) bool {
		v, ok := Attr(n, key)
		return n.Type == html.ElementNode && ok && v == val
	}
}

// And matches when every matcher matches.
func And(ms ...Matcher) Matcher {
	return func(n *html.Node) bool {
		for _, m := range ms {
			if !m(n) {
				return false
			}
		}
		return true
	}
}

// Find returns the first node in document order below n (inclusive) that
// matches, or nil.
func Find(n *html.Node, m Matcher) *html.Node {
	if n == nil {
		return nil
	}
	if m(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := Find(c, m); found != nil {
			return found
		}
	}
	return nil
}

// FindAll returns every node below n (inclusive) that matches, in document order.
func FindAll(n *html.Node, m Matcher) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		if m(x) {
			out = append(out, x)
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// Attr returns the value of attribute key on n.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

// Text returns the text content of n with whitespace runs collapsed.
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(x *html.Node) {
		if x.Type == html.TextNode {
			sb.WriteString(x.Data)
			sb.WriteByte(' ')
		}
		if x.Type == html.ElementNode && (x.DataAtom == atom.Script || x.DataAtom == atom.Style) {
			return
		}
		for c := x.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

// NextElementSiblings returns the element siblings following n.
func NextElementSiblings(n *html.Node) []*html.Node {
	var out []*html.Node
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			out = append(out, s)
		}
	}
	return out
}

// Render serializes n back to HTML.
func Render(n *html.Node) string {
	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return ""
	}
	return buf.String()
}

// Resolve resolves href against base; it returns href unchanged when either
// fails to parse.
func Resolve(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}
