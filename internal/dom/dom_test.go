// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html/atom"
)

const page = `<html><head><title>T</title><style>.x{}</style></head><body>
<div id="content"><h1 class="title big">Zakon  o
 davku</h1>
<p>first</p><p>second</p>
<div id="fileBtns"><a href="doc.html">html</a><a href="files/doc.pdf">pdf</a></div>
</div></body></html>`

func TestQueries(t *testing.T) {
	doc, err := Parse(page)
	require.NoError(t, err)

	h1 := Find(doc, Tag(atom.H1))
	require.NotNil(t, h1)
	assert.Equal(t, "Zakon o davku", Text(h1))
	assert.NotNil(t, Find(doc, And(Tag(atom.H1), Class("big"))))
	assert.Nil(t, Find(doc, Class("missing")))

	btns := Find(doc, ID("fileBtns"))
	require.NotNil(t, btns)
	links := FindAll(btns, And(Tag(atom.A), HasAttr("href")))
	require.Len(t, links, 2)
	href, ok := Attr(links[1], "href")
	assert.True(t, ok)
	assert.Equal(t, "files/doc.pdf", href)

	p := Find(doc, Tag(atom.P))
	assert.Len(t, NextElementSiblings(p), 2)
	assert.Contains(t, Render(p), "<p>first</p>")
}

func TestResolve(t *testing.T) {
	assert.Equal(t, "http://pisrs.si/Pis.web/files/a.pdf", Resolve("http://pisrs.si/Pis.web/pregledPredpisa", "files/a.pdf"))
	assert.Equal(t, "https://www.fu.gov.si/davki", Resolve("https://www.fu.gov.si/podrocja", "/davki"))
	assert.Equal(t, "https://other.si/x", Resolve("https://www.fu.gov.si/", "https://other.si/x"))
}
