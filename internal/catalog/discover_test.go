// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher map[string]string

func (f fakeFetcher) Fetch(_ context.Context, url, _ string) (string, error) {
	if page, ok := f[url]; ok {
		return page, nil
	}
	return "", errors.New("not found: " + url)
}

const areasPage = `<html><body><div id="content">
<div class="acc"><h2><a href="#">Davki <em>Obdavčitev dohodkov</em></a></h2>
<ul>
  <li><a href="/davki/ddv">Davek na dodano vrednost</a></li>
  <li><a href="http://www.pisrs.si/Pis.web/pregledPredpisa?id=ZAKO4701">ZDoh-2</a></li>
</ul></div>
<div class="acc"><h2><a href="#">Carine <em>Carinski postopki</em></a></h2>
<ul><li><a href="/carine/tarifa.pdf">Tarifa</a></li></ul></div>
</div></body></html>`

const ddvPage = `<html><body><div id="content">
<div class="sec"><h3><a href="#">Opis</a></h3>
<p>Splošno o DDV <a href="/davki/ddv/opis">Več</a></p></div>
<div class="sec"><h3><a href="#">Zakonodaja</a></h3>
<ul><li><a href="http://www.pisrs.si/Pis.web/pregledPredpisa?id=ZAKO4701#x">ZDDV-1</a></li>
<li><a href="mailto:info@fu.gov.si">pišite</a></li></ul></div>
<div class="sec"><h3><a href="#">Kontakt</a></h3>
<p><a href="/kontakt">Kontakt</a></p></div>
</div></body></html>`

func TestDiscover(t *testing.T) {
	f := fakeFetcher{
		"https://www.fu.gov.si/podrocja":  areasPage,
		"https://www.fu.gov.si/davki/ddv": ddvPage,
	}
	d := &Discoverer{Fetcher: f, RootURL: "https://www.fu.gov.si/"}

	rows, err := d.Discover(context.Background())
	require.NoError(t, err)

	var details []string
	for _, r := range rows {
		details = append(details, r.Section+"|"+r.DetailsHref)
	}
	assert.Contains(t, details, "Opis|https://www.fu.gov.si/davki/ddv/opis")
	assert.Contains(t, details, "Zakonodaja|http://www.pisrs.si/Pis.web/pregledPredpisa?id=ZAKO4701#x")
	assert.NotContains(t, details, "Kontakt|https://www.fu.gov.si/kontakt")

	byName := map[string]int{}
	for _, r := range rows {
		byName[r.Subarea]++
		assert.NotEmpty(t, r.Area)
		assert.NotEmpty(t, r.SourceHref)
	}
	assert.Equal(t, 1, byName["ZDoh-2"], "external subarea yields a bare row")
	assert.Equal(t, 1, byName["Tarifa"], "file subarea yields a bare row")

	first := rows[0]
	assert.Equal(t, "Davki", first.Area)
	assert.Equal(t, "Obdavčitev dohodkov", first.AreaDesc)
	assert.Equal(t, "https://www.fu.gov.si/davki/ddv", first.SourceHref)
}

func TestDiscoverMissingOverview(t *testing.T) {
	d := &Discoverer{Fetcher: fakeFetcher{}, RootURL: "https://www.fu.gov.si"}
	_, err := d.Discover(context.Background())
	assert.Error(t, err)
}
