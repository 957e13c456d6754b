// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/pdiddy/legal-ingest/internal/container"
	"github.com/pdiddy/legal-ingest/internal/state"
	"github.com/pdiddy/legal-ingest/pkg/types"
)

func staticBackend(text string, err error) Backend {
	return BackendFunc(func(context.Context, string) (string, error) { return text, err })
}

func writeRaw(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("raw"), 0o644))
	return p
}

func TestClean(t *testing.T) {
	in := "# Naslov  \r\n\r\n![logo](data:image/png;base64,iVBORw0KGgo=)\n\n\n\nBesedilo\n" +
		`<img src="data:image/jpeg;base64,/9j/4AAQ">` + "\n"
	got := Clean(in)
	assert.NotContains(t, got, "base64")
	assert.NotContains(t, got, "\n\n\n")
	assert.True(t, strings.HasPrefix(got, "# Naslov\n\nBesedilo"), got)
}

func TestPageText(t *testing.T) {
	stream := []byte("BT\n/F1 12 Tf\n(Hello) Tj\n0 -14 Td\n(World) Tj\nT*\n[(Fo)-20(o)] TJ\nET\n")
	assert.Equal(t, "Hello World\nFoo", pageText(stream))
}

func TestDecodePDFString(t *testing.T) {
	assert.Equal(t, `a(b)\cA`, decodePDFString([]byte(`a\(b\)\\c\101`)))
	assert.Equal(t, "x\ny", decodePDFString([]byte(`x\ny`)))
}

func TestHTMLConvert(t *testing.T) {
	page := `<html><head><script>alert(1)</script><style>p{}</style></head><body>
<nav>Domov Kontakt</nav>
<header>Glava strani</header>
<h1>Zakon o davku</h1>
<p>Glej <a href="https://example.com/zakon">besedilo zakona</a> za podrobnosti.</p>
<img src="data:image/png;base64,AAAA" alt="slika">
<table><tr><th>Naziv</th><th>Stopnja</th></tr><tr><td>DDV</td><td>22</td></tr></table>
<footer>Noga</footer>
</body></html>`

	md, err := NewHTML().Convert(page)
	require.NoError(t, err)

	assert.Contains(t, md, "Zakon o davku")
	assert.Contains(t, md, "besedilo zakona")
	assert.Contains(t, md, "Stopnja")
	assert.Contains(t, md, "|")
	for _, gone := range []string{"alert", "Domov", "Glava strani", "Noga", "example.com", "base64"} {
		assert.NotContains(t, md, gone)
	}
}

func TestPipeTable(t *testing.T) {
	rows := [][]string{
		{"Naziv", "Stopnja"},
		{},
		{"DDV", "22", "splošna"},
		{"a|b"},
	}
	want := "| Naziv | Stopnja |  |\n" +
		"| --- | --- | --- |\n" +
		"| DDV | 22 | splošna |\n" +
		`| a\|b |  |  |` + "\n"
	assert.Equal(t, want, pipeTable(rows))
	assert.Empty(t, pipeTable([][]string{{" "}}))
}

func TestExtractXLSX(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Naziv"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Stopnja"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "DDV"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "22"))
	path := filepath.Join(t.TempDir(), "stopnje.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	got, err := ExtractXLSX(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, got, "## Sheet1")
	assert.Contains(t, got, "| Naziv | Stopnja |")
	assert.Contains(t, got, "| DDV | 22 |")
}

// fakeRunner records tool invocations. For soffice it writes the converted
// .docx into the work dir the way LibreOffice does.
type fakeRunner struct {
	calls   []string
	workDir []string
	pandoc  string
}

func (f *fakeRunner) Run(_ context.Context, tool container.Tool, workDir string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, tool.Bin+" "+strings.Join(args, " "))
	f.workDir = append(f.workDir, workDir)
	switch tool.Bin {
	case "soffice":
		name := args[len(args)-1]
		out := strings.TrimSuffix(name, filepath.Ext(name)) + ".docx"
		return nil, os.WriteFile(filepath.Join(workDir, out), []byte("docx"), 0o644)
	case "pandoc":
		return []byte(f.pandoc), nil
	}
	return nil, errors.New("unexpected tool " + tool.Bin)
}

func TestOfficeDOCX(t *testing.T) {
	dir := t.TempDir()
	path := writeRaw(t, dir, "Pravilnik.docx")
	r := &fakeRunner{pandoc: "# Pravilnik\n"}
	o := &Office{Runner: r, Pandoc: container.Tool{Bin: "pandoc"}, Soffice: container.Tool{Bin: "soffice"}}

	got, err := o.ExtractDOCX(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "# Pravilnik\n", got)
	assert.Equal(t, []string{"pandoc -f docx -t markdown --wrap=none Pravilnik.docx"}, r.calls)
	assert.Equal(t, []string{dir}, r.workDir)
}

func TestOfficeDOC(t *testing.T) {
	dir := t.TempDir()
	path := writeRaw(t, dir, "Navodilo.doc")
	r := &fakeRunner{pandoc: "Navodilo"}
	o := &Office{Runner: r, Pandoc: container.Tool{Bin: "pandoc"}, Soffice: container.Tool{Bin: "soffice"}}

	got, err := o.ExtractDOC(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Navodilo", got)
	require.Len(t, r.calls, 2)
	assert.Equal(t, "soffice --headless --convert-to docx --outdir . Navodilo.doc", r.calls[0])
	assert.Equal(t, "pandoc -f docx -t markdown --wrap=none Navodilo.docx", r.calls[1])

	// The scratch directory is gone; only the original remains.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Navodilo.doc", entries[0].Name())
}

func TestConvert(t *testing.T) {
	ctx := context.Background()
	raw := t.TempDir()
	out := t.TempDir()
	c := &Converter{OutDir: out}
	c.Register(types.FileTypePDF, staticBackend("Člen 1\n\n\n\nBesedilo  ", nil))

	path, err := c.Convert(ctx, writeRaw(t, raw, "Zakon.pdf"), types.FileTypePDF)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "Zakon.txt"), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Člen 1\n\nBesedilo\n", string(data))

	_, err = c.Convert(ctx, writeRaw(t, raw, "slide.ppt"), types.FileTypePPT)
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestConvertEmptyOutputRemovesFile(t *testing.T) {
	ctx := context.Background()
	out := t.TempDir()
	c := &Converter{OutDir: out}
	c.Register(types.FileTypeHTML, staticBackend("![](data:image/png;base64,AAAA)\n", nil))

	stale := filepath.Join(out, "Stran.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	_, err := c.Convert(ctx, writeRaw(t, t.TempDir(), "Stran.html"), types.FileTypeHTML)
	assert.ErrorIs(t, err, ErrEmptyOutput)
	assert.NoFileExists(t, stale)
}

func TestBatchRun(t *testing.T) {
	ctx := context.Background()
	raw := t.TempDir()
	out := t.TempDir()

	store, err := state.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	c := &Converter{OutDir: out}
	c.Register(types.FileTypePDF, staticBackend("vsebina", nil))
	c.Register(types.FileTypeHTML, staticBackend("", errors.New("broken page")))

	docs := []types.DownloadedDocument{
		{FileID: "ok", Filename: "A.pdf", FileType: types.FileTypePDF, RawFilepath: writeRaw(t, raw, "A.pdf")},
		{FileID: "bad", Filename: "B.html", FileType: types.FileTypeHTML, RawFilepath: writeRaw(t, raw, "B.html")},
		{FileID: "ppt", Filename: "C.ppt", FileType: types.FileTypePPT, RawFilepath: writeRaw(t, raw, "C.ppt")},
		{FileID: "backfill", Filename: "D.pdf", FileType: types.FileTypePDF, RawFilepath: writeRaw(t, raw, "D.pdf")},
	}
	for _, d := range docs {
		require.NoError(t, store.UpsertDocument(ctx, d))
	}
	require.NoError(t, os.WriteFile(filepath.Join(out, "D.txt"), []byte("earlier run"), 0o644))

	b := &Batch{Converter: c, Store: store}
	var buf bytes.Buffer
	res, err := b.Run(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Converted: 1, Skipped: 2, Failed: 1}, res)
	assert.True(t, res.HasFailures())
	assert.Contains(t, buf.String(), "converted: A.txt")
	assert.Contains(t, buf.String(), "failed:  B.html (")
	assert.Contains(t, buf.String(), "skipped: D.pdf (already exists)")
	assert.Contains(t, buf.String(), "Convert summary: 1 converted, 2 skipped, 1 failed (total: 4)")

	ok, _, err := store.Document(ctx, "ok")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "A.txt"), ok.ProcessedFilepath)
	backfill, _, err := store.Document(ctx, "backfill")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "D.txt"), backfill.ProcessedFilepath)
	bad, _, err := store.Document(ctx, "bad")
	require.NoError(t, err)
	assert.Empty(t, bad.ProcessedFilepath)

	// Converted documents are not revisited.
	buf.Reset()
	res, err = b.Run(ctx, &buf)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Converted)
	assert.NotContains(t, buf.String(), "A.pdf")
	assert.NotContains(t, buf.String(), "D.pdf")
}
