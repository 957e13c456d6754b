// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"regexp"
	"strings"
)

var (
	// markdown image whose target is an inline payload: ![alt](data:image/png;base64,...)
	inlineImageRe = regexp.MustCompile(`!\[[^\]]*\]\(\s*data:image/[^)]*\)`)
	// any remaining bare payload, e.g. inside an HTML attribute pandoc kept
	dataURIRe  = regexp.MustCompile(`data:image/[A-Za-z0-9.+-]+;base64,[A-Za-z0-9+/=]*`)
	blankRunRe = regexp.MustCompile(`\n{3,}`)
)

// Clean strips inline base64 image payloads, trims trailing spaces on every
// line and collapses runs of blank lines. The result is trimmed.
func Clean(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = inlineImageRe.ReplaceAllString(text, "")
	text = dataURIRe.ReplaceAllString(text, "")

	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	text = strings.Join(lines, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
