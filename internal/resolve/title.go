// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"strings"
	"unicode"
)

// MaxTitleLen bounds sanitized titles, in runes.
const MaxTitleLen = 100

var titleReplacer = strings.NewReplacer(" ", "_", "(", "-", ")", "_", "/", "_")

// SafeTitle turns a document title into a filesystem-safe base name:
// spaces become underscores, "(" becomes "-", ")" and "/" become
// underscores, any other character that is not a letter, digit, "_", "-"
// or "." is dropped, and the result is cut to MaxTitleLen runes with
// trailing non-alphanumerics and leading dots removed.
func SafeTitle(title string) (string, error) {
	t := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		return r
	}, strings.TrimSpace(title))
	t = titleReplacer.Replace(t)
	t = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' || r == '.' {
			return r
		}
		return -1
	}, t)

	if runes := []rune(t); len(runes) > MaxTitleLen {
		t = string(runes[:MaxTitleLen])
	}
	t = strings.TrimLeft(t, ".")
	t = strings.TrimRightFunc(t, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if t == "" {
		return "", ErrEmptyTitle
	}
	return t, nil
}

// headingTitle keeps only letters, digits, whitespace, parentheses and
// hyphens of a page heading.
func headingTitle(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '(' || r == ')' || r == '-' {
			return r
		}
		return -1
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
