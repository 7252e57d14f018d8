package domain

import (
	"path/filepath"
	"strings"
	"unicode"
)

// NormalizeTitle trims a book title and compresses inner whitespace runs
// (including ideographic spaces) into a single ASCII space.
func NormalizeTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if prevSpace {
				continue
			}
			prevSpace = true
			b.WriteByte(' ')
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// TitleFromFilename derives a book title from an uploaded file name:
// directory parts and the extension are dropped.
func TitleFromFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return NormalizeTitle(strings.TrimSuffix(base, filepath.Ext(base)))
}
