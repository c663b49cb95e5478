// Package sanitize cleans names and text received from the broker.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	spaceRun   = regexp.MustCompile(`[ \t]+`)
	newlineRun = regexp.MustCompile(`\n+`)
)

// invisibleChars are zero-width and formatting code points that sneak into
// copied names and query documents.
var invisibleChars = []string{
	"\u200B", // Zero-width space
	"\u200C", // Zero-width non-joiner
	"\u200D", // Zero-width joiner
	"\uFEFF", // BOM
	"\u00AD", // Soft hyphen
	"\u2060", // Word joiner
	"\u180E", // Mongolian vowel separator
}

// Text normalizes free text: line endings, invisible characters and runs of whitespace.
func Text(s string) string {
	if s == "" {
		return s
	}
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = removeInvisibleChars(s)
	s = normalizeWhitespace(s)
	return strings.TrimSpace(s)
}

// Field removes invisible characters and surrounding whitespace.
func Field(field string) string {
	if field == "" {
		return field
	}
	return strings.TrimSpace(removeInvisibleChars(field))
}

// Filename prepares a broker-supplied file name for local use: invisible
// characters and control characters are dropped and whitespace is trimmed.
// It does not validate path safety; see validation.ValidateFilename.
func Filename(name string) string {
	name = Field(name)
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
}

func removeInvisibleChars(s string) string {
	for _, char := range invisibleChars {
		s = strings.ReplaceAll(s, char, "")
	}
	return s
}

func normalizeWhitespace(s string) string {
	s = spaceRun.ReplaceAllString(s, " ")
	return newlineRun.ReplaceAllString(s, "\n")
}
