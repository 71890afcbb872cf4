package helpers

import (
	"html"
	"regexp"
	"strings"
)

var (
	commentRe    = regexp.MustCompile(`<!--[\s\S]*?-->`)
	blockBreakRe = regexp.MustCompile(`(?i)<br\s*/?>|</(?:p|div|li|h[1-6]|blockquote|tr|jats:p)>`)
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	spaceRe      = regexp.MustCompile(`\s+`)
)

// StripHTML turns markup found in abstracts and titles (HTML, and the JATS
// tags Crossref deposits carry) into plain text with entities decoded and
// whitespace collapsed.
func StripHTML(s string) string {
	if !IsHTML(s) && !strings.Contains(s, "&") {
		return NormalizeWhitespace(s)
	}
	s = commentRe.ReplaceAllString(s, "")
	s = blockBreakRe.ReplaceAllString(s, " ")
	s = tagRe.ReplaceAllString(s, "")
	return NormalizeWhitespace(html.UnescapeString(s))
}

// IsHTML reports whether s appears to contain markup.
func IsHTML(s string) bool {
	return tagRe.MatchString(s)
}

// NormalizeWhitespace collapses runs of whitespace, newlines included, to
// single spaces and trims.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
