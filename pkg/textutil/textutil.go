// Package textutil provides text cleanup helpers for descriptions that
// arrive as HTML fragments or scraped page content.
package textutil

import (
	"html"
	"regexp"
	"strings"
)

// MaxDescriptionLen caps stored description length.
const MaxDescriptionLen = 4000

var (
	scriptBlockPattern = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`)
	styleBlockPattern  = regexp.MustCompile(`(?is)<style[^>]*>.*?</style>`)
	tagPattern         = regexp.MustCompile(`<[^>]+>`)
	hspacePattern      = regexp.MustCompile(`[ \t\r\f\v]+`)
	blankRunPattern    = regexp.MustCompile(`\n{2,}`)
	paraRunPattern     = regexp.MustCompile(`\n{3,}`)
)

// StripHTML unescapes entities and removes markup, leaving readable text.
// Script and style bodies are dropped entirely.
func StripHTML(s string) string {
	s = html.UnescapeString(s)
	s = scriptBlockPattern.ReplaceAllString(s, " ")
	s = styleBlockPattern.ReplaceAllString(s, " ")
	s = tagPattern.ReplaceAllString(s, " ")
	s = hspacePattern.ReplaceAllString(s, " ")
	s = blankRunPattern.ReplaceAllString(s, "\n")

	return strings.TrimSpace(s)
}

// CleanText normalizes whitespace and truncates to max runes of output.
// A non-positive max falls back to MaxDescriptionLen.
func CleanText(s string, max int) string {
	if max <= 0 {
		max = MaxDescriptionLen
	}

	s = strings.TrimSpace(s)
	s = hspacePattern.ReplaceAllString(s, " ")
	s = paraRunPattern.ReplaceAllString(s, "\n\n")

	if len(s) > max {
		s = s[:max]
	}

	return strings.TrimSpace(s)
}

// NormalizeWhitespace collapses all whitespace runs to single spaces.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
