package wordimport

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	lineBreakTagPattern = regexp.MustCompile(`(?i)<br\s*/?>|</p\s*>`)
	anyTagPattern       = regexp.MustCompile(`<[^>]*>`)
	horizontalSpace     = regexp.MustCompile(`[ \t\f\v\r]+`)
	spaceAroundNewline  = regexp.MustCompile(` ?\n ?`)
	blankLinePattern    = regexp.MustCompile(`\n\s*\n`)
)

var entityReplacer = strings.NewReplacer(
	"&nbsp;", " ",
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
)

// Normalize reduces a markup fragment to plain text. Line breaks and paragraph
// ends become newlines, every other tag is dropped, the common named entities
// are unescaped and blank lines collapse. Text is returned in NFC so letters
// typed with combining accents compare equal to precomposed ones.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = lineBreakTagPattern.ReplaceAllString(s, "\n")
	s = anyTagPattern.ReplaceAllString(s, "")
	s = entityReplacer.Replace(s)
	s = norm.NFC.String(s)
	s = horizontalSpace.ReplaceAllString(s, " ")
	s = spaceAroundNewline.ReplaceAllString(s, "\n")
	s = blankLinePattern.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// normalizeInline is Normalize folded onto a single line.
func normalizeInline(s string) string {
	return strings.Join(strings.Fields(Normalize(s)), " ")
}

// stripTags removes tags leaving a space in their place, used for keyword
// matching where word boundaries matter more than layout.
func stripTags(s string) string {
	s = anyTagPattern.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "&nbsp;", " ")
	return strings.Join(strings.Fields(s), " ")
}
