package wordimport

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var (
	imageTagPattern   = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	boldTagPattern    = regexp.MustCompile(`(?i)<(?:strong|b)(?:\s[^>]*)?>`)
	redColorPattern   = regexp.MustCompile(`(?i)(?:^|[^-\w])color\s*:\s*(?:red\b|#ff0000\b|#f00\b|rgb\(\s*255\s*,\s*0\s*,\s*0\s*\))`)
	blockClosePattern = regexp.MustCompile(`(?i)</(?:p|li|td|th|tr|div|h[1-6]|ol|ul|table)\s*>|<br\s*/?>`)
)

var (
	rowTags  = []string{"tr"}
	cellTags = []string{"td", "th"}
	itemTags = []string{"li"}

	tableTags = []string{"table"}
	listTags  = []string{"ol", "ul"}
)

// hasCorrectnessMarker reports whether raw markup carries the typographic
// signal authors use for the answer key: bold emphasis or red text.
func hasCorrectnessMarker(raw string) bool {
	return boldTagPattern.MatchString(raw) || redColorPattern.MatchString(raw)
}

type span struct {
	start, end           int // outer bounds, tags included
	innerStart, innerEnd int
	unclosed             bool
}

func (s span) outer(doc string) string { return doc[s.start:s.end] }
func (s span) inner(doc string) string { return doc[s.innerStart:s.innerEnd] }

type tagToken struct {
	name       string
	start, end int
	closing    bool
}

// tagTokens lists the start and end tags of doc with their byte offsets.
// Offsets come from the raw token text, so slicing doc between them keeps the
// author's markup untouched. Self-closing tags open nothing and are skipped.
func tagTokens(doc string) []tagToken {
	z := html.NewTokenizer(strings.NewReader(doc))
	var out []tagToken
	pos := 0
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			return out
		}
		n := len(z.Raw())
		if tt == html.StartTagToken || tt == html.EndTagToken {
			name, _ := z.TagName()
			out = append(out, tagToken{
				name:    string(name),
				start:   pos,
				end:     min(pos+n, len(doc)),
				closing: tt == html.EndTagToken,
			})
		}
		pos += n
	}
}

func isOneOf(name string, names []string) bool {
	for _, n := range names {
		if name == n {
			return true
		}
	}
	return false
}

// topLevelBlocks returns the outermost balanced <tag>…</tag> elements in doc.
// Nested elements of the same name stay inside their parent. An element left
// open at the end of the document runs to the end.
func topLevelBlocks(doc, tag string) []span {
	var out []span
	depth := 0
	var cur span
	for _, t := range tagTokens(doc) {
		if t.name != tag {
			continue
		}
		switch {
		case !t.closing:
			if depth == 0 {
				cur = span{start: t.start, innerStart: t.end}
			}
			depth++
		case depth > 0:
			depth--
			if depth == 0 {
				cur.innerEnd = t.start
				cur.end = t.end
				out = append(out, cur)
			}
		}
	}
	if depth > 0 {
		cur.innerEnd = len(doc)
		cur.end = len(doc)
		cur.unclosed = true
		out = append(out, cur)
	}
	return out
}

// childBlocks returns the elements named in names that belong to doc itself
// rather than to a nested container: rows of this table and not of a table
// inside one of its cells, items of this list and not of a sub-list. An
// element whose end tag was left out ends where the next sibling starts.
func childBlocks(doc string, names, nested []string) []span {
	var out []span
	var cur *span
	depth := 0
	for _, t := range tagTokens(doc) {
		switch {
		case isOneOf(t.name, nested):
			if !t.closing {
				depth++
			} else if depth > 0 {
				depth--
			}
		case depth > 0 || !isOneOf(t.name, names):
		case !t.closing:
			if cur != nil {
				cur.innerEnd, cur.end = t.start, t.start
				out = append(out, *cur)
			}
			cur = &span{start: t.start, innerStart: t.end}
		case cur != nil:
			cur.innerEnd, cur.end = t.start, t.end
			out = append(out, *cur)
			cur = nil
		}
	}
	if cur != nil {
		cur.innerEnd, cur.end = len(doc), len(doc)
		cur.unclosed = true
		out = append(out, *cur)
	}
	return out
}

// insideBlock reports whether pos falls inside one of the given elements.
func insideBlock(doc string, pos int, tags ...string) bool {
	for _, tag := range tags {
		for _, b := range topLevelBlocks(doc, tag) {
			if pos > b.start && pos < b.end {
				return true
			}
		}
	}
	return false
}

type imageRef struct {
	src        string
	start, end int
}

// findImages lists every <img> carrying a src attribute, in document order.
func findImages(markup string) []imageRef {
	var out []imageRef
	for _, loc := range imageTagPattern.FindAllStringIndex(markup, -1) {
		src := imageSource(markup[loc[0]:loc[1]])
		if src == "" {
			continue
		}
		out = append(out, imageRef{src: src, start: loc[0], end: loc[1]})
	}
	return out
}

func removeImages(markup string) string {
	return imageTagPattern.ReplaceAllString(markup, "")
}

// imageSource reads the src attribute of a single img tag. The tokenizer copes
// with single, double and missing quotes, which a regexp would not.
func imageSource(tag string) string {
	z := html.NewTokenizer(strings.NewReader(tag))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			if !strings.EqualFold(string(name), "img") {
				continue
			}
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if strings.EqualFold(string(key), "src") {
					return strings.TrimSpace(string(val))
				}
			}
			return ""
		}
	}
}
