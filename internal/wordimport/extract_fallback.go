package wordimport

import (
	"regexp"
	"strconv"
)

var (
	boundaryNumberPattern = regexp.MustCompile(`(?i)(?:^|<p\b[^>]*>|</p\s*>|\n)\s*(?:<[^>]*>\s*)*(\d+)\.\s*`)
	bareNumberPattern     = regexp.MustCompile(`(\d+)\.\s+`)
)

// fallbackExtractor splits running text on "N." markers. It recognises no
// section headings, so the whole document shares one section.
type fallbackExtractor struct{}

type numberMarker struct {
	number     string
	start, end int
}

func (fallbackExtractor) extract(doc string, sc *scan) extraction {
	markers := boundaryMarkers(doc)
	if len(markers) == 0 {
		markers = bareMarkers(doc, sc.rules.MaxBareNumber)
		if len(markers) > 0 {
			sc.logger.Printf("wordimport: using bare numbering, %d markers", len(markers))
		}
	}

	var out extraction
	for i, m := range markers {
		end := len(doc)
		if i+1 < len(markers) {
			end = markers[i+1].start
		}
		out.fragments = append(out.fragments, RawFragment{
			Number:  m.number,
			Content: doc[m.end:end],
			Section: MultipleChoice,
		})
	}
	return out
}

// boundaryMarkers finds numbers that open a paragraph or a line. "3.14" style
// decimals are not markers.
func boundaryMarkers(doc string) []numberMarker {
	var out []numberMarker
	for _, m := range boundaryNumberPattern.FindAllStringSubmatchIndex(doc, -1) {
		dot := m[3]
		if dot+1 < len(doc) && isDigit(doc[dot+1]) {
			continue
		}
		out = append(out, numberMarker{number: doc[m[2]:m[3]], start: m[0], end: m[1]})
	}
	return out
}

// bareMarkers accepts "N. " anywhere, bounded to 1..maxNumber so that dates,
// prices and phone numbers are not taken for questions.
func bareMarkers(doc string, maxNumber int) []numberMarker {
	var out []numberMarker
	for _, m := range bareNumberPattern.FindAllStringSubmatchIndex(doc, -1) {
		n, err := strconv.Atoi(doc[m[2]:m[3]])
		if err != nil || n < 1 || n > maxNumber {
			continue
		}
		out = append(out, numberMarker{number: doc[m[2]:m[3]], start: m[0], end: m[1]})
	}
	return out
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
