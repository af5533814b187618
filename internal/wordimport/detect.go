package wordimport

import (
	"regexp"
	"strings"
)

type Strategy string

const (
	StrategyTable    Strategy = "table"
	StrategyList     Strategy = "ordered-list"
	StrategyFallback Strategy = "fallback-positional"
)

var (
	chooseInstructionPattern = regexp.MustCompile(`(?i)choose\s+the\s+(?:correct|right|best)\s+answer|pilihlah\s+(?:salah\s+satu\s+)?jawaban`)
	paragraphOpenPattern     = regexp.MustCompile(`(?i)<p\b[^>]*>`)
	firstQuestionPattern     = regexp.MustCompile(`(?i)(?:<p\b[^>]*>|\n)\s*1\.\s+`)
)

// TrimPreamble drops the header and instructions that precede the first real
// question, so that words like "essay" in exam rules are not taken for
// section markers. A cut never lands inside a table or a list, and the "1."
// cut is skipped when questions laid out as a table or a list come earlier.
func TrimPreamble(doc string) string {
	if loc := chooseInstructionPattern.FindStringIndex(doc); loc != nil {
		if start := enclosingParagraph(doc, loc[0]); start >= 0 && !insideBlock(doc, start, "table", "ol") {
			doc = doc[start:]
		}
	}
	if loc := firstQuestionPattern.FindStringIndex(doc); loc != nil && loc[0] > 0 {
		if !insideBlock(doc, loc[0], "table", "ol") && !questionsBefore(doc, loc[0]) {
			doc = doc[loc[0]:]
		}
	}
	return doc
}

// enclosingParagraph returns the offset of the <p> that is still open at pos,
// or -1.
func enclosingParagraph(doc string, pos int) int {
	opens := paragraphOpenPattern.FindAllStringIndex(doc[:pos], -1)
	if len(opens) == 0 {
		return -1
	}
	last := opens[len(opens)-1][0]
	if strings.Contains(strings.ToLower(doc[last:pos]), "</p") {
		return -1
	}
	return last
}

// questionsBefore reports whether a table with a numbered question row or an
// ordered list with items starts before pos. A header table of student
// details has no "N." row and does not count.
func questionsBefore(doc string, pos int) bool {
	for _, t := range topLevelBlocks(doc, "table") {
		if t.start >= pos {
			break
		}
		if tableHasQuestionRow(t.inner(doc)) {
			return true
		}
	}
	for _, l := range topLevelBlocks(doc, "ol") {
		if l.start >= pos {
			break
		}
		if len(childBlocks(l.inner(doc), itemTags, listTags)) > 0 {
			return true
		}
	}
	return false
}

func tableHasQuestionRow(markup string) bool {
	for _, row := range childBlocks(markup, rowTags, tableTags) {
		rowMarkup := row.inner(markup)
		cells := childBlocks(rowMarkup, cellTags, tableTags)
		if len(cells) > 0 && questionNumberCell.MatchString(normalizeInline(cells[0].inner(rowMarkup))) {
			return true
		}
	}
	return false
}

// DetectStrategy picks the extractor for a (preamble-trimmed) document. The
// first matching rule wins: a table with rows, an ordered list with items,
// otherwise positional numbering.
func DetectStrategy(doc string) Strategy {
	for _, t := range topLevelBlocks(doc, "table") {
		if len(childBlocks(t.inner(doc), rowTags, tableTags)) > 0 {
			return StrategyTable
		}
	}
	for _, l := range topLevelBlocks(doc, "ol") {
		if len(childBlocks(l.inner(doc), itemTags, listTags)) > 0 {
			return StrategyList
		}
	}
	return StrategyFallback
}
