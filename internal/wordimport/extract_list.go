package wordimport

import (
	"strconv"
	"unicode/utf8"
)

// listExtractor reads documents where questions are <li> items of ordered
// lists. List items carry no visible number, so questions are numbered by
// position within their section.
type listExtractor struct{}

var optionLetters = []string{"A", "B", "C", "D"}

func (listExtractor) extract(doc string, sc *scan) extraction {
	var out extraction
	state := newSectionState()
	pos := 0

	for _, m := range sc.rules.sectionMarker.FindAllStringIndex(doc, -1) {
		state = collectListItems(doc[pos:m[0]], state, sc, &out)
		if section, ok := sc.rules.classify(doc[m[0]:m[1]]); ok {
			// Only an essay heading restarts numbering: many documents open
			// straight into multiple choice without a heading.
			state = state.enter(section, section == Essay)
			sc.logger.Printf("wordimport: section %s starts", section)
		}
		pos = m[1]
	}
	collectListItems(doc[pos:], state, sc, &out)
	return out
}

func collectListItems(segment string, state sectionState, sc *scan, out *extraction) sectionState {
	for _, ol := range topLevelBlocks(segment, "ol") {
		items := ol.inner(segment)
		for _, li := range childBlocks(items, itemTags, listTags) {
			content := li.inner(items)
			text := normalizeInline(content)

			if text == "" && li.unclosed {
				// cut in half by a section marker inside the item
				continue
			}
			if sc.rules.isInstruction(text) {
				sc.logger.Printf("wordimport: skipping instruction item %q", text)
				out.boilerplate++
				continue
			}
			if text != "" && utf8.RuneCountInString(text) < sc.rules.MinItemLength {
				out.boilerplate++
				continue
			}

			if state.section == MultipleChoice {
				content = inlineNestedOptions(content, state.section)
			}
			var n int
			n, state = state.next()
			out.fragments = append(out.fragments, RawFragment{
				Number:  strconv.Itoa(n),
				Content: content,
				Section: state.section,
			})
		}
	}
	return state
}

// inlineNestedOptions handles items whose options are a nested lettered list
// (Word's "a. b. c. d." numbering has no letters in the text). Two to four
// nested items are rewritten to inline option form; anything else is left
// alone.
func inlineNestedOptions(content string, section SectionType) string {
	nested := topLevelBlocks(content, "ol")
	if len(nested) == 0 {
		return content
	}
	first := nested[0]
	inner := first.inner(content)
	items := childBlocks(inner, itemTags, listTags)
	if len(items) < 2 || len(items) > len(optionLetters) {
		return content
	}

	q := InlineQuestion{Section: section, Stem: content[:first.start] + content[first.end:]}
	for i, it := range items {
		raw := it.inner(inner)
		q.Options = append(q.Options, InlineOption{
			Letter:  optionLetters[i],
			Text:    normalizeInline(raw),
			Correct: hasCorrectnessMarker(raw),
		})
	}
	return q.Encode()
}
