package wordimport

import (
	"regexp"
	"sort"
	"strings"
)

var (
	questionNumberCell = regexp.MustCompile(`^(\d+)\.$`)
	optionLetterCell   = regexp.MustCompile(`^([A-Da-d])\.$`)
)

// tableExtractor reads documents where every question is a run of table rows:
// a "N." row carrying the stem followed by "A."–"D." rows carrying options.
type tableExtractor struct{}

type openTableQuestion struct {
	number string
	q      InlineQuestion
}

// fragment closes the question. Options are put in letter order first, since
// the inline form is read from the first "A." onwards.
func (o *openTableQuestion) fragment() RawFragment {
	sort.SliceStable(o.q.Options, func(i, j int) bool { return o.q.Options[i].Letter < o.q.Options[j].Letter })
	return RawFragment{Number: o.number, Content: o.q.Encode(), Section: o.q.Section}
}

func (tableExtractor) extract(doc string, sc *scan) extraction {
	var out extraction
	state := newSectionState()
	lastEnd := 0

	for _, table := range topLevelBlocks(doc, "table") {
		state = sc.observe(state, doc[lastEnd:table.start])
		lastEnd = table.end

		var open *openTableQuestion
		tableMarkup := table.inner(doc)
		for _, row := range childBlocks(tableMarkup, rowTags, tableTags) {
			rowMarkup := row.inner(tableMarkup)
			cells := childBlocks(rowMarkup, cellTags, tableTags)
			if len(cells) < 2 {
				continue
			}
			head := normalizeInline(cells[0].inner(rowMarkup))
			body := cells[1].inner(rowMarkup)

			if m := questionNumberCell.FindStringSubmatch(head); m != nil {
				if open != nil {
					out.fragments = append(out.fragments, open.fragment())
				}
				_, state = state.next()
				open = &openTableQuestion{
					number: m[1],
					q:      InlineQuestion{Section: state.section, Stem: strings.TrimSpace(body)},
				}
				continue
			}

			if m := optionLetterCell.FindStringSubmatch(head); m != nil && open != nil {
				open.q.Options = append(open.q.Options, InlineOption{
					Letter:  strings.ToUpper(m[1]),
					Text:    normalizeInline(body),
					Correct: hasCorrectnessMarker(body),
				})
			}
		}
		if open != nil {
			out.fragments = append(out.fragments, open.fragment())
		}
	}
	return out
}
