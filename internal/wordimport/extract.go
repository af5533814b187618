package wordimport

import "log"

// extractor turns a whole document into ordered fragments. There is one
// implementation per Strategy and exactly one runs per document.
type extractor interface {
	extract(doc string, sc *scan) extraction
}

type extraction struct {
	fragments   []RawFragment
	boilerplate int
}

// scan carries what an extractor needs besides the document itself.
type scan struct {
	rules  *ruleset
	logger *log.Logger
}

func (sc *scan) observe(state sectionState, between string) sectionState {
	next := state.observe(between, sc.rules)
	if next.switches != state.switches {
		sc.logger.Printf("wordimport: section %s starts", next.section)
	}
	return next
}

func extractorFor(s Strategy) extractor {
	switch s {
	case StrategyTable:
		return tableExtractor{}
	case StrategyList:
		return listExtractor{}
	default:
		return fallbackExtractor{}
	}
}
