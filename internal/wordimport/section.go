package wordimport

// sectionState is the accumulator threaded through a sequential scan. Every
// method returns a new value; nothing is mutated in place.
type sectionState struct {
	section  SectionType
	counter  int
	switches int
}

func newSectionState() sectionState {
	return sectionState{section: MultipleChoice, counter: 1}
}

// observe inspects the markup between two structural blocks. A section marker
// switches the active section and restarts numbering; anything else leaves the
// state unchanged.
func (s sectionState) observe(between string, rules *ruleset) sectionState {
	section, ok := rules.classify(between)
	if !ok {
		return s
	}
	return s.enter(section, true)
}

func (s sectionState) enter(section SectionType, resetCounter bool) sectionState {
	s.section = section
	s.switches++
	if resetCounter {
		s.counter = 1
	}
	return s
}

// next hands out the current question number and advances the counter.
func (s sectionState) next() (int, sectionState) {
	n := s.counter
	s.counter++
	return n, s
}
