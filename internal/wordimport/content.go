package wordimport

import (
	"regexp"
	"strings"
)

const (
	WarningNoOptions = "no options recovered"
	WarningNoAnswer  = "no correct answer marked"
)

var (
	optionMarkerPattern = regexp.MustCompile(`(?i)(?:^|[\s>;])([a-d])\.`)
	answerLetterPattern = regexp.MustCompile(`^([A-Da-d])(?:[.)](?:\s.*)?)?$`)
)

type optionMarker struct {
	letter    string
	anchor    int // where the marker starts, opening tags directly before it included
	letterPos int
	bodyStart int
}

// findOptionMarkers locates "A." … "D." markers. Options begin at the first
// "A." when there is one, so a stray "Vitamin C." earlier in the stem does
// not open the option list.
func findOptionMarkers(text string) []optionMarker {
	var out []optionMarker
	for _, m := range optionMarkerPattern.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, optionMarker{
			letter:    strings.ToUpper(text[m[2]:m[3]]),
			anchor:    leadingTagsStart(text, m[2]),
			letterPos: m[2],
			bodyStart: m[3] + 1,
		})
	}
	for i, mk := range out {
		if mk.letter == "A" {
			return out[i:]
		}
	}
	return out
}

// leadingTagsStart walks back over opening tags that sit directly in front of
// pos, e.g. the <p><strong> in "<p><strong>B. Water".
func leadingTagsStart(text string, pos int) int {
	start := pos
	for {
		i := start
		for i > 0 && (text[i-1] == ' ' || text[i-1] == '\t' || text[i-1] == '\n') {
			i--
		}
		if i == 0 || text[i-1] != '>' {
			return start
		}
		open := strings.LastIndexByte(text[:i-1], '<')
		if open < 0 || strings.HasPrefix(text[open:], "</") {
			return start
		}
		start = open
	}
}

// scanOptions reads the option text behind every marker. Each option runs to
// the next marker or the next block or line break, whichever is first. The
// first occurrence of a letter wins.
func scanOptions(text string, markers []optionMarker) map[string]Option {
	found := make(map[string]Option, len(optionLetters))
	for i, mk := range markers {
		end := len(text)
		if i+1 < len(markers) {
			end = markers[i+1].anchor
		}
		if end < mk.bodyStart {
			continue
		}
		raw := text[mk.bodyStart:end]
		if loc := blockClosePattern.FindStringIndex(raw); loc != nil {
			raw = raw[:loc[0]]
		}
		if _, seen := found[mk.letter]; seen {
			continue
		}
		optionText := cleanOptionText(raw)
		if optionText == "" {
			continue
		}
		found[mk.letter] = Option{
			Letter:  mk.letter,
			Text:    optionText,
			Correct: hasCorrectnessMarker(text[mk.anchor:mk.letterPos] + raw),
		}
	}
	return found
}

func cleanOptionText(raw string) string {
	text := normalizeInline(raw)
	text = strings.TrimRight(text, ",;. ")
	return strings.TrimSpace(text)
}

// orderOptions returns options A→D and the position of the first one flagged
// correct, or -1.
func orderOptions(found map[string]Option) ([]Option, int) {
	out := make([]Option, 0, len(found))
	correct := -1
	for _, letter := range optionLetters {
		o, ok := found[letter]
		if !ok {
			continue
		}
		if o.Correct && correct < 0 {
			correct = len(out)
		}
		out = append(out, o)
	}
	return out, correct
}

func indexOfLetter(options []Option, letter string) int {
	for i, o := range options {
		if o.Letter == letter {
			return i
		}
	}
	return -1
}

type fragmentParser struct {
	rules *ruleset
}

// splitAnswerKey cuts a trailing "Kunci Jawaban: …" block off the markup and
// returns its normalized text.
func (p *fragmentParser) splitAnswerKey(markup string) (string, string) {
	loc := p.rules.answerKeyLabel.FindStringIndex(markup)
	if loc == nil {
		return markup, ""
	}
	return markup[:loc[0]], Normalize(markup[loc[1]:])
}

func (p *fragmentParser) parse(f RawFragment) (QuestionRecord, bool) {
	section := f.Section
	content := f.Content
	if annotated, stripped, ok := stripSectionAnnotation(content); ok {
		section = annotated
		content = stripped
	}
	if section == "" {
		section = MultipleChoice
	}

	rec := QuestionRecord{Number: f.Number, Section: section, Options: []Option{}}

	images := findImages(content)
	if len(images) > 0 {
		rec.Image = images[0].src
		rec.ExtraImages = len(images) - 1
	}
	working, keyText := p.splitAnswerKey(removeImages(content))

	markers := findOptionMarkers(working)
	options, correct := orderOptions(scanOptions(working, markers))

	stemEnd := len(working)
	if len(options) > 0 {
		stemEnd = markers[0].anchor
	}
	rec.Stem = Normalize(working[:stemEnd])
	if rec.Stem == "" {
		return QuestionRecord{}, false
	}

	if len(images) > 0 {
		rec.Context = p.context(content[images[0].end:], len(options) > 0)
	}

	if keyText != "" {
		if m := answerLetterPattern.FindStringSubmatch(normalizeInline(keyText)); m != nil {
			rec.AnswerKey = strings.ToUpper(m[1])
			if correct < 0 {
				correct = indexOfLetter(options, rec.AnswerKey)
			}
		} else {
			rec.AnswerKey = keyText
		}
	}

	switch section {
	case Essay:
		// section type overrides whatever the text looked like
	default:
		rec.Options = options
		if correct >= 0 {
			idx := correct
			rec.CorrectAnswer = &idx
		}
		switch {
		case len(options) == 0:
			rec.Warnings = append(rec.Warnings, WarningNoOptions)
		case rec.CorrectAnswer == nil:
			rec.Warnings = append(rec.Warnings, WarningNoAnswer)
		}
	}
	return rec, true
}

// context is the text between the first image and the options.
func (p *fragmentParser) context(afterImage string, hasOptions bool) string {
	tail, _ := p.splitAnswerKey(removeImages(afterImage))
	if hasOptions {
		if markers := findOptionMarkers(tail); len(markers) > 0 {
			tail = tail[:markers[0].anchor]
		}
	}
	return Normalize(tail)
}
