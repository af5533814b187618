package wordimport

import (
	"fmt"
	"regexp"
	"strings"
)

// Inline question text is the single format every extractor can hand to the
// content parser: an optional section annotation, the stem markup, then the
// options as "A. text" runs with the correct one wrapped in <strong>. The
// table extractor builds it from structured rows; the parser reads it back
// with the same option scanner it uses for free text.

const sectionAnnotationFormat = "<!--SECTION:%s-->"

var sectionAnnotationPattern = regexp.MustCompile(`<!--\s*SECTION:\s*([A-Za-z-]+)\s*-->`)

var inlineTextEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

type InlineOption struct {
	Letter  string
	Text    string
	Correct bool
}

type InlineQuestion struct {
	Section SectionType
	Stem    string
	Options []InlineOption
}

func (q InlineQuestion) Encode() string {
	var sb strings.Builder
	if q.Section != "" {
		sb.WriteString(annotateSection(q.Section))
	}
	sb.WriteString(q.Stem)
	for _, o := range q.Options {
		sb.WriteString(" ")
		sb.WriteString(strings.ToUpper(o.Letter))
		sb.WriteString(". ")
		text := inlineTextEscaper.Replace(o.Text)
		if o.Correct {
			sb.WriteString("<strong>" + text + "</strong>")
		} else {
			sb.WriteString(text)
		}
	}
	return sb.String()
}

// InlineFromRecord rebuilds the inline form of an already parsed question.
func InlineFromRecord(q QuestionRecord) InlineQuestion {
	out := InlineQuestion{Section: q.Section, Stem: inlineTextEscaper.Replace(q.Stem)}
	for i, o := range q.Options {
		correct := o.Correct || (q.CorrectAnswer != nil && *q.CorrectAnswer == i)
		out.Options = append(out.Options, InlineOption{Letter: o.Letter, Text: o.Text, Correct: correct})
	}
	return out
}

func annotateSection(section SectionType) string {
	return fmt.Sprintf(sectionAnnotationFormat, section)
}

// stripSectionAnnotation removes every section annotation from content and
// returns the first one it recognised.
func stripSectionAnnotation(content string) (SectionType, string, bool) {
	var found SectionType
	ok := false
	for _, m := range sectionAnnotationPattern.FindAllStringSubmatch(content, -1) {
		if s, valid := parseSectionType(m[1]); valid && !ok {
			found, ok = s, true
		}
	}
	return found, sectionAnnotationPattern.ReplaceAllString(content, ""), ok
}
