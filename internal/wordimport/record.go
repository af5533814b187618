// Package wordimport turns HTML rendered from a word-processor exam document
// into ordered question records.
//
// Three layouts are recognised (tables, ordered lists and numbered
// paragraphs). Exactly one extractor runs per document; all of them hand their
// fragments to the same content parser.
package wordimport

import (
	"fmt"
	"strings"
)

type SectionType string

const (
	MultipleChoice SectionType = "multiple-choice"
	Essay          SectionType = "essay"
)

func parseSectionType(v string) (SectionType, bool) {
	switch SectionType(strings.ToLower(strings.TrimSpace(v))) {
	case MultipleChoice:
		return MultipleChoice, true
	case Essay:
		return Essay, true
	default:
		return "", false
	}
}

// RawFragment is one slice of markup believed to hold a single question.
type RawFragment struct {
	Number  string
	Content string
	Section SectionType
}

type Option struct {
	Letter  string `json:"letter"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

type QuestionRecord struct {
	Number        string      `json:"question_number"`
	Stem          string      `json:"stem"`
	Options       []Option    `json:"options"`
	CorrectAnswer *int        `json:"correct_answer,omitempty"`
	AnswerKey     string      `json:"answer_key,omitempty"`
	Image         string      `json:"image,omitempty"`
	ImageSize     string      `json:"image_size,omitempty"`
	ExtraImages   int         `json:"extra_images,omitempty"`
	Context       string      `json:"context,omitempty"`
	Section       SectionType `json:"section"`
	Warnings      []string    `json:"warnings,omitempty"`
}

// CorrectLetter returns the letter of the correct option, or "" when none was
// recovered.
func (q QuestionRecord) CorrectLetter() string {
	if q.CorrectAnswer == nil {
		return ""
	}
	idx := *q.CorrectAnswer
	if idx < 0 || idx >= len(q.Options) {
		return ""
	}
	return q.Options[idx].Letter
}

// Preview returns a copy suitable for logs and review screens: long image
// data URIs are shortened and an approximate decoded size is attached. The
// receiver is left untouched.
func (q QuestionRecord) Preview(maxImage int) QuestionRecord {
	out := q
	out.Options = append([]Option(nil), q.Options...)
	if out.Options == nil {
		out.Options = []Option{}
	}
	out.Warnings = append([]string(nil), q.Warnings...)
	if q.CorrectAnswer != nil {
		idx := *q.CorrectAnswer
		out.CorrectAnswer = &idx
	}
	if q.Image == "" {
		return out
	}
	if maxImage <= 0 {
		maxImage = defaultImagePreviewLength
	}
	out.ImageSize = fmt.Sprintf("%.2f KB", float64(len(q.Image))*0.75/1024)
	if len(q.Image) > maxImage {
		out.Image = q.Image[:maxImage] + "..."
	}
	return out
}

type Stats struct {
	Strategy       Strategy `json:"strategy"`
	Fragments      int      `json:"fragments"`
	Accepted       int      `json:"accepted"`
	Discarded      int      `json:"discarded"`
	Boilerplate    int      `json:"boilerplate"`
	WithoutOptions int      `json:"without_options"`
	ExtraImages    int      `json:"extra_images"`
	Unmatched      bool     `json:"unmatched"`
}

type Result struct {
	Questions []QuestionRecord `json:"questions"`
	Stats     Stats            `json:"stats"`
}

type Summary struct {
	Total          int `json:"total"`
	MultipleChoice int `json:"multiple_choice"`
	Essay          int `json:"essay"`
	WithImages     int `json:"with_images"`
	WithContext    int `json:"with_context"`
}

func (r Result) Summary() Summary {
	s := Summary{Total: len(r.Questions)}
	for _, q := range r.Questions {
		switch q.Section {
		case Essay:
			s.Essay++
		default:
			s.MultipleChoice++
		}
		if q.Image != "" {
			s.WithImages++
		}
		if q.Context != "" {
			s.WithContext++
		}
	}
	return s
}

// Preview applies QuestionRecord.Preview to every question.
func (r Result) Preview(maxImage int) Result {
	out := Result{Stats: r.Stats, Questions: make([]QuestionRecord, 0, len(r.Questions))}
	for _, q := range r.Questions {
		out.Questions = append(out.Questions, q.Preview(maxImage))
	}
	return out
}
