package question

import (
	"encoding/json"
	"fmt"
	"strings"

	"cbtimport/internal/wordimport"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

const (
	TypeMultipleChoice = "pg_tunggal"
	TypeEssay          = "uraian"
)

type QuestionOptionInput struct {
	OptionKey  string `json:"option_key"`
	OptionHTML string `json:"option_html"`
}

// questionDraft is one extracted record shaped for the question tables.
type questionDraft struct {
	Number       string
	Section      wordimport.SectionType
	QuestionType string
	StemHTML     string
	AnswerKey    json.RawMessage
	Options      []QuestionOptionInput
	Warnings     []string
}

func newStemPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowDataURIImages()
	return p
}

func questionTypeFor(section wordimport.SectionType) string {
	if section == wordimport.Essay {
		return TypeEssay
	}
	return TypeMultipleChoice
}

// buildDraft renders a record into stored HTML, answer key and options.
// Records without a usable answer are kept as drafts with an empty key.
func buildDraft(rec wordimport.QuestionRecord, policy *bluemonday.Policy) (questionDraft, error) {
	d := questionDraft{
		Number:       rec.Number,
		Section:      rec.Section,
		QuestionType: questionTypeFor(rec.Section),
		Warnings:     append([]string(nil), rec.Warnings...),
	}
	if strings.TrimSpace(rec.Stem) == "" {
		return d, fmt.Errorf("%w: question %s has an empty stem", ErrInvalidInput, rec.Number)
	}
	d.StemHTML = policy.Sanitize(stemHTML(rec))
	if strings.TrimSpace(d.StemHTML) == "" {
		return d, fmt.Errorf("%w: question %s has no content after sanitizing", ErrInvalidInput, rec.Number)
	}
	if rec.ExtraImages > 0 {
		d.Warnings = append(d.Warnings, fmt.Sprintf("%d additional images dropped", rec.ExtraImages))
	}

	answer := map[string]string{}
	switch d.QuestionType {
	case TypeEssay:
		if rec.AnswerKey != "" {
			answer["text"] = rec.AnswerKey
		}
	default:
		if letter := rec.CorrectLetter(); letter != "" {
			answer["correct"] = letter
		}
		for _, o := range rec.Options {
			d.Options = append(d.Options, QuestionOptionInput{
				OptionKey:  o.Letter,
				OptionHTML: policy.Sanitize(paragraph(o.Text)),
			})
		}
	}
	raw, err := json.Marshal(answer)
	if err != nil {
		return d, fmt.Errorf("marshal answer key: %w", err)
	}
	d.AnswerKey = raw

	if err := validateAnswerKey(d.QuestionType, d.AnswerKey); err != nil {
		return d, err
	}
	opts, _, err := normalizeAndValidateOptions(d.QuestionType, d.Options, d.AnswerKey)
	if err != nil {
		return d, err
	}
	d.Options = opts
	return d, nil
}

// stemHTML puts the image back where it was: between the question text and
// the context that explains it. A stem that is all context gets the image
// first.
func stemHTML(rec wordimport.QuestionRecord) string {
	before := rec.Stem
	after := ""
	if rec.Image != "" && rec.Context != "" && strings.HasSuffix(rec.Stem, rec.Context) {
		before = strings.TrimSpace(strings.TrimSuffix(rec.Stem, rec.Context))
		after = rec.Context
	}

	var sb strings.Builder
	if before != "" {
		sb.WriteString(paragraph(before))
	}
	if rec.Image != "" {
		sb.WriteString(`<p><img src="` + html.EscapeString(rec.Image) + `" alt="gambar soal ` + html.EscapeString(rec.Number) + `"></p>`)
	}
	if after != "" {
		sb.WriteString(paragraph(after))
	}
	return sb.String()
}

func paragraph(text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = html.EscapeString(l)
	}
	return "<p>" + strings.Join(lines, "<br>") + "</p>"
}

// validateAnswerKey checks the stored key shape. Imported drafts may carry an
// empty object until a reviewer fills in the key.
func validateAnswerKey(questionType string, raw json.RawMessage) error {
	if len(raw) == 0 || !json.Valid(raw) {
		return fmt.Errorf("%w: answer_key must be valid json", ErrInvalidInput)
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return fmt.Errorf("%w: answer_key must be object", ErrInvalidInput)
	}

	switch questionType {
	case TypeMultipleChoice:
		v, present := obj["correct"]
		if !present {
			return nil
		}
		correct, ok := v.(string)
		if !ok || strings.TrimSpace(correct) == "" {
			return fmt.Errorf("%w: pg_tunggal answer_key.correct must be a non-empty string", ErrInvalidInput)
		}
	case TypeEssay:
		v, present := obj["text"]
		if !present {
			return nil
		}
		if _, ok := v.(string); !ok {
			return fmt.Errorf("%w: uraian answer_key.text must be string", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unsupported question_type '%s'", ErrInvalidInput, questionType)
	}
	return nil
}

func normalizeAndValidateOptions(questionType string, options []QuestionOptionInput, answerKey json.RawMessage) ([]QuestionOptionInput, map[string]bool, error) {
	if questionType == TypeEssay || len(options) == 0 {
		return nil, nil, nil
	}

	var obj map[string]any
	if err := json.Unmarshal(answerKey, &obj); err != nil {
		return nil, nil, fmt.Errorf("%w: answer_key must be object", ErrInvalidInput)
	}
	correctKeys := map[string]bool{}
	if v, _ := obj["correct"].(string); strings.TrimSpace(v) != "" {
		correctKeys[strings.ToUpper(strings.TrimSpace(v))] = true
	}

	seen := map[string]struct{}{}
	out := make([]QuestionOptionInput, 0, len(options))
	for i, it := range options {
		key := strings.TrimSpace(strings.ToUpper(it.OptionKey))
		body := strings.TrimSpace(it.OptionHTML)
		if key == "" {
			return nil, nil, fmt.Errorf("%w: options[%d].option_key is required", ErrInvalidInput, i)
		}
		if body == "" {
			return nil, nil, fmt.Errorf("%w: options[%d].option_html is required", ErrInvalidInput, i)
		}
		if _, ok := seen[key]; ok {
			return nil, nil, fmt.Errorf("%w: duplicate option_key '%s'", ErrInvalidInput, key)
		}
		seen[key] = struct{}{}
		out = append(out, QuestionOptionInput{OptionKey: key, OptionHTML: body})
	}

	for key := range correctKeys {
		if _, ok := seen[key]; !ok {
			return nil, nil, fmt.Errorf("%w: answer_key references unknown option '%s'", ErrInvalidInput, key)
		}
	}
	return out, correctKeys, nil
}
