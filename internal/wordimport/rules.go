package wordimport

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	defaultMinItemLength      = 10
	defaultMaxBareNumber      = 100
	defaultImagePreviewLength = 100
)

// Rules holds the keyword families and thresholds the heuristics work with.
// Zero values fall back to DefaultRules.
type Rules struct {
	MultipleChoiceMarkers []string `yaml:"multiple_choice_markers"`
	EssayMarkers          []string `yaml:"essay_markers"`
	EssayExclusions       []string `yaml:"essay_exclusions"`
	InstructionPhrases    []string `yaml:"instruction_phrases"`
	AnswerKeyLabels       []string `yaml:"answer_key_labels"`
	MinItemLength         int      `yaml:"min_item_length"`
	MaxBareNumber         int      `yaml:"max_bare_number"`
	ImagePreviewLength    int      `yaml:"image_preview_length"`
	Workers               int      `yaml:"workers"`
}

func DefaultRules() Rules {
	return Rules{
		MultipleChoiceMarkers: []string{"pilihan ganda", "multiple choice"},
		EssayMarkers:          []string{"essay"},
		EssayExclusions:       []string{"pilihan"},
		InstructionPhrases: []string{
			"choose the right answer",
			"choose the correct answer",
			"answer the following questions",
			"pilihlah jawaban",
			"jawablah pertanyaan",
		},
		AnswerKeyLabels:    []string{"kunci jawaban", "answer key"},
		MinItemLength:      defaultMinItemLength,
		MaxBareNumber:      defaultMaxBareNumber,
		ImagePreviewLength: defaultImagePreviewLength,
		Workers:            1,
	}
}

// LoadRules reads a YAML rules file. Keys missing from the file keep their
// default values.
func LoadRules(path string) (Rules, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules: %w", err)
	}
	var in Rules
	if err := yaml.Unmarshal(raw, &in); err != nil {
		return Rules{}, fmt.Errorf("parse rules %s: %w", path, err)
	}
	return in.withDefaults(), nil
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	r.MultipleChoiceMarkers = lowerAll(r.MultipleChoiceMarkers)
	r.EssayMarkers = lowerAll(r.EssayMarkers)
	r.AnswerKeyLabels = lowerAll(r.AnswerKeyLabels)
	if len(r.MultipleChoiceMarkers) == 0 {
		r.MultipleChoiceMarkers = d.MultipleChoiceMarkers
	}
	if len(r.EssayMarkers) == 0 {
		r.EssayMarkers = d.EssayMarkers
	}
	if len(r.AnswerKeyLabels) == 0 {
		r.AnswerKeyLabels = d.AnswerKeyLabels
	}
	// An explicit empty list disables exclusions or instruction skipping.
	if r.EssayExclusions == nil {
		r.EssayExclusions = d.EssayExclusions
	}
	if r.InstructionPhrases == nil {
		r.InstructionPhrases = d.InstructionPhrases
	}
	r.EssayExclusions = lowerAll(r.EssayExclusions)
	r.InstructionPhrases = lowerAll(r.InstructionPhrases)
	if r.MinItemLength <= 0 {
		r.MinItemLength = d.MinItemLength
	}
	if r.MaxBareNumber <= 0 {
		r.MaxBareNumber = d.MaxBareNumber
	}
	if r.ImagePreviewLength <= 0 {
		r.ImagePreviewLength = d.ImagePreviewLength
	}
	if r.Workers <= 0 {
		r.Workers = d.Workers
	}
	return r
}

// ruleset is Rules plus the patterns derived from it.
type ruleset struct {
	Rules
	sectionMarker  *regexp.Regexp
	answerKeyLabel *regexp.Regexp
}

func (r Rules) compile() *ruleset {
	r = r.withDefaults()
	markers := append(append([]string{}, r.MultipleChoiceMarkers...), r.EssayMarkers...)
	return &ruleset{
		Rules:          r,
		sectionMarker:  regexp.MustCompile(`(?i)(?:` + phraseAlternation(markers) + `)`),
		answerKeyLabel: regexp.MustCompile(`(?i)(?:` + phraseAlternation(r.AnswerKeyLabels) + `)\s*:`),
	}
}

// classify reports the section named by a piece of intervening markup.
func (r *ruleset) classify(markup string) (SectionType, bool) {
	text := strings.ToLower(stripTags(markup))
	if text == "" {
		return "", false
	}
	if containsAny(text, r.MultipleChoiceMarkers) {
		return MultipleChoice, true
	}
	if containsAny(text, r.EssayMarkers) && !containsAny(text, r.EssayExclusions) {
		return Essay, true
	}
	return "", false
}

func (r *ruleset) isInstruction(text string) bool {
	return containsAny(strings.ToLower(text), r.InstructionPhrases)
}

// phraseAlternation builds a regexp alternation where spaces inside a phrase
// match any run of whitespace. Longer phrases come first so "essay question"
// wins over "essay".
func phraseAlternation(phrases []string) string {
	sorted := append([]string(nil), phrases...)
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	parts := make([]string, 0, len(sorted))
	for _, p := range sorted {
		words := strings.Fields(p)
		if len(words) == 0 {
			continue
		}
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		parts = append(parts, strings.Join(words, `\s*`))
	}
	return strings.Join(parts, "|")
}

// containsAny also compares with spaces removed, since Word output sometimes
// loses the space between runs ("PilihanGanda").
func containsAny(text string, needles []string) bool {
	compact := strings.ReplaceAll(text, " ", "")
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(text, n) || strings.Contains(compact, strings.ReplaceAll(n, " ", "")) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.Join(strings.Fields(v), " "))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
