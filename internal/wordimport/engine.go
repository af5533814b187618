package wordimport

import (
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"
)

var documentLineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n", "\t", " ")

// Engine runs the extraction pipeline. It holds no per-document state and is
// safe for concurrent use.
type Engine struct {
	rules  *ruleset
	parser *fragmentParser
	logger *log.Logger
}

func NewEngine(rules Rules, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.Default()
	}
	rs := rules.compile()
	return &Engine{rules: rs, parser: &fragmentParser{rules: rs}, logger: logger}
}

// Rules returns the effective rules, defaults filled in.
func (e *Engine) Rules() Rules {
	return e.rules.Rules
}

// Extract turns one rendered document into question records. It never fails:
// fragments that cannot be parsed are dropped and counted, and a document
// without any recognisable question yields an empty result flagged Unmatched.
func (e *Engine) Extract(doc string) Result {
	doc = TrimPreamble(prepareDocument(doc))
	strategy := DetectStrategy(doc)
	e.logger.Printf("wordimport: strategy=%s", strategy)

	sc := &scan{rules: e.rules, logger: e.logger}
	ex := extractorFor(strategy).extract(doc, sc)

	res := Result{
		Questions: []QuestionRecord{},
		Stats: Stats{
			Strategy:    strategy,
			Fragments:   len(ex.fragments),
			Boilerplate: ex.boilerplate,
		},
	}
	if len(ex.fragments) == 0 {
		res.Stats.Unmatched = true
		e.logger.Printf("wordimport: no question pattern matched")
		return res
	}

	for _, p := range e.parseAll(ex.fragments) {
		if !p.ok {
			res.Stats.Discarded++
			continue
		}
		q := p.record
		if q.Section != Essay && len(q.Options) == 0 {
			res.Stats.WithoutOptions++
		}
		res.Stats.ExtraImages += q.ExtraImages
		res.Questions = append(res.Questions, q)
	}
	res.Stats.Accepted = len(res.Questions)

	e.logger.Printf("wordimport: fragments=%d accepted=%d discarded=%d boilerplate=%d",
		res.Stats.Fragments, res.Stats.Accepted, res.Stats.Discarded, res.Stats.Boilerplate)
	if res.Stats.WithoutOptions > 0 {
		e.logger.Printf("wordimport: %d multiple choice questions without options", res.Stats.WithoutOptions)
	}
	if res.Stats.ExtraImages > 0 {
		e.logger.Printf("wordimport: %d additional images ignored", res.Stats.ExtraImages)
	}
	return res
}

// ParseFragment runs the content parser on a single fragment. ok is false when
// the fragment holds no usable stem.
func (e *Engine) ParseFragment(f RawFragment) (QuestionRecord, bool) {
	p := e.parseSafely(f)
	return p.record, p.ok
}

type parsed struct {
	record QuestionRecord
	ok     bool
}

// parseAll parses fragments independently. Results keep fragment order no
// matter how many workers run.
func (e *Engine) parseAll(fragments []RawFragment) []parsed {
	out := make([]parsed, len(fragments))
	workers := e.rules.Workers
	if workers <= 1 || len(fragments) == 1 {
		for i, f := range fragments {
			out[i] = e.parseSafely(f)
		}
		return out
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, f := range fragments {
		i, f := i, f
		g.Go(func() error {
			out[i] = e.parseSafely(f)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// parseSafely confines a failure to the fragment that caused it.
func (e *Engine) parseSafely(f RawFragment) (p parsed) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Printf("wordimport: question %s discarded: %v", displayNumber(f.Number), r)
			p = parsed{}
		}
	}()
	rec, ok := e.parser.parse(f)
	if !ok {
		e.logger.Printf("wordimport: question %s discarded: empty stem", displayNumber(f.Number))
	}
	return parsed{record: rec, ok: ok}
}

func displayNumber(n string) string {
	if n == "" {
		return "?"
	}
	return fmt.Sprintf("#%s", n)
}

// prepareDocument evens out line endings and tabs so the patterns downstream
// only ever see "\n" and spaces.
func prepareDocument(doc string) string {
	return documentLineEndings.Replace(doc)
}
