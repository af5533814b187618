// Command importer runs the question extraction engine on a local file and
// prints the records as JSON.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"cbtimport/internal/auth"
	"cbtimport/internal/spreadsheet"
	"cbtimport/internal/wordimport"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "importer: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	rulesPath := fs.String("rules", "", "YAML file overriding the built-in heuristics")
	workers := fs.Int("workers", 0, "parse fragments on n goroutines")
	full := fs.Bool("full", false, "print full image data instead of the preview form")
	verbose := fs.Bool("v", false, "log engine decisions to stderr")
	hashToken := fs.String("hash-token", "", "print the bcrypt hash of a token for IMPORT_TOKEN_HASH and exit")
	templatePath := fs.String("template", "", "write the spreadsheet template to this path and exit")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: importer [flags] file.html|file.xlsx|-")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *hashToken != "" {
		h, err := auth.HashToken(*hashToken)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, h)
		return nil
	}
	if *templatePath != "" {
		raw, err := spreadsheet.Template()
		if err != nil {
			return err
		}
		return os.WriteFile(*templatePath, raw, 0o644)
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one input file")
	}

	rules := wordimport.DefaultRules()
	if *rulesPath != "" {
		loaded, err := wordimport.LoadRules(*rulesPath)
		if err != nil {
			return err
		}
		rules = loaded
	}
	if *workers > 0 {
		rules.Workers = *workers
	}

	doc, report, err := readInput(fs.Arg(0), stdin)
	if err != nil {
		return err
	}
	if report != nil {
		for _, e := range report.Errors {
			fmt.Fprintf(stderr, "row %d: %s\n", e.Row, e.Error)
		}
	}

	logOut := io.Discard
	if *verbose {
		logOut = stderr
	}
	engine := wordimport.NewEngine(rules, log.New(logOut, "", 0))
	res := engine.Extract(doc)

	out := res
	if !*full {
		out = res.Preview(rules.ImagePreviewLength)
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out.Questions); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}

	printSummary(stderr, res)
	if res.Stats.Unmatched {
		return errors.New("no questions found")
	}
	return nil
}

func readInput(path string, stdin io.Reader) (string, *spreadsheet.Report, error) {
	var raw []byte
	var err error
	if path == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(path)
	}
	if err != nil {
		return "", nil, fmt.Errorf("read input: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return spreadsheet.FromExcel(bytes.NewReader(raw))
	}
	return string(raw), nil, nil
}

func printSummary(w io.Writer, res wordimport.Result) {
	s := res.Summary()
	fmt.Fprintf(w, "strategy:        %s\n", res.Stats.Strategy)
	fmt.Fprintf(w, "questions:       %d (multiple choice %d, essay %d)\n", s.Total, s.MultipleChoice, s.Essay)
	fmt.Fprintf(w, "with images:     %d\n", s.WithImages)
	fmt.Fprintf(w, "with context:    %d\n", s.WithContext)
	fmt.Fprintf(w, "without options: %d\n", res.Stats.WithoutOptions)
	fmt.Fprintf(w, "discarded:       %d\n", res.Stats.Discarded)
	fmt.Fprintf(w, "boilerplate:     %d\n", res.Stats.Boilerplate)
}
