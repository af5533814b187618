// Package spreadsheet turns question banks kept in Excel workbooks into the
// table layout the word import engine reads.
package spreadsheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/net/html"
)

var (
	ErrEmptyWorkbook = errors.New("excel sheet is empty")
	ErrNoRows        = errors.New("no data rows found")
)

type RowError struct {
	Row    int    `json:"row"`
	Number string `json:"number,omitempty"`
	Error  string `json:"error"`
}

type Report struct {
	TotalRows   int        `json:"total_rows"`
	SuccessRows int        `json:"success_rows"`
	FailedRows  int        `json:"failed_rows"`
	Errors      []RowError `json:"errors"`
}

var columnAliases = map[string]string{
	"no":            "no",
	"nomor":         "no",
	"number":        "no",
	"question":      "question",
	"soal":          "question",
	"pertanyaan":    "question",
	"a":             "A",
	"b":             "B",
	"c":             "C",
	"d":             "D",
	"key":           "key",
	"answer":        "key",
	"kunci":         "key",
	"kunci jawaban": "key",
	"section":       "section",
	"bagian":        "section",
	"jenis":         "section",
}

var optionColumns = []string{"A", "B", "C", "D"}

var numberCell = regexp.MustCompile(`^(\d+)\.?$`)

const (
	sectionMultipleChoice = "Pilihan Ganda"
	sectionEssay          = "Essay"
)

type sheetQuestion struct {
	number  string
	stem    string
	options map[string]string
	key     string
	essay   bool
}

// FromExcel reads the first sheet of a workbook and renders its rows as
// question tables. Rows that cannot be used are reported and skipped; the
// error return is reserved for unreadable workbooks.
func FromExcel(r io.Reader) (string, *Report, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return "", nil, fmt.Errorf("open excel: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", nil, ErrEmptyWorkbook
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) < 2 {
		return "", nil, ErrNoRows
	}

	header := map[string]int{}
	for i, h := range rows[0] {
		name := strings.ToLower(strings.Join(strings.Fields(h), " "))
		if col, ok := columnAliases[name]; ok {
			if _, dup := header[col]; !dup {
				header[col] = i
			}
		}
	}
	if _, ok := header["question"]; !ok {
		return "", nil, errors.New("missing required column: question")
	}

	report := &Report{Errors: make([]RowError, 0)}
	questions := make([]sheetQuestion, 0, len(rows)-1)
	counter := 0
	for i := 1; i < len(rows); i++ {
		rowNo := i + 1
		row := rows[i]

		get := func(key string) string {
			idx, ok := header[key]
			if !ok || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		q := sheetQuestion{
			number:  get("no"),
			stem:    get("question"),
			options: map[string]string{},
			key:     get("key"),
			essay:   isEssaySection(get("section")),
		}
		for _, letter := range optionColumns {
			if v := get(letter); v != "" {
				q.options[letter] = v
			}
		}
		if q.stem == "" && q.number == "" && len(q.options) == 0 {
			continue
		}
		report.TotalRows++

		fail := func(msg string) {
			report.FailedRows++
			report.Errors = append(report.Errors, RowError{Row: rowNo, Number: q.number, Error: msg})
		}

		if q.stem == "" {
			fail("soal kosong")
			continue
		}
		if q.number == "" {
			q.number = fmt.Sprint(counter + 1)
		}
		m := numberCell.FindStringSubmatch(q.number)
		if m == nil {
			fail("nomor soal tidak valid")
			continue
		}
		q.number = m[1]

		if !q.essay {
			if len(q.options) < 2 {
				fail("pilihan jawaban kurang dari 2")
				continue
			}
			if q.key != "" {
				q.key = strings.ToUpper(strings.TrimSuffix(q.key, "."))
				if _, ok := q.options[q.key]; !ok {
					fail("kunci jawaban tidak valid")
					continue
				}
			}
		}

		counter++
		report.SuccessRows++
		questions = append(questions, q)
	}

	return render(questions), report, nil
}

// render writes one table per run of questions sharing a section, each
// preceded by a heading the section classifier recognises.
func render(questions []sheetQuestion) string {
	var sb strings.Builder
	for i, q := range questions {
		if i == 0 || q.essay != questions[i-1].essay {
			if i > 0 {
				sb.WriteString("</table>\n")
			}
			heading := sectionMultipleChoice
			if q.essay {
				heading = sectionEssay
			}
			fmt.Fprintf(&sb, "<p><strong>%s</strong></p>\n<table>\n", heading)
		}

		stem := cellHTML(q.stem)
		if q.essay && q.key != "" {
			stem += "<p>Kunci Jawaban: " + cellHTML(q.key) + "</p>"
		}
		fmt.Fprintf(&sb, "<tr><td>%s.</td><td>%s</td></tr>\n", q.number, stem)
		if q.essay {
			continue
		}
		for _, letter := range optionColumns {
			text, ok := q.options[letter]
			if !ok {
				continue
			}
			body := cellHTML(text)
			if letter == q.key {
				body = "<strong>" + body + "</strong>"
			}
			fmt.Fprintf(&sb, "<tr><td>%s.</td><td>%s</td></tr>\n", letter, body)
		}
	}
	if len(questions) > 0 {
		sb.WriteString("</table>\n")
	}
	return sb.String()
}

func cellHTML(v string) string {
	lines := strings.Split(strings.ReplaceAll(v, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = html.EscapeString(strings.TrimSpace(l))
	}
	return strings.Join(lines, "<br>")
}

func isEssaySection(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "essay", "esai", "uraian":
		return true
	default:
		return false
	}
}

// Template returns a workbook with the expected header and two sample rows.
func Template() ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	sheet := f.GetSheetName(0)

	rows := [][]any{
		{"no", "soal", "A", "B", "C", "D", "kunci", "bagian"},
		{1, "Ibukota Indonesia adalah?", "Jakarta", "Bandung", "Surabaya", "Medan", "A", "pg"},
		{2, "Jelaskan proses fotosintesis.", "", "", "", "", "Tumbuhan mengubah cahaya menjadi gula.", "essay"},
	}
	for r, values := range rows {
		for c, v := range values {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}
	_ = f.SetColWidth(sheet, "B", "B", 48)
	_ = f.SetColWidth(sheet, "C", "H", 18)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}
