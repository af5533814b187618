package wordimport

import "testing"

func TestDetectStrategy(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want Strategy
	}{
		{name: "table with rows", doc: "<p>x</p><table><tr><td>1.</td><td>Soal</td></tr></table>", want: StrategyTable},
		{name: "table wins over list", doc: "<ol><li>a</li></ol><table><tr><td>1.</td></tr></table>", want: StrategyTable},
		{name: "empty table then list", doc: "<table></table><ol><li>Soal pertama</li></ol>", want: StrategyList},
		{name: "empty list", doc: "<ol></ol><p>1. Soal</p>", want: StrategyFallback},
		{name: "paragraphs", doc: "<p>1. Soal pertama</p><p>2. Soal kedua</p>", want: StrategyFallback},
		{name: "rows only in a nested table", doc: "<table><td><table><tr><td>x</td></tr></table></td></table><p>1. Soal</p>", want: StrategyFallback},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DetectStrategy(tc.doc); got != tc.want {
				t.Fatalf("DetectStrategy = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestTrimPreamble(t *testing.T) {
	t.Run("instruction and first question", func(t *testing.T) {
		doc := "<p>SMA Negeri 1</p><p>Ujian Essay dan Pilihan</p><p>Choose the correct answer!</p><p>1. Question</p>"
		if got := TrimPreamble(doc); got != "<p>1. Question</p>" {
			t.Fatalf("unexpected trimmed doc %q", got)
		}
	})

	t.Run("instruction only", func(t *testing.T) {
		doc := "<p>Header essay</p><p>Pilihlah jawaban yang benar</p><ol><li>Soal</li></ol>"
		want := "<p>Pilihlah jawaban yang benar</p><ol><li>Soal</li></ol>"
		if got := TrimPreamble(doc); got != want {
			t.Fatalf("unexpected trimmed doc %q", got)
		}
	})

	t.Run("never cuts inside a table", func(t *testing.T) {
		doc := "<p>Header</p><table><tr><td><p>1. </p></td><td>Soal</td></tr></table>"
		if got := TrimPreamble(doc); got != doc {
			t.Fatalf("table was cut: %q", got)
		}
	})

	t.Run("keeps question table before numbered paragraphs", func(t *testing.T) {
		doc := "<p>Pilihan Ganda</p><table><tr><td>1.</td><td>Soal</td></tr></table><p>Essay</p><p>1. Jelaskan.</p>"
		if got := TrimPreamble(doc); got != doc {
			t.Fatalf("question table was trimmed: %q", got)
		}
	})

	t.Run("header table is still preamble", func(t *testing.T) {
		doc := "<table><tr><td>Nama</td><td>:</td></tr></table><p>1. Soal pertama? A. ya B. tidak</p>"
		want := "<p>1. Soal pertama? A. ya B. tidak</p>"
		if got := TrimPreamble(doc); got != want {
			t.Fatalf("unexpected trimmed doc %q", got)
		}
	})

	t.Run("nothing to trim", func(t *testing.T) {
		doc := "<p>Hello world</p>"
		if got := TrimPreamble(doc); got != doc {
			t.Fatalf("unexpected trim %q", got)
		}
	})
}
