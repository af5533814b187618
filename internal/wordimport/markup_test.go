package wordimport

import "testing"

func TestTopLevelBlocks(t *testing.T) {
	doc := "<ol><li>a<ol><li>b</li></ol></li></ol><p>x</p><OL type=\"1\"><li>c</li></OL>"
	blocks := topLevelBlocks(doc, "ol")
	if len(blocks) != 2 {
		t.Fatalf("expected 2 top-level lists, got %d", len(blocks))
	}
	if got := blocks[0].inner(doc); got != "<li>a<ol><li>b</li></ol></li>" {
		t.Fatalf("unexpected first list body %q", got)
	}
	if got := blocks[1].inner(doc); got != "<li>c</li>" {
		t.Fatalf("unexpected second list body %q", got)
	}

	items := topLevelBlocks(blocks[0].inner(doc), "li")
	if len(items) != 1 {
		t.Fatalf("nested items leaked to top level: %d", len(items))
	}
}

func TestTopLevelBlocksUnclosed(t *testing.T) {
	doc := "<ol><li>x"
	blocks := topLevelBlocks(doc, "ol")
	if len(blocks) != 1 || !blocks[0].unclosed {
		t.Fatalf("expected one unclosed block, got %+v", blocks)
	}
	if got := blocks[0].inner(doc); got != "<li>x" {
		t.Fatalf("unexpected body %q", got)
	}
}

func TestHasCorrectnessMarker(t *testing.T) {
	tests := []struct {
		raw  string
		want bool
	}{
		{raw: "<strong>Water</strong>", want: true},
		{raw: "<b class=\"x\">Water</b>", want: true},
		{raw: "<span style=\"color:red\">Water</span>", want: true},
		{raw: "<span style=\"color: #FF0000\">Water</span>", want: true},
		{raw: "<span style=\"font-size:12pt;color:#f00\">Water</span>", want: true},
		{raw: "<span style=\"color: rgb(255, 0, 0)\">Water</span>", want: true},
		{raw: "<span style=\"background-color:red\">Water</span>", want: false},
		{raw: "<span style=\"color:#ff00ff\">Water</span>", want: false},
		{raw: "Water<br>", want: false},
		{raw: "<body>Water</body>", want: false},
	}
	for _, tc := range tests {
		if got := hasCorrectnessMarker(tc.raw); got != tc.want {
			t.Fatalf("hasCorrectnessMarker(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestImageSource(t *testing.T) {
	tests := []struct {
		tag  string
		want string
	}{
		{tag: `<img alt="x" src="data:image/png;base64,QUJD">`, want: "data:image/png;base64,QUJD"},
		{tag: `<IMG SRC='chart.png' />`, want: "chart.png"},
		{tag: `<img src=chart.png>`, want: "chart.png"},
		{tag: `<img alt="no source">`, want: ""},
	}
	for _, tc := range tests {
		if got := imageSource(tc.tag); got != tc.want {
			t.Fatalf("imageSource(%q) = %q, want %q", tc.tag, got, tc.want)
		}
	}
}

func TestFindImagesSkipsImagesWithoutSource(t *testing.T) {
	markup := `<img alt="x"><p>a</p><img src="one.png"><img src="two.png">`
	images := findImages(markup)
	if len(images) != 2 || images[0].src != "one.png" || images[1].src != "two.png" {
		t.Fatalf("unexpected images %+v", images)
	}
	if got := removeImages(markup); got != "<p>a</p>" {
		t.Fatalf("unexpected markup after removal %q", got)
	}
}

func TestChildBlocksSkipsNestedTables(t *testing.T) {
	table := `<tr><td>1.</td><td><p>Data:</p><table><tr><td>x</td><td>y</td></tr></table><p>Question?</p></td></tr>` +
		`<tr><td>A.</td><td>Option</td></tr>`
	rows := childBlocks(table, rowTags, tableTags)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	first := rows[0].inner(table)
	cells := childBlocks(first, cellTags, tableTags)
	if len(cells) != 2 {
		t.Fatalf("expected 2 cells in the first row, got %d", len(cells))
	}
	want := `<p>Data:</p><table><tr><td>x</td><td>y</td></tr></table><p>Question?</p>`
	if got := cells[1].inner(first); got != want {
		t.Fatalf("unexpected stem cell %q", got)
	}
}

func TestChildBlocksImpliedEnd(t *testing.T) {
	list := `<li>one<li>two <ul><li>nested</li></ul><li>three`
	items := childBlocks(list, itemTags, listTags)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	if got := items[0].inner(list); got != "one" {
		t.Fatalf("unexpected first item %q", got)
	}
	if got := items[1].inner(list); got != "two <ul><li>nested</li></ul>" {
		t.Fatalf("unexpected second item %q", got)
	}
	if !items[2].unclosed || items[2].inner(list) != "three" {
		t.Fatalf("unexpected last item %+v", items[2])
	}
}

func TestTagTokensOffsets(t *testing.T) {
	doc := `<p class="x">a</p><!--SECTION:essay--><BR/><TD>`
	tokens := tagTokens(doc)
	if len(tokens) != 3 {
		t.Fatalf("expected 3 tags, got %+v", tokens)
	}
	if got := doc[tokens[0].start:tokens[0].end]; got != `<p class="x">` {
		t.Fatalf("unexpected first tag %q", got)
	}
	if !tokens[1].closing || tokens[1].name != "p" {
		t.Fatalf("unexpected second tag %+v", tokens[1])
	}
	if tokens[2].name != "td" || doc[tokens[2].start:tokens[2].end] != "<TD>" {
		t.Fatalf("unexpected last tag %+v", tokens[2])
	}
}
