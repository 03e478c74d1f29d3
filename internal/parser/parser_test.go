package parser

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestForFile(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"tender.PDF", false},
		{"corrigendum.docx", false},
		{"boq.csv", false},
		{"notes.markdown", false},
		{"page.htm", false},
		{"legacy.doc", true},
		{"noext", true},
	}
	for _, tc := range tests {
		_, err := ForFile(tc.name)
		if (err != nil) != tc.wantErr {
			t.Errorf("ForFile(%q): err = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
		if IsSupportedExtension(tc.name) == tc.wantErr {
			t.Errorf("IsSupportedExtension(%q) disagrees with ForFile", tc.name)
		}
	}
}

func TestParseFile_UsesUploadedName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stored-blob")
	if err := os.WriteFile(path, []byte("# Scope\n\nSupply and install."), 0o644); err != nil {
		t.Fatal(err)
	}
	tree, err := ParseFile(path, "scope.md")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "scope" || len(tree.Children) != 1 || tree.Children[0].Title != "Scope" {
		t.Errorf("unexpected tree: %+v", tree)
	}
}

func TestHTMLParser(t *testing.T) {
	input := `<html><head><title>Corrigendum 2</title><style>p{}</style></head><body>
<nav><p>Home</p></nav>
<h1>Changes</h1>
<p>The   bid due date is extended.</p>
<h2>Revised Schedule</h2>
<table><tr><th>Event</th><th>Date</th></tr><tr><td>Pre-bid</td><td>12 May</td></tr></table>
<script>var x = 1;</script>
</body></html>`

	tree, err := (&HTMLParser{}).Parse(strings.NewReader(input), "corr.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tree.Title != "Corrigendum 2" {
		t.Errorf("expected <title> as tree title, got %q", tree.Title)
	}
	if len(tree.Children) != 1 {
		t.Fatalf("expected 1 top-level section, got %d", len(tree.Children))
	}
	h1 := tree.Children[0]
	if h1.Text != "The bid due date is extended." {
		t.Errorf("expected collapsed whitespace, got %q", h1.Text)
	}
	if strings.Contains(h1.Text, "Home") {
		t.Errorf("expected nav to be skipped, got %q", h1.Text)
	}
	if len(h1.Children) != 1 || h1.Children[0].Text != "Event | Date\n\nPre-bid | 12 May" {
		t.Errorf("unexpected table section: %+v", h1.Children)
	}
}

func TestCSVParser_BatchesRows(t *testing.T) {
	var b strings.Builder
	b.WriteString("Item,Description,Qty\n")
	for i := 1; i <= 25; i++ {
		b.WriteString("A")
		b.WriteString(strings.Repeat("1", i%3+1))
		b.WriteString(",Pump set,2\n")
	}

	tree, err := (&CSVParser{}).Parse(strings.NewReader(b.String()), "boq.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tree.Children) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(tree.Children))
	}
	if tree.Children[0].Title != "Rows 2-21" || tree.Children[1].Title != "Rows 22-26" {
		t.Errorf("unexpected batch titles: %q, %q", tree.Children[0].Title, tree.Children[1].Title)
	}
	if !strings.Contains(tree.Children[0].Text, "Description: Pump set, Qty: 2") {
		t.Errorf("expected header-labelled cells, got %q", tree.Children[0].Text)
	}
}

func TestCSVParser_RaggedRows(t *testing.T) {
	tree, err := (&CSVParser{}).Parse(strings.NewReader("Item,Rate\nA1,100,extra\nA2\n"), "rates.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := tree.Children[0].Text; got != "Item: A1, Rate: 100, extra\nItem: A2" {
		t.Errorf("unexpected text %q", got)
	}
}
