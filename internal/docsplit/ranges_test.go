package docsplit

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
)

func TestComputeRanges_TenderScenario(t *testing.T) {
	raw := []RawSection{
		{Title: "Chapter I - Broad Scope of Work", Page: 24},
		{Title: "Chapter II - Technical Requirements", Page: 74},
		{Title: "ANNEXURES", Page: 125},
	}
	sections := ResolveSections(raw, 2)
	ranges := ComputeRanges(sections, 140)

	want := []PageRange{{22, 71}, {72, 122}, {123, 140}}
	for i := range want {
		if ranges[i] != want[i] {
			t.Errorf("range %d: expected %+v, got %+v", i, want[i], ranges[i])
		}
	}
	if sections[0].PrintedPage != 24 || sections[0].Page != 22 {
		t.Errorf("expected printed 24 on physical 22, got %+v", sections[0])
	}
}

func TestResolveSections_ClampsToFirstPage(t *testing.T) {
	sections := ResolveSections([]RawSection{{Title: "Preface", Page: 2}, {Title: "Chapter I", Page: 10}}, 5)
	if sections[0].Page != 1 {
		t.Errorf("expected clamp to page 1, got %d", sections[0].Page)
	}
	if sections[1].Page != 5 {
		t.Errorf("expected page 5, got %d", sections[1].Page)
	}
}

// Any increasing list of starts must tile [first start, pageCount] exactly.
func TestComputeRanges_Adjacency(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for iter := 0; iter < 200; iter++ {
		pageCount := 2 + rng.IntN(400)
		n := 1 + rng.IntN(min(pageCount, 12))

		starts := make(map[int]bool)
		for len(starts) < n {
			starts[1+rng.IntN(pageCount)] = true
		}
		sections := make([]Section, 0, n)
		for p := 1; p <= pageCount; p++ {
			if starts[p] {
				sections = append(sections, Section{Title: "s", Page: p})
			}
		}

		ranges := ComputeRanges(sections, pageCount)
		for i, r := range ranges {
			if r.Start != sections[i].Page {
				t.Fatalf("iter %d: range %d starts at %d, want %d", iter, i, r.Start, sections[i].Page)
			}
			if r.End > pageCount {
				t.Fatalf("iter %d: range %d ends past the document (%d > %d)", iter, i, r.End, pageCount)
			}
			if i+1 < len(ranges) && r.End+1 != ranges[i+1].Start {
				t.Fatalf("iter %d: gap or overlap between ranges %d and %d: %+v %+v", iter, i, i+1, r, ranges[i+1])
			}
		}
		if last := ranges[len(ranges)-1]; last.End != pageCount {
			t.Fatalf("iter %d: last range ends at %d, want %d", iter, last.End, pageCount)
		}
	}
}

func TestComputeRanges_StartBeyondDocument(t *testing.T) {
	sections := []Section{{Title: "A", Page: 1}, {Title: "B", Page: 50}}
	ranges := ComputeRanges(sections, 20)
	if ranges[0] != (PageRange{1, 20}) {
		t.Errorf("expected first range clipped to 1-20, got %+v", ranges[0])
	}
	if !ranges[1].Empty() {
		t.Errorf("expected empty range for section past the end, got %+v", ranges[1])
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Chapter I - Broad Scope of Work!!", "Chapter_I_Broad_Scope_of_Work"},
		{"  ANNEXURES  ", "ANNEXURES"},
		{"Section 4.2/Terms & Conditions", "Section_4_2_Terms_Conditions"},
		{"---", ""},
		{"Für Ärzte", "F_r_rzte"},
	}
	for _, tc := range tests {
		if got := SanitizeFilename(tc.title); got != tc.want {
			t.Errorf("SanitizeFilename(%q): expected %q, got %q", tc.title, tc.want, got)
		}
	}
}

func TestSanitizeFilename_Caps70(t *testing.T) {
	got := SanitizeFilename(strings.Repeat("Chapter ", 20))
	if len(got) != 70 {
		t.Errorf("expected 70 chars, got %d (%q)", len(got), got)
	}
}

func TestSectionFilename_Fallback(t *testing.T) {
	if got := SectionFilename("***", 2); got != "SECTION_3.pdf" {
		t.Errorf("expected SECTION_3.pdf, got %q", got)
	}
	if got := SectionFilename("ANNEXURES", 2); got != "ANNEXURES.pdf" {
		t.Errorf("expected ANNEXURES.pdf, got %q", got)
	}
}

func TestPlanOutputs_CollisionAndEmpty(t *testing.T) {
	sections := []Section{
		{Title: "Chapter I: Scope", Page: 1},
		{Title: "Chapter I - Scope", Page: 5},
		{Title: "chapter i scope", Page: 9},
		{Title: "Late", Page: 30},
	}
	ranges := []PageRange{{1, 4}, {5, 8}, {9, 20}, {30, 20}}

	outs, _, warnings, err := planOutputs(sections, ranges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 3 {
		t.Fatalf("expected 3 outputs, got %d", len(outs))
	}
	wantNames := []string{"Chapter_I_Scope.pdf", "Chapter_I_Scope_2.pdf", "chapter_i_scope_3.pdf"}
	for i, want := range wantNames {
		if outs[i].filename != want {
			t.Errorf("output %d: expected %q, got %q", i, want, outs[i].filename)
		}
	}

	var collisions, empties int
	for _, w := range warnings {
		switch w.Kind {
		case WarnFilenameCollision:
			collisions++
		case WarnEmptyRange:
			empties++
			if w.Section != 4 || w.Title != "Late" {
				t.Errorf("unexpected empty-range warning: %+v", w)
			}
		}
	}
	if collisions != 2 || empties != 1 {
		t.Errorf("expected 2 collision and 1 empty warnings, got %+v", warnings)
	}
}

func TestPlanOutputs_TrimsOverlap(t *testing.T) {
	// Printed pages 24, 130, 74 with offset 2 in a 140-page document.
	sections := []Section{
		{Title: "Chapter I", Page: 22},
		{Title: "Chapter II", Page: 128},
		{Title: "Chapter III", Page: 72},
	}
	ranges := ComputeRanges(sections, 140)

	outs, effective, warnings, err := planOutputs(sections, ranges)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outs) != 2 {
		t.Fatalf("expected 2 outputs, got %+v", outs)
	}
	if outs[0].rng != (PageRange{22, 127}) || outs[1].rng != (PageRange{128, 140}) {
		t.Errorf("unexpected written ranges: %+v, %+v", outs[0].rng, outs[1].rng)
	}
	if effective[2] != (PageRange{128, 140}) {
		t.Errorf("expected trimmed effective range for section 3, got %+v", effective[2])
	}
	if ranges[2] != (PageRange{72, 140}) {
		t.Errorf("input ranges must not be modified, got %+v", ranges[2])
	}

	kinds := map[string]int{}
	for _, w := range warnings {
		kinds[w.Kind] = w.Section
	}
	if kinds[WarnEmptyRange] != 2 || kinds[WarnRangeOverlap] != 3 || len(warnings) != 2 {
		t.Errorf("expected empty-range on 2 and overlap on 3, got %+v", warnings)
	}
}

func TestPlanOutputs_NeverWritesAPageTwice(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	for trial := range 200 {
		n := 2 + rng.IntN(6)
		pageCount := 10 + rng.IntN(200)
		sections := make([]Section, n)
		for i := range sections {
			sections[i] = Section{Title: "Section", Page: 1 + rng.IntN(pageCount+20)}
		}
		sections[0].Page = 1 + rng.IntN(pageCount)

		outs, _, _, err := planOutputs(sections, ComputeRanges(sections, pageCount))
		if err != nil {
			t.Fatalf("trial %d: unexpected error: %v", trial, err)
		}
		prevEnd := 0
		for _, o := range outs {
			if o.rng.Empty() || o.rng.Start <= prevEnd || o.rng.End > pageCount {
				t.Fatalf("trial %d: invalid or overlapping range %+v after page %d (sections %+v)", trial, o.rng, prevEnd, sections)
			}
			prevEnd = o.rng.End
		}
	}
}

func TestPlanOutputs_AllEmpty(t *testing.T) {
	sections := []Section{
		{Title: "Chapter I", Page: 150},
		{Title: "Chapter II", Page: 160},
	}
	ranges := []PageRange{{150, 140}, {160, 140}}

	outs, _, warnings, err := planOutputs(sections, ranges)
	if !errors.Is(err, ErrEmptyRange) {
		t.Fatalf("expected ErrEmptyRange, got %v", err)
	}
	var se *Error
	if !errors.As(err, &se) || se.Stage != StageSplit {
		t.Errorf("expected split-stage error, got %v", err)
	}
	if outs != nil {
		t.Errorf("expected no outputs, got %+v", outs)
	}
	if len(warnings) != 2 {
		t.Errorf("expected an empty-range warning per section, got %+v", warnings)
	}
}
