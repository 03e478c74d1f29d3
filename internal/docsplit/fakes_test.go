package docsplit

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// memPages is an in-memory PageSource.
type memPages []string

func (p memPages) PageCount() int { return len(p) }

func (p memPages) PageText(i int) (string, error) {
	if i < 0 || i >= len(p) {
		return "", fmt.Errorf("page %d out of range", i)
	}
	return p[i], nil
}

// blankPages returns n pages of filler body text.
func blankPages(n int) memPages {
	pages := make(memPages, n)
	for i := range pages {
		pages[i] = fmt.Sprintf("body text of the bid document\n%d", i+100)
	}
	return pages
}

type stubCompleter struct {
	response string
	err      error
	calls    int
	prompts  []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompts = append(s.prompts, prompt)
	return s.response, s.err
}

type writeCall struct {
	src, dst   string
	start, end int
}

type recordingWriter struct {
	mu    sync.Mutex
	calls []writeCall
}

func (w *recordingWriter) WriteRange(src, dst string, start, end int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, writeCall{src: src, dst: dst, start: start, end: end})
	return nil
}

// tenderDocument builds the 140-page fixture used across the pipeline tests:
// CONTENTS on physical page 6, printed "3" on the page before it, Chapter I
// physically starting on page 22.
func tenderDocument() memPages {
	pages := blankPages(140)
	pages[0] = "NOTICE INVITING TENDER"
	pages[4] = "Foreword\nIssued by the procurement cell\n3"
	pages[5] = "CONTENTS\nChapter I - Broad Scope of Work ........ 24\n1.1 Background ........ 25"
	pages[6] = "Chapter II - Technical Requirements ........ 74\nANNEXURES ........ 125"
	pages[21] = "CHAPTER I\nBroad Scope of Work\n24"
	pages[71] = "CHAPTER II\nTechnical Requirements\n74"
	pages[122] = "ANNEXURE A\nForm of Bid\n125"
	return pages
}

const tenderResponse = "```json\n" + `[
  {"title": "Chapter I - Broad Scope of Work", "page": 24},
  {"title": "Chapter II - Technical Requirements", "page": 74},
  {"title": "ANNEXURES", "page": 125}
]` + "\n```"

func joinPages(pages memPages, from, to int) string {
	var b strings.Builder
	for i := from; i <= to; i++ {
		b.WriteString("\n")
		b.WriteString(pages[i])
	}
	return b.String()
}
