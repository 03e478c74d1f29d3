package docsplit

import (
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Completer is the one capability the structure parser needs from a
// language model: prompt in, text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// TOCInterpreter turns raw table-of-contents text into ordered top-level
// sections with their printed page numbers.
type TOCInterpreter interface {
	Interpret(ctx context.Context, tocText string) ([]RawSection, error)
}

// AnnexuresTitle is the single title all annexure/appendix entries collapse to.
const AnnexuresTitle = "ANNEXURES"

const tocPrompt = `You are a strict document-structure parser.

From the printed table of contents below, extract only the main sections.

Rules:
- Extract only chapters (Chapter I, II, III, ...) and annexures / appendices.
- Ignore numbered sub-sections (1.1, 2.3), bullets and clauses.
- If several annexures or appendices are listed, combine them into ONE section titled exactly "` + AnnexuresTitle + `", using the page of the first one.
- Preserve the original order.
- Do not invent sections.
- Use the page numbers exactly as printed in the table of contents. Do not adjust them.

Output: return only a JSON array, with no markdown and no explanation. Each item must look like:
{"title": "<SECTION TITLE>", "page": <PRINTED PAGE NUMBER>}

Table of contents:
`

// BuildTOCPrompt returns the full instruction sent to the model for tocText.
func BuildTOCPrompt(tocText string) string {
	return tocPrompt + tocText
}

// LLMInterpreter asks a language model to interpret the TOC. It makes
// exactly one call and never retries.
type LLMInterpreter struct {
	llm Completer
}

func NewLLMInterpreter(llm Completer) *LLMInterpreter {
	return &LLMInterpreter{llm: llm}
}

func (i *LLMInterpreter) Interpret(ctx context.Context, tocText string) ([]RawSection, error) {
	raw, err := i.llm.Complete(ctx, BuildTOCPrompt(tocText))
	if err != nil {
		return nil, newError(KindStructureParse, StageStructureParse, err, "table-of-contents interpretation call failed")
	}
	return ParseSections(raw)
}

type tocEntry struct {
	Title string          `json:"title"`
	Page  json.RawMessage `json:"page"`
}

// ParseSections pulls the first well-formed JSON array of {title, page}
// objects out of a model response, ignoring prose and code fences around it.
// At least two sections are required.
func ParseSections(raw string) ([]RawSection, error) {
	entries, ok := firstEntryArray(raw)
	if !ok {
		return nil, newError(KindStructureParse, StageStructureParse, nil, "no JSON array of sections in model output: %s", truncate(raw, 200))
	}

	sections := make([]RawSection, 0, len(entries))
	for _, e := range entries {
		title := strings.TrimSpace(e.Title)
		if title == "" {
			continue
		}
		page, ok := parsePage(e.Page)
		if !ok || page < 1 {
			return nil, newError(KindStructureParse, StageStructureParse, nil, "section %q has no usable page number (%s)", title, string(e.Page))
		}
		sections = append(sections, RawSection{Title: title, Page: page})
	}
	sections = collapseAnnexures(sections)

	if len(sections) < 2 {
		return nil, newError(KindStructureParse, StageStructureParse, nil, "need at least 2 sections to split, got %d", len(sections))
	}
	return sections, nil
}

func firstEntryArray(s string) ([]tocEntry, bool) {
	for i := 0; i < len(s); i++ {
		if s[i] != '[' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var candidate json.RawMessage
		if err := dec.Decode(&candidate); err != nil {
			continue
		}
		var entries []tocEntry
		if err := json.Unmarshal(candidate, &entries); err != nil {
			continue
		}
		return entries, true
	}
	return nil, false
}

func parsePage(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		v, err := strconv.Atoi(n.String())
		return v, err == nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		return v, err == nil
	}
	return 0, false
}

var annexureTitleRe = regexp.MustCompile(`(?i)^\s*(annex|annexure|annexures|appendix|appendices)\b`)

// collapseAnnexures keeps order and folds every annexure/appendix entry into
// one ANNEXURES section at the position and page of the first one.
func collapseAnnexures(sections []RawSection) []RawSection {
	out := make([]RawSection, 0, len(sections))
	seen := false
	for _, s := range sections {
		if !annexureTitleRe.MatchString(s.Title) {
			out = append(out, s)
			continue
		}
		if seen {
			continue
		}
		seen = true
		out = append(out, RawSection{Title: AnnexuresTitle, Page: s.Page})
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
