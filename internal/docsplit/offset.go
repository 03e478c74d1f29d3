package docsplit

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultMaxTOCPages bounds how far into the document the CONTENTS page is
// searched for.
const DefaultMaxTOCPages = 20

const contentsMarker = "CONTENTS"

var pageNumberRe = regexp.MustCompile(`\b\d+\b`)

func hasContentsMarker(text string) bool {
	return strings.Contains(strings.ToUpper(text), contentsMarker)
}

func scanLimit(pages PageSource, window int) int {
	if window <= 0 {
		window = DefaultMaxTOCPages
	}
	return min(window, pages.PageCount())
}

func findContents(pages PageSource, window int, stage Stage) (int, error) {
	limit := scanLimit(pages, window)
	for i := range limit {
		text, err := pages.PageText(i)
		if err != nil {
			return -1, newError(KindStructureNotFound, stage, err, "read page %d", i+1)
		}
		if hasContentsMarker(text) {
			return i, nil
		}
	}
	return -1, newError(KindStructureNotFound, stage, nil, "no %s page within the first %d pages", contentsMarker, limit)
}

// FindContentsPage returns the zero-based index of the first page within
// window whose text contains "CONTENTS", case-insensitively.
func FindContentsPage(pages PageSource, window int) (int, error) {
	return findContents(pages, window, StageOffsetEstimate)
}

// InitialOffset is the front-matter estimate of the page offset.
type InitialOffset struct {
	ContentsIndex int `json:"contents_index"`
	PrintedPage   int `json:"printed_page"`
	PhysicalIndex int `json:"physical_index"`
	Offset        int `json:"offset"`
}

// EstimateInitialOffset reads the printed page number of the page just before
// the CONTENTS page (the last integer on it) and returns
// offset = printed - zeroBasedIndexOfThatPage.
func EstimateInitialOffset(pages PageSource, window int) (InitialOffset, error) {
	idx, err := FindContentsPage(pages, window)
	if err != nil {
		return InitialOffset{}, err
	}
	if idx == 0 {
		return InitialOffset{}, newError(KindStructureNotFound, StageOffsetEstimate, nil,
			"%s is on the first physical page; no preceding page to read a printed number from", contentsMarker)
	}

	prev := idx - 1
	text, err := pages.PageText(prev)
	if err != nil {
		return InitialOffset{}, newError(KindPageNumberNotFound, StageOffsetEstimate, err, "read page %d", prev+1)
	}
	printed, ok := lastInteger(text)
	if !ok {
		return InitialOffset{}, newError(KindPageNumberNotFound, StageOffsetEstimate, nil,
			"no printed page number on page %d before %s", prev+1, contentsMarker)
	}

	return InitialOffset{
		ContentsIndex: idx,
		PrintedPage:   printed,
		PhysicalIndex: prev,
		Offset:        printed - prev,
	}, nil
}

func lastInteger(text string) (int, bool) {
	tokens := pageNumberRe.FindAllString(text, -1)
	if len(tokens) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(tokens[len(tokens)-1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ChapterKey shortens a section title to the token used to find its first
// page: the text before any "-" separator, trimmed. "Chapter I - Scope"
// becomes "Chapter I".
func ChapterKey(title string) string {
	key, _, _ := strings.Cut(title, "-")
	return strings.TrimSpace(key)
}

// LocateSectionStart scans forward from the page after contentsIndex for the
// first page containing the title's chapter key as a whole word,
// case-insensitively, and returns its 1-based physical page. Pages that
// still contain "CONTENTS" are treated as TOC spillover and skipped.
func LocateSectionStart(pages PageSource, contentsIndex int, title string) (int, error) {
	key := ChapterKey(title)
	if key == "" {
		return 0, newError(KindSectionNotLocatable, StageOffsetCorrect, nil, "section title %q yields an empty search key", title)
	}
	pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(key) + `\b`)

	for i := contentsIndex + 1; i < pages.PageCount(); i++ {
		text, err := pages.PageText(i)
		if err != nil {
			return 0, newError(KindSectionNotLocatable, StageOffsetCorrect, err, "read page %d", i+1)
		}
		if hasContentsMarker(text) {
			continue
		}
		if pattern.MatchString(text) {
			return i + 1, nil
		}
	}
	return 0, newError(KindSectionNotLocatable, StageOffsetCorrect, nil,
		"%q not found after page %d", key, contentsIndex+1)
}

// CorrectOffset adjusts the initial offset so that the first section's
// printed page lands on actualStart.
func CorrectOffset(initial int, first RawSection, actualStart int) int {
	expected := first.Page - initial
	correction := expected - actualStart
	return initial + correction
}
