package docsplit

import (
	"regexp"
	"strings"
)

var chapterHeadingRe = regexp.MustCompile(`(?i)CHAPTER\s+[IVXLC]+`)

// ExtractTOCText returns the printed table of contents: the text of the first
// CONTENTS page and every following page up to and including the first one
// that carries a roman-numeral chapter heading, all within window.
func ExtractTOCText(pages PageSource, window int) (string, error) {
	start, err := findContents(pages, window, StageTOCExtract)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	limit := scanLimit(pages, window)
	for i := start; i < limit; i++ {
		text, err := pages.PageText(i)
		if err != nil {
			return "", newError(KindStructureNotFound, StageTOCExtract, err, "read page %d", i+1)
		}
		b.WriteString("\n")
		b.WriteString(text)

		if i > start && chapterHeadingRe.MatchString(text) {
			break
		}
	}

	toc := b.String()
	if strings.TrimSpace(toc) == "" {
		return "", newError(KindStructureNotFound, StageTOCExtract, nil, "printed table of contents is empty")
	}
	return toc, nil
}
