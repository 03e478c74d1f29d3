package parser

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/hntbot/biddocs/internal/doctree"
	"github.com/hntbot/biddocs/internal/pdftext"
)

// chapterLineRe matches a page that opens a chapter or annexure, e.g.
// "CHAPTER IV" or "Annexure B".
var chapterLineRe = regexp.MustCompile(`(?i)^(CHAPTER\s+[IVXLC]+|ANNEXURE\s+[A-Z0-9]+)\b`)

// PDFParser produces one node per non-empty page, keeping the 1-based page
// number so answers can cite it. Pages after a chapter or annexure opening
// page are nested under that chapter so their chunks carry it in the
// breadcrumb.
type PDFParser struct{}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	path, cleanup, err := spool(r, "biddocs-pdf-*.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pages, err := pdftext.Pages(path)
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	return pageTree(pages, filename), nil
}

func pageTree(pages []string, filename string) *doctree.DocTree {
	tree := &doctree.DocTree{Title: baseTitle(filename), Source: filename}
	var chapter *doctree.DocNode
	for i, text := range pages {
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		page := &doctree.DocNode{
			Title: fmt.Sprintf("Page %d", i+1),
			Text:  text,
			Page:  i + 1,
		}

		if heading := chapterHeading(text); heading != "" {
			chapter = &doctree.DocNode{Title: heading, Page: i + 1}
			tree.Children = append(tree.Children, chapter)
		}
		if chapter != nil {
			chapter.Children = append(chapter.Children, page)
		} else {
			tree.Children = append(tree.Children, page)
		}
	}
	return tree
}

// chapterHeading returns the chapter label from the first line of a page, or
// "" when the page does not open a chapter.
func chapterHeading(text string) string {
	first, _, _ := strings.Cut(text, "\n")
	first = strings.TrimSpace(first)
	if m := chapterLineRe.FindString(first); m != "" {
		return strings.Join(strings.Fields(m), " ")
	}
	return ""
}
