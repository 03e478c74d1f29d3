// Package docsplit splits a typeset PDF into one file per top-level section
// by reading its printed table of contents and reconciling printed page
// numbers with physical page positions.
package docsplit

// PageSource exposes the physical pages of a document. Indices are zero-based.
type PageSource interface {
	PageCount() int
	PageText(i int) (string, error)
}

// RawSection is a TOC entry as interpreted from the printed contents, with
// the printed (uncorrected) page number.
type RawSection struct {
	Title string `json:"title"`
	Page  int    `json:"page"`
}

// Section is a RawSection placed on a physical page.
type Section struct {
	Title       string `json:"title"`
	Page        int    `json:"page"`
	PrintedPage int    `json:"printed_page"`
}

// PageRange is an inclusive, 1-based physical page range. End < Start means
// the range holds no pages.
type PageRange struct {
	Start int `json:"start_page"`
	End   int `json:"end_page"`
}

func (r PageRange) Empty() bool { return r.End < r.Start }

func (r PageRange) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// OutputArtifact describes one written sub-document.
type OutputArtifact struct {
	Title     string `json:"title"`
	Filename  string `json:"filename"`
	StartPage int    `json:"start_page"`
	EndPage   int    `json:"end_page"`
	Path      string `json:"path"`
}

// Result is the outcome of a successful split.
type Result struct {
	Offset        int              `json:"offset"`
	InitialOffset int              `json:"initial_offset"`
	PageCount     int              `json:"page_count"`
	Sections      []Section        `json:"sections"`
	OutputFiles   []OutputArtifact `json:"output_files"`
	TotalSections int              `json:"total_sections"`
	Warnings      []Warning        `json:"warnings"`
}
