package docsplit

import (
	"fmt"
	"regexp"
	"strings"
)

// ResolveSections converts printed pages to physical pages:
// physical = max(printed - offset, 1). Order is preserved.
func ResolveSections(raw []RawSection, offset int) []Section {
	out := make([]Section, len(raw))
	for i, r := range raw {
		out[i] = Section{
			Title:       r.Title,
			Page:        max(r.Page-offset, 1),
			PrintedPage: r.Page,
		}
	}
	return out
}

// ComputeRanges gives each section the pages from its own start up to the
// page before the next section's start; the last section runs to pageCount.
// Ranges never extend past pageCount, so a section starting beyond the end
// of the document gets an empty range.
func ComputeRanges(sections []Section, pageCount int) []PageRange {
	ranges := make([]PageRange, len(sections))
	for i, s := range sections {
		end := pageCount
		if i+1 < len(sections) {
			end = min(sections[i+1].Page-1, pageCount)
		}
		ranges[i] = PageRange{Start: s.Page, End: end}
	}
	return ranges
}

const maxFilenameLen = 70

var nonAlnumRe = regexp.MustCompile(`[^a-zA-Z0-9]+`)

// SanitizeFilename collapses every run of non-alphanumeric characters to a
// single underscore, trims underscores from both ends and caps the result
// at 70 characters. It may return "".
func SanitizeFilename(title string) string {
	s := strings.Trim(nonAlnumRe.ReplaceAllString(title, "_"), "_")
	if len(s) > maxFilenameLen {
		s = s[:maxFilenameLen]
	}
	return s
}

// SectionFilename is the output file name for the section at zero-based
// index i, without collision handling.
func SectionFilename(title string, i int) string {
	name := SanitizeFilename(title)
	if name == "" {
		name = fmt.Sprintf("SECTION_%d", i+1)
	}
	return name + ".pdf"
}

type plannedOutput struct {
	index    int
	section  Section
	rng      PageRange
	filename string
}

// planOutputs decides what gets written. It returns the outputs, the
// effective range of every section, and warnings:
//   - an empty range gets no output;
//   - a range starting at or before the end of an earlier written range
//     (a TOC listed out of page order) is trimmed to start after it, so no
//     page is written twice;
//   - a colliding file name gets a numeric suffix instead of overwriting
//     the earlier file.
//
// It fails with KindEmptyRange when no section is left with any pages.
func planOutputs(sections []Section, ranges []PageRange) ([]plannedOutput, []PageRange, []Warning, error) {
	var (
		planned  []plannedOutput
		warnings []Warning
		used     = make(map[string]bool)
		lastEnd  = 0
	)
	effective := make([]PageRange, len(ranges))
	copy(effective, ranges)

	for i, s := range sections {
		r := ranges[i]
		if r.Empty() {
			warnings = append(warnings, Warning{
				Kind:    WarnEmptyRange,
				Section: i + 1,
				Title:   s.Title,
				Message: fmt.Sprintf("section starts on page %d but its range ends on page %d; no file written", r.Start, r.End),
			})
			continue
		}

		if r.Start <= lastEnd {
			trimmed := PageRange{Start: lastEnd + 1, End: r.End}
			effective[i] = trimmed
			if trimmed.Empty() {
				warnings = append(warnings, Warning{
					Kind:    WarnRangeOverlap,
					Section: i + 1,
					Title:   s.Title,
					Message: fmt.Sprintf("pages %d-%d were already written for an earlier section; no file written", r.Start, r.End),
				})
				continue
			}
			warnings = append(warnings, Warning{
				Kind:    WarnRangeOverlap,
				Section: i + 1,
				Title:   s.Title,
				Message: fmt.Sprintf("pages %d-%d overlap an earlier section; wrote pages %d-%d", r.Start, r.End, trimmed.Start, trimmed.End),
			})
			r = trimmed
		}
		lastEnd = r.End

		name := SectionFilename(s.Title, i)
		if used[strings.ToLower(name)] {
			base := strings.TrimSuffix(name, ".pdf")
			for n := 2; ; n++ {
				candidate := fmt.Sprintf("%s_%d.pdf", base, n)
				if !used[strings.ToLower(candidate)] {
					warnings = append(warnings, Warning{
						Kind:    WarnFilenameCollision,
						Section: i + 1,
						Title:   s.Title,
						Message: fmt.Sprintf("%s already used by an earlier section; wrote %s", name, candidate),
					})
					name = candidate
					break
				}
			}
		}
		used[strings.ToLower(name)] = true

		planned = append(planned, plannedOutput{index: i, section: s, rng: r, filename: name})
	}

	if len(planned) == 0 {
		pageCount := 0
		if len(ranges) > 0 {
			pageCount = ranges[len(ranges)-1].End
		}
		return nil, effective, warnings, newError(KindEmptyRange, StageSplit, nil,
			"all %d sections resolve to empty page ranges in a %d-page document", len(sections), pageCount)
	}
	return planned, effective, warnings, nil
}
