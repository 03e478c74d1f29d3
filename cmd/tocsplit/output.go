package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/hntbot/biddocs/internal/docsplit"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("33"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33")).
			Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(headers...)
}

func printResult(w io.Writer, src, outDir string, r *docsplit.Result) {
	fmt.Fprintln(w, titleStyle.Render("Split "+src))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d pages, offset %d (estimated %d), %d sections", r.PageCount, r.Offset, r.InitialOffset, r.TotalSections)))

	t := newTable("#", "Title", "Pages", "File")
	for i, f := range r.OutputFiles {
		t.Row(strconv.Itoa(i+1), f.Title, fmt.Sprintf("%d-%d", f.StartPage, f.EndPage), f.Filename)
	}
	fmt.Fprintln(w, t.Render())
	printWarnings(w, r.Warnings)
	fmt.Fprintln(w, successStyle.Render(fmt.Sprintf("Wrote %d files to %s", len(r.OutputFiles), outDir)))
}

func printPlan(w io.Writer, src string, p *docsplit.Plan) {
	fmt.Fprintln(w, titleStyle.Render("Plan for "+src))
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d pages, offset %d (estimated %d)", p.PageCount, p.Offset, p.Initial.Offset)))

	t := newTable("#", "Title", "Printed", "Pages")
	for i, s := range p.Sections {
		pages := "empty"
		if rng := p.Ranges[i]; !rng.Empty() {
			pages = fmt.Sprintf("%d-%d", rng.Start, rng.End)
		}
		t.Row(strconv.Itoa(i+1), s.Title, strconv.Itoa(s.PrintedPage), pages)
	}
	fmt.Fprintln(w, t.Render())
	printWarnings(w, p.Warnings)
}

func printInspect(w io.Writer, src string, pageCount int, in docsplit.InitialOffset, toc string) {
	fmt.Fprintln(w, titleStyle.Render("Inspect "+src))
	summary := strings.Join([]string{
		fmt.Sprintf("Pages:          %d", pageCount),
		fmt.Sprintf("CONTENTS page:  %d", in.ContentsIndex+1),
		fmt.Sprintf("Printed number: %d (on page %d)", in.PrintedPage, in.PhysicalIndex+1),
		fmt.Sprintf("Initial offset: %d", in.Offset),
	}, "\n")
	fmt.Fprintln(w, boxStyle.Render(summary))
	fmt.Fprintln(w, titleStyle.Render("Table of contents text"))
	fmt.Fprintln(w, strings.TrimSpace(toc))
}

func printWarnings(w io.Writer, warnings []docsplit.Warning) {
	for _, warn := range warnings {
		fmt.Fprintln(w, warnStyle.Render(fmt.Sprintf("warning: section %d (%s): %s", warn.Section, warn.Title, warn.Message)))
	}
}
