package docsplit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hntbot/biddocs/internal/pdftext"
)

// Opener opens a source document for page-level reading.
type Opener func(path string) (PageSource, error)

// OpenPDF is the default Opener.
func OpenPDF(path string) (PageSource, error) {
	doc, err := pdftext.Open(path)
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Options configures a Splitter. Zero values take defaults.
type Options struct {
	MaxTOCPages int
	Writer      RangeWriter
	Open        Opener
	Log         *slog.Logger
}

// Splitter runs the split pipeline for one document at a time. It holds no
// per-document state, so one Splitter may serve concurrent requests as long
// as each uses its own output directory.
type Splitter struct {
	interp      TOCInterpreter
	writer      RangeWriter
	open        Opener
	maxTOCPages int
	log         *slog.Logger
}

func New(interp TOCInterpreter, opts Options) *Splitter {
	s := &Splitter{
		interp:      interp,
		writer:      opts.Writer,
		open:        opts.Open,
		maxTOCPages: opts.MaxTOCPages,
		log:         opts.Log,
	}
	if s.writer == nil {
		s.writer = NewPDFCPUWriter()
	}
	if s.open == nil {
		s.open = OpenPDF
	}
	if s.maxTOCPages <= 0 {
		s.maxTOCPages = DefaultMaxTOCPages
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

// Plan is everything the pipeline decides before touching the output
// directory.
type Plan struct {
	Initial   InitialOffset `json:"initial"`
	Offset    int           `json:"offset"`
	PageCount int           `json:"page_count"`
	Sections  []Section     `json:"sections"`
	// Ranges are the pages each section gets after overlap trimming.
	Ranges    []PageRange   `json:"ranges"`
	Warnings  []Warning     `json:"warnings"`

	outputs []plannedOutput
}

// Plan runs offset estimation, TOC extraction, structure parsing, offset
// correction and range computation. It performs no writes.
func (s *Splitter) Plan(ctx context.Context, pages PageSource) (*Plan, error) {
	log := s.log

	start := time.Now()
	initial, err := EstimateInitialOffset(pages, s.maxTOCPages)
	if err != nil {
		return nil, err
	}
	log.Debug("initial offset estimated",
		"contents_page", initial.ContentsIndex+1,
		"printed_page", initial.PrintedPage,
		"offset", initial.Offset,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	start = time.Now()
	tocText, err := ExtractTOCText(pages, s.maxTOCPages)
	if err != nil {
		return nil, err
	}
	log.Debug("toc text extracted", "chars", len(tocText), "duration_ms", time.Since(start).Milliseconds())

	if err := ctx.Err(); err != nil {
		return nil, newError(KindStructureParse, StageStructureParse, err, "cancelled before interpretation")
	}

	start = time.Now()
	raw, err := s.interp.Interpret(ctx, tocText)
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, newError(KindStructureParse, StageStructureParse, nil, "need at least 2 sections to split, got %d", len(raw))
	}
	log.Debug("toc interpreted", "sections", len(raw), "duration_ms", time.Since(start).Milliseconds())

	actual, err := LocateSectionStart(pages, initial.ContentsIndex, raw[0].Title)
	if err != nil {
		return nil, err
	}
	offset := CorrectOffset(initial.Offset, raw[0], actual)
	log.Debug("offset corrected",
		"anchor_title", raw[0].Title,
		"anchor_page", actual,
		"initial_offset", initial.Offset,
		"offset", offset,
	)

	pageCount := pages.PageCount()
	sections := ResolveSections(raw, offset)
	ranges := ComputeRanges(sections, pageCount)
	outputs, ranges, warnings, err := planOutputs(sections, ranges)
	if err != nil {
		return nil, err
	}

	return &Plan{
		Initial:   initial,
		Offset:    offset,
		PageCount: pageCount,
		Sections:  sections,
		Ranges:    ranges,
		Warnings:  warnings,
		outputs:   outputs,
	}, nil
}

// Split runs the whole pipeline on the PDF at srcPath and writes one file per
// non-empty section into outDir. Any stage failure aborts before the first
// file is written.
func (s *Splitter) Split(ctx context.Context, srcPath, outDir string) (*Result, error) {
	pages, err := s.open(srcPath)
	if err != nil {
		return nil, newError(KindUnreadable, StageOpen, err, "open %s", filepath.Base(srcPath))
	}
	if c, ok := pages.(io.Closer); ok {
		defer c.Close()
	}

	plan, err := s.Plan(ctx, pages)
	if err != nil {
		return nil, err
	}
	for _, w := range plan.Warnings {
		s.log.Warn("split warning", "kind", w.Kind, "section", w.Section, "title", w.Title, "message", w.Message)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	files := make([]OutputArtifact, 0, len(plan.outputs))
	for _, out := range plan.outputs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(outDir, out.filename)
		if err := s.writer.WriteRange(srcPath, path, out.rng.Start, out.rng.End); err != nil {
			return nil, fmt.Errorf("write section %d (%s): %w", out.index+1, out.section.Title, err)
		}
		files = append(files, OutputArtifact{
			Title:     out.section.Title,
			Filename:  out.filename,
			StartPage: out.rng.Start,
			EndPage:   out.rng.End,
			Path:      path,
		})
	}

	s.log.Info("pdf split",
		"source", filepath.Base(srcPath),
		"pages", plan.PageCount,
		"offset", plan.Offset,
		"sections", len(plan.Sections),
		"files", len(files),
		"warnings", len(plan.Warnings),
	)

	warnings := plan.Warnings
	if warnings == nil {
		warnings = []Warning{}
	}
	return &Result{
		Offset:        plan.Offset,
		InitialOffset: plan.Initial.Offset,
		PageCount:     plan.PageCount,
		Sections:      plan.Sections,
		OutputFiles:   files,
		TotalSections: len(plan.Sections),
		Warnings:      warnings,
	}, nil
}
