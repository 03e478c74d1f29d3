package docsplit

import (
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// RangeWriter materializes pages [start, end] (1-based, inclusive) of src as
// a new document at dst.
type RangeWriter interface {
	WriteRange(src, dst string, start, end int) error
}

// PDFCPUWriter copies page ranges with pdfcpu, keeping page content and
// formatting as they are in the source.
type PDFCPUWriter struct {
	Conf *model.Configuration
}

func NewPDFCPUWriter() *PDFCPUWriter {
	return &PDFCPUWriter{Conf: model.NewDefaultConfiguration()}
}

func (w *PDFCPUWriter) WriteRange(src, dst string, start, end int) error {
	if end < start {
		return fmt.Errorf("empty page range %d-%d", start, end)
	}
	sel := strconv.Itoa(start)
	if end > start {
		sel = fmt.Sprintf("%d-%d", start, end)
	}
	conf := w.Conf
	if conf == nil {
		conf = model.NewDefaultConfiguration()
	}
	if err := api.TrimFile(src, dst, []string{sel}, conf); err != nil {
		return fmt.Errorf("pdfcpu trim %s pages %s: %w", src, sel, err)
	}
	return nil
}
