// Package pdftext reads per-page plain text out of PDF files.
package pdftext

import (
	"fmt"
	"os"
	"strings"
	"sync"

	pdflib "github.com/ledongthuc/pdf"
)

// Document is an open PDF whose page text is read lazily and cached.
// Safe for concurrent use.
type Document struct {
	f      *os.File
	reader *pdflib.Reader

	mu    sync.Mutex
	fonts map[string]*pdflib.Font
	cache map[int]string
}

// Open opens the PDF at path. The caller must Close it.
func Open(path string) (*Document, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf %s: %w", path, err)
	}
	return &Document{
		f:      f,
		reader: reader,
		fonts:  make(map[string]*pdflib.Font),
		cache:  make(map[int]string),
	}, nil
}

// PageCount returns the number of physical pages.
func (d *Document) PageCount() int {
	return d.reader.NumPage()
}

// PageText returns the text of the zero-based physical page i. Pages the
// library cannot decode come back as empty text, not as an error.
func (d *Document) PageText(i int) (string, error) {
	if i < 0 || i >= d.PageCount() {
		return "", fmt.Errorf("page index %d out of range [0,%d)", i, d.PageCount())
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if text, ok := d.cache[i]; ok {
		return text, nil
	}
	text := d.readPage(i + 1)
	d.cache[i] = text
	return text, nil
}

// readPage must be called with d.mu held.
func (d *Document) readPage(num int) (text string) {
	// ledongthuc/pdf panics on some malformed content streams.
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	page := d.reader.Page(num)
	if page.V.IsNull() {
		return ""
	}
	for _, name := range page.Fonts() {
		if _, ok := d.fonts[name]; !ok {
			font := page.Font(name)
			d.fonts[name] = &font
		}
	}
	out, err := page.GetPlainText(d.fonts)
	if err != nil {
		return ""
	}
	return out
}

// Close releases the underlying file.
func (d *Document) Close() error {
	return d.f.Close()
}

// Pages reads every page of the PDF at path, in physical order.
func Pages(path string) ([]string, error) {
	doc, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	pages := make([]string, doc.PageCount())
	for i := range pages {
		text, err := doc.PageText(i)
		if err != nil {
			return nil, err
		}
		pages[i] = strings.TrimRight(text, " \t\r\n")
	}
	return pages, nil
}
