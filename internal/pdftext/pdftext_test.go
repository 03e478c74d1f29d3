package pdftext

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_Errors(t *testing.T) {
	dir := t.TempDir()
	notPDF := filepath.Join(dir, "boq.pdf")
	if err := os.WriteFile(notPDF, []byte("item,qty\npump,2\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{filepath.Join(dir, "missing.pdf"), notPDF} {
		if _, err := Open(path); err == nil {
			t.Errorf("Open(%s): expected error", filepath.Base(path))
		}
		if _, err := Pages(path); err == nil {
			t.Errorf("Pages(%s): expected error", filepath.Base(path))
		}
	}
}
