package api

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/hntbot/biddocs/internal/docsplit"
)

func TestSplitPDF_Lifecycle(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.do(t, multipartRequest(t, "/docs_splitting/split/pdf", "tender.pdf", "%PDF-1.7", map[string]string{
		"model_name":    "gemini-2.5-pro",
		"max_toc_pages": "12",
	}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	id, _ := body["upload_id"].(string)
	if id == "" || body["status"] != "success" || body["page_offset"] != float64(2) || body["total_sections"] != float64(2) {
		t.Fatalf("unexpected split response: %v", body)
	}
	if got := fmt.Sprint(env.requested); got != "[gemini gemini-2.5-pro 12]" {
		t.Errorf("expected request overrides passed to the factory, got %s", got)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/docs_splitting/split/files/"+id, nil))
	list := decode(t, rec)
	if list["total_files"] != float64(2) {
		t.Fatalf("expected 2 files, got %v", list)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/docs_splitting/split/download/"+id+"/Chapter_I_Scope.pdf", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "%PDF-Chapter_I_Scope.pdf" {
		t.Fatalf("unexpected download %d %q", rec.Code, rec.Body)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/docs_splitting/split/download/"+id+"/missing.pdf", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for a missing file, got %d", rec.Code)
	}

	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/docs_splitting/split/download-all/"+id, nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/zip" {
		t.Fatalf("unexpected zip response %d %s", rec.Code, rec.Header())
	}
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 2 {
		t.Errorf("expected 2 archive entries, got %d", len(zr.File))
	}

	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/docs_splitting/split/files/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected delete to succeed, got %d", rec.Code)
	}
	rec = env.do(t, httptest.NewRequest(http.MethodGet, "/docs_splitting/split/files/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
	rec = env.do(t, httptest.NewRequest(http.MethodDelete, "/docs_splitting/split/files/"+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rec.Code)
	}
}

func TestSplitPDF_RejectsInput(t *testing.T) {
	env := newTestEnv(t, "")
	tests := []struct {
		name string
		req  func() *http.Request
		code int
	}{
		{"not a pdf", func() *http.Request {
			return multipartRequest(t, "/docs_splitting/split/pdf", "tender.docx", "x", nil)
		}, http.StatusBadRequest},
		{"no file", func() *http.Request {
			return multipartRequest(t, "/docs_splitting/split/pdf", "", "", map[string]string{"model_name": "m"})
		}, http.StatusBadRequest},
		{"bad max_toc_pages", func() *http.Request {
			return multipartRequest(t, "/docs_splitting/split/pdf", "tender.pdf", "x", map[string]string{"max_toc_pages": "-3"})
		}, http.StatusBadRequest},
		{"unknown provider", func() *http.Request {
			return multipartRequest(t, "/docs_splitting/split/pdf", "tender.pdf", "x", map[string]string{"provider": "cohere"})
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := env.do(t, tt.req()); rec.Code != tt.code {
				t.Errorf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body)
			}
		})
	}
}

func TestSplitPDF_FailureMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     int
		category string
	}{
		{"no contents", &docsplit.Error{Kind: docsplit.KindStructureNotFound, Stage: docsplit.StageOffsetEstimate}, http.StatusBadRequest, "structure_unrecognized"},
		{"anchor missing", &docsplit.Error{Kind: docsplit.KindSectionNotLocatable, Stage: docsplit.StageOffsetCorrect}, http.StatusBadRequest, "structure_unrecognized"},
		{"no printed number", &docsplit.Error{Kind: docsplit.KindPageNumberNotFound, Stage: docsplit.StageOffsetEstimate}, http.StatusBadRequest, "page_math_failure"},
		{"model failure", fmt.Errorf("split: %w", &docsplit.Error{Kind: docsplit.KindStructureParse, Stage: docsplit.StageStructureParse}), http.StatusBadGateway, "parsing_service_failure"},
		{"corrupt upload", &docsplit.Error{Kind: docsplit.KindUnreadable, Stage: docsplit.StageOpen, Err: errors.New("xref table not found")}, http.StatusBadRequest, "document_unreadable"},
		{"write failure", errors.New("disk full"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, "")
			env.splitter.err = tt.err

			rec := env.do(t, multipartRequest(t, "/docs_splitting/split/pdf", "tender.pdf", "%PDF", nil))
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body)
			}
			body := decode(t, rec)
			if tt.category != "" && body["category"] != tt.category {
				t.Errorf("expected category %q, got %v", tt.category, body["category"])
			}
			if body["error"] == "" {
				t.Error("expected an error message")
			}
			var se *docsplit.Error
			if errors.As(tt.err, &se) && body["stage"] != string(se.Stage) {
				t.Errorf("expected stage %q, got %v", se.Stage, body["stage"])
			}

			entries, err := os.ReadDir(filepath.Join(env.root, "split_files"))
			if err != nil {
				t.Fatal(err)
			}
			if len(entries) != 0 {
				t.Errorf("expected failed workspace removed, found %d entries", len(entries))
			}
		})
	}
}

func TestSplitDownload_InvalidNames(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/docs_splitting/split/files/..", nil))
	if rec.Code != http.StatusBadRequest && rec.Code != http.StatusNotFound {
		t.Errorf("expected traversal rejected, got %d", rec.Code)
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"tender.pdf":         "tender.pdf",
		"../../etc/passwd":   "passwd",
		`C:\bids\tender.pdf`: "tender.pdf",
		"":                   "unnamed",
		"a..b.pdf":           "a_b.pdf",
	}
	for in, want := range tests {
		if got := sanitizeFilename(in); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
