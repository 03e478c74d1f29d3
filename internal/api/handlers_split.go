package api

import (
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hntbot/biddocs/internal/docsplit"
	"github.com/hntbot/biddocs/internal/storage"
)

// SplitResponse is returned by a successful split.
type SplitResponse struct {
	Status          string                    `json:"status"`
	UploadID        string                    `json:"upload_id"`
	PageOffset      int                       `json:"page_offset"`
	Sections        []docsplit.Section        `json:"sections"`
	OutputFiles     []docsplit.OutputArtifact `json:"output_files"`
	TotalSections   int                       `json:"total_sections"`
	OutputDirectory string                    `json:"output_directory"`
	Warnings        []docsplit.Warning        `json:"warnings"`
	DownloadAllURL  string                    `json:"download_all_url"`
}

type splitError struct {
	Error    string `json:"error"`
	Stage    string `json:"stage,omitempty"`
	Kind     string `json:"kind,omitempty"`
	Category string `json:"category,omitempty"`
}

func (s *Server) handleSplitPDF(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !strings.EqualFold(filepath.Ext(filename), ".pdf") {
		jsonError(w, "only PDF files are supported", http.StatusBadRequest)
		return
	}
	if header.Size > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	provider := formOr(r, "provider", s.cfg.SplitProvider)
	model := formOr(r, "model_name", s.cfg.SplitModel)
	maxPages := s.cfg.SplitMaxTOCPages
	if v := r.FormValue("max_toc_pages"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "max_toc_pages must be a positive integer", http.StatusBadRequest)
			return
		}
		maxPages = n
	}

	splitter, err := s.deps.Splitters(provider, model, maxPages)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	uploadID := uuid.NewString()
	log := s.log.With("upload_id", uploadID, "filename", filename, "provider", provider, "model", model)

	ws, err := s.deps.Files.NewWorkspace(uploadID)
	if err != nil {
		log.Error("create workspace failed", "error", err)
		jsonError(w, "failed to save uploaded file", http.StatusInternalServerError)
		return
	}
	src, err := s.deps.Files.SaveSource(ws, filename, file)
	if err != nil {
		s.deps.Files.RemoveWorkspace(uploadID)
		log.Error("save upload failed", "error", err)
		jsonError(w, "failed to save uploaded file", http.StatusInternalServerError)
		return
	}

	result, err := splitter.Split(r.Context(), src, ws.OutputDir())
	if err != nil {
		if rmErr := s.deps.Files.RemoveWorkspace(uploadID); rmErr != nil {
			log.Warn("workspace cleanup failed", "error", rmErr)
		}
		code, body := splitFailure(err)
		if code >= 500 {
			log.Error("split failed", "error", err)
		} else {
			log.Warn("split rejected", "error", err, "kind", body.Kind)
		}
		writeJSON(w, code, body)
		return
	}

	writeJSON(w, http.StatusOK, SplitResponse{
		Status:          "success",
		UploadID:        uploadID,
		PageOffset:      result.Offset,
		Sections:        result.Sections,
		OutputFiles:     result.OutputFiles,
		TotalSections:   result.TotalSections,
		OutputDirectory: ws.OutputDir(),
		Warnings:        result.Warnings,
		DownloadAllURL:  "/docs_splitting/split/download-all/" + uploadID,
	})
}

// splitFailure maps a split error to a status code. Documents whose
// structure cannot be used are the client's problem; a model that cannot
// interpret the contents is an upstream failure.
func splitFailure(err error) (int, splitError) {
	var se *docsplit.Error
	if !errors.As(err, &se) {
		return http.StatusInternalServerError, splitError{Error: "failed to split PDF"}
	}
	body := splitError{
		Error:    se.Error(),
		Stage:    string(se.Stage),
		Kind:     string(se.Kind),
		Category: se.Kind.Category(),
	}
	if se.Kind == docsplit.KindStructureParse {
		return http.StatusBadGateway, body
	}
	return http.StatusBadRequest, body
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	name := chi.URLParam(r, "filename")
	path, err := s.deps.Files.OutputPath(ws, name)
	if err != nil {
		storageError(w, err, "file not found")
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeFile(w, r, path)
}

func (s *Server) handleDownloadAll(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	files, err := s.deps.Files.ListOutputs(ws)
	if err != nil {
		jsonError(w, "failed to list split files", http.StatusInternalServerError)
		return
	}
	if len(files) == 0 {
		jsonError(w, "split files not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "split_files_"+ws.ID+".zip"))
	if err := s.deps.Files.WriteZip(ws, w); err != nil {
		// Headers are gone; the client sees a truncated archive.
		s.log.Error("zip failed", "upload_id", ws.ID, "error", err)
	}
}

func (s *Server) handleListSplitFiles(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	files, err := s.deps.Files.ListOutputs(ws)
	if err != nil {
		jsonError(w, "failed to list split files", http.StatusInternalServerError)
		return
	}

	out := make([]map[string]any, 0, len(files))
	for _, f := range files {
		out = append(out, map[string]any{
			"filename":     f.Filename,
			"size":         f.Size,
			"download_url": fmt.Sprintf("/docs_splitting/split/download/%s/%s", ws.ID, f.Filename),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"upload_id":        ws.ID,
		"total_files":      len(out),
		"files":            out,
		"download_all_url": "/docs_splitting/split/download-all/" + ws.ID,
	})
}

func (s *Server) handleDeleteSplitFiles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "uploadID")
	if err := s.deps.Files.RemoveWorkspace(id); err != nil {
		storageError(w, err, "upload id not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "deleted all files for upload id " + id,
	})
}

func (s *Server) handleSplitTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"message":          "PDF splitting API is running",
		"default_provider": s.cfg.SplitProvider,
		"default_model":    s.cfg.SplitModel,
		"max_toc_pages":    s.cfg.SplitMaxTOCPages,
	})
}

func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (storage.Workspace, bool) {
	ws, err := s.deps.Files.Workspace(chi.URLParam(r, "uploadID"))
	if err != nil {
		storageError(w, err, "split files not found")
		return storage.Workspace{}, false
	}
	return ws, true
}

func storageError(w http.ResponseWriter, err error, notFound string) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		jsonError(w, notFound, http.StatusNotFound)
	case errors.Is(err, storage.ErrInvalidName):
		jsonError(w, "invalid name", http.StatusBadRequest)
	default:
		jsonError(w, "storage error", http.StatusInternalServerError)
	}
}

func formOr(r *http.Request, key, fallback string) string {
	if v := strings.TrimSpace(r.FormValue(key)); v != "" {
		return v
	}
	return fallback
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
