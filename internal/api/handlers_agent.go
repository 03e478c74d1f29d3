package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/hntbot/biddocs/internal/chat"
	"github.com/hntbot/biddocs/internal/llm"
	"github.com/hntbot/biddocs/internal/parser"
	"github.com/hntbot/biddocs/internal/pipeline"
	"github.com/hntbot/biddocs/internal/storage"
	"github.com/hntbot/biddocs/internal/vectorstore"
)

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
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
	if !parser.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}
	if header.Size > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return
	}

	collectionID := r.FormValue("collection_id")
	if collectionID == "" {
		collectionID = vectorstore.NewCollectionID()
	}

	path, err := s.deps.Files.SaveUpload(collectionID, filename, file)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidName) {
			jsonError(w, "invalid collection_id", http.StatusBadRequest)
			return
		}
		s.log.Error("save upload failed", "collection_id", collectionID, "error", err)
		jsonError(w, "failed to save uploaded file", http.StatusInternalServerError)
		return
	}

	job := pipeline.NewJob(collectionID, filename, path)
	if err := s.deps.Orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":        job.ID,
		"collection_id": collectionID,
		"filename":      filename,
		"status":        pipeline.StatusQueued,
		"poll_url":      fmt.Sprintf("/agent/upload/%s/status", job.ID),
	})
}

func (s *Server) handleUploadStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.deps.Orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	snap := job.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":        snap.ID,
		"collection_id": snap.CollectionID,
		"filename":      snap.Filename,
		"status":        snap.Status,
		"phase":         snap.Phase,
		"progress":      snap.Progress,
	})
}

type askRequest struct {
	question     string
	collectionID string
	agent        *chat.Agent
}

// parseAsk reads the form fields shared by ask and ask-stream and picks the
// agent for the requested model.
func (s *Server) parseAsk(w http.ResponseWriter, r *http.Request) (askRequest, bool) {
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		jsonError(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return askRequest{}, false
	}
	req := askRequest{
		question:     r.FormValue("question"),
		collectionID: r.FormValue("collection_id"),
		agent:        s.deps.Agent,
	}
	if req.question == "" || req.collectionID == "" {
		jsonError(w, "question and collection_id are required", http.StatusBadRequest)
		return askRequest{}, false
	}

	provider, model := r.FormValue("provider"), r.FormValue("model")
	if (provider != "" || model != "") && s.deps.ChatModels != nil {
		m, err := s.deps.ChatModels(formOr(r, "provider", s.cfg.ChatProvider), formOr(r, "model", s.cfg.ChatModel))
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return askRequest{}, false
		}
		req.agent = req.agent.WithModel(m)
	}
	return req, true
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseAsk(w, r)
	if !ok {
		return
	}

	ans, err := req.agent.Ask(r.Context(), req.question, req.collectionID)
	if err != nil {
		s.askFailed(w, req, err)
		return
	}

	resp := map[string]any{
		"answer":    ans.Answer,
		"thread_id": ans.ThreadID,
		"sources":   ans.Sources,
	}
	if r.FormValue("format") == "html" {
		html, err := renderAnswer(ans.Answer)
		if err != nil {
			s.log.Warn("render answer failed", "error", err)
		} else {
			resp["html"] = html
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) askFailed(w http.ResponseWriter, req askRequest, err error) {
	if errors.Is(err, chat.ErrEmptyQuestion) {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.log.Error("ask failed", "collection_id", req.collectionID, "error", err)
	code := http.StatusInternalServerError
	if llm.IsRetryable(err) {
		code = http.StatusServiceUnavailable
	}
	jsonError(w, "failed to answer question", code)
}

// sseEvent is one server-sent event on the ask stream.
type sseEvent struct {
	Type     string        `json:"type"`
	Content  string        `json:"content,omitempty"`
	ThreadID string        `json:"thread_id,omitempty"`
	Sources  []chat.Source `json:"sources,omitempty"`
	Message  string        `json:"message,omitempty"`
}

func (s *Server) handleAskStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.parseAsk(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	send := func(ev sseEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(sseEvent{Type: "start"}); err != nil {
		return
	}
	ctx := r.Context()
	ans, err := req.agent.StreamAsk(ctx, req.question, req.collectionID, func(delta string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return send(sseEvent{Type: "chunk", Content: delta})
	})
	if err != nil {
		if ctx.Err() != nil {
			s.log.Info("ask stream aborted by client", "collection_id", req.collectionID)
			return
		}
		s.log.Error("ask stream failed", "collection_id", req.collectionID, "error", err)
		send(sseEvent{Type: "error", Message: "failed to answer question"})
		return
	}
	send(sseEvent{Type: "done", ThreadID: ans.ThreadID, Sources: ans.Sources})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "collectionID")
	msgs, err := s.deps.Agent.History(r.Context(), id)
	if err != nil {
		s.log.Error("history failed", "collection_id", id, "error", err)
		jsonError(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	resp := map[string]any{
		"messages":      msgs,
		"collection_id": id,
		"filename":      nil,
	}
	if c, err := s.deps.Collections.Get(r.Context(), id); err == nil && c.Filename != "" {
		resp["filename"] = c.Filename
	} else if name, err := s.deps.Files.UploadedFilename(id); err == nil {
		resp["filename"] = name
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteCollection(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "collectionID")
	ctx := r.Context()

	if n := s.deps.Orchestrator.ActiveJobs(id); n > 0 {
		jsonError(w, fmt.Sprintf("collection has %d uploads still indexing", n), http.StatusConflict)
		return
	}
	if err := s.deps.Collections.DeleteCollection(ctx, id); err != nil {
		s.log.Error("delete collection failed", "collection_id", id, "error", err)
		jsonError(w, "failed to delete collection", http.StatusInternalServerError)
		return
	}
	if err := s.deps.Agent.Forget(ctx, id); err != nil {
		s.log.Error("delete history failed", "collection_id", id, "error", err)
		jsonError(w, "failed to delete history", http.StatusInternalServerError)
		return
	}
	if err := s.deps.Files.RemoveUploads(id); err != nil && !errors.Is(err, storage.ErrInvalidName) {
		s.log.Warn("delete uploads failed", "collection_id", id, "error", err)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"collection_id": id,
	})
}
