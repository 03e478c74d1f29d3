// Package api serves the splitting and question-answering endpoints.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hntbot/biddocs/internal/chat"
	"github.com/hntbot/biddocs/internal/config"
	"github.com/hntbot/biddocs/internal/docsplit"
	"github.com/hntbot/biddocs/internal/llm"
	"github.com/hntbot/biddocs/internal/pipeline"
	"github.com/hntbot/biddocs/internal/storage"
	"github.com/hntbot/biddocs/internal/vectorstore"
)

// Splitter splits the PDF at src into outDir.
type Splitter interface {
	Split(ctx context.Context, src, outDir string) (*docsplit.Result, error)
}

// SplitterFactory builds a splitter for one request's model settings.
type SplitterFactory func(provider, model string, maxTOCPages int) (Splitter, error)

// ChatModels resolves a request-level provider and model override.
type ChatModels func(provider, model string) (llm.ChatModel, error)

// Collections is the registry of indexed document sets.
type Collections interface {
	Get(ctx context.Context, id string) (vectorstore.Collection, error)
	DeleteCollection(ctx context.Context, id string) error
}

// Deps are the components the HTTP layer drives.
type Deps struct {
	Splitters    SplitterFactory
	Files        *storage.Store
	Orchestrator *pipeline.Orchestrator
	Agent        *chat.Agent
	ChatModels   ChatModels
	Collections  Collections
	Stats        *llm.LLMStats
}

// Server is the HTTP API server for biddocs.
type Server struct {
	router chi.Router
	deps   Deps
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(deps Deps, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		deps: deps,
		log:  log,
		cfg:  cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)
	r.Get("/docs_splitting/test", s.handleDocsTest)

	// Authenticated endpoints. Auth is off when no key is configured.
	r.Group(func(r chi.Router) {
		if s.cfg.ServiceAPIKey != "" {
			r.Use(AuthMiddleware(s.cfg.ServiceAPIKey, s.log))
		}

		r.Route("/docs_splitting/split", func(r chi.Router) {
			r.Post("/pdf", s.handleSplitPDF)
			r.Get("/download/{uploadID}/{filename}", s.handleDownload)
			r.Get("/download-all/{uploadID}", s.handleDownloadAll)
			r.Get("/files/{uploadID}", s.handleListSplitFiles)
			r.Delete("/files/{uploadID}", s.handleDeleteSplitFiles)
			r.Get("/test", s.handleSplitTest)
		})

		r.Route("/agent", func(r chi.Router) {
			r.Post("/upload", s.handleUpload)
			r.Get("/upload/{jobID}/status", s.handleUploadStatus)
			r.Post("/ask", s.handleAsk)
			r.Post("/ask-stream", s.handleAskStream)
			r.Get("/history/{collectionID}", s.handleHistory)
			r.Delete("/collections/{collectionID}", s.handleDeleteCollection)
		})

		r.Get("/api/stats/llm", s.handleLLMStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleDocsTest(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "Document splitting service is running",
	})
}
