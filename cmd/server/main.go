package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/hntbot/biddocs/internal/api"
	"github.com/hntbot/biddocs/internal/chat"
	"github.com/hntbot/biddocs/internal/config"
	"github.com/hntbot/biddocs/internal/docsplit"
	"github.com/hntbot/biddocs/internal/llm"
	"github.com/hntbot/biddocs/internal/pipeline"
	"github.com/hntbot/biddocs/internal/sqlitedb"
	"github.com/hntbot/biddocs/internal/storage"
	"github.com/hntbot/biddocs/internal/vectorstore"
)

func main() {
	cfg, err := config.Load()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	if err != nil {
		log.Error("load configuration", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage.
	db, err := sqlitedb.Open(filepath.Join(cfg.DataDir, "biddocs.db"))
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	files, err := storage.New(cfg.DataDir)
	if err != nil {
		log.Error("open file storage", "error", err)
		os.Exit(1)
	}

	// Model clients.
	stats := llm.NewLLMStats(time.Hour)
	pool := llm.NewPool(cfg.LLM, stats)
	defer pool.Close()

	embedder, err := llm.NewEmbedder(cfg.LLM(cfg.EmbeddingProvider, cfg.EmbeddingModel))
	if err != nil {
		log.Error("create embedder", "error", err)
		os.Exit(1)
	}
	instrumented := llm.InstrumentEmbedder(embedder, stats)

	chatClient, err := pool.Get(cfg.ChatProvider, cfg.ChatModel)
	if err != nil {
		log.Error("create chat client", "error", err)
		os.Exit(1)
	}

	store, err := vectorstore.New(ctx, db, instrumented)
	if err != nil {
		log.Error("open vector store", "error", err)
		os.Exit(1)
	}
	checkpoints, err := chat.NewCheckpoints(ctx, db)
	if err != nil {
		log.Error("open chat checkpoints", "error", err)
		os.Exit(1)
	}
	agent := chat.NewAgent(chatClient, store, checkpoints, cfg.RetrievalK, log)

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, instrumented, store, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(api.Deps{
		Splitters: func(provider, model string, maxTOCPages int) (api.Splitter, error) {
			c, err := pool.Get(provider, model)
			if err != nil {
				return nil, err
			}
			return docsplit.New(docsplit.NewLLMInterpreter(c), docsplit.Options{
				MaxTOCPages: maxTOCPages,
				Log:         log,
			}), nil
		},
		Files:        files,
		Orchestrator: orch,
		Agent:        agent,
		ChatModels: func(provider, model string) (llm.ChatModel, error) {
			return pool.Get(provider, model)
		},
		Collections: store,
		Stats:       stats,
	}, log, cfg)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv,
		ReadTimeout: 60 * time.Second,
		// Splits and streamed answers wait on the model.
		WriteTimeout: cfg.LLMTimeout + 2*time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
	}()

	log.Info("starting biddocs",
		"port", cfg.Port,
		"data_dir", cfg.DataDir,
		"split_model", cfg.SplitProvider+"/"+cfg.SplitModel,
		"chat_model", cfg.ChatProvider+"/"+cfg.ChatModel,
		"embedding_model", cfg.EmbeddingProvider+"/"+cfg.EmbeddingModel,
		"auth", cfg.ServiceAPIKey != "",
	)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-stopped
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
