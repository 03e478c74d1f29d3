package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.deps.Stats == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}
	queued := 0
	if s.deps.Orchestrator != nil {
		queued = s.deps.Orchestrator.QueueDepth()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"split_model": s.cfg.SplitModel,
		"chat_model":  s.cfg.ChatModel,
		"embed_model": s.cfg.EmbeddingModel,
		"queue_depth": queued,
		"stats":       s.deps.Stats.Snapshot(),
	})
}
