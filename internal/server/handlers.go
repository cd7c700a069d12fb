package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/askchat/askchat-ai-backend/internal/models"
)

func (s *Server) handleEmbedMessage(w http.ResponseWriter, r *http.Request) {
	var msg models.Message
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg.ChatID == "" || msg.MessageID == "" {
		s.respondError(w, http.StatusBadRequest, "chatId and messageId are required")
		return
	}
	s.logger.Debug("embed message request",
		zap.String("chatId", msg.ChatID), zap.String("messageId", msg.MessageID))
	result, err := s.ingester.IngestMessage(r.Context(), &msg)
	if err != nil {
		s.logger.Error("ingestion failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var query models.AskQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger.Debug("ask request", zap.String("question", query.Question), zap.Int("top_k", query.TopK))
	response, err := s.engine.Ask(r.Context(), &query)
	if err != nil {
		s.logger.Error("ask failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.Count(r.Context())
	if err != nil {
		s.logger.Error("status: count records failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]interface{}{
		"records":    count,
		"collection": s.config.Store.Collection,
		"config": map[string]interface{}{
			"embedding_provider":   s.embedder.Name(),
			"embedding_dimensions": s.embedder.Dimensions(),
			"store_backend":        s.config.Store.Backend,
			"chunk_size":           s.config.Retrieval.MaxCharsPerChunk,
			"chunk_overlap":        s.config.Retrieval.ChunkOverlap,
		},
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
