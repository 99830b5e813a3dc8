// Package chat exposes the question-answering endpoint. All retrieval and
// generation logic lives in the rag package; this handler only validates the
// request shape and maps service errors onto HTTP responses.
package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"finqa/backend/internal/middleware"
	"finqa/backend/internal/rag"
)

// Answerer runs one retrieval-augmented generation cycle.
type Answerer interface {
	Answer(ctx context.Context, userID, question string, history []rag.Message) (*rag.AnswerEnvelope, error)
}

type Handler struct {
	answerer Answerer
}

func NewHandler(answerer Answerer) *Handler {
	return &Handler{answerer: answerer}
}

type request struct {
	UserID      string        `json:"user_id"`
	Question    string        `json:"question"`
	ChatHistory []rag.Message `json:"chat_history"`
}

type sourceView struct {
	Content  string  `json:"content"`
	Filename string  `json:"filename"`
	Page     int     `json:"page"`
	Score    float32 `json:"score"`
}

func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "question is required", http.StatusBadRequest)
		return
	}

	envelope, err := h.answerer.Answer(r.Context(), req.UserID, req.Question, req.ChatHistory)
	if err != nil {
		slog.ErrorContext(r.Context(), "answering failed", "error", err, "user_id", req.UserID)
		h.writeError(r.Context(), w, "CHAT_FAILED", "Failed to answer question", http.StatusInternalServerError)
		return
	}

	sources := make([]sourceView, len(envelope.Sources))
	for i, src := range envelope.Sources {
		sources[i] = sourceView{
			Content:  src.Chunk.Content,
			Filename: src.Chunk.Metadata.Filename,
			Page:     src.Chunk.Metadata.Page,
			Score:    src.Score,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	resp := map[string]interface{}{
		"answer":             envelope.Answer,
		"sources":            sources,
		"processing_time_ms": envelope.ProcessingTime.Milliseconds(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := map[string]interface{}{
		"error": map[string]string{
			"code":           code,
			"message":        message,
			"correlation_id": middleware.GetCorrelationID(ctx),
		},
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}
