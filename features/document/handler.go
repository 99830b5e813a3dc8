package document

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"finqa/backend/internal/middleware"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Ingest accepts a pre-extracted document: filename plus page texts. PDF
// parsing and file storage happen in the upload collaborator.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", err.Error(), http.StatusBadRequest)
		return
	}

	if req.UserID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "user_id is required", http.StatusBadRequest)
		return
	}
	if req.Filename == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "filename is required", http.StatusBadRequest)
		return
	}

	result, err := h.service.Ingest(r.Context(), req)
	if err != nil {
		slog.ErrorContext(r.Context(), "ingestion failed", "error", err, "filename", req.Filename)
		h.writeError(r.Context(), w, "INGESTION_FAILED", "Failed to process document", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	resp := map[string]interface{}{
		"message":            "File uploaded successfully",
		"document":           result.Document,
		"chunks_count":       result.ChunkCount,
		"processing_time_ms": result.ProcessingTime.Milliseconds(),
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("user_id")
	if userID == "" {
		h.writeError(r.Context(), w, "VALIDATION_ERROR", "user_id is required", http.StatusBadRequest)
		return
	}

	docs, err := h.service.List(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "listing documents failed", "error", err, "user_id", userID)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"documents": docs}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.service.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			h.writeError(r.Context(), w, "NOT_FOUND", "Document not found", http.StatusNotFound)
			return
		}
		slog.ErrorContext(r.Context(), "document deletion failed", "error", err, "document_id", id)
		h.writeError(r.Context(), w, "INTERNAL_ERROR", "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
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
