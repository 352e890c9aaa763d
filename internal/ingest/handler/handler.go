// Package handler exposes the entry ingestion API over HTTP.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/studykit/qadex/internal/ingest"
	"github.com/studykit/qadex/internal/ingest/validator"
	apperrors "github.com/studykit/qadex/pkg/errors"
	"github.com/studykit/qadex/pkg/logger"
)

// EntryPublisher persists a validated entry and queues it for indexing.
type EntryPublisher interface {
	Ingest(ctx context.Context, req *ingest.Request) (*ingest.Response, error)
}

// Handler accepts entry submissions and hands them to the publisher.
type Handler struct {
	publisher EntryPublisher
	logger    *slog.Logger
}

// New creates an ingestion Handler.
func New(pub EntryPublisher) *Handler {
	return &Handler{
		publisher: pub,
		logger:    slog.Default().With("component", "ingest-handler"),
	}
}

// Ingest handles POST /api/v1/entries.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var req ingest.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.publisher.Ingest(ctx, &req)
	if err != nil {
		statusCode := apperrors.HTTPStatusCode(err)
		log.Error("ingestion failed",
			"error", err,
			"status_code", statusCode,
		)
		h.writeError(w, statusCode, "ingestion failed")
		return
	}
	log.Info("entry ingested",
		"entry_id", resp.EntryID,
		"partition", resp.Partition,
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
