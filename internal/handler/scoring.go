package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/service"
)

// ScoringHandler receives results from the scoring workflow.
type ScoringHandler struct {
	candidates service.CandidateService
	logger     *slog.Logger
}

// NewScoringHandler creates a new ScoringHandler.
func NewScoringHandler(candidates service.CandidateService, logger *slog.Logger) *ScoringHandler {
	return &ScoringHandler{
		candidates: candidates,
		logger:     logger,
	}
}

// RegisterRoutes registers POST /api/scoring/callback behind requireSecret.
func (h *ScoringHandler) RegisterRoutes(r chi.Router, requireSecret func(http.Handler) http.Handler) {
	r.With(requireSecret).Post("/api/scoring/callback", h.Callback)
}

// Callback persists a scoring result.
func (h *ScoringHandler) Callback(w http.ResponseWriter, r *http.Request) {
	const op = "handler.scoring_callback"

	var callback domain.ScoringCallback
	if err := decodeJSON(w, r, op, &callback); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	if err := h.candidates.RecordScoringResult(r.Context(), callback); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
