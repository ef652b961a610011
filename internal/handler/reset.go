package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DukeRupert/hirelane/internal/service"
)

// ResetHandler exposes the billing-cycle reset to the scheduler.
type ResetHandler struct {
	job    service.ResetJob
	logger *slog.Logger
}

// NewResetHandler creates a new ResetHandler.
func NewResetHandler(job service.ResetJob, logger *slog.Logger) *ResetHandler {
	return &ResetHandler{
		job:    job,
		logger: logger,
	}
}

// RegisterRoutes registers POST /api/reset-monthly-counts behind requireCron.
func (h *ResetHandler) RegisterRoutes(r chi.Router, requireCron func(http.Handler) http.Handler) {
	r.With(requireCron).Post("/api/reset-monthly-counts", h.ResetMonthlyCounts)
}

// ResetMonthlyCounts starts a new period for every account with usage.
func (h *ResetHandler) ResetMonthlyCounts(w http.ResponseWriter, r *http.Request) {
	result, err := h.job.Run(r.Context())
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
