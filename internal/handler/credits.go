// Package handler contains the JSON HTTP handlers of the credit API.
//
// This file implements the credit endpoints used by the employer dashboard.
//
// Routes handled:
//   - GET|POST /api/check-unlock-limit -> CheckUnlockLimit
//   - POST     /api/unlock-candidate   -> UnlockCandidate
//   - POST     /api/use-analysis-credit -> UseAnalysisCredit
//   - POST     /api/analyze-pending-cvs -> AnalyzePendingCVs
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/DukeRupert/hirelane/internal/auth"
	"github.com/DukeRupert/hirelane/internal/service"
)

// CreditsHandler serves the quota and credit endpoints.
type CreditsHandler struct {
	quota      service.QuotaService
	dispatcher service.AnalysisDispatcher
	logger     *slog.Logger
}

// NewCreditsHandler creates a new CreditsHandler.
func NewCreditsHandler(quota service.QuotaService, dispatcher service.AnalysisDispatcher, logger *slog.Logger) *CreditsHandler {
	return &CreditsHandler{
		quota:      quota,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterRoutes registers the credit routes behind requireAccount.
func (h *CreditsHandler) RegisterRoutes(r chi.Router, requireAccount func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(requireAccount)
		r.Get("/api/check-unlock-limit", h.CheckUnlockLimit)
		r.Post("/api/check-unlock-limit", h.CheckUnlockLimit)
		r.Post("/api/unlock-candidate", h.UnlockCandidate)
		r.Post("/api/use-analysis-credit", h.UseAnalysisCredit)
		r.Post("/api/analyze-pending-cvs", h.AnalyzePendingCVs)
	})
}

// CheckUnlockLimit returns the caller's quota snapshot.
func (h *CreditsHandler) CheckUnlockLimit(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipalFromRequest(r)
	if principal == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	snap, err := h.quota.Check(r.Context(), principal.AccountID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, snap)
}

type unlockRequest struct {
	CandidateID string `json:"candidate_id"`
}

// UnlockCandidate charges one credit and reveals the candidate.
func (h *CreditsHandler) UnlockCandidate(w http.ResponseWriter, r *http.Request) {
	const op = "handler.unlock_candidate"

	principal := auth.GetPrincipalFromRequest(r)
	if principal == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req unlockRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	candidateID, err := parseUUID(op, "candidate_id", req.CandidateID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.quota.UnlockCandidate(r.Context(), principal.AccountID, candidateID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

// UseAnalysisCredit charges one analysis credit. Refusals are 200 with
// can_analyze false.
func (h *CreditsHandler) UseAnalysisCredit(w http.ResponseWriter, r *http.Request) {
	principal := auth.GetPrincipalFromRequest(r)
	if principal == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	result, err := h.quota.UseAnalysisCredit(r.Context(), principal.AccountID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}

type analyzeRequest struct {
	CandidateIDs []string `json:"candidate_ids"`
}

// AnalyzePendingCVs dispatches a batch of candidates for scoring.
func (h *CreditsHandler) AnalyzePendingCVs(w http.ResponseWriter, r *http.Request) {
	const op = "handler.analyze_pending_cvs"

	principal := auth.GetPrincipalFromRequest(r)
	if principal == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	var req analyzeRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	ids := make([]uuid.UUID, 0, len(req.CandidateIDs))
	for _, raw := range req.CandidateIDs {
		id, err := parseUUID(op, "candidate_ids", raw)
		if err != nil {
			ErrorResponse(w, r, h.logger, err)
			return
		}
		ids = append(ids, id)
	}

	result, err := h.dispatcher.AnalyzePending(r.Context(), principal.AccountID, ids)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
