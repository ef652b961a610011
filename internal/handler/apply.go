package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/service"
	"github.com/DukeRupert/hirelane/internal/storage"
)

const (
	// multipartOverhead leaves room for the text fields around the CV.
	multipartOverhead = 1 << 20
	// multipartMemory is kept in memory; the rest spills to temp files.
	multipartMemory = 2 << 20
)

// ApplyHandler accepts public job applications.
type ApplyHandler struct {
	candidates service.CandidateService
	logger     *slog.Logger
}

// NewApplyHandler creates a new ApplyHandler.
func NewApplyHandler(candidates service.CandidateService, logger *slog.Logger) *ApplyHandler {
	return &ApplyHandler{
		candidates: candidates,
		logger:     logger,
	}
}

// RegisterRoutes registers POST /api/jobs/{jobID}/apply behind rateLimit.
func (h *ApplyHandler) RegisterRoutes(r chi.Router, rateLimit func(http.Handler) http.Handler) {
	r.With(rateLimit).Post("/api/jobs/{jobID}/apply", h.Apply)
}

// Apply stores a multipart application with fields full_name, email, phone
// and the cv file.
func (h *ApplyHandler) Apply(w http.ResponseWriter, r *http.Request) {
	const op = "handler.apply"

	jobID, err := parseUUID(op, "job id", chi.URLParam(r, "jobID"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, storage.MaxCVSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			ErrorResponse(w, r, h.logger, domain.TooLarge(op, "CV must be 10 MB or smaller"))
			return
		}
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Expected a multipart form"))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("cv")
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "CV file is required"))
		return
	}
	defer file.Close()

	result, err := h.candidates.Apply(r.Context(), domain.ApplyParams{
		JobID:         jobID,
		FullName:      r.FormValue("full_name"),
		Email:         r.FormValue("email"),
		Phone:         r.FormValue("phone"),
		CVFilename:    header.Filename,
		CVContentType: header.Header.Get("Content-Type"),
		CV:            file,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusCreated, result)
}
