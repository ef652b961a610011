package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/DukeRupert/hirelane/internal/auth"
	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/service"
)

// AdminHandler handles operator requests against any account.
type AdminHandler struct {
	quota  service.QuotaService
	logger *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(quota service.QuotaService, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		quota:  quota,
		logger: logger,
	}
}

// RegisterRoutes registers admin routes. Both middlewares are applied in order.
func (h *AdminHandler) RegisterRoutes(
	r chi.Router,
	requireAccount func(http.Handler) http.Handler,
	requireAdmin func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(requireAccount, requireAdmin)
		r.Post("/api/admin/update-plan", h.UpdatePlan)
		r.Get("/api/admin/accounts/{accountID}/quota", h.AccountQuota)
	})
}

type updatePlanRequest struct {
	AccountID  string `json:"account_id"`
	Plan       string `json:"plan"`
	ResetUsage *bool  `json:"reset_usage"`
}

// UpdatePlan moves an account to another plan. Usage is reset unless
// reset_usage is false.
func (h *AdminHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	const op = "handler.admin_update_plan"

	var req updatePlanRequest
	if err := decodeJSON(w, r, op, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	accountID, err := parseUUID(op, "account_id", req.AccountID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	plan, ok := domain.ParsePlan(strings.ToLower(strings.TrimSpace(req.Plan)))
	if !ok {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "plan must be one of free, starter, pro, business, enterprise"))
		return
	}
	resetUsage := true
	if req.ResetUsage != nil {
		resetUsage = *req.ResetUsage
	}

	snap, err := h.quota.ChangePlan(r.Context(), accountID, plan, resetUsage)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	var adminID string
	if admin := auth.GetPrincipalFromRequest(r); admin != nil {
		adminID = admin.AccountID.String()
	}
	h.logger.Info("plan changed by admin",
		"admin_id", adminID,
		"account_id", accountID,
		"plan", plan,
		"reset_usage", resetUsage,
	)

	WriteJSON(w, http.StatusOK, snap)
}

// AccountQuota returns the quota snapshot of any account.
func (h *AdminHandler) AccountQuota(w http.ResponseWriter, r *http.Request) {
	const op = "handler.admin_account_quota"

	accountID, err := parseUUID(op, "account id", chi.URLParam(r, "accountID"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	snap, err := h.quota.Check(r.Context(), accountID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	WriteJSON(w, http.StatusOK, snap)
}
