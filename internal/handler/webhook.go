// This file implements the Stripe webhook handler that keeps account plans in
// sync with subscriptions.
//
// Route:
//   - POST /webhooks/stripe -> HandleStripeWebhook
//
// This route is PUBLIC (no auth middleware) because Stripe calls it directly.
// Authentication is via the Stripe webhook signature verification.
package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/hirelane/internal/billing"
	"github.com/DukeRupert/hirelane/internal/domain"
	"github.com/DukeRupert/hirelane/internal/service"
)

// maxWebhookBody is the largest Stripe payload accepted.
const maxWebhookBody = 65536

// WebhookHandler handles incoming webhook events from Stripe.
type WebhookHandler struct {
	billing billing.Service
	quota   service.QuotaService
	logger  *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, quota service.QuotaService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing: billingService,
		quota:   quota,
		logger:  logger,
	}
}

// RegisterRoutes registers webhook routes. These routes are PUBLIC.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.HandleStripeWebhook)
}

// HandleStripeWebhook processes incoming Stripe webhook events. Sync failures
// answer 500 so Stripe retries the delivery.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	ctx := r.Context()
	switch event.Type {
	case "checkout.session.completed":
		err = h.handleCheckoutCompleted(ctx, event)
	case "customer.subscription.created", "customer.subscription.updated":
		err = h.handleSubscriptionChanged(ctx, event)
	case "customer.subscription.deleted":
		err = h.handleSubscriptionDeleted(ctx, event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
	}

	if err != nil {
		h.logger.Error("failed to process webhook", "error", err, "type", event.Type, "id", event.ID)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) handleCheckoutCompleted(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		h.logger.Error("failed to parse checkout session", "error", err)
		return nil
	}

	if session.Customer == nil || session.Subscription == nil {
		h.logger.Warn("checkout session missing customer or subscription", "session_id", session.ID)
		return nil
	}

	sub, err := h.billing.GetSubscription(session.Subscription.ID)
	if err != nil {
		return err
	}
	return h.syncSubscription(ctx, session.Customer.ID, sub)
}

func (h *WebhookHandler) handleSubscriptionChanged(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription event", "error", err)
		return nil
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription event missing customer", "subscription_id", sub.ID)
		return nil
	}
	return h.syncSubscription(ctx, sub.Customer.ID, &sub)
}

func (h *WebhookHandler) handleSubscriptionDeleted(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		h.logger.Error("failed to parse subscription deletion", "error", err)
		return nil
	}

	if sub.Customer == nil {
		h.logger.Warn("subscription deletion missing customer", "subscription_id", sub.ID)
		return nil
	}
	return h.setPlan(ctx, sub.Customer.ID, domain.PlanFree)
}

func (h *WebhookHandler) syncSubscription(ctx context.Context, customerID string, sub *stripe.Subscription) error {
	plan, ok := billing.PlanForSubscription(h.billing, sub)
	if !ok {
		h.logger.Warn("subscription has no known price",
			"customer_id", customerID,
			"subscription_id", sub.ID,
		)
		return nil
	}
	return h.setPlan(ctx, customerID, plan)
}

// setPlan writes the plan. Unknown customers are logged and acknowledged;
// they belong to checkouts started outside this app.
func (h *WebhookHandler) setPlan(ctx context.Context, customerID string, plan domain.Plan) error {
	err := h.quota.SyncPlanFromBilling(ctx, customerID, plan)
	if err == nil {
		return nil
	}
	if domain.ErrorCode(err) == domain.ENOTFOUND {
		h.logger.Warn("no account for stripe customer", "customer_id", customerID)
		return nil
	}
	return err
}
