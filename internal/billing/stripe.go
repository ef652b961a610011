// Package billing maps Stripe subscriptions to credit plans.
package billing

import (
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/subscription"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/DukeRupert/hirelane/internal/domain"
)

// Service defines the billing operations the webhook needs.
type Service interface {
	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// GetSubscription retrieves a Stripe subscription by ID.
	GetSubscription(subscriptionID string) (*stripe.Subscription, error)

	// PlanForPriceID returns the plan sold under a Stripe price ID.
	PlanForPriceID(priceID string) (domain.Plan, bool)
}

// PriceConfig lists the Stripe price IDs sold for each plan. A plan can have
// several prices (monthly, yearly).
type PriceConfig map[domain.Plan][]string

// ParsePriceIDs splits a comma separated env value.
func ParsePriceIDs(value string) []string {
	var ids []string
	for _, id := range strings.Split(value, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	priceToPlan   map[string]domain.Plan
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string, prices PriceConfig) Service {
	stripe.Key = secretKey

	priceToPlan := make(map[string]domain.Plan)
	for plan, ids := range prices {
		for _, id := range ids {
			priceToPlan[id] = plan
		}
	}

	return &stripeService{
		webhookSecret: webhookSecret,
		priceToPlan:   priceToPlan,
	}
}

func (s *stripeService) GetSubscription(subscriptionID string) (*stripe.Subscription, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("stripe get subscription: %w", err)
	}
	return sub, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) PlanForPriceID(priceID string) (domain.Plan, bool) {
	plan, ok := s.priceToPlan[priceID]
	return plan, ok
}

// PlanForSubscription resolves the plan a subscription pays for. Subscriptions
// that no longer pay (canceled, unpaid, expired) resolve to free. The second
// return is false when no item carries a known price.
func PlanForSubscription(svc Service, sub *stripe.Subscription) (domain.Plan, bool) {
	switch sub.Status {
	case stripe.SubscriptionStatusCanceled,
		stripe.SubscriptionStatusUnpaid,
		stripe.SubscriptionStatusIncompleteExpired:
		return domain.PlanFree, true
	}

	if sub.Items == nil {
		return "", false
	}
	for _, item := range sub.Items.Data {
		if item == nil || item.Price == nil {
			continue
		}
		if plan, ok := svc.PlanForPriceID(item.Price.ID); ok {
			return plan, true
		}
	}
	return "", false
}
