// Package domain contains core business types and interfaces.
//
// This file defines subscription plans, their monthly credit limits, and the
// quota evaluation every gated operation relies on.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Plan identifies a subscription plan.
type Plan string

const (
	PlanFree       Plan = "free"
	PlanStarter    Plan = "starter"
	PlanPro        Plan = "pro"
	PlanBusiness   Plan = "business"
	PlanEnterprise Plan = "enterprise"
)

// Plans lists every known plan in upgrade order.
var Plans = []Plan{PlanFree, PlanStarter, PlanPro, PlanBusiness, PlanEnterprise}

// IsValid reports whether p is a known plan.
func (p Plan) IsValid() bool {
	for _, known := range Plans {
		if p == known {
			return true
		}
	}
	return false
}

// ParsePlan validates a plan name.
func ParsePlan(s string) (Plan, bool) {
	p := Plan(s)
	return p, p.IsValid()
}

// =============================================================================
// Limit
// =============================================================================

// Limit is a monthly credit count. Unlimited is a sentinel and never
// participates in arithmetic.
type Limit int

// Unlimited marks a plan without a monthly cap.
const Unlimited Limit = -1

const unlimitedLabel = "unlimited"

// IsUnlimited reports whether l is the unlimited sentinel.
func (l Limit) IsUnlimited() bool {
	return l < 0
}

func (l Limit) String() string {
	if l.IsUnlimited() {
		return unlimitedLabel
	}
	return strconv.Itoa(int(l))
}

// MarshalJSON encodes unlimited as the string "unlimited" and finite limits as numbers.
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.IsUnlimited() {
		return json.Marshal(unlimitedLabel)
	}
	return []byte(strconv.Itoa(int(l))), nil
}

// UnmarshalJSON accepts either a number or the string "unlimited".
func (l *Limit) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s != unlimitedLabel {
			return fmt.Errorf("invalid limit %q", s)
		}
		*l = Unlimited
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid limit: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("invalid limit %d", n)
	}
	*l = Limit(n)
	return nil
}

// ParseLimit parses "unlimited" or a non-negative integer.
func ParseLimit(s string) (Limit, error) {
	if s == unlimitedLabel {
		return Unlimited, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", s)
	}
	return Limit(n), nil
}

// =============================================================================
// Plan Catalog
// =============================================================================

// PlanCatalog maps plans to monthly credit limits.
type PlanCatalog map[Plan]Limit

// DefaultPlanCatalog returns the built-in plan limits.
func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{
		PlanFree:       25,
		PlanStarter:    100,
		PlanPro:        250,
		PlanBusiness:   1000,
		PlanEnterprise: Unlimited,
	}
}

// LimitFor returns the monthly limit for plan. Unknown plans get the free limit.
func (c PlanCatalog) LimitFor(plan Plan) Limit {
	if limit, ok := c[plan]; ok {
		return limit
	}
	if limit, ok := c[PlanFree]; ok {
		return limit
	}
	return DefaultPlanCatalog()[PlanFree]
}

// Evaluate derives the quota snapshot for a plan and usage counter.
func (c PlanCatalog) Evaluate(plan Plan, used int) QuotaSnapshot {
	if used < 0 {
		used = 0
	}
	limit := c.LimitFor(plan)

	snap := QuotaSnapshot{
		Plan:  plan,
		Limit: limit,
		Used:  used,
	}
	if limit.IsUnlimited() {
		snap.Remaining = Unlimited
		snap.Permitted = true
		return snap
	}

	remaining := int(limit) - used
	if remaining < 0 {
		remaining = 0
	}
	snap.Remaining = Limit(remaining)
	snap.Permitted = remaining > 0
	return snap
}

// Evaluate uses the default catalog.
func Evaluate(plan Plan, used int) QuotaSnapshot {
	return DefaultPlanCatalog().Evaluate(plan, used)
}

// QuotaSnapshot is a derived, read-only view of an account's credit position.
type QuotaSnapshot struct {
	Plan        Plan      `json:"plan"`
	Limit       Limit     `json:"limit"`
	Used        int       `json:"used"`
	Remaining   Limit     `json:"remaining"`
	Permitted   bool      `json:"permitted"`
	PeriodStart time.Time `json:"period_start"`
}

// Exhausted reports whether a finite plan has no credits left.
func (q QuotaSnapshot) Exhausted() bool {
	return !q.Limit.IsUnlimited() && q.Remaining == 0
}
