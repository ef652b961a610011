// Package domain contains core business types and interfaces.
//
// This file defines the Account type, which owns the usage ledger, and the
// usage notification state machine.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes regular employers from operators.
type Role string

const (
	RoleEmployer Role = "employer"
	RoleAdmin    Role = "admin"
)

// Account is an employer account and its usage ledger for the current period.
type Account struct {
	ID                uuid.UUID
	Email             string
	FullName          string
	CompanyName       string
	Role              Role
	Plan              Plan
	UsedThisPeriod    int
	PeriodStart       time.Time
	NotificationState NotificationState
	StripeCustomerID  string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsAdmin returns true if the account may manage other accounts' plans.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// DisplayName returns the contact name, company, or email, in that order.
func (a *Account) DisplayName() string {
	if a.FullName != "" {
		return a.FullName
	}
	if a.CompanyName != "" {
		return a.CompanyName
	}
	return a.Email
}

// =============================================================================
// Notification State
// =============================================================================

// NotificationState tracks which usage emails were sent this period.
type NotificationState string

const (
	NotificationNotSent       NotificationState = "not_sent"
	NotificationWarningSent   NotificationState = "warning_sent"
	NotificationExhaustedSent NotificationState = "exhausted_sent"
)

// WarningThreshold is the fraction of a finite limit that triggers the
// approaching-limit email.
const WarningThreshold = 0.8

// IsValid returns true if the state is a recognized value.
func (s NotificationState) IsValid() bool {
	switch s {
	case NotificationNotSent, NotificationWarningSent, NotificationExhaustedSent:
		return true
	}
	return false
}

// WarningNotified reports whether the approaching-limit email went out.
func (s NotificationState) WarningNotified() bool {
	return s == NotificationWarningSent || s == NotificationExhaustedSent
}

// ExhaustedNotified reports whether the limit-reached email went out.
func (s NotificationState) ExhaustedNotified() bool {
	return s == NotificationExhaustedSent
}

// CanTransitionTo checks if the state can move to target.
//
// Valid transitions:
// - not_sent -> warning_sent
// - not_sent -> exhausted_sent (usage jumped past the warning band)
// - warning_sent -> exhausted_sent
//
// Only a period reset returns a state to not_sent.
func (s NotificationState) CanTransitionTo(target NotificationState) bool {
	switch s {
	case NotificationNotSent:
		return target == NotificationWarningSent || target == NotificationExhaustedSent
	case NotificationWarningSent:
		return target == NotificationExhaustedSent
	}
	return false
}

// NextNotification returns the state a snapshot calls for, and whether an
// email should be sent to get there.
func (s NotificationState) NextNotification(q QuotaSnapshot) (NotificationState, bool) {
	if q.Limit.IsUnlimited() {
		return s, false
	}

	var target NotificationState
	switch {
	case q.Exhausted():
		target = NotificationExhaustedSent
	case q.Limit > 0 && float64(q.Used) >= WarningThreshold*float64(q.Limit):
		target = NotificationWarningSent
	default:
		return s, false
	}

	if !s.CanTransitionTo(target) {
		return s, false
	}
	return target, true
}
