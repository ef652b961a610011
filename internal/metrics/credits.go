package metrics

import "time"

// CreditConsumed records one credit charged against an account.
func CreditConsumed(kind string) {
	CreditsConsumed.WithLabelValues(kind).Inc()
}

// LimitReached records a request refused for lack of credits.
func LimitReached(kind string) {
	CreditLimitReached.WithLabelValues(kind).Inc()
}

// NotificationSent records the outcome of a usage email.
func NotificationSent(state string, err error) {
	status := "sent"
	if err != nil {
		status = "failed"
	}
	UsageNotifications.WithLabelValues(state, status).Inc()
}

// DispatchCompleted records a successful scoring webhook call.
func DispatchCompleted(duration time.Duration) {
	ScoringDispatches.WithLabelValues("sent").Inc()
	ScoringDispatchDuration.Observe(duration.Seconds())
}

// DispatchFailed records a failed scoring webhook call.
func DispatchFailed(duration time.Duration) {
	ScoringDispatches.WithLabelValues("failed").Inc()
	ScoringDispatchDuration.Observe(duration.Seconds())
}
