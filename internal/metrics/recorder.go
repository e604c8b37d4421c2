package metrics

import "time"

// ContentAPICall records one outbound content API call
func ContentAPICall(operation, status string, duration time.Duration) {
	ContentAPIRequestsTotal.WithLabelValues(operation, status).Inc()
	ContentAPIRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// CheckoutFinished records how a checkout attempt ended
func CheckoutFinished(outcome string) {
	CheckoutsTotal.WithLabelValues(outcome).Inc()
}

// FreeTrialFinished records how a free trial attempt ended
func FreeTrialFinished(outcome string) {
	FreeTrialsTotal.WithLabelValues(outcome).Inc()
}

// MismatchDetected records an audience mismatch at the given stage
func MismatchDetected(stage string) {
	EligibilityMismatches.WithLabelValues(stage).Inc()
}

// GuardRejected records a request refused by the single-flight guard
func GuardRejected(action string) {
	GuardRejections.WithLabelValues(action).Inc()
}

// AttemptLogWrite records the result of writing one attempt
func AttemptLogWrite(result string) {
	AttemptLogWrites.WithLabelValues(result).Inc()
}
