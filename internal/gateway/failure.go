package gateway

import "strings"

// FailureClass buckets gateway-reported payment failures for display.
type FailureClass string

const (
	FailureNetwork           FailureClass = "network"
	FailureInsufficientFunds FailureClass = "insufficient_funds"
	FailureConfiguration     FailureClass = "configuration"
	FailureUnknown           FailureClass = "unknown"
)

// Message returns the student-facing explanation for a failure class.
func (f FailureClass) Message() string {
	switch f {
	case FailureNetwork:
		return "payment failed due to a network issue, please check your connection and try again"
	case FailureInsufficientFunds:
		return "payment failed due to insufficient funds, please try another payment method"
	case FailureConfiguration:
		return "payment could not be processed right now, please contact support"
	default:
		return "payment failed, no amount was deducted, please try again"
	}
}

// ClassifyFailure maps a gateway failure code and description onto a
// failure class. Matching is by substring because the gateway wording
// varies across payment methods.
func ClassifyFailure(code, description string) FailureClass {
	reason := strings.ToLower(code + " " + description)
	switch {
	case strings.Contains(reason, "network"),
		strings.Contains(reason, "timeout"),
		strings.Contains(reason, "timed out"):
		return FailureNetwork
	case strings.Contains(reason, "insufficient"):
		return FailureInsufficientFunds
	case strings.Contains(reason, "international"),
		strings.Contains(reason, "not enabled"),
		strings.Contains(reason, "key_id"),
		strings.Contains(reason, "domain"),
		strings.Contains(reason, "bad_request"):
		return FailureConfiguration
	default:
		return FailureUnknown
	}
}
