package fulfillment

import "strings"

// classifyEmailError maps a transport error string to the EmailFailureClass driving the
// retry-or-give-up decision (§4.5, §7): invalid recipient addresses and oversized attachments
// never succeed on retry; provider errors and rate limits usually do.
func classifyEmailError(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid") && strings.Contains(msg, "email"):
		return "invalid_email"
	case strings.Contains(msg, "too large") || strings.Contains(msg, "413"):
		return "attachment_too_large"
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit"):
		return "rate_limit"
	case strings.Contains(msg, "5") && (strings.Contains(msg, "status 5") || strings.Contains(msg, "50")):
		return "server_error"
	default:
		return "unknown"
	}
}

func isPermanentEmailFailure(class string) bool {
	return class == "invalid_email" || class == "attachment_too_large"
}
