package enums

import "fmt"

// WebhookOutcome records how the intake path resolved a single webhook delivery.
type WebhookOutcome string

const (
	WebhookOutcomeSuccess           WebhookOutcome = "SUCCESS"
	WebhookOutcomeValidationFailed  WebhookOutcome = "VALIDATION_FAILED"
	WebhookOutcomeProcessingFailed  WebhookOutcome = "PROCESSING_FAILED"
	WebhookOutcomeDuplicate         WebhookOutcome = "DUPLICATE"
	WebhookOutcomeIgnored           WebhookOutcome = "IGNORED"
)

var validWebhookOutcomes = []WebhookOutcome{
	WebhookOutcomeSuccess,
	WebhookOutcomeValidationFailed,
	WebhookOutcomeProcessingFailed,
	WebhookOutcomeDuplicate,
	WebhookOutcomeIgnored,
}

// String implements fmt.Stringer.
func (o WebhookOutcome) String() string {
	return string(o)
}

// IsValid reports whether the value matches a canonical outcome.
func (o WebhookOutcome) IsValid() bool {
	for _, candidate := range validWebhookOutcomes {
		if candidate == o {
			return true
		}
	}
	return false
}

// ParseWebhookOutcome converts raw input into a WebhookOutcome.
func ParseWebhookOutcome(value string) (WebhookOutcome, error) {
	for _, candidate := range validWebhookOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid webhook outcome %q", value)
}

// ResultType is the typed outcome surfaced in the webhook HTTP response body. It is a superset of
// WebhookOutcome: it also distinguishes payment-commit-level results (already_processed,
// payment_failed, invalid_signature) that do not map one-to-one onto a WebhookLog.outcome value.
type ResultType string

const (
	ResultProcessed        ResultType = "processed"
	ResultDuplicate        ResultType = "duplicate"
	ResultValidationFailed ResultType = "validation_failed"
	ResultInvalidSignature ResultType = "invalid_signature"
	ResultAlreadyProcessed ResultType = "already_processed"
	ResultPaymentFailed    ResultType = "payment_failed"
	ResultIgnored          ResultType = "ignored"
)
