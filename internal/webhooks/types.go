package webhooks

import (
	"github.com/shopspring/decimal"

	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

// TransactionOutcome is the normalized payment status carried by every provider payload, after
// provider-specific parsing (§4.1 step 3).
type TransactionOutcome string

const (
	TransactionSucceeded TransactionOutcome = "succeeded"
	TransactionFailed    TransactionOutcome = "failed"
)

// NormalizedEvent is the canonical shape every provider payload is parsed into before the intake
// dispatches on it (§4.1 step 3, §6 payload normalization).
type NormalizedEvent struct {
	TransactionID string
	OrderID       string
	Status        TransactionOutcome
	Amount        decimal.Decimal
	Currency      enums.Currency
	EventType     string
}

// Result is the typed body returned to every webhook caller, always under HTTP 200 except for
// internal exceptions (§6).
type Result struct {
	Success bool             `json:"success"`
	Type    enums.ResultType `json:"type"`
	Message string           `json:"message,omitempty"`
	Data    any              `json:"data,omitempty"`
}
