package payment

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

// ResultType classifies the outcome of a commit attempt (§4.1 step 6, §4.2).
type ResultType string

const (
	ResultProcessed        ResultType = "processed"
	ResultAlreadyProcessed ResultType = "already_processed"
	ResultValidationFailed ResultType = "validation_failed"
)

// CommitInput is the normalized event plus the webhook log it was recorded against.
type CommitInput struct {
	OrderID       uuid.UUID
	TransactionID string
	Provider      string
	Amount        decimal.Decimal
	Currency      enums.Currency
	WebhookLogID  uuid.UUID
}

// CommitResult reports what the commit did, for the intake handler to fold back into the
// WebhookLog outcome (§4.1 step 7).
type CommitResult struct {
	Type           ResultType
	OrderID        *uuid.UUID
	ReceiptID      *uuid.UUID
	RequiresRefund bool
	Message        string
}
