package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

// PaymentTransaction is the durable record of a single provider payment event, inserted exactly
// once per TransactionID inside the payment-commit transaction (§4.2). Its unique index on
// TransactionID is the idempotency anchor a second concurrent webhook loses the race against.
type PaymentTransaction struct {
	ID            uuid.UUID                        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TransactionID string                            `gorm:"column:transaction_id;not null;uniqueIndex"`
	OrderID       uuid.UUID                         `gorm:"column:order_id;type:uuid;not null;index"`
	UserID        uuid.UUID                         `gorm:"column:user_id;type:uuid;not null;index"`
	StoreID       uuid.UUID                         `gorm:"column:store_id;type:uuid;not null;index"`
	Provider      string                            `gorm:"column:provider;not null"`
	Amount        decimal.Decimal                   `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      enums.Currency                    `gorm:"column:currency;type:currency_enum;not null"`
	Status        enums.PaymentTransactionStatus    `gorm:"column:status;type:payment_transaction_status_enum;not null"`
	WebhookLogID  uuid.UUID                         `gorm:"column:webhook_log_id;type:uuid;not null;index"`
	SucceededAt   *time.Time                        `gorm:"column:succeeded_at"`
	FailedAt      *time.Time                        `gorm:"column:failed_at"`
	FailureReason *string                           `gorm:"column:failure_reason"`
	CreatedAt     time.Time                         `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentTransaction) TableName() string {
	return "payment_transactions"
}
