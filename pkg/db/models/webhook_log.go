package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

// WebhookLog is the append-only audit record of every inbound webhook delivery. WebhookID is the
// dedup anchor (§4.1 step 4): a second delivery with the same id is rejected before any state
// mutation, and this row is owned exclusively by the intake path.
type WebhookLog struct {
	ID                  uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	WebhookID           string               `gorm:"column:webhook_id;not null;uniqueIndex"`
	Provider            string               `gorm:"column:provider;not null;index"`
	EventType           string               `gorm:"column:event_type;not null"`
	RawPayload          json.RawMessage      `gorm:"column:raw_payload;type:jsonb;not null"`
	Signature           *string              `gorm:"column:signature"`
	SignatureValid      bool                 `gorm:"column:signature_valid;not null;default:false"`
	Processed           bool                 `gorm:"column:processed;not null;default:false"`
	ProcessedAt         *time.Time           `gorm:"column:processed_at"`
	Outcome             enums.WebhookOutcome `gorm:"column:outcome;type:webhook_outcome_enum;not null"`
	ErrorMessage        *string              `gorm:"column:error_message"`
	ProcessingAttempts  int                  `gorm:"column:processing_attempts;not null;default:0"`
	OrderID             *uuid.UUID           `gorm:"column:order_id;type:uuid"`
	TransactionID       *string              `gorm:"column:transaction_id"`
	ExpiresAt           time.Time            `gorm:"column:expires_at;not null;index"`
	CreatedAt           time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (WebhookLog) TableName() string {
	return "webhook_logs"
}

// WebhookLogTTL is the retention window named in §3's lifecycle rules.
const WebhookLogTTL = 3 * 24 * time.Hour
