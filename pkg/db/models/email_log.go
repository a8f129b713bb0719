package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

// EmailLog is a per-attempt audit record of an email transport call for one receipt (§3, §4.5).
type EmailLog struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReceiptID uuid.UUID          `gorm:"column:receipt_id;type:uuid;not null;index"`
	Status    enums.EmailStatus  `gorm:"column:status;type:email_status_enum;not null"`
	MessageID *string            `gorm:"column:message_id"`
	Error     *string            `gorm:"column:error"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (EmailLog) TableName() string {
	return "email_logs"
}
