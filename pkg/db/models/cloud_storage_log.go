package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

// CloudStorageLog is a per-attempt audit record of an artifact-store upload call for one receipt
// (§3, §4.4).
type CloudStorageLog struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReceiptID uuid.UUID                 `gorm:"column:receipt_id;type:uuid;not null;index"`
	Status    enums.CloudStorageStatus  `gorm:"column:status;type:cloud_storage_status_enum;not null"`
	PublicID  *string                   `gorm:"column:public_id"`
	Error     *string                   `gorm:"column:error"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (CloudStorageLog) TableName() string {
	return "cloud_storage_logs"
}
