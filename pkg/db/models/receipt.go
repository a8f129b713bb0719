package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

// Receipt is the immutable record of a completed payment plus its fulfillment state. It is
// created PENDING inside the same transaction that promotes an Order to PAID (§4.2), and owns
// its own artifacts exclusively: no other subject mutates pdfLocalPath or cloudStorageObjectName.
type Receipt struct {
	ID            uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ReceiptNumber string              `gorm:"column:receipt_number;not null;uniqueIndex:uq_receipts_store_receipt_number"`
	OrderID       uuid.UUID           `gorm:"column:order_id;type:uuid;not null;index"`
	TransactionID string              `gorm:"column:transaction_id;not null;uniqueIndex"`
	UserID        uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	StoreID       uuid.UUID           `gorm:"column:store_id;type:uuid;not null;index;uniqueIndex:uq_receipts_store_receipt_number"`

	// OrderSnapshot is written once at receipt creation from freeze(order) and never mutated;
	// downstream rendering reads only from it, even if the order is later changed.
	OrderSnapshot json.RawMessage    `gorm:"column:order_snapshot;type:jsonb;not null"`
	Amount        decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	Currency      enums.Currency     `gorm:"column:currency;type:currency_enum;not null"`
	Status        enums.ReceiptStatus `gorm:"column:status;type:receipt_status_enum;not null;default:'PENDING';index"`
	PaidAt        time.Time          `gorm:"column:paid_at;not null"`

	PDFGenerated         bool       `gorm:"column:pdf_generated;not null;default:false"`
	PDFGeneratedAt       *time.Time `gorm:"column:pdf_generated_at"`
	PDFLocalPath         *string    `gorm:"column:pdf_local_path"`
	PDFSizeBytes         *int64     `gorm:"column:pdf_size_bytes"`
	PDFGenerationAttempts int       `gorm:"column:pdf_generation_attempts;not null;default:0"`

	CloudStorageUploaded           bool       `gorm:"column:cloud_storage_uploaded;not null;default:false"`
	CloudStorageUploadedAt         *time.Time `gorm:"column:cloud_storage_uploaded_at"`
	CloudStorageObjectName         *string    `gorm:"column:cloud_storage_object_name"`
	CloudStorageURL                *string    `gorm:"column:cloud_storage_url"`
	CloudStorageSignedURL          *string    `gorm:"column:cloud_storage_signed_url"`
	CloudStorageSignedURLExpiresAt *time.Time `gorm:"column:cloud_storage_signed_url_expires_at"`
	CloudStorageUploadAttempts     int        `gorm:"column:cloud_storage_upload_attempts;not null;default:0"`

	EmailSent             bool       `gorm:"column:email_sent;not null;default:false"`
	EmailSentAt           *time.Time `gorm:"column:email_sent_at"`
	EmailSendAttempts     int        `gorm:"column:email_send_attempts;not null;default:0"`
	EmailPermanentFailure bool       `gorm:"column:email_permanent_failure;not null;default:false"`
	EmailLastError        *string    `gorm:"column:email_last_error"`
	EmailRecipient        string     `gorm:"column:email_recipient;not null"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Receipt) TableName() string {
	return "receipts"
}

// AllStagesComplete reports whether every fulfillment stage has finished, the condition under
// which markCompleted (§4.7) is allowed to flip Status to COMPLETED.
func (r Receipt) AllStagesComplete() bool {
	return r.PDFGenerated && r.CloudStorageUploaded && r.EmailSent
}
