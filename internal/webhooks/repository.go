package webhooks

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

// Repository is the WebhookLog persistence gateway (§3, §4.1).
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByWebhookID returns the log for webhookID, or nil if none exists yet.
func (r *Repository) FindByWebhookID(webhookID string) (*models.WebhookLog, error) {
	var row models.WebhookLog
	err := r.db.Where("webhook_id = ?", webhookID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// InsertParams describes a new WebhookLog row (§4.1 step 5).
type InsertParams struct {
	WebhookID  string
	Provider   string
	EventType  string
	RawPayload []byte
	Signature  string
	SigValid   bool
}

func (r *Repository) Insert(p InsertParams) (*models.WebhookLog, error) {
	var sig *string
	if p.Signature != "" {
		sig = &p.Signature
	}
	row := models.WebhookLog{
		WebhookID:      p.WebhookID,
		Provider:       p.Provider,
		EventType:      p.EventType,
		RawPayload:     json.RawMessage(p.RawPayload),
		Signature:      sig,
		SignatureValid: p.SigValid,
		Processed:      false,
		Outcome:        enums.WebhookOutcomeIgnored,
		ExpiresAt:      time.Now().Add(models.WebhookLogTTL),
	}
	if err := r.db.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// MarkOutcome closes out processing for a log row (§4.1 steps 6-7).
func (r *Repository) MarkOutcome(id uuid.UUID, outcome enums.WebhookOutcome, processed bool, errMsg string, orderID *uuid.UUID, transactionID *string) error {
	updates := map[string]any{
		"outcome":   outcome,
		"processed": processed,
	}
	if processed {
		now := time.Now()
		updates["processed_at"] = now
	}
	if errMsg != "" {
		updates["error_message"] = errMsg
	}
	if orderID != nil {
		updates["order_id"] = orderID
	}
	if transactionID != nil {
		updates["transaction_id"] = transactionID
	}
	return r.db.Model(&models.WebhookLog{}).Where("id = ?", id).Updates(updates).Error
}

// IncrementProcessingAttempts records a processing exception (§4.1 step 7).
func (r *Repository) IncrementProcessingAttempts(id uuid.UUID) error {
	return r.db.Model(&models.WebhookLog{}).
		Where("id = ?", id).
		UpdateColumn("processing_attempts", gorm.Expr("processing_attempts + 1")).Error
}
