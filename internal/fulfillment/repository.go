package fulfillment

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

// Repository is the persistence gateway the render/upload/email workers share (§4.3-4.5, §4.7).
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) FindByID(id uuid.UUID) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.Where("id = ?", id).First(&receipt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *Repository) MarkPDFGenerated(id uuid.UUID, localPath string, sizeBytes int64) error {
	now := time.Now()
	return r.db.Model(&models.Receipt{}).Where("id = ?", id).Updates(map[string]any{
		"pdf_generated":    true,
		"pdf_generated_at": now,
		"pdf_local_path":   localPath,
		"pdf_size_bytes":   sizeBytes,
	}).Error
}

func (r *Repository) IncrementPDFAttempts(id uuid.UUID) error {
	return r.db.Model(&models.Receipt{}).Where("id = ?", id).
		UpdateColumn("pdf_generation_attempts", gorm.Expr("pdf_generation_attempts + 1")).Error
}

func (r *Repository) MarkUploaded(id uuid.UUID, objectName, url, signedURL string, signedExpiresAt time.Time) error {
	now := time.Now()
	return r.db.Model(&models.Receipt{}).Where("id = ?", id).Updates(map[string]any{
		"cloud_storage_uploaded":              true,
		"cloud_storage_uploaded_at":           now,
		"cloud_storage_object_name":           objectName,
		"cloud_storage_url":                   url,
		"cloud_storage_signed_url":            signedURL,
		"cloud_storage_signed_url_expires_at": signedExpiresAt,
	}).Error
}

func (r *Repository) IncrementUploadAttempts(id uuid.UUID) error {
	return r.db.Model(&models.Receipt{}).Where("id = ?", id).
		UpdateColumn("cloud_storage_upload_attempts", gorm.Expr("cloud_storage_upload_attempts + 1")).Error
}

// MarkEmailSent also bumps emailSendAttempts, mirroring render's IncrementPDFAttempts and upload's
// IncrementUploadAttempts counting every worker entry regardless of outcome (§4.5 step 4, §8): a
// first-try success must still leave the counter at 1, not 0.
func (r *Repository) MarkEmailSent(id uuid.UUID) error {
	now := time.Now()
	tx := r.db.Model(&models.Receipt{}).Where("id = ?", id).
		UpdateColumn("email_send_attempts", gorm.Expr("email_send_attempts + 1"))
	if tx.Error != nil {
		return tx.Error
	}
	return r.db.Model(&models.Receipt{}).Where("id = ?", id).Updates(map[string]any{
		"email_sent":    true,
		"email_sent_at": now,
	}).Error
}

func (r *Repository) IncrementEmailAttempts(id uuid.UUID, lastErr string) error {
	updates := map[string]any{}
	if lastErr != "" {
		updates["email_last_error"] = lastErr
	}
	tx := r.db.Model(&models.Receipt{}).Where("id = ?", id).
		UpdateColumn("email_send_attempts", gorm.Expr("email_send_attempts + 1"))
	if tx.Error != nil {
		return tx.Error
	}
	if len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Receipt{}).Where("id = ?", id).Updates(updates).Error
}

func (r *Repository) MarkEmailPermanentFailure(id uuid.UUID, lastErr string) error {
	return r.db.Model(&models.Receipt{}).Where("id = ?", id).Updates(map[string]any{
		"email_permanent_failure": true,
		"email_last_error":        lastErr,
	}).Error
}

// MarkCompleted flips Status to COMPLETED, but only when every stage has actually finished; it is
// idempotent and safe to call from more than one worker (§4.7).
func (r *Repository) MarkCompleted(id uuid.UUID) error {
	receipt, err := r.FindByID(id)
	if err != nil {
		return err
	}
	if receipt == nil {
		return nil
	}
	if receipt.Status == enums.ReceiptStatusCompleted {
		return nil
	}
	if !receipt.AllStagesComplete() {
		return nil
	}
	return r.db.Model(&models.Receipt{}).Where("id = ?", id).
		Update("status", enums.ReceiptStatusCompleted).Error
}

func (r *Repository) MarkFailed(id uuid.UUID) error {
	return r.db.Model(&models.Receipt{}).Where("id = ?", id).
		Update("status", enums.ReceiptStatusFailed).Error
}

func (r *Repository) InsertEmailLog(log *models.EmailLog) error {
	return r.db.Create(log).Error
}

func (r *Repository) InsertCloudStorageLog(log *models.CloudStorageLog) error {
	return r.db.Create(log).Error
}

// maxRenderAttempts, maxUploadAttempts, and maxEmailAttempts mirror the queue's own retry caps
// (§6's queue options): a receipt that has already exhausted its stage's attempts is a critical
// failure, not a recovery candidate — re-enqueuing it again would just burn another attempt.
const (
	maxRenderAttempts = 3
	maxUploadAttempts = 5
	maxEmailAttempts  = 5
)

// FindStalledRender returns receipts whose PDF was never generated, still have render attempts
// left, and are older than cutoff (§4.6): a render job that never ran or whose job row was lost.
func (r *Repository) FindStalledRender(cutoff time.Time, limit int) ([]models.Receipt, error) {
	var rows []models.Receipt
	err := r.db.
		Where("pdf_generated = false AND pdf_generation_attempts < ? AND status != ? AND created_at < ?",
			maxRenderAttempts, enums.ReceiptStatusFailed, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// FindStalledUpload returns receipts with a rendered PDF that never made it to the artifact store
// and still have upload attempts left.
func (r *Repository) FindStalledUpload(cutoff time.Time, limit int) ([]models.Receipt, error) {
	var rows []models.Receipt
	err := r.db.
		Where("pdf_generated = true AND cloud_storage_uploaded = false AND cloud_storage_upload_attempts < ? AND status != ? AND created_at < ?",
			maxUploadAttempts, enums.ReceiptStatusFailed, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// FindStalledEmail returns receipts with a rendered PDF that was never emailed and still
// have email attempts left.
func (r *Repository) FindStalledEmail(cutoff time.Time, limit int) ([]models.Receipt, error) {
	var rows []models.Receipt
	err := r.db.
		Where("pdf_generated = true AND email_sent = false AND email_send_attempts < ? AND email_permanent_failure = false AND status != ? AND created_at < ?",
			maxEmailAttempts, enums.ReceiptStatusFailed, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// FindCriticalRender returns receipts that exhausted their render attempts and are older than
// cutoff (§4.6's "past attempt caps and older than 1h"): reported, never re-enqueued.
func (r *Repository) FindCriticalRender(cutoff time.Time, limit int) ([]models.Receipt, error) {
	var rows []models.Receipt
	err := r.db.
		Where("pdf_generated = false AND pdf_generation_attempts >= ? AND created_at < ?", maxRenderAttempts, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// FindCriticalUpload returns receipts that exhausted their upload attempts and are older than
// cutoff (§4.6's "past attempt caps and older than ... 4h").
func (r *Repository) FindCriticalUpload(cutoff time.Time, limit int) ([]models.Receipt, error) {
	var rows []models.Receipt
	err := r.db.
		Where("pdf_generated = true AND cloud_storage_uploaded = false AND cloud_storage_upload_attempts >= ? AND created_at < ?",
			maxUploadAttempts, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// FindCriticalEmail returns receipts that exhausted their email attempts (or were classified as a
// permanent email failure) and are older than cutoff.
func (r *Repository) FindCriticalEmail(cutoff time.Time, limit int) ([]models.Receipt, error) {
	var rows []models.Receipt
	err := r.db.
		Where("pdf_generated = true AND email_sent = false AND (email_send_attempts >= ? OR email_permanent_failure = true) AND created_at < ?",
			maxEmailAttempts, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
