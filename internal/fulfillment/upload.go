package fulfillment

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/s8nclone/receipt-pipeline/internal/queue"
	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
	"github.com/s8nclone/receipt-pipeline/pkg/storage/gcs"
)

// UploadWorker pushes a rendered receipt PDF to the artifact store and mints its signed download
// URL (§4.4). It runs independently of EmailWorker — render is the sole producer of both jobs
// (§4.3 step 5, §5) — and marks the receipt completed itself when it finishes last (§4.4 step 6).
type UploadWorker struct {
	repo         *Repository
	bucket       *gcs.Bucket
	signedURLTTL time.Duration
	logg         *logger.Logger
}

func NewUploadWorker(repo *Repository, bucket *gcs.Bucket, signedURLTTL time.Duration, logg *logger.Logger) *UploadWorker {
	return &UploadWorker{repo: repo, bucket: bucket, signedURLTTL: signedURLTTL, logg: logg}
}

func (w *UploadWorker) Handle(ctx context.Context, job models.JobLog) error {
	receiptID, err := parseReceiptID(job)
	if err != nil {
		return queue.Permanent(err)
	}

	receipt, err := w.repo.FindByID(receiptID)
	if err != nil {
		return fmt.Errorf("load receipt: %w", err)
	}
	if receipt == nil {
		return queue.Permanent(fmt.Errorf("receipt %s not found", receiptID))
	}
	if receipt.CloudStorageUploaded {
		return w.repo.MarkCompleted(receiptID)
	}
	if !receipt.PDFGenerated || receipt.PDFLocalPath == nil {
		return queue.Permanent(fmt.Errorf("receipt %s has no rendered pdf to upload", receiptID))
	}

	if err := w.repo.IncrementUploadAttempts(receiptID); err != nil {
		return fmt.Errorf("record upload attempt: %w", err)
	}

	data, err := os.ReadFile(*receipt.PDFLocalPath)
	if err != nil {
		return fmt.Errorf("read rendered pdf: %w", err)
	}

	objectName := fmt.Sprintf("receipts/%s/%d/receipt_%s", receipt.StoreID, receipt.PaidAt.Year(), receipt.ID)
	tags := map[string]string{
		"tags": fmt.Sprintf("receipt,user_%s,order_%s", receipt.UserID, receipt.OrderID),
	}
	publicURL, err := w.bucket.Upload(ctx, objectName, data, "application/pdf", tags)
	if err != nil {
		logErr := w.repo.InsertCloudStorageLog(&models.CloudStorageLog{
			ReceiptID: receiptID,
			Status:    enums.CloudStorageStatusFailed,
			Error:     errPtr(err.Error()),
		})
		if logErr != nil && w.logg != nil {
			w.logg.Error(ctx, "failed to record cloud storage upload failure", logErr)
		}
		return fmt.Errorf("upload pdf: %w", err)
	}

	signedURL, err := w.bucket.SignedURL(objectName, w.signedURLTTL)
	if err != nil {
		return fmt.Errorf("sign download url: %w", err)
	}

	if err := w.repo.MarkUploaded(receiptID, objectName, publicURL, signedURL, time.Now().Add(w.signedURLTTL)); err != nil {
		return fmt.Errorf("record uploaded receipt: %w", err)
	}
	if err := w.repo.InsertCloudStorageLog(&models.CloudStorageLog{
		ReceiptID: receiptID,
		Status:    enums.CloudStorageStatusSuccess,
		PublicID:  &objectName,
	}); err != nil && w.logg != nil {
		w.logg.Error(ctx, "failed to record cloud storage upload success", err)
	}

	return w.repo.MarkCompleted(receiptID)
}

func errPtr(s string) *string { return &s }
