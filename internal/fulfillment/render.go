package fulfillment

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"

	"github.com/s8nclone/receipt-pipeline/internal/queue"
	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
	"github.com/s8nclone/receipt-pipeline/pkg/pdf"
)

// orderSnapshotView mirrors internal/payment's frozen snapshot shape closely enough to pull the
// fields the receipt PDF needs; it never talks to the orders table directly (§3: rendering reads
// only from Receipt.OrderSnapshot).
type orderSnapshotView struct {
	OrderNumber   string          `json:"orderNumber"`
	CustomerEmail string          `json:"customerEmail"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Shipping      decimal.Decimal `json:"shipping"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
}

// RenderWorker renders a receipt's PDF to local disk and hands off to the upload and email stages (§4.3).
type RenderWorker struct {
	repo   *Repository
	queue  *queue.Service
	outDir string
	logg   *logger.Logger
}

func NewRenderWorker(repo *Repository, q *queue.Service, outDir string, logg *logger.Logger) *RenderWorker {
	return &RenderWorker{repo: repo, queue: q, outDir: outDir, logg: logg}
}

// Handle is the queue.Handler for the receipt-generation queue.
func (w *RenderWorker) Handle(ctx context.Context, job models.JobLog) error {
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
	if receipt.PDFGenerated {
		return w.enqueueUploadAndEmail(ctx, receipt)
	}

	if err := w.repo.IncrementPDFAttempts(receiptID); err != nil {
		return fmt.Errorf("record render attempt: %w", err)
	}

	var snapshot orderSnapshotView
	if err := json.Unmarshal(receipt.OrderSnapshot, &snapshot); err != nil {
		return queue.Permanent(fmt.Errorf("decode order snapshot: %w", err))
	}

	data := pdf.ReceiptData{
		ReceiptNumber: receipt.ReceiptNumber,
		OrderNumber:   snapshot.OrderNumber,
		Recipient:     receipt.EmailRecipient,
		PaidAt:        receipt.PaidAt,
		Lines: []pdf.Line{
			{Label: "Subtotal", Value: formatMoney(snapshot.Subtotal, receipt.Currency)},
			{Label: "Tax", Value: formatMoney(snapshot.Tax, receipt.Currency)},
			{Label: "Shipping", Value: formatMoney(snapshot.Shipping, receipt.Currency)},
			{Label: "Discount", Value: formatMoney(snapshot.Discount, receipt.Currency)},
			{Label: "Total", Value: formatMoney(receipt.Amount, receipt.Currency)},
		},
	}

	rendered, err := pdf.Render(data)
	if err != nil {
		return queue.Permanent(fmt.Errorf("render pdf: %w", err))
	}

	if err := os.MkdirAll(w.outDir, 0o755); err != nil {
		return fmt.Errorf("prepare output dir: %w", err)
	}
	localPath := filepath.Join(w.outDir, receipt.ID.String()+".pdf")
	if err := os.WriteFile(localPath, rendered, 0o644); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}

	if err := w.repo.MarkPDFGenerated(receiptID, localPath, int64(len(rendered))); err != nil {
		return fmt.Errorf("record generated pdf: %w", err)
	}

	receipt.PDFLocalPath = &localPath
	return w.enqueueUploadAndEmail(ctx, receipt)
}

// enqueueUploadAndEmail is the sole producer of both downstream jobs (§4.3 step 5, §5): upload
// and email are independent and unordered with respect to each other, so both are pushed here
// rather than one being chained off the other's completion.
func (w *RenderWorker) enqueueUploadAndEmail(ctx context.Context, receipt *models.Receipt) error {
	if w.queue == nil {
		return nil
	}
	if err := w.queue.Push(ctx, queue.Enqueue{
		Queue:     enums.QueueCloudStorageUpload,
		JobType:   "upload_receipt_pdf",
		JobID:     "upload:" + receipt.ID.String(),
		ReceiptID: &receipt.ID,
		Priority:  1,
		Data:      map[string]any{"receipt_id": receipt.ID},
	}); err != nil {
		return err
	}
	return w.queue.Push(ctx, queue.Enqueue{
		Queue:     enums.QueueEmailDelivery,
		JobType:   "send_receipt_email",
		JobID:     "email:" + receipt.ID.String(),
		ReceiptID: &receipt.ID,
		Priority:  1,
		Data:      map[string]any{"receipt_id": receipt.ID},
	})
}

func formatMoney(amount decimal.Decimal, currency enums.Currency) string {
	return fmt.Sprintf("%s %s", amount.StringFixed(2), currency)
}
