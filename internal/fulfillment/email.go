package fulfillment

import (
	"context"
	"fmt"
	"os"

	"github.com/s8nclone/receipt-pipeline/internal/queue"
	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	"github.com/s8nclone/receipt-pipeline/pkg/email/sendgrid"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
)

// EmailWorker sends the receipt email with the rendered PDF attached (§4.5), the final
// fulfillment stage before markCompleted (§4.7).
type EmailWorker struct {
	repo   *Repository
	mailer *sendgrid.Client
	logg   *logger.Logger
}

func NewEmailWorker(repo *Repository, mailer *sendgrid.Client, logg *logger.Logger) *EmailWorker {
	return &EmailWorker{repo: repo, mailer: mailer, logg: logg}
}

func (w *EmailWorker) Handle(ctx context.Context, job models.JobLog) error {
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
	if receipt.EmailSent {
		return w.repo.MarkCompleted(receiptID)
	}
	if receipt.EmailPermanentFailure {
		return queue.Permanent(fmt.Errorf("receipt %s email previously classified as permanently failing", receiptID))
	}
	// Email runs independently of the upload stage (§4.3 step 5, §4.5 step 2, §5): it only needs
	// the rendered PDF on local disk, not a completed cloud storage upload.
	if !receipt.PDFGenerated || receipt.PDFLocalPath == nil {
		return queue.Permanent(fmt.Errorf("receipt %s has no rendered pdf to attach", receiptID))
	}

	attachment, err := os.ReadFile(*receipt.PDFLocalPath)
	if err != nil {
		return fmt.Errorf("read pdf attachment: %w", err)
	}

	result, sendErr := w.mailer.Send(ctx, sendgrid.SendInput{
		To:      receipt.EmailRecipient,
		Subject: fmt.Sprintf("Receipt %s", receipt.ReceiptNumber),
		HTML:    fmt.Sprintf("<p>Thank you for your payment. Your receipt %s is attached.</p>", receipt.ReceiptNumber),
		PlainText: fmt.Sprintf("Thank you for your payment. Your receipt %s is attached.", receipt.ReceiptNumber),
		Attachments: []sendgrid.Attachment{
			{Filename: receipt.ReceiptNumber + ".pdf", ContentType: "application/pdf", Content: attachment},
		},
	})

	if sendErr != nil {
		class := classifyEmailError(sendErr)
		if err := w.repo.IncrementEmailAttempts(receiptID, sendErr.Error()); err != nil && w.logg != nil {
			w.logg.Error(ctx, "failed to record email attempt", err)
		}
		if logErr := w.repo.InsertEmailLog(&models.EmailLog{
			ReceiptID: receiptID,
			Status:    enums.EmailStatusFailed,
			Error:     errPtr(sendErr.Error()),
		}); logErr != nil && w.logg != nil {
			w.logg.Error(ctx, "failed to record email log", logErr)
		}

		if isPermanentEmailFailure(class) {
			if err := w.repo.MarkEmailPermanentFailure(receiptID, sendErr.Error()); err != nil && w.logg != nil {
				w.logg.Error(ctx, "failed to record permanent email failure", err)
			}
			return queue.Permanent(fmt.Errorf("email permanently failed (%s): %w", class, sendErr))
		}
		return fmt.Errorf("send receipt email (%s): %w", class, sendErr)
	}

	if err := w.repo.MarkEmailSent(receiptID); err != nil {
		return fmt.Errorf("record sent email: %w", err)
	}
	messageID := result.MessageID
	if err := w.repo.InsertEmailLog(&models.EmailLog{
		ReceiptID: receiptID,
		Status:    enums.EmailStatusSent,
		MessageID: nonEmptyPtr(messageID),
	}); err != nil && w.logg != nil {
		w.logg.Error(ctx, "failed to record email log", err)
	}

	return w.repo.MarkCompleted(receiptID)
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
