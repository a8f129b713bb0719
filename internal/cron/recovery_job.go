package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/s8nclone/receipt-pipeline/internal/queue"
	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
)

const (
	// renderRecoveryAge and the two windows below are the per-stage "stuck for" thresholds §4.6
	// names directly: render jobs are cheap to retry and stall fast, upload/email involve a
	// network round trip to a third party and are given more slack before being called stuck.
	renderRecoveryAge = 15 * time.Minute
	uploadRecoveryAge = 30 * time.Minute
	emailRecoveryAge  = 30 * time.Minute

	// renderCriticalAge and the two windows below gate the "reported, not re-enqueued" path once
	// a receipt has also exhausted its stage's attempt cap (§4.6).
	renderCriticalAge = time.Hour
	uploadCriticalAge = 4 * time.Hour
	emailCriticalAge  = 4 * time.Hour

	recoveryBatchSize = 50
)

// stalledReceiptReader is the read side of internal/fulfillment.Repository the recovery
// controller needs; kept as an interface so tests can fake it without a database.
type stalledReceiptReader interface {
	FindStalledRender(cutoff time.Time, limit int) ([]models.Receipt, error)
	FindStalledUpload(cutoff time.Time, limit int) ([]models.Receipt, error)
	FindStalledEmail(cutoff time.Time, limit int) ([]models.Receipt, error)
	FindCriticalRender(cutoff time.Time, limit int) ([]models.Receipt, error)
	FindCriticalUpload(cutoff time.Time, limit int) ([]models.Receipt, error)
	FindCriticalEmail(cutoff time.Time, limit int) ([]models.Receipt, error)
}

// jobPusher is the write side of internal/queue.Service the recovery controller needs.
type jobPusher interface {
	Push(ctx context.Context, e queue.Enqueue) error
}

// RecoveryJobParams configure the recovery controller.
type RecoveryJobParams struct {
	Logger   *logger.Logger
	Receipts stalledReceiptReader
	Queue    jobPusher
}

// NewRecoveryJob builds the cron job that re-enqueues stalled fulfillment work and reports
// receipts stuck long enough, past their stage's attempt cap, to count as critical failures
// (§4.6).
func NewRecoveryJob(params RecoveryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Receipts == nil {
		return nil, fmt.Errorf("receipts reader required")
	}
	if params.Queue == nil {
		return nil, fmt.Errorf("queue service required")
	}
	return &recoveryJob{
		logg:     params.Logger,
		receipts: params.Receipts,
		queue:    params.Queue,
		now:      time.Now,
	}, nil
}

type recoveryJob struct {
	logg     *logger.Logger
	receipts stalledReceiptReader
	queue    jobPusher
	now      func() time.Time
}

func (j *recoveryJob) Name() string { return "recovery-scan" }

func (j *recoveryJob) Run(ctx context.Context) error {
	var errs []error

	stages := []struct {
		name         string
		findStalled  func(time.Time, int) ([]models.Receipt, error)
		recoveryAge  time.Duration
		findCritical func(time.Time, int) ([]models.Receipt, error)
		criticalAge  time.Duration
		queueName    enums.QueueName
		jobType      string
	}{
		{"render", j.receipts.FindStalledRender, renderRecoveryAge, j.receipts.FindCriticalRender, renderCriticalAge, enums.QueueReceiptGeneration, "render_receipt_pdf"},
		{"upload", j.receipts.FindStalledUpload, uploadRecoveryAge, j.receipts.FindCriticalUpload, uploadCriticalAge, enums.QueueCloudStorageUpload, "upload_receipt_pdf"},
		{"email", j.receipts.FindStalledEmail, emailRecoveryAge, j.receipts.FindCriticalEmail, emailCriticalAge, enums.QueueEmailDelivery, "send_receipt_email"},
	}

	for _, stage := range stages {
		if err := j.recoverStage(ctx, stage.name, stage.findStalled, stage.recoveryAge, stage.queueName, stage.jobType); err != nil {
			errs = append(errs, err)
		}
		if err := j.reportCritical(ctx, stage.name, stage.findCritical, stage.criticalAge); err != nil {
			errs = append(errs, err)
		}
	}

	return multierr.Combine(errs...)
}

func (j *recoveryJob) recoverStage(ctx context.Context, stage string, find func(time.Time, int) ([]models.Receipt, error), age time.Duration, queueName enums.QueueName, jobType string) error {
	cutoff := j.now().Add(-age)
	stalled, err := find(cutoff, recoveryBatchSize)
	if err != nil {
		return fmt.Errorf("query stalled %s receipts: %w", stage, err)
	}

	for _, receipt := range stalled {
		err := j.queue.Push(ctx, queue.Enqueue{
			Queue:         queueName,
			JobType:       jobType,
			ReceiptID:     &receipt.ID,
			Priority:      2,
			IsRecoveryJob: true,
			Data:          map[string]any{"receipt_id": receipt.ID},
		})
		if err != nil {
			return fmt.Errorf("re-enqueue %s job for receipt %s: %w", stage, receipt.ID, err)
		}
	}

	if len(stalled) > 0 {
		logCtx := j.logg.WithFields(ctx, map[string]any{"stage": stage, "count": len(stalled)})
		j.logg.Info(logCtx, "recovery controller re-enqueued stalled receipts")
	}
	return nil
}

// reportCritical only logs: past the stage's critical age and attempt cap, another re-enqueue
// attempt is unlikely to help and §4.6 is explicit that this path reports rather than mutates
// state.
func (j *recoveryJob) reportCritical(ctx context.Context, stage string, find func(time.Time, int) ([]models.Receipt, error), age time.Duration) error {
	cutoff := j.now().Add(-age)
	critical, err := find(cutoff, recoveryBatchSize)
	if err != nil {
		return fmt.Errorf("query critical %s failures: %w", stage, err)
	}
	for _, receipt := range critical {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"stage":          stage,
			"receipt_id":     receipt.ID,
			"receipt_number": receipt.ReceiptNumber,
			"pdf_generated":  receipt.PDFGenerated,
			"uploaded":       receipt.CloudStorageUploaded,
			"email_sent":     receipt.EmailSent,
		})
		j.logg.Error(logCtx, "receipt fulfillment critical failure", fmt.Errorf("%s stuck past %s with attempts exhausted", stage, age))
	}
	return nil
}
