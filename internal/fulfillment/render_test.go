package fulfillment

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/s8nclone/receipt-pipeline/internal/queue"
	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
)

func newFulfillmentTestConn(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Receipt{}, &models.EmailLog{}, &models.CloudStorageLog{}, &models.JobLog{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return conn
}

func seedReceipt(t *testing.T, conn *gorm.DB, mutate func(*models.Receipt)) *models.Receipt {
	t.Helper()
	snapshot, err := json.Marshal(map[string]any{
		"orderNumber":   "ORD-1",
		"customerEmail": "buyer@example.com",
		"subtotal":      "10.00",
		"tax":           "1.00",
		"shipping":      "0.00",
		"discount":      "0.00",
		"total":         "11.00",
	})
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}

	receipt := &models.Receipt{
		ReceiptNumber:  "RCP-2026-" + uuid.NewString()[:8],
		OrderID:        uuid.New(),
		TransactionID:  "tx_" + uuid.NewString(),
		UserID:         uuid.New(),
		StoreID:        uuid.New(),
		OrderSnapshot:  snapshot,
		Amount:         decimal.NewFromFloat(11.00),
		Currency:       enums.CurrencyUSD,
		Status:         enums.ReceiptStatusPending,
		PaidAt:         time.Now(),
		EmailRecipient: "buyer@example.com",
	}
	if mutate != nil {
		mutate(receipt)
	}
	if err := conn.Create(receipt).Error; err != nil {
		t.Fatalf("seed receipt: %v", err)
	}
	return receipt
}

func jobForReceipt(receiptID uuid.UUID) models.JobLog {
	data, _ := json.Marshal(map[string]any{"receipt_id": receiptID})
	return models.JobLog{ID: uuid.New(), Data: data}
}

func TestRenderWorkerRendersPDFAndAdvancesReceipt(t *testing.T) {
	conn := newFulfillmentTestConn(t)
	repo := NewRepository(conn)
	receipt := seedReceipt(t, conn, nil)

	outDir := t.TempDir()
	logg := logger.New(logger.Options{ServiceName: "fulfillment-test"})
	worker := NewRenderWorker(repo, nil, outDir, logg)

	if err := worker.Handle(context.Background(), jobForReceipt(receipt.ID)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	reloaded, err := repo.FindByID(receipt.ID)
	if err != nil {
		t.Fatalf("reload receipt: %v", err)
	}
	if !reloaded.PDFGenerated || reloaded.PDFLocalPath == nil {
		t.Fatalf("expected pdf generated, got %+v", reloaded)
	}
	if reloaded.PDFGenerationAttempts != 1 {
		t.Fatalf("expected one recorded attempt, got %d", reloaded.PDFGenerationAttempts)
	}

	expectedPath := filepath.Join(outDir, receipt.ID.String()+".pdf")
	if *reloaded.PDFLocalPath != expectedPath {
		t.Fatalf("expected pdf path %q, got %q", expectedPath, *reloaded.PDFLocalPath)
	}
	bytes, err := os.ReadFile(expectedPath)
	if err != nil {
		t.Fatalf("read rendered pdf: %v", err)
	}
	if len(bytes) == 0 {
		t.Fatalf("expected non-empty pdf")
	}
}

func TestRenderWorkerIsIdempotentWhenAlreadyGenerated(t *testing.T) {
	conn := newFulfillmentTestConn(t)
	repo := NewRepository(conn)
	path := "/already/rendered.pdf"
	receipt := seedReceipt(t, conn, func(r *models.Receipt) {
		r.PDFGenerated = true
		r.PDFLocalPath = &path
	})

	worker := NewRenderWorker(repo, nil, t.TempDir(), logger.New(logger.Options{ServiceName: "fulfillment-test"}))
	if err := worker.Handle(context.Background(), jobForReceipt(receipt.ID)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	reloaded, err := repo.FindByID(receipt.ID)
	if err != nil {
		t.Fatalf("reload receipt: %v", err)
	}
	if reloaded.PDFGenerationAttempts != 0 {
		t.Fatalf("expected no additional render attempt once already generated, got %d", reloaded.PDFGenerationAttempts)
	}
}

func TestRenderWorkerEnqueuesUploadAndEmailIndependently(t *testing.T) {
	conn := newFulfillmentTestConn(t)
	repo := NewRepository(conn)
	receipt := seedReceipt(t, conn, nil)

	queueRepo := queue.NewRepository(conn)
	queueService := queue.NewService(queueRepo, queue.DefaultOptions(), nil)
	worker := NewRenderWorker(repo, queueService, t.TempDir(), logger.New(logger.Options{ServiceName: "fulfillment-test"}))

	if err := worker.Handle(context.Background(), jobForReceipt(receipt.ID)); err != nil {
		t.Fatalf("handle: %v", err)
	}

	var jobs []models.JobLog
	if err := conn.Order("queue_name").Find(&jobs, "receipt_id = ?", receipt.ID).Error; err != nil {
		t.Fatalf("load jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("expected render to enqueue both upload and email jobs, got %d: %+v", len(jobs), jobs)
	}
	queues := map[enums.QueueName]bool{jobs[0].QueueName: true, jobs[1].QueueName: true}
	if !queues[enums.QueueCloudStorageUpload] || !queues[enums.QueueEmailDelivery] {
		t.Fatalf("expected one upload job and one email job, got %+v", jobs)
	}
}

func TestRenderWorkerFailsPermanentlyForMissingReceipt(t *testing.T) {
	conn := newFulfillmentTestConn(t)
	repo := NewRepository(conn)
	worker := NewRenderWorker(repo, nil, t.TempDir(), logger.New(logger.Options{ServiceName: "fulfillment-test"}))

	err := worker.Handle(context.Background(), jobForReceipt(uuid.New()))
	if err == nil {
		t.Fatalf("expected error for missing receipt")
	}
}
