package fulfillment

import (
	"testing"
	"time"

	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

func TestFindStalledRenderExcludesFreshAndExhaustedReceipts(t *testing.T) {
	conn := newFulfillmentTestConn(t)
	repo := NewRepository(conn)
	old := time.Now().Add(-2 * time.Hour)
	fresh := time.Now()

	stalled := seedReceipt(t, conn, func(r *models.Receipt) {
		r.CreatedAt = old
		r.PDFGenerationAttempts = 1
	})
	seedReceipt(t, conn, func(r *models.Receipt) {
		r.CreatedAt = fresh
	})
	seedReceipt(t, conn, func(r *models.Receipt) {
		r.CreatedAt = old
		r.PDFGenerationAttempts = maxRenderAttempts
	})
	conn.Model(stalled).Update("created_at", old)

	rows, err := repo.FindStalledRender(time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("find stalled render: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != stalled.ID {
		t.Fatalf("expected exactly the stalled receipt, got %d rows", len(rows))
	}
}

func TestFindCriticalRenderReturnsExhaustedOldReceipts(t *testing.T) {
	conn := newFulfillmentTestConn(t)
	repo := NewRepository(conn)
	old := time.Now().Add(-2 * time.Hour)

	critical := seedReceipt(t, conn, func(r *models.Receipt) {
		r.PDFGenerationAttempts = maxRenderAttempts
	})
	conn.Model(critical).Update("created_at", old)

	rows, err := repo.FindCriticalRender(time.Now().Add(-time.Hour), 10)
	if err != nil {
		t.Fatalf("find critical render: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != critical.ID {
		t.Fatalf("expected exactly the critical receipt, got %d rows", len(rows))
	}
}

func TestMarkCompletedOnlyFlipsStatusWhenAllStagesDone(t *testing.T) {
	conn := newFulfillmentTestConn(t)
	repo := NewRepository(conn)

	receipt := seedReceipt(t, conn, func(r *models.Receipt) {
		r.PDFGenerated = true
		r.CloudStorageUploaded = true
	})

	if err := repo.MarkCompleted(receipt.ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	reloaded, err := repo.FindByID(receipt.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status == enums.ReceiptStatusCompleted {
		t.Fatalf("expected receipt to stay pending until email is sent too")
	}

	if err := conn.Model(&models.Receipt{}).Where("id = ?", receipt.ID).Update("email_sent", true).Error; err != nil {
		t.Fatalf("mark email sent: %v", err)
	}
	if err := repo.MarkCompleted(receipt.ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	reloaded, err = repo.FindByID(receipt.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.ReceiptStatusCompleted {
		t.Fatalf("expected receipt completed once every stage finished, got %v", reloaded.Status)
	}
}

func TestMarkEmailSentIncrementsAttempts(t *testing.T) {
	conn := newFulfillmentTestConn(t)
	repo := NewRepository(conn)
	receipt := seedReceipt(t, conn, func(r *models.Receipt) {
		r.PDFGenerated = true
	})

	if err := repo.MarkEmailSent(receipt.ID); err != nil {
		t.Fatalf("mark email sent: %v", err)
	}

	reloaded, err := repo.FindByID(receipt.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !reloaded.EmailSent {
		t.Fatalf("expected email_sent to be true")
	}
	// A first-try success is still one worker entry: emailSendAttempts must count it too, matching
	// render and upload counting every attempt regardless of outcome (§4.5 step 4, §8).
	if reloaded.EmailSendAttempts != 1 {
		t.Fatalf("expected email_send_attempts of 1 after a first-try success, got %d", reloaded.EmailSendAttempts)
	}
}

func TestMarkCompletedIsIdempotent(t *testing.T) {
	conn := newFulfillmentTestConn(t)
	repo := NewRepository(conn)
	receipt := seedReceipt(t, conn, func(r *models.Receipt) {
		r.PDFGenerated = true
		r.CloudStorageUploaded = true
		r.EmailSent = true
		r.Status = enums.ReceiptStatusCompleted
	})

	if err := repo.MarkCompleted(receipt.ID); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	reloaded, err := repo.FindByID(receipt.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != enums.ReceiptStatusCompleted {
		t.Fatalf("expected receipt to remain completed, got %v", reloaded.Status)
	}
}
