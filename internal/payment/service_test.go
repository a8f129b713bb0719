package payment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/s8nclone/receipt-pipeline/pkg/db"
	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

func newTestConn(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.Order{}, &models.PaymentTransaction{}, &models.Receipt{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) *Service {
	t.Helper()
	return NewService(db.NewFromConn(conn), NewRepository(conn), nil, nil)
}

func seedOrder(t *testing.T, conn *gorm.DB, status enums.OrderStatus, total decimal.Decimal) *models.Order {
	t.Helper()
	order := &models.Order{
		OrderNumber:   "ORD-" + uuid.NewString(),
		UserID:        uuid.New(),
		StoreID:       uuid.New(),
		CustomerEmail: "buyer@example.com",
		Items:         []byte(`[]`),
		Subtotal:      total,
		Tax:           decimal.Zero,
		Shipping:      decimal.Zero,
		Total:         total,
		Status:        status,
	}
	if err := conn.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func TestCommitReturnsAlreadyProcessedForPaidOrder(t *testing.T) {
	conn := newTestConn(t)
	order := seedOrder(t, conn, enums.OrderStatusPaid, decimal.NewFromInt(10))
	svc := newTestService(t, conn)

	result, err := svc.Commit(context.Background(), CommitInput{
		OrderID:       order.ID,
		TransactionID: "tx_1",
		Amount:        decimal.NewFromInt(10),
		Currency:      enums.CurrencyUSD,
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Type != ResultAlreadyProcessed {
		t.Fatalf("expected already_processed, got %v", result.Type)
	}
}

func TestCommitFlagsCancelledOrderForRefundWithoutMutatingStatus(t *testing.T) {
	conn := newTestConn(t)
	order := seedOrder(t, conn, enums.OrderStatusCancelled, decimal.NewFromInt(10))
	svc := newTestService(t, conn)

	result, err := svc.Commit(context.Background(), CommitInput{
		OrderID:       order.ID,
		TransactionID: "tx_1",
		Amount:        decimal.NewFromInt(10),
		Currency:      enums.CurrencyUSD,
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Type != ResultValidationFailed || !result.RequiresRefund {
		t.Fatalf("expected validation_failed with requiresRefund, got %+v", result)
	}

	var reloaded models.Order
	if err := conn.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected order to remain cancelled, got %v", reloaded.Status)
	}

	var txCount int64
	conn.Model(&models.PaymentTransaction{}).Where("order_id = ?", order.ID).Count(&txCount)
	if txCount != 1 {
		t.Fatalf("expected one failed payment transaction recorded, got %d", txCount)
	}
}

func TestCommitRejectsAmountMismatchAndLeavesOrderPending(t *testing.T) {
	conn := newTestConn(t)
	order := seedOrder(t, conn, enums.OrderStatusPendingPayment, decimal.NewFromInt(50))
	svc := newTestService(t, conn)

	result, err := svc.Commit(context.Background(), CommitInput{
		OrderID:       order.ID,
		TransactionID: "tx_1",
		Amount:        decimal.NewFromInt(49),
		Currency:      enums.CurrencyUSD,
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Type != ResultValidationFailed || result.RequiresRefund {
		t.Fatalf("expected plain validation_failed, got %+v", result)
	}

	// A mismatched amount is a forged/incorrect webhook, not a business payment failure: the
	// legitimate payment may still arrive, so the order stays PENDING_PAYMENT (spec §8 scenario 3).
	var reloaded models.Order
	if err := conn.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusPendingPayment {
		t.Fatalf("expected order to remain pending_payment, got %v", reloaded.Status)
	}

	var txCount int64
	conn.Model(&models.PaymentTransaction{}).Where("order_id = ?", order.ID).Count(&txCount)
	if txCount != 1 {
		t.Fatalf("expected one failed payment transaction recorded, got %d", txCount)
	}
}

func TestCommitAssignsIndependentReceiptSequencesPerStore(t *testing.T) {
	conn := newTestConn(t)
	svc := newTestService(t, conn)

	orderA := seedOrder(t, conn, enums.OrderStatusPendingPayment, decimal.NewFromInt(10))
	orderB := seedOrder(t, conn, enums.OrderStatusPendingPayment, decimal.NewFromInt(10))

	resultA, err := svc.Commit(context.Background(), CommitInput{
		OrderID:       orderA.ID,
		TransactionID: "tx_store_a",
		Amount:        decimal.NewFromInt(10),
		Currency:      enums.CurrencyUSD,
	})
	if err != nil {
		t.Fatalf("commit store a: %v", err)
	}
	resultB, err := svc.Commit(context.Background(), CommitInput{
		OrderID:       orderB.ID,
		TransactionID: "tx_store_b",
		Amount:        decimal.NewFromInt(10),
		Currency:      enums.CurrencyUSD,
	})
	if err != nil {
		t.Fatalf("commit store b: %v", err)
	}

	var receiptA, receiptB models.Receipt
	if err := conn.First(&receiptA, "id = ?", *resultA.ReceiptID).Error; err != nil {
		t.Fatalf("load receipt a: %v", err)
	}
	if err := conn.First(&receiptB, "id = ?", *resultB.ReceiptID).Error; err != nil {
		t.Fatalf("load receipt b: %v", err)
	}

	// Two different stores each start their own dense (storeId, year) sequence at 1: the unique
	// constraint on receipt_number is scoped to (store_id, receipt_number), not receipt_number
	// alone, so store B is not forced to skip to 000002 by store A's first receipt.
	if receiptA.ReceiptNumber != receiptB.ReceiptNumber {
		t.Fatalf("expected both stores' first receipt to share the same per-store sequence number, got %q and %q", receiptA.ReceiptNumber, receiptB.ReceiptNumber)
	}
}

func TestCommitReturnsAlreadyProcessedWhenReceiptAlreadyExists(t *testing.T) {
	conn := newTestConn(t)
	order := seedOrder(t, conn, enums.OrderStatusPendingPayment, decimal.NewFromInt(10))
	existing := &models.Receipt{
		ReceiptNumber:  "RCP-2026-000001",
		OrderID:        order.ID,
		TransactionID:  "tx_1",
		UserID:         order.UserID,
		StoreID:        order.StoreID,
		OrderSnapshot:  []byte(`{}`),
		Amount:         decimal.NewFromInt(10),
		Currency:       enums.CurrencyUSD,
		Status:         enums.ReceiptStatusPending,
		PaidAt:         time.Now(),
		EmailRecipient: order.CustomerEmail,
	}
	if err := conn.Create(existing).Error; err != nil {
		t.Fatalf("seed receipt: %v", err)
	}

	svc := newTestService(t, conn)
	result, err := svc.Commit(context.Background(), CommitInput{
		OrderID:       order.ID,
		TransactionID: "tx_1",
		Amount:        decimal.NewFromInt(10),
		Currency:      enums.CurrencyUSD,
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if result.Type != ResultAlreadyProcessed || result.ReceiptID == nil || *result.ReceiptID != existing.ID {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRecordFailedPaymentIsNoOpForPaidOrCancelledOrders(t *testing.T) {
	conn := newTestConn(t)
	svc := newTestService(t, conn)

	paid := seedOrder(t, conn, enums.OrderStatusPaid, decimal.NewFromInt(10))
	if err := svc.RecordFailedPayment(context.Background(), CommitInput{OrderID: paid.ID, TransactionID: "tx_a"}); err != nil {
		t.Fatalf("unexpected error for paid order: %v", err)
	}

	cancelled := seedOrder(t, conn, enums.OrderStatusCancelled, decimal.NewFromInt(10))
	if err := svc.RecordFailedPayment(context.Background(), CommitInput{OrderID: cancelled.ID, TransactionID: "tx_b"}); err != nil {
		t.Fatalf("unexpected error for cancelled order: %v", err)
	}

	var txCount int64
	conn.Model(&models.PaymentTransaction{}).Where("order_id IN ?", []uuid.UUID{paid.ID, cancelled.ID}).Count(&txCount)
	if txCount != 0 {
		t.Fatalf("expected no payment transaction recorded for an already-paid or cancelled order, got %d", txCount)
	}

	var reloaded models.Order
	if err := conn.First(&reloaded, "id = ?", cancelled.ID).Error; err != nil {
		t.Fatalf("reload cancelled order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusCancelled {
		t.Fatalf("expected cancelled order left cancelled, got %v", reloaded.Status)
	}
}

func TestRecordFailedPaymentMarksPendingOrderFailed(t *testing.T) {
	conn := newTestConn(t)
	order := seedOrder(t, conn, enums.OrderStatusPendingPayment, decimal.NewFromInt(10))
	svc := newTestService(t, conn)

	if err := svc.RecordFailedPayment(context.Background(), CommitInput{
		OrderID:       order.ID,
		TransactionID: "tx_a",
		Amount:        decimal.NewFromInt(10),
		Currency:      enums.CurrencyUSD,
	}); err != nil {
		t.Fatalf("record failed payment: %v", err)
	}

	var reloaded models.Order
	if err := conn.First(&reloaded, "id = ?", order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusPaymentFailed {
		t.Fatalf("expected order marked payment_failed, got %v", reloaded.Status)
	}
}
