package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/s8nclone/receipt-pipeline/internal/queue"
	"github.com/s8nclone/receipt-pipeline/pkg/db"
	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	apperrors "github.com/s8nclone/receipt-pipeline/pkg/errors"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
)

// errAlreadyProcessed is the sentinel a commit transaction returns when it loses the race for a
// TransactionID's unique index (§4.2 step 2) or discovers mid-transaction that the order was
// already promoted to PAID by a concurrent webhook.
var errAlreadyProcessed = errors.New("payment already processed")

const maxReceiptNumberAttempts = 5

// Service commits a verified payment event against its order (§4.2): validate, dedupe, mutate
// order and receipt inside one transaction, then hand off to the queue for fulfillment.
type Service struct {
	db    *db.Client
	repo  *Repository
	queue *queue.Service
	logg  *logger.Logger
}

func NewService(dbClient *db.Client, repo *Repository, q *queue.Service, logg *logger.Logger) *Service {
	return &Service{db: dbClient, repo: repo, queue: q, logg: logg}
}

// Commit runs the full payment-commit algorithm (§4.2).
func (s *Service) Commit(ctx context.Context, in CommitInput) (CommitResult, error) {
	order, err := s.repo.FindOrder(nil, in.OrderID)
	if err != nil {
		return CommitResult{}, fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return CommitResult{}, apperrors.New(apperrors.CodeValidation, "order not found")
	}

	if order.Status == enums.OrderStatusPaid {
		return CommitResult{Type: ResultAlreadyProcessed, OrderID: &order.ID}, nil
	}

	if order.Status == enums.OrderStatusCancelled {
		msg := "order is cancelled, refund required"
		if err := s.recordFailure(ctx, order, in, msg, false); err != nil && s.logg != nil {
			s.logg.Error(ctx, "failed to record cancelled-order payment attempt", err)
		}
		return CommitResult{Type: ResultValidationFailed, OrderID: &order.ID, RequiresRefund: true, Message: msg}, nil
	}

	if !order.Total.Equal(in.Amount) {
		msg := fmt.Sprintf("amount mismatch: order total %s, payment %s", order.Total, in.Amount)
		if err := s.recordFailure(ctx, order, in, msg, false); err != nil && s.logg != nil {
			s.logg.Error(ctx, "failed to record amount-mismatch payment attempt", err)
		}
		return CommitResult{Type: ResultValidationFailed, OrderID: &order.ID, Message: msg}, nil
	}

	if existing, err := s.repo.FindReceiptByTransactionID(in.TransactionID); err != nil {
		return CommitResult{}, fmt.Errorf("check existing receipt: %w", err)
	} else if existing != nil {
		return CommitResult{Type: ResultAlreadyProcessed, OrderID: &order.ID, ReceiptID: &existing.ID}, nil
	}

	var receipt *models.Receipt
	txErr := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		locked, err := s.repo.LockOrder(tx, in.OrderID)
		if err != nil {
			return fmt.Errorf("lock order: %w", err)
		}
		if locked == nil {
			return apperrors.New(apperrors.CodeNotFound, "order not found")
		}
		if locked.Status == enums.OrderStatusPaid {
			return errAlreadyProcessed
		}

		now := time.Now()
		pt := &models.PaymentTransaction{
			TransactionID: in.TransactionID,
			OrderID:       locked.ID,
			UserID:        locked.UserID,
			StoreID:       locked.StoreID,
			Provider:      in.Provider,
			Amount:        in.Amount,
			Currency:      in.Currency,
			Status:        enums.PaymentTransactionSucceeded,
			WebhookLogID:  in.WebhookLogID,
			SucceededAt:   &now,
		}
		if err := s.repo.InsertPaymentTransaction(tx, pt); err != nil {
			if db.IsUniqueViolation(err, "transaction_id") || db.IsUniqueViolation(err, "") {
				return errAlreadyProcessed
			}
			return fmt.Errorf("insert payment transaction: %w", err)
		}

		locked.Status = enums.OrderStatusPaid
		locked.PaidAt = &now
		if err := s.repo.UpdateOrder(tx, locked); err != nil {
			return fmt.Errorf("mark order paid: %w", err)
		}

		snapshot, err := freeze(locked)
		if err != nil {
			return fmt.Errorf("freeze order snapshot: %w", err)
		}

		receipt = &models.Receipt{
			OrderID:        locked.ID,
			TransactionID:  in.TransactionID,
			UserID:         locked.UserID,
			StoreID:        locked.StoreID,
			OrderSnapshot:  snapshot,
			Amount:         in.Amount,
			Currency:       in.Currency,
			Status:         enums.ReceiptStatusPending,
			PaidAt:         now,
			EmailRecipient: locked.CustomerEmail,
		}
		if err := s.allocateAndInsertReceipt(tx, receipt, locked.StoreID, now.Year()); err != nil {
			return fmt.Errorf("allocate receipt: %w", err)
		}

		return nil
	})

	if txErr != nil {
		if errors.Is(txErr, errAlreadyProcessed) {
			if existing, ferr := s.repo.FindReceiptByTransactionID(in.TransactionID); ferr == nil && existing != nil {
				return CommitResult{Type: ResultAlreadyProcessed, OrderID: &order.ID, ReceiptID: &existing.ID}, nil
			}
			return CommitResult{Type: ResultAlreadyProcessed, OrderID: &order.ID}, nil
		}
		return CommitResult{}, txErr
	}

	s.enqueueRenderJob(ctx, receipt)

	return CommitResult{Type: ResultProcessed, OrderID: &order.ID, ReceiptID: &receipt.ID}, nil
}

// RecordFailedPayment handles the webhook intake's "failed" dispatch branch (§4.1 step 6): the
// provider itself reported the payment failed, so there is no commit to attempt — just an audit
// row and an order transitioned to PAYMENT_FAILED.
func (s *Service) RecordFailedPayment(ctx context.Context, in CommitInput) error {
	order, err := s.repo.FindOrder(nil, in.OrderID)
	if err != nil {
		return fmt.Errorf("load order: %w", err)
	}
	if order == nil {
		return apperrors.New(apperrors.CodeValidation, "order not found")
	}
	if order.Status == enums.OrderStatusPaid || order.Status == enums.OrderStatusCancelled {
		return nil
	}
	return s.recordFailure(ctx, order, in, "provider reported payment failure", true)
}

// allocateAndInsertReceipt assigns the next dense RCP-YYYY-NNNNNN number for (storeId, year) and
// inserts the receipt, retrying under a savepoint if a concurrent committer took the same number
// (§3's receiptNumber uniqueness).
func (s *Service) allocateAndInsertReceipt(tx *gorm.DB, receipt *models.Receipt, storeID uuid.UUID, year int) error {
	count, err := s.repo.CountReceiptsForStoreYear(tx, storeID, year)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxReceiptNumberAttempts; attempt++ {
		receipt.ReceiptNumber = fmt.Sprintf("RCP-%04d-%06d", year, count+int64(attempt)+1)

		savepoint := fmt.Sprintf("receipt_number_%d", attempt)
		if err := tx.SavePoint(savepoint).Error; err != nil {
			return err
		}

		err := s.repo.InsertReceipt(tx, receipt)
		if err == nil {
			return nil
		}
		if !db.IsUniqueViolation(err, "receipt_number") && !db.IsUniqueViolation(err, "") {
			return err
		}
		if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
			return rbErr
		}
	}

	return apperrors.New(apperrors.CodeConflict, "exhausted receipt number allocation attempts")
}

// recordFailure logs a FAILED PaymentTransaction for a rejected commit attempt. markOrderFailed
// additionally transitions the order to PAYMENT_FAILED; cancelled orders are left untouched since
// CANCELLED already dominates.
func (s *Service) recordFailure(ctx context.Context, order *models.Order, in CommitInput, reason string, markOrderFailed bool) error {
	now := time.Now()
	pt := &models.PaymentTransaction{
		TransactionID: in.TransactionID,
		OrderID:       order.ID,
		UserID:        order.UserID,
		StoreID:       order.StoreID,
		Provider:      in.Provider,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Status:        enums.PaymentTransactionFailed,
		WebhookLogID:  in.WebhookLogID,
		FailedAt:      &now,
		FailureReason: &reason,
	}

	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.InsertPaymentTransaction(tx, pt); err != nil {
			if db.IsUniqueViolation(err, "") {
				return nil
			}
			return err
		}
		if markOrderFailed {
			order.Status = enums.OrderStatusPaymentFailed
			return s.repo.UpdateOrder(tx, order)
		}
		return nil
	})
}

// enqueueRenderJob hands the freshly committed receipt to the fulfillment pipeline. Enqueue
// failures are logged, not surfaced: the webhook has already committed successfully, and the
// recovery controller picks up receipts stuck without a render job (§4.6).
func (s *Service) enqueueRenderJob(ctx context.Context, receipt *models.Receipt) {
	if s.queue == nil {
		return
	}
	err := s.queue.Push(ctx, queue.Enqueue{
		Queue:     enums.QueueReceiptGeneration,
		JobType:   "render_receipt_pdf",
		JobID:     "render:" + receipt.ID.String(),
		ReceiptID: &receipt.ID,
		Priority:  1,
		Data:      map[string]any{"receipt_id": receipt.ID},
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "failed to enqueue receipt render job", err)
	}
}
