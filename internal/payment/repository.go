package payment

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
)

// Repository is the persistence gateway for the payment-commit transaction (§4.2).
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

// FindOrder loads an order read-only (the precondition check outside the transaction, §4.2).
func (r *Repository) FindOrder(tx *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.conn(tx).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// LockOrder re-reads the order under a row lock inside the commit transaction, closing the
// TOCTOU window against a second concurrent webhook for the same order (§4.2 step 1).
func (r *Repository) LockOrder(tx *gorm.DB, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) UpdateOrder(tx *gorm.DB, order *models.Order) error {
	return r.conn(tx).Save(order).Error
}

// FindReceiptByTransactionID is the idempotency check (§4.2): a receipt already anchored to this
// transaction means another webhook already committed it.
func (r *Repository) FindReceiptByTransactionID(transactionID string) (*models.Receipt, error) {
	var receipt models.Receipt
	err := r.db.Where("transaction_id = ?", transactionID).First(&receipt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &receipt, nil
}

func (r *Repository) InsertPaymentTransaction(tx *gorm.DB, pt *models.PaymentTransaction) error {
	return tx.Create(pt).Error
}

func (r *Repository) InsertReceipt(tx *gorm.DB, receipt *models.Receipt) error {
	return tx.Create(receipt).Error
}

// CountReceiptsForStoreYear counts existing receipts for (storeId, year), the seed for the
// dense-per-store-per-year receiptNumber sequence (§3).
func (r *Repository) CountReceiptsForStoreYear(tx *gorm.DB, storeID uuid.UUID, year int) (int64, error) {
	var count int64
	err := tx.Model(&models.Receipt{}).
		Where("store_id = ? AND receipt_number LIKE ?", storeID, fmt.Sprintf("RCP-%04d-%%", year)).
		Count(&count).Error
	return count, err
}
