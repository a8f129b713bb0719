package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

// Order is the purchase an inbound payment webhook resolves against. Line items live in the
// items JSON column rather than a relational table: this pipeline never edits them, it only
// freezes them into a Receipt.orderSnapshot at commit time.
type Order struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber   string          `gorm:"column:order_number;not null;uniqueIndex"`
	UserID        uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	StoreID       uuid.UUID       `gorm:"column:store_id;type:uuid;not null;index"`
	CustomerEmail string          `gorm:"column:customer_email;not null"`
	Items         json.RawMessage `gorm:"column:items;type:jsonb;not null"`
	Subtotal    decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Tax         decimal.Decimal   `gorm:"column:tax;type:numeric(12,2);not null"`
	Shipping    decimal.Decimal   `gorm:"column:shipping;type:numeric(12,2);not null"`
	Discount    decimal.Decimal   `gorm:"column:discount;type:numeric(12,2);not null;default:0"`
	Total       decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null"`
	Status      enums.OrderStatus `gorm:"column:status;type:order_status_enum;not null;default:'PENDING_PAYMENT';index"`
	PaidAt      *time.Time        `gorm:"column:paid_at"`
	CancelledAt *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}
