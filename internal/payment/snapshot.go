package payment

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
)

// orderSnapshot is the frozen shape written once into Receipt.OrderSnapshot (§4.2, §3): later
// changes to the order never propagate into an already-committed receipt.
type orderSnapshot struct {
	OrderNumber   string          `json:"orderNumber"`
	CustomerEmail string          `json:"customerEmail"`
	Items         json.RawMessage `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tax           decimal.Decimal `json:"tax"`
	Shipping      decimal.Decimal `json:"shipping"`
	Discount      decimal.Decimal `json:"discount"`
	Total         decimal.Decimal `json:"total"`
	PaidAt        time.Time       `json:"paidAt"`
}

func freeze(order *models.Order) (json.RawMessage, error) {
	snap := orderSnapshot{
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		Items:         order.Items,
		Subtotal:      order.Subtotal,
		Tax:           order.Tax,
		Shipping:      order.Shipping,
		Discount:      order.Discount,
		Total:         order.Total,
	}
	if order.PaidAt != nil {
		snap.PaidAt = *order.PaidAt
	}
	return json.Marshal(snap)
}
