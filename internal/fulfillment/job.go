package fulfillment

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
)

// parseReceiptID pulls the receipt id every fulfillment job carries in its Data payload
// (§4.3-4.5 all key off a single receiptId). Falls back to JobLog.ReceiptID when Data omits it,
// which lets the recovery controller's re-enqueue (§4.6) set only the column, not the payload.
func parseReceiptID(job models.JobLog) (uuid.UUID, error) {
	var payload struct {
		ReceiptID uuid.UUID `json:"receipt_id"`
	}
	if len(job.Data) > 0 {
		if err := json.Unmarshal(job.Data, &payload); err != nil {
			return uuid.UUID{}, fmt.Errorf("decode job payload: %w", err)
		}
	}
	if payload.ReceiptID != (uuid.UUID{}) {
		return payload.ReceiptID, nil
	}
	if job.ReceiptID != nil {
		return *job.ReceiptID, nil
	}
	return uuid.UUID{}, fmt.Errorf("job %s has no receipt id", job.ID)
}
