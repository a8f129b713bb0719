package queue

import (
	"time"

	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

// Options fixes the retry/backoff/concurrency policy for one named queue (§6). These are the
// literal defaults the specification pins; tests pass their own Options map to NewService
// without touching the production wiring in cmd/worker.
type Options struct {
	Name        enums.QueueName
	MaxAttempts int
	BackoffBase time.Duration
	Concurrency int
}

// DefaultOptions returns the fixed queue table from §6/§4.3-4.5.
func DefaultOptions() map[enums.QueueName]Options {
	return map[enums.QueueName]Options{
		enums.QueueReceiptGeneration: {
			Name:        enums.QueueReceiptGeneration,
			MaxAttempts: 3,
			BackoffBase: time.Minute,
			Concurrency: 2,
		},
		enums.QueueCloudStorageUpload: {
			Name:        enums.QueueCloudStorageUpload,
			MaxAttempts: 5,
			BackoffBase: 2 * time.Minute,
			Concurrency: 5,
		},
		enums.QueueEmailDelivery: {
			Name:        enums.QueueEmailDelivery,
			MaxAttempts: 5,
			BackoffBase: 2 * time.Minute,
			Concurrency: 10,
		},
		enums.QueueRecoveryScan: {
			Name:        enums.QueueRecoveryScan,
			MaxAttempts: 1,
			BackoffBase: 0,
			Concurrency: 1,
		},
	}
}
