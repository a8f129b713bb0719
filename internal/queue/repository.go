package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

// Repository is the JobLog persistence gateway: it also serves as the queue substrate itself,
// since JobLog rows double as both the durable job broker's queue and its audit trail (§3).
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// EnqueueParams describes one job insertion.
type EnqueueParams struct {
	JobID         string
	QueueName     enums.QueueName
	JobType       string
	ReceiptID     *uuid.UUID
	Priority      int
	MaxAttempts   int
	RunAfter      time.Time
	Data          any
	IsRecoveryJob bool
	TTL           time.Duration
}

// Insert creates a new JobLog row. If tx is nil the repository's own connection is used, which is
// the common case for enqueues that run outside a caller transaction, including the payment
// commit's best-effort render enqueue, which runs after its transaction has committed.
func (r *Repository) Insert(tx *gorm.DB, params EnqueueParams) (*models.JobLog, error) {
	conn := r.db
	if tx != nil {
		conn = tx
	}

	data, err := json.Marshal(params.Data)
	if err != nil {
		return nil, err
	}

	runAfter := params.RunAfter
	if runAfter.IsZero() {
		runAfter = time.Now()
	}
	ttl := params.TTL
	if ttl <= 0 {
		ttl = models.JobLogTTL
	}

	row := models.JobLog{
		JobID:         params.JobID,
		QueueName:     params.QueueName,
		JobType:       params.JobType,
		ReceiptID:     params.ReceiptID,
		Status:        enums.JobStatusQueued,
		Priority:      params.Priority,
		Attempts:      0,
		MaxAttempts:   params.MaxAttempts,
		RunAfter:      runAfter,
		Data:          json.RawMessage(data),
		IsRecoveryJob: params.IsRecoveryJob,
		ExpiresAt:     time.Now().Add(ttl),
	}
	if err := conn.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ExistsActiveJobID reports whether a non-terminal job already carries the given jobId, the
// broker's reserved de-duplication key (§2 item 3).
func (r *Repository) ExistsActiveJobID(tx *gorm.DB, jobID string) (bool, error) {
	if jobID == "" {
		return false, nil
	}
	conn := r.db
	if tx != nil {
		conn = tx
	}
	var count int64
	err := conn.Model(&models.JobLog{}).
		Where("job_id = ? AND status IN ?", jobID, []enums.JobStatus{enums.JobStatusQueued, enums.JobStatusRunning}).
		Count(&count).Error
	return count > 0, err
}

// ClaimNext atomically reserves up to limit ready jobs for queueName using SELECT ... FOR UPDATE
// SKIP LOCKED so concurrent workers never claim the same row (§5's "at-most-one active execution
// per job id" guarantee).
func (r *Repository) ClaimNext(queueName enums.QueueName, limit int) ([]models.JobLog, error) {
	var claimed []models.JobLog
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var candidates []models.JobLog
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("queue_name = ? AND status = ? AND run_after <= ?", queueName, enums.JobStatusQueued, time.Now()).
			Order("priority ASC, queued_at ASC").
			Limit(limit).
			Find(&candidates).Error
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return nil
		}

		now := time.Now()
		for i := range candidates {
			candidates[i].Status = enums.JobStatusRunning
			candidates[i].StartedAt = &now
			if err := tx.Model(&models.JobLog{}).
				Where("id = ?", candidates[i].ID).
				Updates(map[string]any{"status": enums.JobStatusRunning, "started_at": now}).Error; err != nil {
				return err
			}
		}
		claimed = candidates
		return nil
	})
	return claimed, err
}

// MarkCompleted finalizes a successful execution.
func (r *Repository) MarkCompleted(id uuid.UUID, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	now := time.Now()
	return r.db.Model(&models.JobLog{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":       enums.JobStatusCompleted,
			"result":       json.RawMessage(payload),
			"completed_at": now,
			"attempts":     gorm.Expr("attempts + 1"),
		}).Error
}

// MarkRetry records a failed attempt and reschedules the job with exponential backoff, unless
// attempts have exhausted maxAttempts, in which case it is marked terminally FAILED.
func (r *Repository) MarkRetry(id uuid.UUID, job models.JobLog, jobErr error, backoffBase time.Duration) error {
	nextAttempts := job.Attempts + 1
	errMsg := jobErr.Error()

	if nextAttempts >= job.MaxAttempts {
		return r.markFailedTerminal(id, nextAttempts, errMsg)
	}

	delay := exponentialBackoff(backoffBase, nextAttempts)
	return r.db.Model(&models.JobLog{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":    enums.JobStatusQueued,
			"attempts":  nextAttempts,
			"error":     errMsg,
			"run_after": time.Now().Add(delay),
		}).Error
}

// MarkFailedPermanent finalizes a job whose handler returned a PermanentError: no more retries
// regardless of remaining attempt budget (§7 PermanentError).
func (r *Repository) MarkFailedPermanent(id uuid.UUID, job models.JobLog, jobErr error) error {
	return r.markFailedTerminal(id, job.Attempts+1, jobErr.Error())
}

func (r *Repository) markFailedTerminal(id uuid.UUID, attempts int, errMsg string) error {
	now := time.Now()
	return r.db.Model(&models.JobLog{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     enums.JobStatusFailed,
			"attempts":   attempts,
			"error":      errMsg,
			"failed_at":  now,
		}).Error
}

// FindStuck returns up to limit rows matching a recovery-controller staleness predicate (§4.6).
func (r *Repository) FindStuck(queueName enums.QueueName, olderThan time.Time, maxAttempts, limit int) ([]models.JobLog, error) {
	var rows []models.JobLog
	err := r.db.
		Where("queue_name = ? AND status = ? AND attempts < ? AND queued_at < ?", queueName, enums.JobStatusQueued, maxAttempts, olderThan).
		Order("queued_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func exponentialBackoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay
}
