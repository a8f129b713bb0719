package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

// JobLog is both the durable queue row a worker claims and the append-only audit record of that
// execution (§3): a single row per job, mutated across retries the way an outbox event row is
// mutated across publish attempts, but never deleted. JobID carries the broker's reserved
// de-duplication key (§2 item 3); it is empty for jobs that don't need one.
type JobLog struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	JobID         string           `gorm:"column:job_id;index"`
	QueueName     enums.QueueName  `gorm:"column:queue_name;type:queue_name_enum;not null;index"`
	JobType       string           `gorm:"column:job_type;not null"`
	ReceiptID     *uuid.UUID       `gorm:"column:receipt_id;type:uuid;index"`
	Status        enums.JobStatus  `gorm:"column:status;type:job_status_enum;not null;default:'QUEUED';index"`
	Priority      int              `gorm:"column:priority;not null;default:1"`
	Attempts      int              `gorm:"column:attempts;not null;default:0"`
	MaxAttempts   int              `gorm:"column:max_attempts;not null"`
	RunAfter      time.Time        `gorm:"column:run_after;not null;index"`
	Data          json.RawMessage  `gorm:"column:data;type:jsonb;not null"`
	Result        json.RawMessage  `gorm:"column:result;type:jsonb"`
	Error         *string          `gorm:"column:error"`
	QueuedAt      time.Time        `gorm:"column:queued_at;autoCreateTime"`
	StartedAt     *time.Time       `gorm:"column:started_at"`
	CompletedAt   *time.Time       `gorm:"column:completed_at"`
	FailedAt      *time.Time       `gorm:"column:failed_at"`
	IsRecoveryJob bool             `gorm:"column:is_recovery_job;not null;default:false"`
	ExpiresAt     time.Time        `gorm:"column:expires_at;not null;index"`
}

func (JobLog) TableName() string {
	return "job_logs"
}

// JobLogTTL is the retention window named in §3's lifecycle rules.
const JobLogTTL = 30 * 24 * time.Hour
