package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/s8nclone/receipt-pipeline/pkg/enums"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
)

// Service is the queue substrate's write side: enqueueing jobs onto named queues (§2 item 3).
type Service struct {
	repo *Repository
	opts map[enums.QueueName]Options
	logg *logger.Logger
}

func NewService(repo *Repository, opts map[enums.QueueName]Options, logg *logger.Logger) *Service {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Service{repo: repo, opts: opts, logg: logg}
}

// Enqueue params for a single job. Priority defaults to 1 (normal); recovery re-enqueues pass 2
// (lower priority, §4.6).
type Enqueue struct {
	Queue         enums.QueueName
	JobType       string
	JobID         string
	ReceiptID     *uuid.UUID
	Priority      int
	Data          any
	IsRecoveryJob bool
	Tx            *gorm.DB
}

// Push inserts a job, honoring the reserved jobId de-duplication key: if a non-terminal job with
// the same JobID already exists, Push is a no-op (§2 item 3, §9 "message passing via the broker
// only" — callers never need to check for an in-flight duplicate themselves).
func (s *Service) Push(ctx context.Context, e Enqueue) error {
	if e.Priority == 0 {
		e.Priority = 1
	}
	if e.JobID != "" {
		exists, err := s.repo.ExistsActiveJobID(e.Tx, e.JobID)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
	}

	opts, ok := s.opts[e.Queue]
	if !ok {
		opts = Options{MaxAttempts: 5, BackoffBase: time.Minute}
	}

	_, err := s.repo.Insert(e.Tx, EnqueueParams{
		JobID:         e.JobID,
		QueueName:     e.Queue,
		JobType:       e.JobType,
		ReceiptID:     e.ReceiptID,
		Priority:      e.Priority,
		MaxAttempts:   opts.MaxAttempts,
		Data:          e.Data,
		IsRecoveryJob: e.IsRecoveryJob,
	})
	if err != nil {
		return err
	}
	if s.logg != nil {
		fields := map[string]any{"queue": e.Queue, "job_type": e.JobType, "priority": e.Priority}
		s.logg.Info(s.logg.WithFields(ctx, fields), "job enqueued")
	}
	return nil
}
