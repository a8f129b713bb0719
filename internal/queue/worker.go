package queue

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
	"github.com/s8nclone/receipt-pipeline/pkg/metrics"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	maxPollBackoff      = 10 * time.Second
	jitterWindow        = 250 * time.Millisecond
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

// Handler executes one job's payload. A returned PermanentError stops retries immediately; any
// other error is treated as transient and retried with backoff up to the queue's max attempts
// (§7's TransientError vs PermanentError split).
type Handler func(ctx context.Context, job models.JobLog) error

// Worker polls a single named queue with a fixed pool of goroutines, adapted from the outbox
// publisher's poll-batch-backoff loop but dispatching straight to an in-process handler instead
// of publishing to a broker (§9: "message passing via the broker only" — the broker here is this
// queue, not a second external hop).
type Worker struct {
	repo    *Repository
	opts    Options
	handler Handler
	logg    *logger.Logger
	metrics *metrics.QueueJobMetrics
}

func NewWorker(repo *Repository, opts Options, handler Handler, logg *logger.Logger, m *metrics.QueueJobMetrics) *Worker {
	return &Worker{repo: repo, opts: opts, handler: handler, logg: logg, metrics: m}
}

// Run blocks, running opts.Concurrency goroutines until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	concurrency := w.opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.loop(ctx)
		}()
	}
	wg.Wait()
	return ctx.Err()
}

func (w *Worker) loop(ctx context.Context) {
	backoff := defaultPollInterval
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		did, err := w.processOne(ctx)
		if err != nil {
			w.logg.Error(ctx, "queue worker claim error", err)
			backoff = nextBackoff(backoff, maxPollBackoff)
			if !w.sleep(ctx, withJitter(backoff)) {
				return
			}
			continue
		}

		if did {
			backoff = defaultPollInterval
			continue
		}

		if !w.sleep(ctx, withJitter(defaultPollInterval)) {
			return
		}
	}
}

func (w *Worker) processOne(ctx context.Context) (bool, error) {
	claimed, err := w.repo.ClaimNext(w.opts.Name, 1)
	if err != nil {
		return false, err
	}
	if len(claimed) == 0 {
		return false, nil
	}

	job := claimed[0]
	fields := map[string]any{"queue": job.QueueName, "job_id": job.ID.String(), "attempt": job.Attempts + 1}
	logCtx := w.logg.WithFields(ctx, fields)

	start := time.Now()
	handlerErr := w.handler(logCtx, job)
	w.metrics.ObserveDuration(string(w.opts.Name), time.Since(start))
	w.metrics.IncAttempt(string(w.opts.Name))

	if handlerErr == nil {
		if err := w.repo.MarkCompleted(job.ID, nil); err != nil {
			return true, err
		}
		w.metrics.IncSuccess(string(w.opts.Name))
		w.logg.Info(logCtx, "job completed")
		return true, nil
	}

	w.metrics.IncFailure(string(w.opts.Name))

	errCtx := w.logg.WithField(logCtx, "error", handlerErr.Error())

	var permanent PermanentError
	if errors.As(handlerErr, &permanent) {
		w.logg.Warn(errCtx, "job failed permanently, not retrying")
		if err := w.repo.MarkFailedPermanent(job.ID, job, handlerErr); err != nil {
			return true, err
		}
		return true, nil
	}

	w.logg.Warn(errCtx, "job attempt failed, scheduling retry")
	if err := w.repo.MarkRetry(job.ID, job, handlerErr, w.opts.BackoffBase); err != nil {
		return true, err
	}
	return true, nil
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d + time.Duration(jitterSource.Int63n(int64(jitterWindow)))
}
