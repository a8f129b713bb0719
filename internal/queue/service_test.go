package queue

import (
	"context"
	"testing"

	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

func TestPushDefaultsPriorityAndUsesConfiguredMaxAttempts(t *testing.T) {
	conn := newQueueTestConn(t)
	repo := NewRepository(conn)
	svc := NewService(repo, map[enums.QueueName]Options{
		enums.QueueReceiptGeneration: {Name: enums.QueueReceiptGeneration, MaxAttempts: 7},
	}, nil)

	if err := svc.Push(context.Background(), Enqueue{
		Queue:   enums.QueueReceiptGeneration,
		JobType: "render",
		JobID:   "job-svc-1",
	}); err != nil {
		t.Fatalf("push: %v", err)
	}

	var row models.JobLog
	if err := conn.First(&row, "job_id = ?", "job-svc-1").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if row.Priority != 1 {
		t.Fatalf("expected priority to default to 1, got %d", row.Priority)
	}
	if row.MaxAttempts != 7 {
		t.Fatalf("expected max attempts from configured options, got %d", row.MaxAttempts)
	}
}

func TestPushIsNoOpForAlreadyActiveJobID(t *testing.T) {
	conn := newQueueTestConn(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil, nil)

	push := Enqueue{Queue: enums.QueueEmailDelivery, JobType: "email", JobID: "job-svc-dup"}
	if err := svc.Push(context.Background(), push); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := svc.Push(context.Background(), push); err != nil {
		t.Fatalf("second push: %v", err)
	}

	var count int64
	conn.Model(&models.JobLog{}).Where("job_id = ?", "job-svc-dup").Count(&count)
	if count != 1 {
		t.Fatalf("expected exactly one row for a deduplicated job id, got %d", count)
	}
}

func TestPushFallsBackToDefaultOptionsForUnknownQueue(t *testing.T) {
	conn := newQueueTestConn(t)
	repo := NewRepository(conn)
	svc := NewService(repo, map[enums.QueueName]Options{}, nil)

	if err := svc.Push(context.Background(), Enqueue{
		Queue:   enums.QueueRecoveryScan,
		JobType: "recovery",
		JobID:   "job-svc-fallback",
	}); err != nil {
		t.Fatalf("push: %v", err)
	}

	var row models.JobLog
	if err := conn.First(&row, "job_id = ?", "job-svc-fallback").Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if row.MaxAttempts != 5 {
		t.Fatalf("expected fallback max attempts of 5, got %d", row.MaxAttempts)
	}
}
