package webhooks

import (
	"context"
	"fmt"
	"testing"
	"time"
)

type fakeIdempotencyStore struct {
	seen map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{seen: map[string]bool{}}
}

func (f *fakeIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if f.seen[key] {
		return "1", nil
	}
	return "", nil
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("idempotency:%s:%s", scope, id)
}

func (f *fakeIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.seen, k)
	}
	return nil
}

func TestPreCheckGuardMarksFirstDeliverySeenAndFlagsRepeats(t *testing.T) {
	guard, err := NewPreCheckGuard(newFakeIdempotencyStore(), time.Minute, "webhook")
	if err != nil {
		t.Fatalf("construct guard: %v", err)
	}

	duplicate, err := guard.CheckAndMark(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("first check: %v", err)
	}
	if duplicate {
		t.Fatalf("expected first delivery to not be a duplicate")
	}

	duplicate, err = guard.CheckAndMark(context.Background(), "evt-1")
	if err != nil {
		t.Fatalf("second check: %v", err)
	}
	if !duplicate {
		t.Fatalf("expected repeat delivery to be flagged as duplicate")
	}
}

func TestPreCheckGuardRejectsEmptyWebhookID(t *testing.T) {
	guard, err := NewPreCheckGuard(newFakeIdempotencyStore(), time.Minute, "webhook")
	if err != nil {
		t.Fatalf("construct guard: %v", err)
	}
	if _, err := guard.CheckAndMark(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty webhook id")
	}
}

func TestNewPreCheckGuardValidatesParams(t *testing.T) {
	if _, err := NewPreCheckGuard(nil, time.Minute, "webhook"); err == nil {
		t.Fatalf("expected error for nil store")
	}
	if _, err := NewPreCheckGuard(newFakeIdempotencyStore(), -1, "webhook"); err == nil {
		t.Fatalf("expected error for negative ttl")
	}
	if _, err := NewPreCheckGuard(newFakeIdempotencyStore(), time.Minute, ""); err == nil {
		t.Fatalf("expected error for empty scope")
	}
}
