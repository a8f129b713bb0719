package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/s8nclone/receipt-pipeline/internal/payment"
	"github.com/s8nclone/receipt-pipeline/internal/webhooks"
	"github.com/s8nclone/receipt-pipeline/pkg/config"
	"github.com/s8nclone/receipt-pipeline/pkg/db"
	"github.com/s8nclone/receipt-pipeline/pkg/db/models"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
)

// fakeIdempotencyStore satisfies redis.IdempotencyStore without a live Redis instance, mirroring
// the fake used in api/controllers/webhooks/payment_test.go.
type fakeIdempotencyStore struct{ seen map[string]bool }

func (f *fakeIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if f.seen[key] {
		return "1", nil
	}
	return "", nil
}

func (f *fakeIdempotencyStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	if f.seen == nil {
		f.seen = map[string]bool{}
	}
	first := !f.seen[key]
	f.seen[key] = true
	return first, nil
}

func (f *fakeIdempotencyStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("idempotency:%s:%s", scope, id)
}

func (f *fakeIdempotencyStore) Del(_ context.Context, _ ...string) error { return nil }

func newTestParams(t *testing.T) Params {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(&models.WebhookLog{}, &models.Order{}, &models.PaymentTransaction{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}

	cfg := &config.Config{
		App:     config.AppConfig{Env: "test"},
		Webhook: config.WebhookConfig{AllowMockProvider: true, MaxBodyBytes: 1 << 20},
	}
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})

	guard, err := webhooks.NewPreCheckGuard(&fakeIdempotencyStore{}, time.Minute, "webhook")
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	return Params{
		Config:          cfg,
		Logger:          logg,
		WebhookRegistry: webhooks.NewRegistry(cfg.Webhook),
		WebhookGuard:    guard,
		WebhookRepo:     webhooks.NewRepository(conn),
		PaymentService:  payment.NewService(db.NewFromConn(conn), payment.NewRepository(conn), nil, logg),
	}
}

func TestHealthLiveRouteIsReachable(t *testing.T) {
	router := NewRouter(newTestParams(t))
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /health/live, got %d", rec.Code)
	}
}

func TestMetricsRouteIsReachable(t *testing.T) {
	router := NewRouter(newTestParams(t))
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from /metrics, got %d", rec.Code)
	}
}

func TestPaymentWebhookRouteIsRegistered(t *testing.T) {
	router := NewRouter(newTestParams(t))
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payment/mock", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code == http.StatusNotFound {
		t.Fatalf("expected the payment webhook route to be registered")
	}
}

func TestUnknownRouteReturnsNotFound(t *testing.T) {
	router := NewRouter(newTestParams(t))
	req := httptest.NewRequest(http.MethodGet, "/does/not/exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unregistered route, got %d", rec.Code)
	}
}
