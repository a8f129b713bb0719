package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDGeneratesOneWhenMissing(t *testing.T) {
	var seenHeader string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenHeader = r.Header.Get(requestIDHeader)
	})

	rec := httptest.NewRecorder()
	RequestID(nil)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	respID := rec.Header().Get(requestIDHeader)
	if respID == "" {
		t.Fatalf("expected a generated request id on the response")
	}
	if seenHeader != "" {
		t.Fatalf("expected the inbound request header to stay untouched, got %q", seenHeader)
	}
}

func TestRequestIDPreservesExistingHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "existing-id")

	rec := httptest.NewRecorder()
	RequestID(nil)(next).ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "existing-id" {
		t.Fatalf("expected existing request id to be preserved, got %q", got)
	}
}

func TestRecovererConvertsPanicToInternalError(t *testing.T) {
	panicking := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	Recoverer(nil)(panicking).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after recovering a panic, got %d", rec.Code)
	}
}

func TestRecovererPassesThroughWhenNoPanic(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	Recoverer(nil)(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 to pass through untouched, got %d", rec.Code)
	}
}
