package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
)

func signHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestGenericProviderVerifyAcceptsMatchingSignature(t *testing.T) {
	p := NewGenericProvider("generic", "top-secret")
	payload := []byte(`{"transaction_id":"tx_1"}`)

	if !p.Verify(payload, signHex("top-secret", payload)) {
		t.Fatalf("expected matching signature to verify")
	}
	if p.Verify(payload, signHex("wrong-secret", payload)) {
		t.Fatalf("expected mismatched secret to fail verification")
	}
	if p.Verify(payload, "not-hex-at-all") {
		t.Fatalf("expected malformed signature to fail verification")
	}
}

func TestGenericProviderNormalizeMapsCanonicalFields(t *testing.T) {
	p := NewGenericProvider("generic", "secret")
	payload := []byte(`{
		"transaction_id": "tx_42",
		"order_id": "order_7",
		"status": "succeeded",
		"amount": "19.99",
		"currency": "usd",
		"type": "payment.completed"
	}`)

	event, err := p.Normalize(payload)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.TransactionID != "tx_42" || event.OrderID != "order_7" {
		t.Fatalf("unexpected ids: %+v", event)
	}
	if event.Status != TransactionSucceeded {
		t.Fatalf("expected succeeded status, got %v", event.Status)
	}
	if event.Currency != "USD" {
		t.Fatalf("expected currency normalized to USD, got %v", event.Currency)
	}
}

func TestGenericProviderNormalizeFallsBackToUSDOnUnknownCurrency(t *testing.T) {
	p := NewGenericProvider("generic", "secret")
	payload := []byte(`{"transaction_id":"tx_1","status":"failed","currency":"zzz"}`)

	event, err := p.Normalize(payload)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.Currency != "USD" {
		t.Fatalf("expected fallback currency USD, got %v", event.Currency)
	}
	if event.Status != TransactionFailed {
		t.Fatalf("expected failed status, got %v", event.Status)
	}
}

func TestGenericProviderNormalizeRejectsInvalidJSON(t *testing.T) {
	p := NewGenericProvider("generic", "secret")
	if _, err := p.Normalize([]byte("not json")); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestMockProviderAlwaysVerifiesAndUsesIdentityMapping(t *testing.T) {
	p := NewMockProvider()
	if !p.Verify([]byte("anything"), "any-signature") {
		t.Fatalf("mock provider should bypass verification")
	}
	if p.Name() != ProviderMock {
		t.Fatalf("expected name %q, got %q", ProviderMock, p.Name())
	}

	payload, err := json.Marshal(map[string]any{"transaction_id": "tx_1", "status": "succeeded"})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	event, err := p.Normalize(payload)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if event.TransactionID != "tx_1" {
		t.Fatalf("expected identity-mapped transaction id, got %q", event.TransactionID)
	}
}
