package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/s8nclone/receipt-pipeline/pkg/enums"
)

const ProviderMock = "mock"

// Provider verifies and normalizes one payment provider's webhook payloads (§4.1, §6). Verify
// must run a constant-time comparison — never short-circuit on the first mismatched byte — so
// timing does not leak signature material (§8's timing test).
type Provider interface {
	Name() string
	Verify(payload []byte, signature string) bool
	Normalize(payload []byte) (NormalizedEvent, error)
}

// hmacProvider implements the spec's default algorithm: hex(HMAC-SHA256(secret, rawPayload))
// compared in constant time, with identity-mapped JSON normalization over the canonical keys
// (§4.1 step 2-3, §6 "unknown providers use identity mapping").
type hmacProvider struct {
	name   string
	secret string
}

// NewGenericProvider builds a Provider for any payment source that signs with a plain
// HMAC-SHA256 hex digest and emits the canonical payload shape directly.
func NewGenericProvider(name, secret string) Provider {
	return &hmacProvider{name: name, secret: secret}
}

func (p *hmacProvider) Name() string { return p.name }

func (p *hmacProvider) Verify(payload []byte, signature string) bool {
	return verifyHMACHex(p.secret, payload, signature)
}

func (p *hmacProvider) Normalize(payload []byte) (NormalizedEvent, error) {
	var raw struct {
		TransactionID string          `json:"transaction_id"`
		OrderID       string          `json:"order_id"`
		Status        string          `json:"status"`
		Amount        decimal.Decimal `json:"amount"`
		Currency      string          `json:"currency"`
		Type          string          `json:"type"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return NormalizedEvent{}, fmt.Errorf("decode %s payload: %w", p.name, err)
	}

	currency, err := enums.ParseCurrency(strings.ToUpper(raw.Currency))
	if err != nil {
		currency = enums.CurrencyUSD
	}

	status := TransactionFailed
	if raw.Status == string(TransactionSucceeded) {
		status = TransactionSucceeded
	}

	return NormalizedEvent{
		TransactionID: raw.TransactionID,
		OrderID:       raw.OrderID,
		Status:        status,
		Amount:        raw.Amount,
		Currency:      currency,
		EventType:     raw.Type,
	}, nil
}

// stripeProvider verifies with Stripe's real timestamped-signature scheme (via stripe-go's
// webhook package) rather than the plain hex-HMAC default, since Stripe signs that way; it then
// normalizes the payment_intent event shape into the canonical record.
type stripeProvider struct {
	secret string
}

func NewStripeProvider(secret string) Provider {
	return &stripeProvider{secret: secret}
}

func (p *stripeProvider) Name() string { return "stripe" }

func (p *stripeProvider) Verify(payload []byte, signature string) bool {
	_, err := webhook.ConstructEvent(payload, signature, p.secret)
	return err == nil
}

func (p *stripeProvider) Normalize(payload []byte) (NormalizedEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return NormalizedEvent{}, fmt.Errorf("decode stripe event: %w", err)
	}

	var object struct {
		ID       string `json:"id"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
		Metadata struct {
			OrderID string `json:"order_id"`
		} `json:"metadata"`
	}
	if event.Data != nil {
		if err := json.Unmarshal(event.Data.Raw, &object); err != nil {
			return NormalizedEvent{}, fmt.Errorf("decode stripe object: %w", err)
		}
	}

	status := TransactionFailed
	if event.Type == "payment_intent.succeeded" {
		status = TransactionSucceeded
	}

	currency, err := enums.ParseCurrency(strings.ToUpper(object.Currency))
	if err != nil {
		currency = enums.CurrencyUSD
	}

	return NormalizedEvent{
		TransactionID: object.ID,
		OrderID:       object.Metadata.OrderID,
		Status:        status,
		Amount:        decimal.New(object.Amount, -2),
		Currency:      currency,
		EventType:     string(event.Type),
	}, nil
}

// mockProvider bypasses signature verification entirely; the intake only reaches it when
// config.WebhookConfig.AllowMockProvider is set (§4.1 step 1, off in production).
type mockProvider struct{}

func NewMockProvider() Provider { return &mockProvider{} }

func (p *mockProvider) Name() string                  { return ProviderMock }
func (p *mockProvider) Verify(_ []byte, _ string) bool { return true }

func (p *mockProvider) Normalize(payload []byte) (NormalizedEvent, error) {
	return (&hmacProvider{name: ProviderMock}).Normalize(payload)
}

// verifyHMACHex compares hex(HMAC-SHA256(secret, payload)) against signature using hmac.Equal,
// which runs in constant time regardless of where the first differing byte falls.
func verifyHMACHex(secret string, payload []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
