// Package webhookcontrollers wires the HTTP transport for the webhook intake path (§4.1, §6):
// POST /webhooks/payment/<provider>, always 200 except for internal exceptions.
package webhookcontrollers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/s8nclone/receipt-pipeline/api/responses"
	"github.com/s8nclone/receipt-pipeline/internal/payment"
	"github.com/s8nclone/receipt-pipeline/internal/webhooks"
	"github.com/s8nclone/receipt-pipeline/pkg/config"
	pkgerrors "github.com/s8nclone/receipt-pipeline/pkg/errors"
	"github.com/s8nclone/receipt-pipeline/pkg/enums"
	"github.com/s8nclone/receipt-pipeline/pkg/logger"
)

// PaymentWebhook builds the intake handler for POST /webhooks/payment/{provider} (§4.1, §6).
func PaymentWebhook(
	registry *webhooks.Registry,
	guard *webhooks.PreCheckGuard,
	repo *webhooks.Repository,
	paymentSvc *payment.Service,
	cfg config.WebhookConfig,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		providerName := chi.URLParam(r, "provider")

		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxBodyBytes)
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			writeResult(w, http.StatusOK, webhooks.Result{Success: false, Type: enums.ResultValidationFailed, Message: "payload too large or unreadable"})
			return
		}

		webhookID := r.Header.Get("x-webhook-id")
		if webhookID == "" {
			webhookID = synthesizeWebhookID()
		}

		provider, err := registry.Resolve(providerName)
		if err != nil {
			writeResult(w, http.StatusOK, webhooks.Result{Success: false, Type: enums.ResultInvalidSignature, Message: "unknown provider"})
			return
		}

		signature := r.Header.Get("x-signature")
		if provider.Name() != webhooks.ProviderMock && !provider.Verify(payload, signature) {
			if _, insErr := repo.Insert(webhooks.InsertParams{
				WebhookID:  webhookID,
				Provider:   providerName,
				EventType:  "unknown",
				RawPayload: payload,
				Signature:  signature,
				SigValid:   false,
			}); insErr != nil && logg != nil {
				logg.Error(ctx, "failed to log invalid-signature webhook", insErr)
			}
			writeResult(w, http.StatusOK, webhooks.Result{Success: false, Type: enums.ResultInvalidSignature})
			return
		}

		if guard != nil {
			alreadySeen, gErr := guard.CheckAndMark(ctx, webhookID)
			if gErr != nil && logg != nil {
				logg.Error(ctx, "webhook idempotency pre-check failed", gErr)
			}
			if alreadySeen {
				writeResult(w, http.StatusOK, webhooks.Result{Success: true, Type: enums.ResultDuplicate})
				return
			}
		}

		if existing, fErr := repo.FindByWebhookID(webhookID); fErr != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, fErr, "check webhook duplicate"))
			return
		} else if existing != nil {
			writeResult(w, http.StatusOK, webhooks.Result{Success: true, Type: enums.ResultDuplicate})
			return
		}

		event, err := provider.Normalize(payload)
		if err != nil {
			if _, insErr := repo.Insert(webhooks.InsertParams{
				WebhookID:  webhookID,
				Provider:   providerName,
				EventType:  "unknown",
				RawPayload: payload,
				Signature:  signature,
				SigValid:   true,
			}); insErr != nil && logg != nil {
				logg.Error(ctx, "failed to log unparseable webhook", insErr)
			}
			writeResult(w, http.StatusOK, webhooks.Result{Success: false, Type: enums.ResultValidationFailed, Message: "unrecognized payload shape"})
			return
		}

		orderID, err := uuid.Parse(event.OrderID)
		if err != nil {
			row, insErr := repo.Insert(webhooks.InsertParams{
				WebhookID:  webhookID,
				Provider:   providerName,
				EventType:  event.EventType,
				RawPayload: payload,
				Signature:  signature,
				SigValid:   true,
			})
			if insErr != nil && logg != nil {
				logg.Error(ctx, "failed to log invalid-order-id webhook", insErr)
			} else if row != nil {
				markErr := repo.MarkOutcome(row.ID, enums.WebhookOutcomeValidationFailed, false, "invalid order id", nil, nil)
				if markErr != nil && logg != nil {
					logg.Error(ctx, "failed to mark invalid-order-id webhook outcome", markErr)
				}
			}
			writeResult(w, http.StatusOK, webhooks.Result{Success: false, Type: enums.ResultValidationFailed, Message: "invalid order id"})
			return
		}

		row, err := repo.Insert(webhooks.InsertParams{
			WebhookID:  webhookID,
			Provider:   providerName,
			EventType:  event.EventType,
			RawPayload: payload,
			Signature:  signature,
			SigValid:   true,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record webhook"))
			return
		}

		in := payment.CommitInput{
			OrderID:       orderID,
			TransactionID: event.TransactionID,
			Provider:      providerName,
			Amount:        event.Amount,
			Currency:      event.Currency,
			WebhookLogID:  row.ID,
		}

		switch event.Status {
		case webhooks.TransactionSucceeded:
			dispatchSucceeded(ctx, w, logg, repo, paymentSvc, row.ID, orderID, in)
		case webhooks.TransactionFailed:
			dispatchFailed(ctx, w, logg, repo, paymentSvc, row.ID, orderID, in)
		default:
			if err := repo.MarkOutcome(row.ID, enums.WebhookOutcomeIgnored, true, "", &orderID, nil); err != nil && logg != nil {
				logg.Error(ctx, "failed to mark ignored webhook outcome", err)
			}
			writeResult(w, http.StatusOK, webhooks.Result{Success: true, Type: enums.ResultIgnored})
		}
	}
}

func dispatchSucceeded(
	ctx context.Context,
	w http.ResponseWriter,
	logg *logger.Logger,
	repo *webhooks.Repository,
	paymentSvc *payment.Service,
	webhookLogID uuid.UUID,
	orderID uuid.UUID,
	in payment.CommitInput,
) {
	result, err := paymentSvc.Commit(ctx, in)
	if err != nil {
		if incErr := repo.IncrementProcessingAttempts(webhookLogID); incErr != nil && logg != nil {
			logg.Error(ctx, "failed to increment webhook processing attempts", incErr)
		}
		if markErr := repo.MarkOutcome(webhookLogID, enums.WebhookOutcomeProcessingFailed, false, err.Error(), &orderID, nil); markErr != nil && logg != nil {
			logg.Error(ctx, "failed to mark processing-failed webhook outcome", markErr)
		}
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "commit payment"))
		return
	}

	switch result.Type {
	case payment.ResultProcessed:
		if err := repo.MarkOutcome(webhookLogID, enums.WebhookOutcomeSuccess, true, "", result.OrderID, &in.TransactionID); err != nil && logg != nil {
			logg.Error(ctx, "failed to mark processed webhook outcome", err)
		}
		writeResult(w, http.StatusOK, webhooks.Result{Success: true, Type: enums.ResultProcessed, Data: map[string]any{"receipt_id": result.ReceiptID}})
	case payment.ResultAlreadyProcessed:
		if err := repo.MarkOutcome(webhookLogID, enums.WebhookOutcomeSuccess, true, "", result.OrderID, &in.TransactionID); err != nil && logg != nil {
			logg.Error(ctx, "failed to mark already-processed webhook outcome", err)
		}
		writeResult(w, http.StatusOK, webhooks.Result{Success: true, Type: enums.ResultAlreadyProcessed, Data: map[string]any{"receipt_id": result.ReceiptID}})
	default: // payment.ResultValidationFailed
		if err := repo.MarkOutcome(webhookLogID, enums.WebhookOutcomeValidationFailed, false, result.Message, result.OrderID, nil); err != nil && logg != nil {
			logg.Error(ctx, "failed to mark validation-failed webhook outcome", err)
		}
		writeResult(w, http.StatusOK, webhooks.Result{
			Success: false,
			Type:    enums.ResultValidationFailed,
			Message: result.Message,
			Data:    map[string]any{"requires_refund": result.RequiresRefund},
		})
	}
}

func dispatchFailed(
	ctx context.Context,
	w http.ResponseWriter,
	logg *logger.Logger,
	repo *webhooks.Repository,
	paymentSvc *payment.Service,
	webhookLogID uuid.UUID,
	orderID uuid.UUID,
	in payment.CommitInput,
) {
	if err := paymentSvc.RecordFailedPayment(ctx, in); err != nil {
		if incErr := repo.IncrementProcessingAttempts(webhookLogID); incErr != nil && logg != nil {
			logg.Error(ctx, "failed to increment webhook processing attempts", incErr)
		}
		if markErr := repo.MarkOutcome(webhookLogID, enums.WebhookOutcomeProcessingFailed, false, err.Error(), &orderID, nil); markErr != nil && logg != nil {
			logg.Error(ctx, "failed to mark processing-failed webhook outcome", markErr)
		}
		responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record failed payment"))
		return
	}

	if err := repo.MarkOutcome(webhookLogID, enums.WebhookOutcomeSuccess, true, "", &orderID, &in.TransactionID); err != nil && logg != nil {
		logg.Error(ctx, "failed to mark payment-failed webhook outcome", err)
	}
	writeResult(w, http.StatusOK, webhooks.Result{Success: true, Type: enums.ResultPaymentFailed})
}

func writeResult(w http.ResponseWriter, status int, result webhooks.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(result)
}

// synthesizeWebhookID builds a webhook_<timestamp>_<random> id when a provider omits x-webhook-id
// (§4.1: "the synthesized value must still be unique").
func synthesizeWebhookID() string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return fmt.Sprintf("webhook_%d_%s", time.Now().UnixNano(), hex.EncodeToString(buf[:]))
}
