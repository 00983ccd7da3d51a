// Telegram webhook handler.
//
// POST /telegram/webhook receives Bot API updates. Only two update kinds
// matter to billing:
//
//   - pre_checkout_query: the provider asks whether the payment may
//     proceed. The answer mirrors the pending → pre-checkout transition
//     and must reach Telegram within its 10-second window.
//   - successful_payment: the provider confirms money moved; the matching
//     transaction is captured and the balance credited. Telegram redelivers
//     on non-200 answers, so the handler answers 200 once the update is
//     settled (captured, a duplicate, or unfixable) and 500 on transient
//     failures, letting redelivery retry into the idempotent capture path.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/amoria-app/backend/internal/http/middleware"
	"github.com/amoria-app/backend/internal/payments"
	"github.com/amoria-app/backend/internal/services"
)

// TelegramWebhook dispatches a Bot API update to the billing flows.
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update payload")
		return
	}

	switch {
	case update.PreCheckoutQuery != nil:
		h.handlePreCheckout(c, update.PreCheckoutQuery)
	case update.Message != nil && update.Message.SuccessfulPayment != nil:
		if !h.handleSuccessfulPayment(c, update.Message.SuccessfulPayment) {
			// Error response already written; Telegram will redeliver.
			return
		}
	}

	// Unhandled update kinds are acknowledged too; Telegram should not
	// redeliver them.
	ok(c, http.StatusOK, gin.H{"ok": true})
}

// handlePreCheckout answers the provider's go/no-go query for a pending
// top-up.
func (h *Handlers) handlePreCheckout(c *gin.Context, q *tgbotapi.PreCheckoutQuery) {
	lg := middleware.LoggerFrom(c)
	ctx := c.Request.Context()

	payload, err := payments.DecodePayload(q.InvoicePayload)
	if err != nil {
		lg.Warn().Err(err).Str("query_id", q.ID).Msg("pre-checkout payload rejected")
		_ = h.provider.AnswerPreCheckout(ctx, q.ID, false, "unrecognized payment")
		return
	}

	allowed, err := h.billingSvc.PreCheckout(ctx, payload.TransactionID)
	if err != nil {
		lg.Warn().Err(err).Str("txn_id", payload.TransactionID).Msg("pre-checkout lookup failed")
		allowed = false
	}

	errMsg := ""
	if !allowed {
		errMsg = "payment can no longer be processed"
	}
	if err := h.provider.AnswerPreCheckout(ctx, q.ID, allowed, errMsg); err != nil {
		lg.Warn().Err(err).Str("query_id", q.ID).Msg("pre-checkout answer failed")
	}
}

// handleSuccessfulPayment captures the confirmed transaction. Duplicate
// deliveries are no-ops inside Capture. It reports whether the update is
// settled; false means a 500 was written and the provider should redeliver.
func (h *Handlers) handleSuccessfulPayment(c *gin.Context, sp *tgbotapi.SuccessfulPayment) bool {
	lg := middleware.LoggerFrom(c)

	payload, err := payments.DecodePayload(sp.InvoicePayload)
	if err != nil {
		// Unparseable payloads never become parseable; acknowledge.
		lg.Warn().Err(err).Msg("successful-payment payload rejected")
		return true
	}

	if err := h.billingSvc.Capture(c.Request.Context(), payload.TransactionID); err != nil {
		switch {
		case errors.Is(err, services.ErrTxnNotFound), errors.Is(err, services.ErrTxnConflict):
			// Terminal: redelivering the same update cannot change the
			// outcome, and a non-200 would make Telegram retry forever.
			lg.Error().Err(err).Str("txn_id", payload.TransactionID).Msg("payment capture rejected")
			return true
		default:
			lg.Error().Err(err).Str("txn_id", payload.TransactionID).Msg("payment capture failed; requesting redelivery")
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "payment capture failed")
			return false
		}
	}
	lg.Info().Str("txn_id", payload.TransactionID).Msg("payment captured")
	return true
}
