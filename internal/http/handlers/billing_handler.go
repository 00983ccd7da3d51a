// Billing and gifting HTTP handlers.
//
// This file exposes the monetary endpoints:
//   - GET  /me/balance             (current token balance)
//   - POST /balance/topup          (initiate a provider-backed top-up)
//   - POST /tariffs/{id}/purchase  (buy a tariff with tokens)
//   - GET  /gifts                  (active gift catalog)
//   - POST /chats/{id}/gifts       (send a gift inside a chat)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amoria-app/backend/internal/domain"
	"github.com/amoria-app/backend/internal/services"
)

//
// DTOs
//

// BalanceResponse reports the caller's token balance.
type BalanceResponse struct {
	Tokens int64 `json:"tokens"`
}

// TopUpRequest asks for an invoice worth the given token amount.
type TopUpRequest struct {
	Tokens int64 `json:"tokens" binding:"required,min=1"`
}

// GiftCatalogResponse wraps the purchasable gifts.
type GiftCatalogResponse struct {
	Gifts []domain.Gift `json:"gifts"`
}

// SendGiftRequest names the gift and the recipient persona.
type SendGiftRequest struct {
	GiftID           string `json:"gift_id" binding:"required"`
	RecipientModelID string `json:"recipient_model_id" binding:"required"`
	LocalEntryID     string `json:"local_entry_id"`
}

//
// Handlers
//

// Balance returns the caller's current token balance.
func (h *Handlers) Balance(c *gin.Context) {
	tokens, err := h.billingSvc.Balance(c.Request.Context(), userID(c))
	if err != nil {
		if errors.Is(err, services.ErrProfileNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "account not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, BalanceResponse{Tokens: tokens})
}

// TopUp creates a pending top-up and asks the payment provider for an
// invoice. The credit lands later, when the provider's webhook confirms
// the payment.
func (h *Handlers) TopUp(c *gin.Context) {
	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tokens must be a positive integer")
		return
	}

	res, err := h.billingSvc.InitiateTopUp(c.Request.Context(), userID(c), req.Tokens)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "tokens must be a positive integer")
		case errors.Is(err, services.ErrProfileNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "account not found")
		case errors.Is(err, services.ErrPaymentProvider):
			fail(c, http.StatusBadGateway, ErrCodePaymentFailed, "payment provider rejected the invoice")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusAccepted, res)
}

// PurchaseTariff buys the tariff with tokens and extends the caller's
// subscription.
func (h *Handlers) PurchaseTariff(c *gin.Context) {
	sub, err := h.billingSvc.PurchaseTariff(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTariffNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "tariff not found")
		case errors.Is(err, services.ErrInsufficientFunds):
			fail(c, http.StatusPaymentRequired, ErrCodePaymentReq, "insufficient funds")
		case errors.Is(err, services.ErrProfileNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "account not found")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, sub)
}

// GiftCatalog returns the active gifts, cheapest first.
func (h *Handlers) GiftCatalog(c *gin.Context) {
	gifts, err := h.giftSvc.Catalog(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, GiftCatalogResponse{Gifts: gifts})
}

// SendGift debits the gift price and drops a gift entry into the chat,
// atomically. An insufficient balance leaves no trace.
func (h *Handlers) SendGift(c *gin.Context) {
	var req SendGiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "gift_id and recipient_model_id required")
		return
	}

	entry, err := h.giftSvc.Send(c.Request.Context(), userID(c), req.RecipientModelID, req.GiftID, c.Param("id"), req.LocalEntryID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrGiftNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "gift not found")
		case errors.Is(err, services.ErrProfileNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "recipient not found")
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		case errors.Is(err, services.ErrNotParticipant):
			fail(c, http.StatusForbidden, ErrCodeForbidden, "not a chat participant")
		case errors.Is(err, services.ErrInsufficientFunds):
			fail(c, http.StatusPaymentRequired, ErrCodePaymentReq, "insufficient funds")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSendFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, PostEntryResponse{Entry: entry, LocalEntryID: req.LocalEntryID})
}
