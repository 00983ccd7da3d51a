// Package payments integrates the external payment provider. This file is
// the Telegram Payments implementation: invoices are sent into the payer's
// bot chat and pre-checkout queries are answered through the Bot API.
package payments

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// Telegram implements Provider over the Telegram Bot API.
type Telegram struct {
	bot           *tgbotapi.BotAPI
	currency      string
	providerToken string
}

// NewTelegram wires a Telegram provider. currency is an ISO 4217 code (or
// "XTR" for Telegram Stars, in which case providerToken stays empty).
func NewTelegram(bot *tgbotapi.BotAPI, currency, providerToken string) *Telegram {
	return &Telegram{bot: bot, currency: currency, providerToken: providerToken}
}

// CreateInvoice sends an invoice message into the payer's bot chat and
// returns the message id as the handle.
func (t *Telegram) CreateInvoice(ctx context.Context, inv Invoice) (string, error) {
	if inv.TelegramID == 0 {
		return "", fmt.Errorf("invoice needs a telegram user id")
	}
	cfg := tgbotapi.NewInvoice(
		inv.TelegramID,
		inv.Title,
		inv.Description,
		inv.Payload,
		t.providerToken,
		"", // no deep-link start parameter
		t.currency,
		[]tgbotapi.LabeledPrice{{Label: inv.Title, Amount: int(inv.Tokens)}},
	)

	msg, err := t.bot.Send(cfg)
	if err != nil {
		return "", fmt.Errorf("send invoice: %w", err)
	}
	return strconv.Itoa(msg.MessageID), nil
}

// AnswerPreCheckout answers a pre-checkout query. Telegram requires the
// answer within 10 seconds; a failed answer is logged by the caller and the
// query simply expires on the provider side.
func (t *Telegram) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errMsg string) error {
	cfg := tgbotapi.PreCheckoutConfig{
		PreCheckoutQueryID: queryID,
		OK:                 ok,
		ErrorMessage:       errMsg,
	}
	if _, err := t.bot.Request(cfg); err != nil {
		log.Warn().Err(err).Str("query_id", queryID).Msg("answer pre-checkout failed")
		return err
	}
	return nil
}
