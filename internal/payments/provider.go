// Package payments integrates the external payment provider. The core only
// initiates invoices and answers pre-checkout queries; the provider owns the
// actual money movement and reports back through webhook-style calls
// correlated by the opaque payload's transaction id.
//
// Provider calls are network calls with bounded timeouts and must never run
// inside a database transaction: invoices are created before the credit
// transaction starts, and pre-checkout answers go out after the status
// transition has committed.
package payments

import (
	"context"
	"encoding/json"
	"errors"
)

// Operation names carried in invoice payloads.
const (
	OperationBalance = "balance"
	OperationTariff  = "tariff"
)

// Payload is the opaque correlation blob attached to every invoice and
// echoed back by the provider on pre-checkout and successful-payment calls.
type Payload struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
	Operation     string `json:"operation"`
}

// EncodePayload serializes a payload for the invoice.
func EncodePayload(p Payload) (string, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodePayload parses a provider-echoed payload. A blob without a
// transaction id is rejected; it cannot be correlated to a ledger record.
func DecodePayload(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, err
	}
	if p.TransactionID == "" {
		return Payload{}, errors.New("payload missing transaction id")
	}
	return p, nil
}

// Invoice describes a payment request for the provider.
type Invoice struct {
	// TelegramID is the payer's Telegram user id (the invoice chat).
	TelegramID int64
	// Title and Description render on the provider's payment screen.
	Title       string
	Description string
	// Tokens is the token amount being purchased; also the invoice price.
	Tokens int64
	// Payload is the encoded correlation blob.
	Payload string
}

// Disabled is a Provider for deployments without payment credentials.
// Every invoice attempt fails; pre-checkout answers are swallowed.
type Disabled struct{}

// CreateInvoice always fails: no provider is configured.
func (Disabled) CreateInvoice(ctx context.Context, inv Invoice) (string, error) {
	return "", errors.New("payments disabled")
}

// AnswerPreCheckout is a no-op without a provider.
func (Disabled) AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errMsg string) error {
	return nil
}

// Provider is the narrow contract the billing orchestrator depends on.
type Provider interface {
	// CreateInvoice requests an invoice from the provider and returns an
	// opaque handle for the client (message id, deep link, or similar).
	CreateInvoice(ctx context.Context, inv Invoice) (string, error)

	// AnswerPreCheckout answers a pre-checkout query synchronously.
	AnswerPreCheckout(ctx context.Context, queryID string, ok bool, errMsg string) error
}
