// Package services – BillingService
//
// This file implements the monetary orchestrators around the transaction
// ledger: the three-phase balance top-up driven by the external payment
// provider (initiate → pre-checkout → capture), and the tariff purchase
// that debits the balance and extends the subscription.
//
// The top-up state machine is explicit: pending → pre-checkout →
// {completed, failed}, each transition a guarded idempotent operation keyed
// by transaction id. A credit never occurs without a matching completed
// record, and a record is never completed twice: a duplicate
// successful-payment webhook is a no-op, not a double credit.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/amoria-app/backend/internal/domain"
	"github.com/amoria-app/backend/internal/observability"
	"github.com/amoria-app/backend/internal/payments"
	"github.com/amoria-app/backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// BillingService owns balances, the top-up lifecycle, and tariff purchases.
type BillingService struct {
	DB       *gorm.DB
	Provider payments.Provider

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

// NewBillingService constructs a BillingService.
func NewBillingService(db *gorm.DB, provider payments.Provider) *BillingService {
	return &BillingService{DB: db, Provider: provider}
}

// Balance returns the account's current token balance.
func (s *BillingService) Balance(ctx context.Context, accountID string) (int64, error) {
	tokens, err := repo.GetBalance(ctx, s.DB, accountID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, ErrProfileNotFound
	}
	return tokens, err
}

// TopUpResult is the outcome of an initiated top-up.
type TopUpResult struct {
	TransactionID string `json:"transaction_id"`
	InvoiceHandle string `json:"invoice_handle"`
}

// InitiateTopUp creates a pending ledger record and asks the provider for
// an invoice. The invoice call runs after the record exists and outside any
// database transaction; when the provider rejects, the record is marked
// failed and ErrPaymentProvider is returned.
func (s *BillingService) InitiateTopUp(ctx context.Context, accountID string, tokens int64) (*TopUpResult, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "InitiateTopUp",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.Int64("tokens", tokens),
		),
	)
	defer span.End()

	if tokens <= 0 {
		return nil, ErrValidation
	}
	account, err := repo.GetUserProfile(ctx, s.DB, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}

	rec, err := repo.CreateTransaction(s.DB.WithContext(ctx), accountID, domain.TxnKindBalance, domain.TxnStatusPending, tokens, repo.TxnRefs{})
	if err != nil {
		return nil, err
	}

	payload, err := payments.EncodePayload(payments.Payload{
		TransactionID: rec.ID,
		AccountID:     accountID,
		Operation:     payments.OperationBalance,
	})
	if err != nil {
		return nil, err
	}

	handle, err := s.Provider.CreateInvoice(ctx, payments.Invoice{
		TelegramID:  account.TelegramID,
		Title:       "Token top-up",
		Description: fmt.Sprintf("%d tokens", tokens),
		Tokens:      tokens,
		Payload:     payload,
	})
	if err != nil {
		if _, terr := repo.TransitionStatus(s.DB.WithContext(ctx), rec.ID, domain.TxnStatusPending, domain.TxnStatusFailed); terr != nil {
			log.Error().Err(terr).Str("txn_id", rec.ID).Msg("mark top-up failed")
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentProvider, err)
	}

	return &TopUpResult{TransactionID: rec.ID, InvoiceHandle: handle}, nil
}

// PreCheckout answers the provider's "can this succeed?" query. The answer
// is yes exactly when the pending → pre-checkout transition lands; a query
// repeated for a record already in pre-checkout also answers yes, so a
// duplicated query is harmless.
func (s *BillingService) PreCheckout(ctx context.Context, transactionID string) (bool, error) {
	moved, err := repo.TransitionStatus(s.DB.WithContext(ctx), transactionID, domain.TxnStatusPending, domain.TxnStatusPreCheckout)
	if err != nil {
		return false, err
	}
	if moved {
		return true, nil
	}
	rec, err := repo.GetTransaction(ctx, s.DB, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrTxnNotFound
		}
		return false, err
	}
	return rec.Status == domain.TxnStatusPreCheckout, nil
}

// Capture finalizes a successful payment: in one transaction the record is
// completed and the balance credited by the recorded token amount. A
// repeat delivery for an already-completed record returns nil without
// crediting again.
func (s *BillingService) Capture(ctx context.Context, transactionID string) error {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "Capture",
		trace.WithAttributes(attribute.String("txn.id", transactionID)),
	)
	defer span.End()

	var credited int64
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		moved, err := repo.TransitionStatus(tx, transactionID, domain.TxnStatusPreCheckout, domain.TxnStatusCompleted)
		if err != nil {
			return err
		}
		if !moved {
			// Classify on the row's current status, not a pre-transition
			// read; a racing capture may have completed it just now.
			rec, err := repo.GetTransaction(ctx, tx, transactionID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrTxnNotFound
				}
				return err
			}
			if rec.Status == domain.TxnStatusCompleted {
				// Duplicate webhook delivery: already credited once.
				log.Info().Str("txn_id", transactionID).Msg("duplicate capture ignored")
				return nil
			}
			return ErrTxnConflict
		}

		rec, err := repo.GetTransaction(ctx, tx, transactionID)
		if err != nil {
			return err
		}
		if err := repo.Credit(tx, rec.AccountID, rec.Tokens); err != nil {
			return err
		}
		credited = rec.Tokens
		return nil
	})
	if err != nil {
		return err
	}
	if credited > 0 {
		observability.TokensCredited.Add(float64(credited))
	}
	return nil
}

// PurchaseTariff buys tariffID with tokens: one transaction debits the
// price, appends the completed ledger record (price snapshotted), extends
// the subscription from max(now, current expiration), and points the quota
// assignment at the tariff without granting a second daily allowance.
func (s *BillingService) PurchaseTariff(ctx context.Context, accountID, tariffID string) (*domain.Subscription, error) {
	tr := otel.Tracer("services/BillingService")
	ctx, span := tr.Start(ctx, "PurchaseTariff",
		trace.WithAttributes(
			attribute.String("account.id", accountID),
			attribute.String("tariff.id", tariffID),
		),
	)
	defer span.End()

	tariff, err := repo.GetTariff(ctx, s.DB, tariffID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTariffNotFound
		}
		return nil, err
	}
	if !tariff.Active {
		return nil, ErrTariffNotFound
	}

	now := s.clock().UTC()
	var sub *domain.Subscription
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.Debit(tx, accountID, tariff.Price); err != nil {
			switch {
			case errors.Is(err, repo.ErrInsufficientFunds):
				return ErrInsufficientFunds
			case errors.Is(err, gorm.ErrRecordNotFound):
				return ErrProfileNotFound
			}
			return err
		}
		if _, err := repo.CreateTransaction(tx, accountID, domain.TxnKindTariff, domain.TxnStatusCompleted, tariff.Price, repo.TxnRefs{
			TariffID: &tariff.ID,
		}); err != nil {
			return err
		}
		duration := time.Duration(tariff.DurationDays) * 24 * time.Hour
		extended, err := repo.ExtendSubscription(tx, accountID, tariff.ID, duration, now)
		if err != nil {
			return err
		}
		if err := repo.UpsertAssignment(tx, accountID, tariff.ID, now); err != nil {
			return err
		}
		sub = extended
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.TokensDebited.WithLabelValues(string(domain.TxnKindTariff)).Add(float64(tariff.Price))
	return sub, nil
}

func (s *BillingService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
