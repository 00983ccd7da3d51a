// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for token
// balances.
//
// Debits are guarded by the UPDATE statement itself: the row only changes
// when the resulting balance stays non-negative, and the rows-affected count
// tells the caller whether the debit happened. A pre-read of the balance is
// never authoritative under concurrency.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/amoria-app/backend/internal/domain"
)

// ErrInsufficientFunds is returned by Debit when the guarded update would
// take the balance below zero.
var ErrInsufficientFunds = errors.New("insufficient funds")

// CreateBalance inserts the zero-token wallet row for a new account.
func CreateBalance(ctx context.Context, db *gorm.DB, accountID string) error {
	return db.WithContext(ctx).Create(&domain.Balance{
		AccountID: accountID,
		Tokens:    0,
		UpdatedAt: time.Now().UTC(),
	}).Error
}

// GetBalance returns the account's current token amount, or ErrNotFound.
func GetBalance(ctx context.Context, db *gorm.DB, accountID string) (int64, error) {
	var b domain.Balance
	if err := db.WithContext(ctx).Where("account_id = ?", accountID).First(&b).Error; err != nil {
		return 0, err
	}
	return b.Tokens, nil
}

// Debit subtracts amount from the account's balance. The WHERE clause keeps
// the balance non-negative; zero rows affected distinguishes an insufficient
// balance from a missing wallet row.
//
// Must run inside the same transaction as the operation justifying the
// debit (gift send, tariff purchase); a debit with no corresponding ledger
// effect is a correctness bug.
func Debit(db *gorm.DB, accountID string, amount int64) error {
	res := db.Model(&domain.Balance{}).
		Where("account_id = ? AND tokens >= ?", accountID, amount).
		Updates(map[string]any{
			"tokens":     gorm.Expr("tokens - ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := db.Model(&domain.Balance{}).Where("account_id = ?", accountID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrInsufficientFunds
	}
	return nil
}

// Credit adds amount to the account's balance. Zero rows affected means the
// wallet row is missing.
func Credit(db *gorm.DB, accountID string, amount int64) error {
	res := db.Model(&domain.Balance{}).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"tokens":     gorm.Expr("tokens + ?", amount),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
