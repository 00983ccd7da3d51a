// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the append-only
// transaction ledger.
//
// Records are never deleted. Status moves forward only, through guarded
// UPDATEs keyed on the current status: zero rows affected means the record
// was not in the expected state, and the caller decides whether that is an
// idempotent no-op (duplicate webhook) or a conflict.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amoria-app/backend/internal/domain"
)

// TxnRefs carries the optional foreign references of a transaction record.
type TxnRefs struct {
	GiftID   *string
	ModelID  *string
	TariffID *string
	EntryID  *string
}

// CreateTransaction appends a ledger record. Tokens is the transacted amount
// snapshotted now; later catalog price edits never touch it.
func CreateTransaction(db *gorm.DB, accountID string, kind domain.TxnKind, status domain.TxnStatus, tokens int64, refs TxnRefs) (*domain.TransactionRecord, error) {
	now := time.Now().UTC()
	rec := &domain.TransactionRecord{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Kind:      kind,
		Status:    status,
		Tokens:    tokens,
		GiftID:    refs.GiftID,
		ModelID:   refs.ModelID,
		TariffID:  refs.TariffID,
		EntryID:   refs.EntryID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return rec, db.Create(rec).Error
}

// GetTransaction fetches a ledger record by ID, or ErrNotFound.
func GetTransaction(ctx context.Context, db *gorm.DB, id string) (*domain.TransactionRecord, error) {
	var rec domain.TransactionRecord
	if err := db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// TransitionStatus advances a record from one status to the next. It
// succeeds (true) only when the record currently holds `from`; a false
// return with nil error means some other transition won.
func TransitionStatus(db *gorm.DB, id string, from, to domain.TxnStatus) (bool, error) {
	res := db.Model(&domain.TransactionRecord{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListTransactions returns an account's ledger records, newest first.
func ListTransactions(ctx context.Context, db *gorm.DB, accountID string, offset, limit int) ([]domain.TransactionRecord, error) {
	var out []domain.TransactionRecord
	err := db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
