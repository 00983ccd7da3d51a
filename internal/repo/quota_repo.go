// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the per-account
// daily send quota (TariffAssignment rows).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amoria-app/backend/internal/domain"
)

// GetAssignment returns the account's tariff assignment with its tariff
// preloaded, or ErrNotFound when the account has no active tariff.
func GetAssignment(ctx context.Context, db *gorm.DB, accountID string) (*domain.TariffAssignment, error) {
	var a domain.TariffAssignment
	err := db.WithContext(ctx).
		Preload("Tariff").
		Where("account_id = ?", accountID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ResetAssignment zeroes the daily counter and stamps the reset date. Run
// inside the same transaction as the send that triggered the reset.
func ResetAssignment(db *gorm.DB, assignmentID string, resetDate time.Time) error {
	return db.Model(&domain.TariffAssignment{}).
		Where("id = ?", assignmentID).
		Updates(map[string]any{
			"entries_sent_today": 0,
			"last_reset_date":    resetDate,
			"updated_at":         time.Now().UTC(),
		}).Error
}

// IncrementSentToday bumps the counter only while it is still below limit;
// the rows-affected result is the authoritative quota guard under
// concurrent sends from the same account.
func IncrementSentToday(db *gorm.DB, assignmentID string, limit int) (bool, error) {
	res := db.Model(&domain.TariffAssignment{}).
		Where("id = ? AND entries_sent_today < ?", assignmentID, limit).
		Updates(map[string]any{
			"entries_sent_today": gorm.Expr("entries_sent_today + 1"),
			"updated_at":         time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// UpsertAssignment points the account's quota row at tariffID, creating it
// with a fresh counter when absent. An existing counter is kept: switching
// tariffs mid-day does not grant a second allowance.
func UpsertAssignment(db *gorm.DB, accountID, tariffID string, resetDate time.Time) error {
	now := time.Now().UTC()
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}},
		DoUpdates: clause.Assignments(map[string]any{"tariff_id": tariffID, "updated_at": now}),
	}).Create(&domain.TariffAssignment{
		ID:               uuid.NewString(),
		AccountID:        accountID,
		TariffID:         tariffID,
		EntriesSentToday: 0,
		LastResetDate:    resetDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}).Error
}
