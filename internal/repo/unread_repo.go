// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for unread
// markers: the per-(recipient, entry) rows whose existence means "not yet
// read".
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amoria-app/backend/internal/domain"
)

// MarkUnread bulk-inserts one marker per recipient for the given entry.
// Conflicting (recipient, entry) pairs are silently skipped so concurrent
// duplicate attempts never error.
func MarkUnread(db *gorm.DB, chatID, entryID string, recipientIDs []string) error {
	if len(recipientIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	rows := make([]domain.UnreadMarker, 0, len(recipientIDs))
	for _, rid := range recipientIDs {
		rows = append(rows, domain.UnreadMarker{
			ID:          uuid.NewString(),
			RecipientID: rid,
			EntryID:     entryID,
			ChatID:      chatID,
			CreatedAt:   now,
		})
	}
	return db.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// MarkRead bulk-deletes the recipient's markers for entryIDs. Ids without a
// marker are not an error; already-read is not a failure.
func MarkRead(ctx context.Context, db *gorm.DB, recipientID string, entryIDs []string) error {
	if len(entryIDs) == 0 {
		return nil
	}
	return db.WithContext(ctx).
		Where("recipient_id = ? AND entry_id IN ?", recipientID, entryIDs).
		Delete(&domain.UnreadMarker{}).Error
}

// CountUnread returns the recipient's total unread count, optionally scoped
// to one chat.
func CountUnread(ctx context.Context, db *gorm.DB, recipientID string, chatID *string) (int64, error) {
	q := db.WithContext(ctx).
		Model(&domain.UnreadMarker{}).
		Where("recipient_id = ?", recipientID)
	if chatID != nil {
		q = q.Where("chat_id = ?", *chatID)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// CountUnreadByChat returns the recipient's unread counts grouped per chat.
func CountUnreadByChat(ctx context.Context, db *gorm.DB, recipientID string) (map[string]int64, error) {
	type row struct {
		ChatID string
		N      int64
	}
	var rows []row
	err := db.WithContext(ctx).
		Model(&domain.UnreadMarker{}).
		Select("chat_id, COUNT(*) as n").
		Where("recipient_id = ?", recipientID).
		Group("chat_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, r := range rows {
		out[r.ChatID] = r.N
	}
	return out, nil
}

// UnreadEntryIDs returns which of entryIDs are still unread for the
// recipient. Used to compute the is_read flag when listing entries.
func UnreadEntryIDs(ctx context.Context, db *gorm.DB, recipientID string, entryIDs []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.UnreadMarker{}).
		Where("recipient_id = ? AND entry_id IN ?", recipientID, entryIDs).
		Pluck("entry_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}
