// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for chat entries
// and their attachment links.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amoria-app/backend/internal/domain"
)

// CreateEntry inserts a new chat entry row. Exactly one of body/giftID
// carries the content; the service layer enforces that before calling.
func CreateEntry(db *gorm.DB, chatID, senderID string, typ domain.EntryType, body, giftID *string) (*domain.ChatEntry, error) {
	e := &domain.ChatEntry{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  senderID,
		Type:      typ,
		Body:      body,
		GiftID:    giftID,
		CreatedAt: time.Now().UTC(),
	}
	return e, db.Create(e).Error
}

// LinkAttachments inserts the entry↔file link rows for fileIDs.
func LinkAttachments(db *gorm.DB, entryID string, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return nil
	}
	now := time.Now().UTC()
	links := make([]domain.EntryAttachment, 0, len(fileIDs))
	for _, fid := range fileIDs {
		links = append(links, domain.EntryAttachment{EntryID: entryID, FileID: fid, CreatedAt: now})
	}
	return db.Create(&links).Error
}

// GetEntry fetches an entry by ID.
func GetEntry(db *gorm.DB, id string) (*domain.ChatEntry, error) {
	var e domain.ChatEntry
	if err := db.Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// CountEntries uses a raw COUNT so a missing table surfaces as an error.
func CountEntries(db *gorm.DB, chatID string) (int64, error) {
	var total int64
	err := db.Raw("SELECT COUNT(*) FROM chat_entries WHERE chat_id = ? AND deleted_at IS NULL", chatID).Scan(&total).Error
	return total, err
}

// ListEntriesWindow returns entries ordered deterministically
// (CreatedAt ASC, ID ASC) within [offset, offset+limit).
func ListEntriesWindow(db *gorm.DB, chatID string, offset, limit int) ([]domain.ChatEntry, error) {
	var out []domain.ChatEntry
	err := db.
		Where("chat_id = ?", chatID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// AttachmentsFor returns the files linked to each of entryIDs, keyed by
// entry id. Missing file rows are skipped; metadata is owned externally.
func AttachmentsFor(ctx context.Context, db *gorm.DB, entryIDs []string) (map[string][]domain.File, error) {
	out := make(map[string][]domain.File, len(entryIDs))
	if len(entryIDs) == 0 {
		return out, nil
	}
	var links []domain.EntryAttachment
	if err := db.WithContext(ctx).Where("entry_id IN ?", entryIDs).Find(&links).Error; err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return out, nil
	}
	fileIDs := make([]string, 0, len(links))
	for _, l := range links {
		fileIDs = append(fileIDs, l.FileID)
	}
	var files []domain.File
	if err := db.WithContext(ctx).Where("id IN ?", fileIDs).Find(&files).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]domain.File, len(files))
	for _, f := range files {
		byID[f.ID] = f
	}
	for _, l := range links {
		if f, ok := byID[l.FileID]; ok {
			out[l.EntryID] = append(out[l.EntryID], f)
		}
	}
	return out, nil
}
