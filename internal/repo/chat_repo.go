// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for chats and
// their participants.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a chat is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amoria-app/backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ParticipantRef names one side of a chat: either an end-user account or a
// model persona. Exactly one of UserID/ModelID must be set.
type ParticipantRef struct {
	UserID  *string
	ModelID *string
}

// ID returns whichever identity the ref carries, or "".
func (r ParticipantRef) ID() string {
	if r.UserID != nil {
		return *r.UserID
	}
	if r.ModelID != nil {
		return *r.ModelID
	}
	return ""
}

// CreateChat inserts a chat row plus its two participant rows. The caller is
// responsible for running this inside a transaction and for checking
// duplicates first (see ChatIDsFor).
func CreateChat(ctx context.Context, db *gorm.DB, a, b ParticipantRef) (*domain.Chat, error) {
	now := time.Now().UTC()
	c := &domain.Chat{ID: uuid.NewString(), CreatedAt: now}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	parts := []domain.ChatParticipant{
		{ID: uuid.NewString(), ChatID: c.ID, UserID: a.UserID, ModelID: a.ModelID, CreatedAt: now},
		{ID: uuid.NewString(), ChatID: c.ID, UserID: b.UserID, ModelID: b.ModelID, CreatedAt: now},
	}
	if err := db.WithContext(ctx).Create(&parts).Error; err != nil {
		return nil, err
	}
	c.Participants = parts
	return c, nil
}

// ChatIDsFor returns the ids of every chat the given participant belongs to.
// Duplicate-chat detection intersects the lists of both sides; an O(n) scan
// is fine at direct-chat scale.
func ChatIDsFor(ctx context.Context, db *gorm.DB, ref ParticipantRef) ([]string, error) {
	q := db.WithContext(ctx).Model(&domain.ChatParticipant{})
	switch {
	case ref.UserID != nil:
		q = q.Where("user_id = ?", *ref.UserID)
	case ref.ModelID != nil:
		q = q.Where("model_id = ?", *ref.ModelID)
	default:
		return nil, nil
	}
	var ids []string
	err := q.Pluck("chat_id", &ids).Error
	return ids, err
}

// GetChat fetches a chat with its participants, or ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Preload("Participants").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListChatsFor returns the chats a participant belongs to, most recently
// created first, with participants preloaded.
func ListChatsFor(ctx context.Context, db *gorm.DB, ref ParticipantRef) ([]domain.Chat, error) {
	ids, err := ChatIDsFor(ctx, db, ref)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Chat{}, nil
	}
	var out []domain.Chat
	err = db.WithContext(ctx).
		Preload("Participants").
		Where("id IN ?", ids).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// Participants returns both participant rows of a chat.
func Participants(ctx context.Context, db *gorm.DB, chatID string) ([]domain.ChatParticipant, error) {
	var out []domain.ChatParticipant
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Find(&out).Error
	return out, err
}
