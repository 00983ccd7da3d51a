// Package services – ChatService
//
// This file implements the ChatService, which manages the lifecycle of
// direct chats. A chat links exactly two participants (end-user account or
// model persona per side), is created once, and is immutable thereafter.
// Duplicate detection intersects the chat-id lists of both sides rather
// than relying on a composite key; the O(n) scan is fine at direct-chat
// scale.
//
// Service-level errors (e.g., ErrChatExists) are returned for predictable
// cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/amoria-app/backend/internal/domain"
	"github.com/amoria-app/backend/internal/events"
	"github.com/amoria-app/backend/internal/repo"
)

// ChatService provides chat creation and listing. It enforces participant
// resolution and pair uniqueness, and announces new chats on the event bus
// after commit.
type ChatService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Events receives post-commit notifications; may be nil in tests.
	Events events.Publisher
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB, pub events.Publisher) *ChatService {
	return &ChatService{DB: db, Events: pub}
}

// ChatSummary is a chat with the viewer's unread count attached.
type ChatSummary struct {
	Chat   domain.Chat `json:"chat"`
	Unread int64       `json:"unread"`
}

// Create opens a direct chat between a and b. Both sides must resolve to an
// existing profile; a second chat for the same pair fails with ErrChatExists
// and creates no rows.
func (s *ChatService) Create(ctx context.Context, a, b repo.ParticipantRef) (*domain.Chat, error) {
	if err := validateRef(a); err != nil {
		return nil, err
	}
	if err := validateRef(b); err != nil {
		return nil, err
	}
	if err := s.resolveRef(ctx, a); err != nil {
		return nil, err
	}
	if err := s.resolveRef(ctx, b); err != nil {
		return nil, err
	}

	aIDs, err := repo.ChatIDsFor(ctx, s.DB, a)
	if err != nil {
		return nil, err
	}
	bIDs, err := repo.ChatIDsFor(ctx, s.DB, b)
	if err != nil {
		return nil, err
	}
	if intersects(aIDs, bIDs) {
		return nil, ErrChatExists
	}

	var chat *domain.Chat
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := repo.CreateChat(ctx, tx, a, b)
		if err != nil {
			return err
		}
		chat = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.Events != nil {
		ev := events.Event{Type: events.TypeChatCreated, ChatID: chat.ID}
		for _, p := range chat.Participants {
			s.Events.Publish(ctx, events.TopicUser(p.SideID()), ev)
		}
		s.Events.Publish(ctx, events.TopicAdmin, ev)
	}
	return chat, nil
}

// ListForAccount returns the account's chats, newest first, each with the
// account's unread count.
func (s *ChatService) ListForAccount(ctx context.Context, accountID string) ([]ChatSummary, error) {
	uid := accountID
	chats, err := repo.ListChatsFor(ctx, s.DB, repo.ParticipantRef{UserID: &uid})
	if err != nil {
		return nil, err
	}
	unread, err := repo.CountUnreadByChat(ctx, s.DB, accountID)
	if err != nil {
		return nil, err
	}
	out := make([]ChatSummary, 0, len(chats))
	for _, c := range chats {
		out = append(out, ChatSummary{Chat: c, Unread: unread[c.ID]})
	}
	return out, nil
}

// Get fetches a chat the account participates in.
func (s *ChatService) Get(ctx context.Context, accountID, chatID string) (*domain.Chat, error) {
	chat, err := repo.GetChat(ctx, s.DB, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	for _, p := range chat.Participants {
		if p.SideID() == accountID {
			return chat, nil
		}
	}
	return nil, ErrChatNotFound
}

// resolveRef confirms the referenced profile exists.
func (s *ChatService) resolveRef(ctx context.Context, ref repo.ParticipantRef) error {
	var err error
	switch {
	case ref.UserID != nil:
		_, err = repo.GetUserProfile(ctx, s.DB, *ref.UserID)
	case ref.ModelID != nil:
		_, err = repo.GetModelProfile(ctx, s.DB, *ref.ModelID)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrProfileNotFound
	}
	return err
}

// validateRef requires exactly one side identity.
func validateRef(ref repo.ParticipantRef) error {
	if (ref.UserID == nil) == (ref.ModelID == nil) {
		return ErrValidation
	}
	if ref.ID() == "" {
		return ErrValidation
	}
	return nil
}

// intersects reports whether the two id lists share an element.
func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; ok {
			return true
		}
	}
	return false
}
