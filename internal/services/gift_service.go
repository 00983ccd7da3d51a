// Package services – GiftService
//
// This file implements the gifting orchestrator. A gift send is one atomic
// transaction over money-like state: the guarded balance debit, the
// completed ledger record with the price snapshotted at sale time, the
// gift-type chat entry, and the recipient's unread marker. The
// debit-then-entry ordering is deliberate: an entry must never exist
// without its corresponding completed debit.
package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/amoria-app/backend/internal/domain"
	"github.com/amoria-app/backend/internal/events"
	"github.com/amoria-app/backend/internal/observability"
	"github.com/amoria-app/backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// GiftService owns the gift catalog read path and the send-gift
// orchestration.
type GiftService struct {
	DB     *gorm.DB
	Events events.Publisher
}

// NewGiftService constructs a GiftService.
func NewGiftService(db *gorm.DB, pub events.Publisher) *GiftService {
	return &GiftService{DB: db, Events: pub}
}

// Catalog returns the active, purchasable gifts.
func (s *GiftService) Catalog(ctx context.Context) ([]domain.Gift, error) {
	return repo.ListActiveGifts(ctx, s.DB)
}

// Send delivers giftID from the sender account to the recipient persona in
// chatID. All writes happen in one transaction; a failure at any step,
// including an insufficient balance, leaves no partial debit, no orphaned
// entry, and no ledger row. After commit the entry-created event is
// published with localEntryID carried through unchanged.
func (s *GiftService) Send(ctx context.Context, senderID, recipientModelID, giftID, chatID, localEntryID string) (*domain.ChatEntry, error) {
	tr := otel.Tracer("services/GiftService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("gift.id", giftID),
			attribute.String("account.id", senderID),
		),
	)
	defer span.End()

	gift, err := repo.GetGift(ctx, s.DB, giftID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGiftNotFound
		}
		return nil, err
	}
	if _, err := repo.GetModelProfile(ctx, s.DB, recipientModelID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	if _, err := s.chatWithRecipient(ctx, chatID, senderID, recipientModelID); err != nil {
		return nil, err
	}

	// Fast fail before opening the write transaction; the guarded debit
	// below remains the authoritative check.
	balance, err := repo.GetBalance(ctx, s.DB, senderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, err
	}
	if balance < gift.Price {
		return nil, ErrInsufficientFunds
	}

	var entry *domain.ChatEntry
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := repo.Debit(tx, senderID, gift.Price); err != nil {
			if errors.Is(err, repo.ErrInsufficientFunds) {
				return ErrInsufficientFunds
			}
			return err
		}

		// Snapshot the price onto the ledger row; later catalog edits must
		// not alter historical transactions.
		if _, err := repo.CreateTransaction(tx, senderID, domain.TxnKindGift, domain.TxnStatusCompleted, gift.Price, repo.TxnRefs{
			GiftID:  &gift.ID,
			ModelID: &recipientModelID,
		}); err != nil {
			return err
		}

		e, err := repo.CreateEntry(tx, chatID, senderID, domain.EntryTypeGift, nil, &gift.ID)
		if err != nil {
			return err
		}
		if err := repo.MarkUnread(tx, chatID, e.ID, []string{recipientModelID}); err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.EntriesSent.WithLabelValues(string(domain.EntryTypeGift)).Inc()
	observability.TokensDebited.WithLabelValues(string(domain.TxnKindGift)).Add(float64(gift.Price))

	if s.Events != nil {
		ev := events.Event{
			Type:         events.TypeEntryCreated,
			ChatID:       chatID,
			EntryID:      entry.ID,
			SenderID:     senderID,
			LocalEntryID: localEntryID,
			Payload:      entry,
			CreatedAt:    time.Now().UTC(),
		}
		s.Events.Publish(ctx, events.TopicUser(recipientModelID), ev)
		s.Events.Publish(ctx, events.TopicAdmin, ev)
	}
	return entry, nil
}

// chatWithRecipient verifies the chat exists and links the sender with the
// recipient persona.
func (s *GiftService) chatWithRecipient(ctx context.Context, chatID, senderID, recipientModelID string) (*domain.Chat, error) {
	chat, err := repo.GetChat(ctx, s.DB, chatID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	hasSender, hasRecipient := false, false
	for _, p := range chat.Participants {
		switch p.SideID() {
		case senderID:
			hasSender = true
		case recipientModelID:
			hasRecipient = true
		}
	}
	if !hasSender {
		return nil, ErrNotParticipant
	}
	if !hasRecipient {
		return nil, ErrChatNotFound
	}
	return chat, nil
}
