// Package services – EntryService
//
// This file implements EntryService, the application-level component that
// owns the lifecycle of chat entries: the quota-guarded text send path,
// reverse-paginated listing with resolved senders and read flags, and the
// read-receipt operations.
//
// The send path runs inside one database transaction spanning the quota
// row, the entry, its attachments, and the unread fan-out; the event bus is
// only touched after the transaction commits.
//
// Observability: public methods are OpenTelemetry-instrumented; spans
// include chat/account identifiers and pagination parameters where
// applicable.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/amoria-app/backend/internal/domain"
	"github.com/amoria-app/backend/internal/events"
	"github.com/amoria-app/backend/internal/observability"
	"github.com/amoria-app/backend/internal/repo"
	"github.com/amoria-app/backend/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// EntryService coordinates entry persistence, quota enforcement, unread
// fan-out, and post-commit event publication.
type EntryService struct {
	DB     *gorm.DB
	Events events.Publisher

	// QuotaLocation is the civil-calendar zone deciding when "today"
	// advances for the daily reset. Defaults to UTC when nil.
	QuotaLocation *time.Location

	// MaxBodyRunes caps text entry length; 0 disables the cap.
	MaxBodyRunes int

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

// SenderView is the resolved author of an entry: exactly one profile kind.
type SenderView struct {
	Kind        string  `json:"kind"` // "user" or "model"
	ID          string  `json:"id"`
	DisplayName string  `json:"display_name"`
	AvatarFile  *string `json:"avatar_file_id,omitempty"`
}

// EntryView is a listed entry enriched with its sender, attachments, and
// the viewer's read flag.
type EntryView struct {
	Entry       domain.ChatEntry `json:"entry"`
	Sender      SenderView       `json:"sender"`
	Attachments []domain.File    `json:"attachments,omitempty"`
	IsRead      bool             `json:"is_read"`
}

// SendText appends a text entry to the chat on behalf of accountID.
//
// Within one transaction: quota check (with the once-per-day reset), entry
// insert, attachment links, unread fan-out to every participant except the
// sender, and the quota increment. The increment is a guarded
// increment-with-ceiling UPDATE; its rows-affected result is the
// authoritative limit check under concurrency. Any step failing aborts the
// whole transaction.
//
// After commit the entry-created event is published carrying localEntryID
// unchanged.
func (s *EntryService) SendText(ctx context.Context, accountID, chatID, body string, attachmentIDs []string, localEntryID string) (*domain.ChatEntry, error) {
	tr := otel.Tracer("services/EntryService")
	ctx, span := tr.Start(ctx, "SendText",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.String("account.id", accountID),
		),
	)
	defer span.End()

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyBody
	}
	if s.MaxBodyRunes > 0 && utf8.RuneCountInString(body) > s.MaxBodyRunes {
		return nil, ErrTooLong
	}

	recipients, err := s.recipientsOf(ctx, chatID, accountID)
	if err != nil {
		return nil, err
	}

	var entry *domain.ChatEntry
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		assignment, limit, err := s.reserveQuota(ctx, tx, accountID)
		if err != nil {
			return err
		}

		e, err := repo.CreateEntry(tx, chatID, accountID, domain.EntryTypeText, &body, nil)
		if err != nil {
			return err
		}
		if err := repo.LinkAttachments(tx, e.ID, attachmentIDs); err != nil {
			return err
		}
		if err := repo.MarkUnread(tx, chatID, e.ID, recipients); err != nil {
			return err
		}

		ok, err := repo.IncrementSentToday(tx, assignment.ID, limit)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDailyLimitReached
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.EntriesSent.WithLabelValues(string(domain.EntryTypeText)).Inc()
	s.publishEntry(ctx, entry, recipients, localEntryID)
	return entry, nil
}

// ListPage returns a reverse-paginated page of a chat's entries for viewer
// accountID: page 1 holds the most recent pageSize entries, and every page
// is returned in ascending creation order. Each entry carries its resolved
// sender, attachments, and the viewer's is_read flag.
func (s *EntryService) ListPage(ctx context.Context, viewerID, chatID string, page, pageSize int) ([]EntryView, int64, error) {
	tr := otel.Tracer("services/EntryService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("chat.id", chatID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	// Ensure the chat exists.
	var chatCount int64
	if err := s.DB.WithContext(ctx).Model(&domain.Chat{}).Where("id = ?", chatID).Count(&chatCount).Error; err != nil {
		return nil, 0, err
	}
	if chatCount == 0 {
		return nil, 0, ErrChatNotFound
	}

	total, err := repo.CountEntries(s.DB.WithContext(ctx), chatID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []EntryView{}, 0, nil
	}

	offset, limit := utils.ReverseWindow(total, page, pageSize)
	items, err := repo.ListEntriesWindow(s.DB.WithContext(ctx), chatID, offset, limit)
	if err != nil {
		return nil, 0, err
	}

	views, err := s.decorate(ctx, viewerID, items)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

// MarkRead acknowledges entryIDs as read by accountID. Re-acknowledging an
// already-read entry is a no-op, not a failure.
func (s *EntryService) MarkRead(ctx context.Context, accountID string, entryIDs []string) error {
	return repo.MarkRead(ctx, s.DB, accountID, entryIDs)
}

// UnreadCount returns the account's unread total, optionally scoped to one
// chat.
func (s *EntryService) UnreadCount(ctx context.Context, accountID string, chatID *string) (int64, error) {
	return repo.CountUnread(ctx, s.DB, accountID, chatID)
}

// UnreadByChat returns the account's unread counts grouped per chat.
func (s *EntryService) UnreadByChat(ctx context.Context, accountID string) (map[string]int64, error) {
	return repo.CountUnreadByChat(ctx, s.DB, accountID)
}

// reserveQuota loads the account's tariff assignment, applies the
// once-per-day counter reset, and fast-fails when the allowance is already
// spent. The later increment remains the authoritative guard.
func (s *EntryService) reserveQuota(ctx context.Context, tx *gorm.DB, accountID string) (*domain.TariffAssignment, int, error) {
	assignment, err := repo.GetAssignment(ctx, tx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, 0, ErrNoActiveTariff
		}
		return nil, 0, err
	}

	limit := assignment.Tariff.EntriesDailyLimit
	if limit <= 0 {
		return nil, 0, ErrDailyLimitReached
	}

	now := s.clock()
	if !sameCivilDate(assignment.LastResetDate, now, s.location()) {
		if err := repo.ResetAssignment(tx, assignment.ID, now.UTC()); err != nil {
			return nil, 0, err
		}
		assignment.EntriesSentToday = 0
		assignment.LastResetDate = now.UTC()
		return assignment, limit, nil
	}

	if assignment.EntriesSentToday >= limit {
		return nil, 0, ErrDailyLimitReached
	}
	return assignment, limit, nil
}

// recipientsOf returns the chat's participant ids excluding the sender,
// verifying the sender is a participant at all.
func (s *EntryService) recipientsOf(ctx context.Context, chatID, senderID string) ([]string, error) {
	parts, err := repo.Participants(ctx, s.DB, chatID)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, ErrChatNotFound
	}
	recipients := make([]string, 0, len(parts)-1)
	isMember := false
	for _, p := range parts {
		id := p.SideID()
		if id == senderID {
			isMember = true
			continue
		}
		recipients = append(recipients, id)
	}
	if !isMember {
		return nil, ErrNotParticipant
	}
	return recipients, nil
}

// decorate resolves senders, attachments, and read flags for a window of
// entries. Exactly one profile kind must resolve per sender.
func (s *EntryService) decorate(ctx context.Context, viewerID string, items []domain.ChatEntry) ([]EntryView, error) {
	entryIDs := make([]string, 0, len(items))
	senderIDs := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, e := range items {
		entryIDs = append(entryIDs, e.ID)
		if _, ok := seen[e.SenderID]; !ok {
			seen[e.SenderID] = struct{}{}
			senderIDs = append(senderIDs, e.SenderID)
		}
	}

	users, err := repo.UserProfilesByIDs(ctx, s.DB, senderIDs)
	if err != nil {
		return nil, err
	}
	personas, err := repo.ModelProfilesByIDs(ctx, s.DB, senderIDs)
	if err != nil {
		return nil, err
	}
	attachments, err := repo.AttachmentsFor(ctx, s.DB, entryIDs)
	if err != nil {
		return nil, err
	}
	unread, err := repo.UnreadEntryIDs(ctx, s.DB, viewerID, entryIDs)
	if err != nil {
		return nil, err
	}

	views := make([]EntryView, 0, len(items))
	for _, e := range items {
		sender, err := resolveSender(e.SenderID, users, personas)
		if err != nil {
			return nil, err
		}
		_, isUnread := unread[e.ID]
		views = append(views, EntryView{
			Entry:       e,
			Sender:      sender,
			Attachments: attachments[e.ID],
			IsRead:      !isUnread,
		})
	}
	return views, nil
}

// publishEntry fans the entry-created event out to each recipient's private
// topic and the admin topic. Called only after commit.
func (s *EntryService) publishEntry(ctx context.Context, entry *domain.ChatEntry, recipients []string, localEntryID string) {
	if s.Events == nil {
		return
	}
	ev := events.Event{
		Type:         events.TypeEntryCreated,
		ChatID:       entry.ChatID,
		EntryID:      entry.ID,
		SenderID:     entry.SenderID,
		LocalEntryID: localEntryID,
		Payload:      entry,
	}
	for _, rid := range recipients {
		s.Events.Publish(ctx, events.TopicUser(rid), ev)
	}
	s.Events.Publish(ctx, events.TopicAdmin, ev)
}

func (s *EntryService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *EntryService) location() *time.Location {
	if s.QuotaLocation != nil {
		return s.QuotaLocation
	}
	return time.UTC
}

// resolveSender maps a sender id to exactly one profile kind. Resolving to
// neither (or both) is a data-integrity anomaly.
func resolveSender(id string, users map[string]domain.UserProfile, personas map[string]domain.ModelProfile) (SenderView, error) {
	u, isUser := users[id]
	m, isModel := personas[id]
	switch {
	case isUser && !isModel:
		return SenderView{Kind: "user", ID: u.ID, DisplayName: u.DisplayName, AvatarFile: u.AvatarFileID}, nil
	case isModel && !isUser:
		return SenderView{Kind: "model", ID: m.ID, DisplayName: m.DisplayName, AvatarFile: m.AvatarFileID}, nil
	default:
		return SenderView{}, ErrSenderUnresolved
	}
}

// sameCivilDate reports whether a and b fall on the same calendar date in loc.
func sameCivilDate(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
