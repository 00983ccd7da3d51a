// Package domain defines the persistence models for the dating platform
// core. This file contains the chat aggregate: chats, participants, entries,
// attachments, unread markers, and the idempotency records for send retries.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// EntryType distinguishes plain text entries from gift entries.
type EntryType string

const (
	EntryTypeText EntryType = "text"
	EntryTypeGift EntryType = "gift"
)

// Chat is a direct conversation between exactly two participants. It is
// created once and immutable thereafter; removal cascades to participants,
// entries, and unread markers.
type Chat struct {
	ID        string         `json:"id" gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Participants []ChatParticipant `json:"participants" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// ChatParticipant binds one side of a chat to either an end-user account or
// a model persona. Exactly one of UserID/ModelID is set per row; a chat has
// exactly two rows.
//
// Fields:
//   - ChatID: owning chat (indexed; duplicate-chat detection scans by side).
//   - UserID: set when this side is an end-user account.
//   - ModelID: set when this side is a model persona.
type ChatParticipant struct {
	ID        string    `json:"id"      gorm:"type:char(36);primaryKey"`
	ChatID    string    `json:"chat_id" gorm:"type:char(36);not null;index:idx_participant_chat"`
	UserID    *string   `json:"user_id,omitempty"  gorm:"type:char(36);index:idx_participant_user"`
	ModelID   *string   `json:"model_id,omitempty" gorm:"type:char(36);index:idx_participant_model"`
	CreatedAt time.Time `json:"created_at"`

	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatParticipant.
func (ChatParticipant) TableName() string { return "chat_participants" }

// SideID returns whichever identity this participant carries.
func (p ChatParticipant) SideID() string {
	if p.UserID != nil {
		return *p.UserID
	}
	if p.ModelID != nil {
		return *p.ModelID
	}
	return ""
}

// ChatEntry is a single utterance within a chat: either a text entry
// (optional attachments) or a gift entry (required gift reference). Entries
// are immutable once created and ordered by (CreatedAt, ID).
//
// Fields:
//   - ID: UUID primary key (char(36)); the tiebreaker for equal timestamps.
//   - ChatID: owning chat (composite index with CreatedAt for ordered reads).
//   - SenderID: account or persona id that authored the entry.
//   - Type: "text" or "gift" (enforced by DB constraint).
//   - Body: text content; set iff Type is text.
//   - GiftID: gift reference; set iff Type is gift.
type ChatEntry struct {
	ID        string         `json:"id"        gorm:"type:char(36);primaryKey"`
	ChatID    string         `json:"chat_id"   gorm:"type:char(36);not null;index:idx_chat_entries,priority:1"`
	SenderID  string         `json:"sender_id" gorm:"type:char(36);not null;index"`
	Type      EntryType      `json:"type"      gorm:"type:varchar(8);not null;check:type IN ('text','gift')"`
	Body      *string        `json:"body,omitempty"    gorm:"type:text"`
	GiftID    *string        `json:"gift_id,omitempty" gorm:"type:char(36)"`
	CreatedAt time.Time      `json:"created_at" gorm:"index:idx_chat_entries,priority:2"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatEntry.
func (ChatEntry) TableName() string { return "chat_entries" }

// EntryAttachment links a text entry to an externally stored file.
type EntryAttachment struct {
	EntryID   string    `json:"entry_id" gorm:"type:char(36);primaryKey"`
	FileID    string    `json:"file_id"  gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	Entry ChatEntry `json:"-" gorm:"foreignKey:EntryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for EntryAttachment.
func (EntryAttachment) TableName() string { return "entry_attachments" }

// UnreadMarker records that an entry has not yet been read by a recipient.
// At most one marker exists per (recipient, entry) pair; its deletion is the
// read receipt. Existence of the row ⇔ the entry is unread for that user.
type UnreadMarker struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	RecipientID string    `json:"recipient_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_unread_recipient_entry,priority:1"`
	EntryID     string    `json:"entry_id"     gorm:"type:char(36);not null;uniqueIndex:ux_unread_recipient_entry,priority:2"`
	ChatID      string    `json:"chat_id"      gorm:"type:char(36);not null;index"`
	CreatedAt   time.Time `json:"created_at"`

	Entry ChatEntry `json:"-" gorm:"foreignKey:EntryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for UnreadMarker.
func (UnreadMarker) TableName() string { return "unread_markers" }

// Idempotency records the outcome of a previously processed send request,
// keyed by (account_id, chat_id, key). It lets POST retries return the
// originally created entry without re-executing debits or quota increments.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	AccountID string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_account_chat_key,priority:1"`
	ChatID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_account_chat_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_account_chat_key,priority:3"`
	EntryID   string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
