// Package domain defines the persistence models for the dating platform
// core: profiles, chats, entries, unread markers, and the monetary records
// (balances, gifts, transactions, tariffs). These types are mapped with GORM
// and shared across the repository and service layers.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Role is the closed set of account roles. It replaces the loosely typed
// string role of earlier iterations; anything outside these four values is a
// data-integrity bug.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleChatter Role = "chatter"
	RoleUser    Role = "user"
	RoleModel   Role = "model"
)

// Valid reports whether r is one of the defined roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleChatter, RoleUser, RoleModel:
		return true
	}
	return false
}

// UserProfile is an authenticated end-user account. It is created at
// registration together with its Balance row and is the "Account" side of
// every monetary operation.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - TelegramID: Telegram user id the account authenticated with; unique.
//   - Role: one of the Role constants (enforced by DB constraint).
//   - DisplayName: name shown to chat partners.
//   - AvatarFileID: optional reference to an externally stored file.
type UserProfile struct {
	ID           string         `json:"id"             gorm:"type:char(36);primaryKey"`
	TelegramID   int64          `json:"telegram_id"    gorm:"not null;uniqueIndex:ux_users_telegram"`
	Role         Role           `json:"role"           gorm:"type:varchar(16);not null;check:role IN ('admin','chatter','user','model')"`
	DisplayName  string         `json:"display_name"   gorm:"type:varchar(128);not null"`
	AvatarFileID *string        `json:"avatar_file_id,omitempty" gorm:"type:char(36)"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for UserProfile.
func (UserProfile) TableName() string { return "user_profiles" }

// ModelProfile is a persona that can occupy either side of a conversation.
// Structurally similar to an end-user for chat purposes, but it is not an
// authenticated account and never owns a balance.
type ModelProfile struct {
	ID           string         `json:"id"           gorm:"type:char(36);primaryKey"`
	DisplayName  string         `json:"display_name" gorm:"type:varchar(128);not null"`
	Bio          string         `json:"bio"          gorm:"type:text"`
	AvatarFileID *string        `json:"avatar_file_id,omitempty" gorm:"type:char(36)"`
	Active       bool           `json:"active"       gorm:"not null;default:true"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for ModelProfile.
func (ModelProfile) TableName() string { return "model_profiles" }

// File holds metadata for an externally stored attachment. The storage
// backend owns the bytes; the core only keeps the lookup record.
type File struct {
	ID        string    `json:"id"        gorm:"type:char(36);primaryKey"`
	URL       string    `json:"url"       gorm:"type:varchar(512);not null"`
	MimeType  string    `json:"mime_type" gorm:"type:varchar(128);not null"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for File.
func (File) TableName() string { return "files" }
