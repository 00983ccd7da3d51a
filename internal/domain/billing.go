// Package domain defines the persistence models for the dating platform
// core. This file contains the money-like state: token balances, the gift
// catalog, the append-only transaction ledger, tariffs with their daily send
// quotas, and subscriptions.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// Balance is the single token-wallet row owned by an account. It is created
// at registration with zero tokens and only ever mutated through guarded
// repo updates inside the transaction that justifies the adjustment.
//
// The balance is never allowed to go negative; the debit statement itself is
// the authoritative guard, not any preceding read.
type Balance struct {
	AccountID string    `json:"account_id" gorm:"type:char(36);primaryKey"`
	Tokens    int64     `json:"tokens"     gorm:"not null;default:0;check:tokens >= 0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Balance.
func (Balance) TableName() string { return "balances" }

// Gift is a catalog item purchasable with tokens. Price edits never affect
// past transactions: the transacted price is snapshotted onto the
// TransactionRecord at send time.
type Gift struct {
	ID          string         `json:"id"    gorm:"type:char(36);primaryKey"`
	Title       string         `json:"title" gorm:"type:varchar(128);not null"`
	ImageFileID *string        `json:"image_file_id,omitempty" gorm:"type:char(36)"`
	Price       int64          `json:"price"  gorm:"not null;check:price >= 0"`
	Active      bool           `json:"active" gorm:"not null;default:true"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Gift.
func (Gift) TableName() string { return "gifts" }

// TxnKind enumerates the monetary operation kinds recorded in the ledger.
type TxnKind string

const (
	TxnKindGift      TxnKind = "gift"
	TxnKindBalance   TxnKind = "balance"
	TxnKindTariff    TxnKind = "tariff"
	TxnKindPaidEntry TxnKind = "paid-chat-entry"
)

// TxnStatus is the transaction lifecycle state. Transitions are monotonic:
// pending → pre-checkout → completed, or → failed. Terminal states are never
// reopened.
type TxnStatus string

const (
	TxnStatusPending     TxnStatus = "pending"
	TxnStatusPreCheckout TxnStatus = "pre-checkout"
	TxnStatusCompleted   TxnStatus = "completed"
	TxnStatusFailed      TxnStatus = "failed"
)

// Terminal reports whether s admits no further transitions.
func (s TxnStatus) Terminal() bool {
	return s == TxnStatusCompleted || s == TxnStatusFailed
}

// TransactionRecord is an append-only row in the monetary ledger. Records
// are never deleted; only their status advances. Tokens holds the amount at
// the time the record was created, independent of later catalog edits.
//
// Fields:
//   - Kind: gift | balance | tariff | paid-chat-entry.
//   - Status: lifecycle state, see TxnStatus.
//   - Tokens: transacted token amount, snapshotted at creation.
//   - GiftID / ModelID / TariffID / EntryID: optional foreign references,
//     populated according to Kind.
type TransactionRecord struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	AccountID string    `json:"account_id" gorm:"type:char(36);not null;index:idx_txn_account"`
	Kind      TxnKind   `json:"kind"       gorm:"type:varchar(16);not null;check:kind IN ('gift','balance','tariff','paid-chat-entry')"`
	Status    TxnStatus `json:"status"     gorm:"type:varchar(16);not null;check:status IN ('pending','pre-checkout','completed','failed')"`
	Tokens    int64     `json:"tokens"     gorm:"not null;check:tokens >= 0"`
	GiftID    *string   `json:"gift_id,omitempty"   gorm:"type:char(36)"`
	ModelID   *string   `json:"model_id,omitempty"  gorm:"type:char(36)"`
	TariffID  *string   `json:"tariff_id,omitempty" gorm:"type:char(36)"`
	EntryID   *string   `json:"entry_id,omitempty"  gorm:"type:char(36)"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for TransactionRecord.
func (TransactionRecord) TableName() string { return "transaction_records" }

// Tariff is a purchasable plan granting a daily message-send allowance.
// A limit of zero denies all sends.
type Tariff struct {
	ID                string         `json:"id"    gorm:"type:char(36);primaryKey"`
	Title             string         `json:"title" gorm:"type:varchar(128);not null"`
	Price             int64          `json:"price" gorm:"not null;check:price >= 0"`
	EntriesDailyLimit int            `json:"entries_daily_limit" gorm:"not null;default:0"`
	DurationDays      int            `json:"duration_days" gorm:"not null;default:30"`
	Active            bool           `json:"active" gorm:"not null;default:true"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `json:"-" gorm:"index"`
}

// TableName returns the database table name for Tariff.
func (Tariff) TableName() string { return "tariffs" }

// TariffAssignment is the per-account daily quota record for the account's
// active tariff. EntriesSentToday resets to zero exactly once when the civil
// date advances past LastResetDate; nothing else ever decrements it.
type TariffAssignment struct {
	ID               string    `json:"id"         gorm:"type:char(36);primaryKey"`
	AccountID        string    `json:"account_id" gorm:"type:char(36);not null;uniqueIndex:ux_assignment_account"`
	TariffID         string    `json:"tariff_id"  gorm:"type:char(36);not null"`
	EntriesSentToday int       `json:"entries_sent_today" gorm:"not null;default:0;check:entries_sent_today >= 0"`
	LastResetDate    time.Time `json:"last_reset_date"    gorm:"not null"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	Tariff Tariff `json:"-" gorm:"foreignKey:TariffID;references:ID"`
}

// TableName returns the database table name for TariffAssignment.
func (TariffAssignment) TableName() string { return "tariff_assignments" }

// Subscription is the single active plan record per account. Purchasing a
// tariff extends ExpiresAt from max(now, current expiration) rather than
// resetting it.
type Subscription struct {
	ID        string    `json:"id"         gorm:"type:char(36);primaryKey"`
	AccountID string    `json:"account_id" gorm:"type:char(36);not null;uniqueIndex:ux_subscription_account"`
	TariffID  string    `json:"tariff_id"  gorm:"type:char(36);not null"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }
