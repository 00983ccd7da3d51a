package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/amoria-app/backend/internal/domain"
	"github.com/amoria-app/backend/internal/repo"
)

func newGiftSvcDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("gift_service_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	err = db.AutoMigrate(
		&domain.UserProfile{},
		&domain.ModelProfile{},
		&domain.Chat{},
		&domain.ChatParticipant{},
		&domain.ChatEntry{},
		&domain.UnreadMarker{},
		&domain.Balance{},
		&domain.Gift{},
		&domain.TransactionRecord{},
	)
	if err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// seedGiftScene sets up a funded sender, a recipient persona, their chat, and
// one purchasable gift.
func seedGiftScene(t *testing.T, db *gorm.DB, balance, price int64) (senderID, modelID, chatID, giftID string) {
	t.Helper()
	ctx := context.Background()

	u, err := repo.CreateUserProfile(ctx, db, 1001, domain.RoleUser, "Alice")
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	m := domain.ModelProfile{ID: "m1", DisplayName: "Mia", Active: true}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("seed model: %v", err)
	}
	chat, err := repo.CreateChat(ctx, db, repo.ParticipantRef{UserID: &u.ID}, repo.ParticipantRef{ModelID: &m.ID})
	if err != nil {
		t.Fatalf("seed chat: %v", err)
	}
	if err := db.Create(&domain.Balance{AccountID: u.ID, Tokens: balance}).Error; err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	g := domain.Gift{ID: "g1", Title: "Rose", Price: price, Active: true}
	if err := db.Create(&g).Error; err != nil {
		t.Fatalf("seed gift: %v", err)
	}
	return u.ID, m.ID, chat.ID, g.ID
}

func TestGiftSend_DebitsLedgersAndDelivers(t *testing.T) {
	db := newGiftSvcDB(t)
	uid, mid, chatID, giftID := seedGiftScene(t, db, 100, 30)
	svc := NewGiftService(db, nil)
	ctx := context.Background()

	entry, err := svc.Send(ctx, uid, mid, giftID, chatID, "local-7")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if entry.Type != domain.EntryTypeGift || entry.GiftID == nil || *entry.GiftID != giftID {
		t.Fatalf("unexpected entry: %+v", entry)
	}

	tokens, _ := repo.GetBalance(ctx, db, uid)
	if tokens != 70 {
		t.Fatalf("balance = %d; want 70", tokens)
	}

	txns, err := repo.ListTransactions(ctx, db, uid, 0, 10)
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txns) != 1 {
		t.Fatalf("expected 1 ledger row, got %d", len(txns))
	}
	rec := txns[0]
	if rec.Kind != domain.TxnKindGift || rec.Status != domain.TxnStatusCompleted || rec.Tokens != 30 {
		t.Fatalf("ledger row wrong: %+v", rec)
	}
	if rec.GiftID == nil || *rec.GiftID != giftID || rec.ModelID == nil || *rec.ModelID != mid {
		t.Fatalf("ledger refs wrong: %+v", rec)
	}

	if n, _ := repo.CountUnread(ctx, db, mid, nil); n != 1 {
		t.Fatalf("recipient unread = %d; want 1", n)
	}
}

func TestGiftSend_PriceSnapshotSurvivesCatalogEdit(t *testing.T) {
	db := newGiftSvcDB(t)
	uid, mid, chatID, giftID := seedGiftScene(t, db, 100, 30)
	svc := NewGiftService(db, nil)
	ctx := context.Background()

	if _, err := svc.Send(ctx, uid, mid, giftID, chatID, ""); err != nil {
		t.Fatalf("Send: %v", err)
	}
	// Repricing the catalog must not rewrite history.
	if err := db.Model(&domain.Gift{}).Where("id = ?", giftID).Update("price", 999).Error; err != nil {
		t.Fatalf("reprice: %v", err)
	}
	txns, _ := repo.ListTransactions(ctx, db, uid, 0, 10)
	if len(txns) != 1 || txns[0].Tokens != 30 {
		t.Fatalf("snapshot lost: %+v", txns)
	}
}

func TestGiftSend_InsufficientFundsLeavesNothing(t *testing.T) {
	db := newGiftSvcDB(t)
	uid, mid, chatID, giftID := seedGiftScene(t, db, 10, 30)
	svc := NewGiftService(db, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, uid, mid, giftID, chatID, "")
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	tokens, _ := repo.GetBalance(ctx, db, uid)
	if tokens != 10 {
		t.Fatalf("balance changed: %d", tokens)
	}
	var entries, txns, markers int64
	db.Model(&domain.ChatEntry{}).Count(&entries)
	db.Model(&domain.TransactionRecord{}).Count(&txns)
	db.Model(&domain.UnreadMarker{}).Count(&markers)
	if entries != 0 || txns != 0 || markers != 0 {
		t.Fatalf("partial writes: entries=%d txns=%d markers=%d", entries, txns, markers)
	}
}

func TestGiftSend_UnknownGift(t *testing.T) {
	db := newGiftSvcDB(t)
	uid, mid, chatID, _ := seedGiftScene(t, db, 100, 30)
	svc := NewGiftService(db, nil)

	if _, err := svc.Send(context.Background(), uid, mid, "ghost", chatID, ""); !errors.Is(err, ErrGiftNotFound) {
		t.Fatalf("expected ErrGiftNotFound, got %v", err)
	}
}

func TestGiftSend_RecipientNotInChat(t *testing.T) {
	db := newGiftSvcDB(t)
	uid, _, chatID, giftID := seedGiftScene(t, db, 100, 30)
	other := domain.ModelProfile{ID: "m2", DisplayName: "Noa", Active: true}
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("seed second model: %v", err)
	}
	svc := NewGiftService(db, nil)

	if _, err := svc.Send(context.Background(), uid, other.ID, giftID, chatID, ""); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("expected ErrChatNotFound, got %v", err)
	}
}

func TestGiftSend_SenderNotParticipant(t *testing.T) {
	db := newGiftSvcDB(t)
	_, mid, chatID, giftID := seedGiftScene(t, db, 100, 30)
	outsider, err := repo.CreateUserProfile(context.Background(), db, 2002, domain.RoleUser, "Eve")
	if err != nil {
		t.Fatalf("seed outsider: %v", err)
	}
	if err := db.Create(&domain.Balance{AccountID: outsider.ID, Tokens: 100}).Error; err != nil {
		t.Fatalf("seed outsider balance: %v", err)
	}
	svc := NewGiftService(db, nil)

	if _, err := svc.Send(context.Background(), outsider.ID, mid, giftID, chatID, ""); !errors.Is(err, ErrNotParticipant) {
		t.Fatalf("expected ErrNotParticipant, got %v", err)
	}
}

func TestGiftCatalog_OnlyActive(t *testing.T) {
	db := newGiftSvcDB(t)
	if err := db.Create(&domain.Gift{ID: "g1", Title: "Rose", Price: 30, Active: true}).Error; err != nil {
		t.Fatalf("seed active: %v", err)
	}
	if err := db.Create(&domain.Gift{ID: "g2", Title: "Retired", Price: 10, Active: false}).Error; err != nil {
		t.Fatalf("seed inactive: %v", err)
	}
	svc := NewGiftService(db, nil)

	gifts, err := svc.Catalog(context.Background())
	if err != nil {
		t.Fatalf("Catalog: %v", err)
	}
	if len(gifts) != 1 || gifts[0].ID != "g1" {
		t.Fatalf("catalog = %+v; want only g1", gifts)
	}
}
