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

func newChatSvcDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("chat_service_test_%d.db", time.Now().UnixNano()))
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
		&domain.UnreadMarker{},
	)
	if err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedChatPair(t *testing.T, db *gorm.DB) (userID, modelID string) {
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
	return u.ID, m.ID
}

func userRef(id string) repo.ParticipantRef  { return repo.ParticipantRef{UserID: &id} }
func modelRef(id string) repo.ParticipantRef { return repo.ParticipantRef{ModelID: &id} }

func TestChatCreate_UserModelPair(t *testing.T) {
	db := newChatSvcDB(t)
	uid, mid := seedChatPair(t, db)
	svc := NewChatService(db, nil)

	chat, err := svc.Create(context.Background(), userRef(uid), modelRef(mid))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if chat.ID == "" || len(chat.Participants) != 2 {
		t.Fatalf("unexpected chat: %+v", chat)
	}
	sides := map[string]bool{}
	for _, p := range chat.Participants {
		sides[p.SideID()] = true
	}
	if !sides[uid] || !sides[mid] {
		t.Fatalf("participants wrong: %v", sides)
	}
}

func TestChatCreate_DuplicatePair(t *testing.T) {
	db := newChatSvcDB(t)
	uid, mid := seedChatPair(t, db)
	svc := NewChatService(db, nil)
	ctx := context.Background()

	if _, err := svc.Create(ctx, userRef(uid), modelRef(mid)); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := svc.Create(ctx, userRef(uid), modelRef(mid)); !errors.Is(err, ErrChatExists) {
		t.Fatalf("expected ErrChatExists, got %v", err)
	}
	// Order of sides must not matter for duplicate detection.
	if _, err := svc.Create(ctx, modelRef(mid), userRef(uid)); !errors.Is(err, ErrChatExists) {
		t.Fatalf("swapped sides: expected ErrChatExists, got %v", err)
	}

	var count int64
	if err := db.Model(&domain.Chat{}).Count(&count).Error; err != nil {
		t.Fatalf("count chats: %v", err)
	}
	if count != 1 {
		t.Fatalf("chat count = %d; want 1", count)
	}
}

func TestChatCreate_UnknownPeer(t *testing.T) {
	db := newChatSvcDB(t)
	uid, _ := seedChatPair(t, db)
	svc := NewChatService(db, nil)

	if _, err := svc.Create(context.Background(), userRef(uid), modelRef("ghost")); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestChatCreate_InvalidRef(t *testing.T) {
	db := newChatSvcDB(t)
	uid, mid := seedChatPair(t, db)
	svc := NewChatService(db, nil)
	ctx := context.Background()

	// Neither side set.
	if _, err := svc.Create(ctx, repo.ParticipantRef{}, modelRef(mid)); !errors.Is(err, ErrValidation) {
		t.Fatalf("empty ref: expected ErrValidation, got %v", err)
	}
	// Both sides set.
	both := repo.ParticipantRef{UserID: &uid, ModelID: &mid}
	if _, err := svc.Create(ctx, both, modelRef(mid)); !errors.Is(err, ErrValidation) {
		t.Fatalf("double ref: expected ErrValidation, got %v", err)
	}
}

func TestChatListForAccount_WithUnreadCounts(t *testing.T) {
	db := newChatSvcDB(t)
	uid, mid := seedChatPair(t, db)
	m2 := domain.ModelProfile{ID: "m2", DisplayName: "Noa", Active: true}
	if err := db.Create(&m2).Error; err != nil {
		t.Fatalf("seed second model: %v", err)
	}
	svc := NewChatService(db, nil)
	ctx := context.Background()

	c1, err := svc.Create(ctx, userRef(uid), modelRef(mid))
	if err != nil {
		t.Fatalf("create c1: %v", err)
	}
	c2, err := svc.Create(ctx, userRef(uid), modelRef(m2.ID))
	if err != nil {
		t.Fatalf("create c2: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := repo.MarkUnread(db, c1.ID, fmt.Sprintf("e%d", i), []string{uid}); err != nil {
			t.Fatalf("mark unread: %v", err)
		}
	}

	list, err := svc.ListForAccount(ctx, uid)
	if err != nil {
		t.Fatalf("ListForAccount: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 chats, got %d", len(list))
	}
	byID := map[string]int64{}
	for _, s := range list {
		byID[s.Chat.ID] = s.Unread
	}
	if byID[c1.ID] != 2 || byID[c2.ID] != 0 {
		t.Fatalf("unread counts = %v; want c1:2 c2:0", byID)
	}
}

func TestChatGet_ParticipantOnly(t *testing.T) {
	db := newChatSvcDB(t)
	uid, mid := seedChatPair(t, db)
	svc := NewChatService(db, nil)
	ctx := context.Background()

	chat, err := svc.Create(ctx, userRef(uid), modelRef(mid))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := svc.Get(ctx, uid, chat.ID)
	if err != nil {
		t.Fatalf("Get as participant: %v", err)
	}
	if got.ID != chat.ID {
		t.Fatalf("wrong chat: %s", got.ID)
	}

	// An outsider sees the same error as a missing chat.
	if _, err := svc.Get(ctx, "outsider", chat.ID); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("outsider: expected ErrChatNotFound, got %v", err)
	}
	if _, err := svc.Get(ctx, uid, "ghost"); !errors.Is(err, ErrChatNotFound) {
		t.Fatalf("missing chat: expected ErrChatNotFound, got %v", err)
	}
}
