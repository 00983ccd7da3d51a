package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/amoria-app/backend/internal/auth"
	"github.com/amoria-app/backend/internal/domain"
	"github.com/amoria-app/backend/internal/repo"
)

const testBotToken = "123456:TEST-TOKEN"

func newAuthSvcDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("auth_service_test_%d.db", time.Now().UnixNano()))
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
	if err := db.AutoMigrate(&domain.UserProfile{}, &domain.Balance{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// signedLogin builds a widget payload with a valid hash for testBotToken.
func signedLogin(t *testing.T, d auth.LoginData) auth.LoginData {
	t.Helper()
	fields := map[string]string{
		"id":        strconv.FormatInt(d.ID, 10),
		"auth_date": strconv.FormatInt(d.AuthDate, 10),
	}
	if d.FirstName != "" {
		fields["first_name"] = d.FirstName
	}
	if d.LastName != "" {
		fields["last_name"] = d.LastName
	}
	if d.Username != "" {
		fields["username"] = d.Username
	}
	if d.PhotoURL != "" {
		fields["photo_url"] = d.PhotoURL
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+fields[k])
	}
	secret := sha256.Sum256([]byte(testBotToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(lines, "\n")))
	d.Hash = hex.EncodeToString(mac.Sum(nil))
	return d
}

func newAuthSvc(db *gorm.DB, now time.Time) *AuthService {
	return &AuthService{
		DB:       db,
		BotToken: testBotToken,
		Minter:   auth.NewMinter("secret-1", time.Hour),
		now:      func() time.Time { return now },
	}
}

func TestLoginTelegram_RegistersAccountWithBalance(t *testing.T) {
	db := newAuthSvcDB(t)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc := newAuthSvc(db, now)
	ctx := context.Background()

	d := signedLogin(t, auth.LoginData{
		ID:        42,
		FirstName: "Alice",
		LastName:  "Smith",
		AuthDate:  now.Add(-time.Minute).Unix(),
	})

	sess, err := svc.LoginTelegram(ctx, d)
	if err != nil {
		t.Fatalf("LoginTelegram: %v", err)
	}
	if sess.Token == "" {
		t.Fatalf("no token minted")
	}
	if sess.Account.TelegramID != 42 || sess.Account.Role != domain.RoleUser {
		t.Fatalf("unexpected account: %+v", sess.Account)
	}
	if sess.Account.DisplayName != "Alice Smith" {
		t.Fatalf("display name = %q; want Alice Smith", sess.Account.DisplayName)
	}

	tokens, err := repo.GetBalance(ctx, db, sess.Account.ID)
	if err != nil {
		t.Fatalf("balance row missing: %v", err)
	}
	if tokens != 0 {
		t.Fatalf("fresh balance = %d; want 0", tokens)
	}

	claims, err := svc.Minter.Parse(sess.Token)
	if err != nil {
		t.Fatalf("minted token does not parse: %v", err)
	}
	if claims.Subject != sess.Account.ID || claims.Role != string(domain.RoleUser) {
		t.Fatalf("token claims wrong: %+v", claims)
	}
}

func TestLoginTelegram_RepeatLoginReusesAccount(t *testing.T) {
	db := newAuthSvcDB(t)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc := newAuthSvc(db, now)
	ctx := context.Background()

	d := signedLogin(t, auth.LoginData{ID: 42, Username: "alice42", AuthDate: now.Add(-time.Minute).Unix()})

	first, err := svc.LoginTelegram(ctx, d)
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	second, err := svc.LoginTelegram(ctx, d)
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if first.Account.ID != second.Account.ID {
		t.Fatalf("account duplicated: %s vs %s", first.Account.ID, second.Account.ID)
	}

	var count int64
	if err := db.Model(&domain.UserProfile{}).Count(&count).Error; err != nil {
		t.Fatalf("count profiles: %v", err)
	}
	if count != 1 {
		t.Fatalf("profile count = %d; want 1", count)
	}
}

func TestLoginTelegram_UsernameFallback(t *testing.T) {
	db := newAuthSvcDB(t)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc := newAuthSvc(db, now)

	d := signedLogin(t, auth.LoginData{ID: 43, Username: "nicknameonly", AuthDate: now.Add(-time.Minute).Unix()})
	sess, err := svc.LoginTelegram(context.Background(), d)
	if err != nil {
		t.Fatalf("LoginTelegram: %v", err)
	}
	if sess.Account.DisplayName != "nicknameonly" {
		t.Fatalf("display name = %q; want username fallback", sess.Account.DisplayName)
	}
}

func TestLoginTelegram_RejectsBadSignature(t *testing.T) {
	db := newAuthSvcDB(t)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc := newAuthSvc(db, now)

	d := signedLogin(t, auth.LoginData{ID: 42, AuthDate: now.Add(-time.Minute).Unix()})
	d.ID = 43 // payload altered after signing

	if _, err := svc.LoginTelegram(context.Background(), d); !errors.Is(err, ErrBadLogin) {
		t.Fatalf("expected ErrBadLogin, got %v", err)
	}
	var count int64
	if err := db.Model(&domain.UserProfile{}).Count(&count).Error; err != nil {
		t.Fatalf("count profiles: %v", err)
	}
	if count != 0 {
		t.Fatalf("account created from rejected login")
	}
}

func TestLoginTelegram_RejectsStalePayload(t *testing.T) {
	db := newAuthSvcDB(t)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc := newAuthSvc(db, now)

	d := signedLogin(t, auth.LoginData{ID: 42, AuthDate: now.Add(-auth.MaxLoginAge - time.Hour).Unix()})
	if _, err := svc.LoginTelegram(context.Background(), d); !errors.Is(err, ErrBadLogin) {
		t.Fatalf("expected ErrBadLogin for stale payload, got %v", err)
	}
}

func TestLoginTelegram_NoMinterConfigured(t *testing.T) {
	db := newAuthSvcDB(t)
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	svc := newAuthSvc(db, now)
	svc.Minter = nil

	d := signedLogin(t, auth.LoginData{ID: 42, FirstName: "Alice", AuthDate: now.Unix()})
	if _, err := svc.LoginTelegram(context.Background(), d); !errors.Is(err, ErrAuthDisabled) {
		t.Fatalf("expected ErrAuthDisabled, got %v", err)
	}

	// The refusal must happen before any account row is written.
	var accounts int64
	if err := db.Model(&domain.UserProfile{}).Count(&accounts).Error; err != nil {
		t.Fatalf("count accounts: %v", err)
	}
	if accounts != 0 {
		t.Fatalf("accounts created despite disabled auth: %d", accounts)
	}
}
