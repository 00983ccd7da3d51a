package repo

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
)

func newBalanceDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("balance_repo_test_%d.db", time.Now().UnixNano()))
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
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestCreateAndGetBalance(t *testing.T) {
	db := newBalanceDB(t, &domain.Balance{})
	ctx := context.Background()

	if err := CreateBalance(ctx, db, "acc1"); err != nil {
		t.Fatalf("CreateBalance: %v", err)
	}
	tokens, err := GetBalance(ctx, db, "acc1")
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if tokens != 0 {
		t.Fatalf("fresh balance = %d; want 0", tokens)
	}
}

func TestGetBalance_Missing(t *testing.T) {
	db := newBalanceDB(t, &domain.Balance{})
	if _, err := GetBalance(context.Background(), db, "ghost"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found, got %v", err)
	}
}

func TestDebit_Success(t *testing.T) {
	db := newBalanceDB(t, &domain.Balance{})
	ctx := context.Background()

	seedBalance(t, db, "acc1", 100)
	if err := Debit(db, "acc1", 30); err != nil {
		t.Fatalf("Debit: %v", err)
	}
	tokens, _ := GetBalance(ctx, db, "acc1")
	if tokens != 70 {
		t.Fatalf("balance after debit = %d; want 70", tokens)
	}
}

func TestDebit_InsufficientFunds_NoChange(t *testing.T) {
	db := newBalanceDB(t, &domain.Balance{})
	ctx := context.Background()

	seedBalance(t, db, "acc1", 10)
	err := Debit(db, "acc1", 30)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	tokens, _ := GetBalance(ctx, db, "acc1")
	if tokens != 10 {
		t.Fatalf("balance changed on failed debit: %d", tokens)
	}
}

func TestDebit_ExactBalanceToZero(t *testing.T) {
	db := newBalanceDB(t, &domain.Balance{})

	seedBalance(t, db, "acc1", 30)
	if err := Debit(db, "acc1", 30); err != nil {
		t.Fatalf("Debit exact amount: %v", err)
	}
	tokens, _ := GetBalance(context.Background(), db, "acc1")
	if tokens != 0 {
		t.Fatalf("balance = %d; want 0", tokens)
	}
}

func TestDebit_MissingAccount(t *testing.T) {
	db := newBalanceDB(t, &domain.Balance{})
	if err := Debit(db, "ghost", 5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing account, got %v", err)
	}
}

func TestCredit_SuccessAndMissing(t *testing.T) {
	db := newBalanceDB(t, &domain.Balance{})
	ctx := context.Background()

	seedBalance(t, db, "acc1", 5)
	if err := Credit(db, "acc1", 50); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	tokens, _ := GetBalance(ctx, db, "acc1")
	if tokens != 55 {
		t.Fatalf("balance after credit = %d; want 55", tokens)
	}

	if err := Credit(db, "ghost", 50); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound crediting missing account, got %v", err)
	}
}

func seedBalance(t *testing.T, db *gorm.DB, accountID string, tokens int64) {
	t.Helper()
	if err := db.Create(&domain.Balance{AccountID: accountID, Tokens: tokens}).Error; err != nil {
		t.Fatalf("seed balance %s: %v", accountID, err)
	}
}
