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

func newIdemDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("idempotency_test_%d.db", time.Now().UnixNano()))
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
	if err := db.AutoMigrate(&domain.Idempotency{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestIdempotency_StoreAndLookup(t *testing.T) {
	db := newIdemDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec, err := CreateIdempotency(ctx, db, "acc1", "c1", "k1", "e1", 201, time.Hour)
	if err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	if rec.EntryID != "e1" || rec.Status != 201 {
		t.Fatalf("unexpected record: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "acc1", "c1", "k1", now)
	if err != nil {
		t.Fatalf("GetIdempotency: %v", err)
	}
	if got.EntryID != "e1" {
		t.Fatalf("lookup returned %+v", got)
	}
}

func TestIdempotency_ScopedToTuple(t *testing.T) {
	db := newIdemDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := CreateIdempotency(ctx, db, "acc1", "c1", "k1", "e1", 201, time.Hour); err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}

	// The same key in another chat or for another account is a miss.
	if _, err := GetIdempotency(ctx, db, "acc1", "c2", "k1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other chat: expected ErrNotFound, got %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "acc2", "c1", "k1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other account: expected ErrNotFound, got %v", err)
	}
	if _, err := GetIdempotency(ctx, db, "acc1", "", "k1", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank chat: expected ErrNotFound, got %v", err)
	}
}

func TestIdempotency_DuplicateTupleRejected(t *testing.T) {
	db := newIdemDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "acc1", "c1", "k1", "e1", 201, time.Hour); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "acc1", "c1", "k1", "e2", 201, time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestIdempotency_ExpiredRecordIsMiss(t *testing.T) {
	db := newIdemDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "acc1", "c1", "k1", "e1", 201, time.Millisecond); err != nil {
		t.Fatalf("CreateIdempotency: %v", err)
	}
	later := time.Now().UTC().Add(time.Second)
	if _, err := GetIdempotency(ctx, db, "acc1", "c1", "k1", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired record, got %v", err)
	}
}
