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

func newQuotaDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("quota_repo_test_%d.db", time.Now().UnixNano()))
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
	if err := db.AutoMigrate(&domain.Tariff{}, &domain.TariffAssignment{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedTariffAndAssignment(t *testing.T, db *gorm.DB, accountID string, limit, sentToday int) *domain.TariffAssignment {
	t.Helper()
	tariff := domain.Tariff{ID: "t1", Title: "Basic", Price: 40, EntriesDailyLimit: limit, DurationDays: 30, Active: true}
	if err := db.Create(&tariff).Error; err != nil {
		t.Fatalf("seed tariff: %v", err)
	}
	a := domain.TariffAssignment{
		ID:               "a1",
		AccountID:        accountID,
		TariffID:         tariff.ID,
		EntriesSentToday: sentToday,
		LastResetDate:    time.Now().UTC(),
	}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("seed assignment: %v", err)
	}
	return &a
}

func TestGetAssignment_PreloadsTariff(t *testing.T) {
	db := newQuotaDB(t)
	seedTariffAndAssignment(t, db, "acc1", 5, 2)

	a, err := GetAssignment(context.Background(), db, "acc1")
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if a.Tariff.EntriesDailyLimit != 5 {
		t.Fatalf("tariff not preloaded: %+v", a.Tariff)
	}
	if a.EntriesSentToday != 2 {
		t.Fatalf("EntriesSentToday = %d; want 2", a.EntriesSentToday)
	}
}

func TestGetAssignment_Missing(t *testing.T) {
	db := newQuotaDB(t)
	if _, err := GetAssignment(context.Background(), db, "ghost"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected record-not-found, got %v", err)
	}
}

func TestIncrementSentToday_BelowLimit(t *testing.T) {
	db := newQuotaDB(t)
	a := seedTariffAndAssignment(t, db, "acc1", 5, 4)

	ok, err := IncrementSentToday(db, a.ID, 5)
	if err != nil {
		t.Fatalf("IncrementSentToday: %v", err)
	}
	if !ok {
		t.Fatalf("increment below limit refused")
	}

	var got domain.TariffAssignment
	if err := db.First(&got, "id = ?", a.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.EntriesSentToday != 5 {
		t.Fatalf("EntriesSentToday = %d; want 5", got.EntriesSentToday)
	}
}

func TestIncrementSentToday_AtLimitRefuses(t *testing.T) {
	db := newQuotaDB(t)
	a := seedTariffAndAssignment(t, db, "acc1", 5, 5)

	ok, err := IncrementSentToday(db, a.ID, 5)
	if err != nil {
		t.Fatalf("IncrementSentToday: %v", err)
	}
	if ok {
		t.Fatalf("increment at limit must refuse")
	}

	var got domain.TariffAssignment
	if err := db.First(&got, "id = ?", a.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.EntriesSentToday != 5 {
		t.Fatalf("counter moved past limit: %d", got.EntriesSentToday)
	}
}

func TestResetAssignment_ZeroesCounter(t *testing.T) {
	db := newQuotaDB(t)
	a := seedTariffAndAssignment(t, db, "acc1", 5, 3)

	reset := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	if err := ResetAssignment(db, a.ID, reset); err != nil {
		t.Fatalf("ResetAssignment: %v", err)
	}

	var got domain.TariffAssignment
	if err := db.First(&got, "id = ?", a.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.EntriesSentToday != 0 {
		t.Fatalf("counter not reset: %d", got.EntriesSentToday)
	}
	if !got.LastResetDate.Equal(reset) {
		t.Fatalf("LastResetDate = %v; want %v", got.LastResetDate, reset)
	}
}

func TestUpsertAssignment_CreatesWhenAbsent(t *testing.T) {
	db := newQuotaDB(t)
	if err := db.Create(&domain.Tariff{ID: "t1", Title: "Basic", EntriesDailyLimit: 5, DurationDays: 30, Active: true}).Error; err != nil {
		t.Fatalf("seed tariff: %v", err)
	}

	if err := UpsertAssignment(db, "acc1", "t1", time.Now().UTC()); err != nil {
		t.Fatalf("UpsertAssignment: %v", err)
	}

	a, err := GetAssignment(context.Background(), db, "acc1")
	if err != nil {
		t.Fatalf("GetAssignment after upsert: %v", err)
	}
	if a.TariffID != "t1" || a.EntriesSentToday != 0 {
		t.Fatalf("unexpected assignment: %+v", a)
	}
}

func TestUpsertAssignment_KeepsCounterOnTariffSwitch(t *testing.T) {
	db := newQuotaDB(t)
	seedTariffAndAssignment(t, db, "acc1", 5, 3)
	if err := db.Create(&domain.Tariff{ID: "t2", Title: "Pro", EntriesDailyLimit: 20, DurationDays: 30, Active: true}).Error; err != nil {
		t.Fatalf("seed second tariff: %v", err)
	}

	if err := UpsertAssignment(db, "acc1", "t2", time.Now().UTC()); err != nil {
		t.Fatalf("UpsertAssignment: %v", err)
	}

	a, err := GetAssignment(context.Background(), db, "acc1")
	if err != nil {
		t.Fatalf("GetAssignment: %v", err)
	}
	if a.TariffID != "t2" {
		t.Fatalf("tariff not switched: %+v", a)
	}
	// Switching mid-day keeps the spent allowance.
	if a.EntriesSentToday != 3 {
		t.Fatalf("counter reset on switch: %d", a.EntriesSentToday)
	}
}
