// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides read helpers for the gift and tariff
// catalogs, profile lookups, and subscription upkeep.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/amoria-app/backend/internal/domain"
)

// GetGift fetches a catalog gift by ID (active or not), or ErrNotFound.
func GetGift(ctx context.Context, db *gorm.DB, id string) (*domain.Gift, error) {
	var g domain.Gift
	if err := db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// ListActiveGifts returns the purchasable gifts, cheapest first.
func ListActiveGifts(ctx context.Context, db *gorm.DB) ([]domain.Gift, error) {
	var out []domain.Gift
	err := db.WithContext(ctx).
		Where("active = ?", true).
		Order("price asc").
		Find(&out).Error
	return out, err
}

// GetTariff fetches a tariff by ID, or ErrNotFound.
func GetTariff(ctx context.Context, db *gorm.DB, id string) (*domain.Tariff, error) {
	var t domain.Tariff
	if err := db.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

// GetUserProfile fetches an end-user profile by ID, or ErrNotFound.
func GetUserProfile(ctx context.Context, db *gorm.DB, id string) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetUserProfileByTelegramID fetches the account registered for a Telegram
// user id, or ErrNotFound.
func GetUserProfileByTelegramID(ctx context.Context, db *gorm.DB, telegramID int64) (*domain.UserProfile, error) {
	var p domain.UserProfile
	if err := db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateUserProfile inserts a new account row.
func CreateUserProfile(ctx context.Context, db *gorm.DB, telegramID int64, role domain.Role, displayName string) (*domain.UserProfile, error) {
	p := &domain.UserProfile{
		ID:          uuid.NewString(),
		TelegramID:  telegramID,
		Role:        role,
		DisplayName: displayName,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// GetModelProfile fetches a persona by ID, or ErrNotFound.
func GetModelProfile(ctx context.Context, db *gorm.DB, id string) (*domain.ModelProfile, error) {
	var m domain.ModelProfile
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// UserProfilesByIDs bulk-loads end-user profiles keyed by id.
func UserProfilesByIDs(ctx context.Context, db *gorm.DB, ids []string) (map[string]domain.UserProfile, error) {
	out := make(map[string]domain.UserProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.UserProfile
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// ModelProfilesByIDs bulk-loads personas keyed by id.
func ModelProfilesByIDs(ctx context.Context, db *gorm.DB, ids []string) (map[string]domain.ModelProfile, error) {
	out := make(map[string]domain.ModelProfile, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []domain.ModelProfile
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[r.ID] = r
	}
	return out, nil
}

// GetSubscription fetches the account's subscription row, or ErrNotFound.
func GetSubscription(ctx context.Context, db *gorm.DB, accountID string) (*domain.Subscription, error) {
	var s domain.Subscription
	if err := db.WithContext(ctx).Where("account_id = ?", accountID).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

// ExtendSubscription pushes the account's expiry forward by duration from
// max(now, current expiration), creating the row when absent. The extension
// never resets an unexpired remainder.
func ExtendSubscription(db *gorm.DB, accountID, tariffID string, duration time.Duration, now time.Time) (*domain.Subscription, error) {
	var s domain.Subscription
	err := db.Where("account_id = ?", accountID).First(&s).Error
	switch {
	case err == nil:
		base := now
		if s.ExpiresAt.After(now) {
			base = s.ExpiresAt
		}
		s.TariffID = tariffID
		s.ExpiresAt = base.Add(duration)
		s.UpdatedAt = now
		if err := db.Save(&s).Error; err != nil {
			return nil, err
		}
		return &s, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		s = domain.Subscription{
			ID:        uuid.NewString(),
			AccountID: accountID,
			TariffID:  tariffID,
			ExpiresAt: now.Add(duration),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.Create(&s).Error; err != nil {
			return nil, err
		}
		return &s, nil
	default:
		return nil, err
	}
}
