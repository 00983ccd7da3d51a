// Package services – AuthService
//
// This file implements the login flow: a signed Telegram login-widget
// payload is verified against the bot token, the matching account is
// loaded or created (with its zero balance row), and a session token is
// minted for it.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/amoria-app/backend/internal/auth"
	"github.com/amoria-app/backend/internal/domain"
	"github.com/amoria-app/backend/internal/repo"
	"github.com/amoria-app/backend/internal/sysutil"
)

// AuthService verifies Telegram logins and issues session tokens.
type AuthService struct {
	DB       *gorm.DB
	BotToken string
	Minter   *auth.Minter

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

// Session is a successful login result.
type Session struct {
	Account *domain.UserProfile `json:"account"`
	Token   string              `json:"token"`
}

// LoginTelegram verifies the widget payload, finds or registers the
// account, and returns a signed session token. New accounts start with the
// default user role and an empty balance.
func (s *AuthService) LoginTelegram(ctx context.Context, d auth.LoginData) (*Session, error) {
	// Without a signing secret no session can be issued; refuse before any
	// account row is written.
	if s.Minter == nil {
		return nil, ErrAuthDisabled
	}
	if err := auth.VerifyLogin(d, s.BotToken, s.clock()); err != nil {
		log.Warn().Int64("telegram_id", d.ID).Err(err).Msg("telegram login rejected")
		return nil, ErrBadLogin
	}

	account, err := repo.GetUserProfileByTelegramID(ctx, s.DB, d.ID)
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			p, err := repo.CreateUserProfile(ctx, tx, d.ID, domain.RoleUser, displayName(d))
			if err != nil {
				return err
			}
			if err := repo.CreateBalance(ctx, tx, p.ID); err != nil {
				return err
			}
			account = p
			return nil
		})
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	token, err := s.Minter.Mint(account.ID, string(account.Role))
	if err != nil {
		return nil, err
	}
	return &Session{Account: account, Token: token}, nil
}

// displayName builds a human name from the widget fields, preferring the
// real name over the handle.
func displayName(d auth.LoginData) string {
	name := strings.TrimSpace(strings.TrimSpace(d.FirstName) + " " + strings.TrimSpace(d.LastName))
	return sysutil.FirstNonEmpty(name, d.Username, "user")
}

func (s *AuthService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}
