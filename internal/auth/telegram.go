package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Login-widget verification errors.
var (
	ErrBadSignature = errors.New("telegram login data signature mismatch")
	ErrStaleLogin   = errors.New("telegram login data too old")
)

// MaxLoginAge bounds how old a login-widget payload may be before it is
// rejected as replayed.
const MaxLoginAge = 24 * time.Hour

// LoginData is the field set Telegram's login widget posts to the callback.
type LoginData struct {
	ID        int64  `json:"id" binding:"required"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Username  string `json:"username"`
	PhotoURL  string `json:"photo_url"`
	AuthDate  int64  `json:"auth_date" binding:"required"`
	Hash      string `json:"hash" binding:"required"`
}

// VerifyLogin checks the widget payload against the bot token per the
// Telegram scheme: HMAC-SHA256 over the sorted key=value lines of every
// field except hash, keyed with SHA256(botToken). AuthDate older than
// MaxLoginAge fails even with a valid signature.
func VerifyLogin(d LoginData, botToken string, now time.Time) error {
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
	checkString := strings.Join(lines, "\n")

	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(checkString))
	want := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(want), []byte(strings.ToLower(d.Hash))) {
		return ErrBadSignature
	}
	if now.Sub(time.Unix(d.AuthDate, 0)) > MaxLoginAge {
		return ErrStaleLogin
	}
	return nil
}
