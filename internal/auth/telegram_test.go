package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"
)

const testBotToken = "123456:TEST-TOKEN"

// signLogin computes the widget hash the same way Telegram does so the
// verifier can be exercised against known-good payloads.
func signLogin(d LoginData, botToken string) string {
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
	secret := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secret[:])
	mac.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyLogin_ValidSignature(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	d := LoginData{
		ID:        42,
		FirstName: "Alice",
		Username:  "alice42",
		AuthDate:  now.Add(-time.Minute).Unix(),
	}
	d.Hash = signLogin(d, testBotToken)

	if err := VerifyLogin(d, testBotToken, now); err != nil {
		t.Fatalf("VerifyLogin: %v", err)
	}
}

func TestVerifyLogin_EmptyFieldsExcludedFromCheckString(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	// Only the required fields are present; empty optionals must not
	// contribute key=value lines.
	d := LoginData{ID: 42, AuthDate: now.Add(-time.Minute).Unix()}
	d.Hash = signLogin(d, testBotToken)

	if err := VerifyLogin(d, testBotToken, now); err != nil {
		t.Fatalf("VerifyLogin minimal payload: %v", err)
	}
}

func TestVerifyLogin_UppercaseHashAccepted(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	d := LoginData{ID: 42, AuthDate: now.Add(-time.Minute).Unix()}
	d.Hash = strings.ToUpper(signLogin(d, testBotToken))

	if err := VerifyLogin(d, testBotToken, now); err != nil {
		t.Fatalf("VerifyLogin uppercase hash: %v", err)
	}
}

func TestVerifyLogin_TamperedField(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	d := LoginData{ID: 42, FirstName: "Alice", AuthDate: now.Add(-time.Minute).Unix()}
	d.Hash = signLogin(d, testBotToken)
	d.FirstName = "Mallory"

	if err := VerifyLogin(d, testBotToken, now); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyLogin_WrongBotToken(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	d := LoginData{ID: 42, AuthDate: now.Add(-time.Minute).Unix()}
	d.Hash = signLogin(d, "999:OTHER-TOKEN")

	if err := VerifyLogin(d, testBotToken, now); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyLogin_StalePayload(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	d := LoginData{ID: 42, AuthDate: now.Add(-MaxLoginAge - time.Minute).Unix()}
	d.Hash = signLogin(d, testBotToken)

	if err := VerifyLogin(d, testBotToken, now); !errors.Is(err, ErrStaleLogin) {
		t.Fatalf("expected ErrStaleLogin, got %v", err)
	}
}
