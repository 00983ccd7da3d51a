// Package auth covers session issuance and verification: Telegram
// login-widget signature checks on the way in, HS256 JWTs on the way out.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails signature,
// expiration, or claims validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the session token payload. Subject carries the account id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Minter issues and verifies session tokens with a shared HS256 secret.
type Minter struct {
	secret []byte
	ttl    time.Duration

	// now is a test seam; defaults to time.Now.
	now func() time.Time
}

// NewMinter constructs a Minter. ttl bounds token lifetime.
func NewMinter(secret string, ttl time.Duration) *Minter {
	return &Minter{secret: []byte(secret), ttl: ttl}
}

// Mint signs a session token for accountID with the given role.
func (m *Minter) Mint(accountID, role string) (string, error) {
	issued := m.clock().UTC()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(m.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// Parse verifies a session token and returns its claims.
func (m *Minter) Parse(raw string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (m *Minter) clock() time.Time {
	if m.now != nil {
		return m.now()
	}
	return time.Now()
}
