// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header on unsafe methods, stashes
// the normalized key in the request context, and optionally consults a
// lookup to detect a completed prior request. Handlers stay in control of
// how replays are served; the middleware only flags them (and lets the rate
// limiter wave them through).
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey is the request header clients send to make retries
// of an unsafe operation safe. The value must be stable per semantic
// operation.
const HeaderIdempotencyKey = "Idempotency-Key"

// Unexported context keys for idempotency state; read via the accessors.
const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

// GetIdempotencyKey returns the validated key stashed by
// IdempotencyValidator. Handlers should use this rather than reading the
// header themselves.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxKeyIdemKey)
	if !ok {
		return "", false
	}
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether a stored result already exists for this
// (user, chat, key) tuple.
func IsReplay(c *gin.Context) bool {
	v, ok := c.Get(ctxKeyIdemReplay)
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// IdempotencyOptions configures header validation. TTL enforcement belongs
// in the lookup, not here.
type IdempotencyOptions struct {
	// MaxLen caps the accepted key length; values <= 0 default to 200.
	MaxLen int
	// Pattern restricts allowed characters; nil falls back to a
	// conservative token pattern.
	Pattern *regexp.Regexp
}

// IdempotencyLookup answers whether a still-valid completed result exists
// for (accountID, chatID, key). Lookup errors must not block normal
// processing.
type IdempotencyLookup func(ctx context.Context, accountID, chatID, key string, now time.Time) (exists bool, err error)

// IdempotencyValidator validates the header when present (400 on a
// malformed key, no-op when absent), stashes the key, and marks replay and
// rate-bypass flags when the lookup finds a prior result.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	pat := opts.Pattern
	if pat == nil {
		pat = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":    "bad_idempotency_key",
				"message": "invalid Idempotency-Key",
			})
			return
		}

		c.Set(ctxKeyIdemKey, key)

		if lookup != nil {
			uid := userIDFromCtx(c)
			chatID := c.Param("id") // send routes are POST /chats/:id/...
			if exists, _ := lookup(c.Request.Context(), uid, chatID, key, time.Now().UTC()); exists {
				c.Set(ctxKeyIdemReplay, true)
				c.Set(ctxKeyRateBypass, true)
			}
		}

		c.Next()
	}
}

// userIDFromCtx reads the identity set by the auth middleware.
func userIDFromCtx(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
