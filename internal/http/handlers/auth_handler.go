// Auth HTTP handlers.
//
// POST /auth/telegram exchanges a signed Telegram login-widget payload for
// a session token. The widget's HMAC is the only credential; there is no
// password path.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amoria-app/backend/internal/auth"
	"github.com/amoria-app/backend/internal/services"
)

// LoginTelegram verifies the widget payload and answers with the account
// and its session token. Tampered or stale payloads answer 401.
func (h *Handlers) LoginTelegram(c *gin.Context) {
	var req auth.LoginData
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id, auth_date and hash required")
		return
	}

	session, err := h.authSvc.LoginTelegram(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrBadLogin):
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "login verification failed")
		case errors.Is(err, services.ErrAuthDisabled):
			fail(c, http.StatusServiceUnavailable, ErrCodeAuthDisabled, "login is not configured on this server")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		}
		return
	}
	ok(c, http.StatusOK, session)
}
