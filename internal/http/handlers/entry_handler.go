// Chat entry HTTP handlers.
//
// This file exposes the entry endpoints:
//   - POST /chats/{id}/entries  (send a text entry, quota-charged)
//   - GET  /chats/{id}/entries  (reverse-paginated listing)
//   - POST /entries/read        (acknowledge entries as read)
//   - GET  /me/unread           (unread totals, overall and per chat)
//
// Sending supports safe retries: with an Idempotency-Key header, a repeat
// of a completed request returns the recorded entry and sets
// Idempotency-Replayed: true instead of creating a second one. The
// client-side local_entry_id is echoed back verbatim so optimistic UI
// echoes can be reconciled.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/amoria-app/backend/internal/domain"
	"github.com/amoria-app/backend/internal/http/middleware"
	"github.com/amoria-app/backend/internal/repo"
	"github.com/amoria-app/backend/internal/services"
)

//
// DTOs
//

// PostEntryRequest is the JSON payload for sending a text entry.
type PostEntryRequest struct {
	// Body is the text content; required, trimmed by the server.
	Body string `json:"body" binding:"required,min=1"`
	// AttachmentIDs references previously uploaded files.
	AttachmentIDs []string `json:"attachment_ids"`
	// LocalEntryID is an opaque client token echoed back unchanged.
	LocalEntryID string `json:"local_entry_id"`
}

// PostEntryResponse is the envelope for a newly created (or replayed) entry.
type PostEntryResponse struct {
	Entry        *domain.ChatEntry `json:"entry"`
	LocalEntryID string            `json:"local_entry_id,omitempty"`
}

// ListEntriesResponse contains a page of entries plus pagination metadata.
// Page 1 is the newest window; entries inside every page ascend by
// creation time.
type ListEntriesResponse struct {
	Entries    []services.EntryView `json:"entries"`
	Pagination Pagination           `json:"pagination"`
}

// MarkReadRequest lists the entries the caller acknowledges.
type MarkReadRequest struct {
	EntryIDs []string `json:"entry_ids" binding:"required,min=1"`
}

// UnreadResponse reports the caller's unread totals.
type UnreadResponse struct {
	Total  int64            `json:"total"`
	ByChat map[string]int64 `json:"by_chat"`
}

// nlCollapseRE collapses runs of 3+ newlines down to a paragraph break.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeBody normalizes line endings, collapses excess blank lines, and
// trims surrounding whitespace.
func sanitizeBody(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

//
// Handlers
//

// PostEntry appends a text entry to the chat, charging the caller's daily
// quota. With an Idempotency-Key, completed sends replay instead of
// duplicating.
func (h *Handlers) PostEntry(c *gin.Context) {
	ctx := c.Request.Context()
	chatID := c.Param("id")
	uid := userID(c)

	var req PostEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body required")
		return
	}
	body := sanitizeBody(req.Body)
	if body == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body required")
		return
	}

	// Replay path: a stored result for (account, chat, key) wins.
	idemKey, _ := middleware.GetIdempotencyKey(c)
	if idemKey != "" {
		if rec, err := repo.GetIdempotency(ctx, h.db, uid, chatID, idemKey, time.Now().UTC()); err == nil && rec != nil {
			if prev, err2 := repo.GetEntry(h.db, rec.EntryID); err2 == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, http.StatusOK, PostEntryResponse{Entry: prev, LocalEntryID: req.LocalEntryID})
				return
			}
		}
	}

	entry, err := h.entrySvc.SendText(ctx, uid, chatID, body, req.AttachmentIDs, req.LocalEntryID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
		case errors.Is(err, services.ErrNotParticipant):
			fail(c, http.StatusForbidden, ErrCodeForbidden, "not a chat participant")
		case errors.Is(err, services.ErrEmptyBody):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "body required")
		case errors.Is(err, services.ErrTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Sprintf("body too long: max %d runes", h.entrySvc.MaxBodyRunes))
		case errors.Is(err, services.ErrNoActiveTariff):
			fail(c, http.StatusPaymentRequired, ErrCodeNoTariff, "no active tariff")
		case errors.Is(err, services.ErrDailyLimitReached):
			fail(c, http.StatusTooManyRequests, ErrCodeQuotaExceeded, "daily send limit reached")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSendFailed, err.Error())
		}
		return
	}

	// Store path, best effort: a failed insert only loses replayability.
	if idemKey != "" {
		_, _ = repo.CreateIdempotency(ctx, h.db, uid, chatID, idemKey, entry.ID, http.StatusCreated, h.idemTTL)
	}

	ok(c, http.StatusCreated, PostEntryResponse{Entry: entry, LocalEntryID: req.LocalEntryID})
}

// ListEntries returns one reverse-paginated window of the chat's entries,
// decorated with senders, attachments, and the caller's read flags.
func (h *Handlers) ListEntries(c *gin.Context) {
	page, pageSize := clampPagination(c)

	items, total, err := h.entrySvc.ListPage(c.Request.Context(), userID(c), c.Param("id"), page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrChatNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	ok(c, http.StatusOK, ListEntriesResponse{
		Entries: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// MarkRead acknowledges the listed entries as read by the caller.
// Re-acknowledging is a no-op, so retries always answer 204.
func (h *Handlers) MarkRead(c *gin.Context) {
	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "entry_ids required")
		return
	}
	if err := h.entrySvc.MarkRead(c.Request.Context(), userID(c), req.EntryIDs); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	noContent(c)
}

// Unread reports the caller's unread totals. An optional chat_id query
// scopes the total to one chat.
func (h *Handlers) Unread(c *gin.Context) {
	ctx := c.Request.Context()
	uid := userID(c)

	var chatID *string
	if q := strings.TrimSpace(c.Query("chat_id")); q != "" {
		chatID = &q
	}

	total, err := h.entrySvc.UnreadCount(ctx, uid, chatID)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	byChat, err := h.entrySvc.UnreadByChat(ctx, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, UnreadResponse{Total: total, ByChat: byChat})
}
