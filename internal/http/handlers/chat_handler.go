// Chat HTTP handlers.
//
// This file carries the Handlers wiring plus the chat endpoints:
//   - POST /chats        (open a direct chat with a peer)
//   - GET  /chats        (list the caller's chats with unread counts)
//   - GET  /chats/{id}   (fetch one chat the caller participates in)
//
// Handlers are transport-thin: validate and normalize inputs, delegate to
// the service layer, and translate sentinel errors into HTTP responses.
package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/amoria-app/backend/internal/events"
	"github.com/amoria-app/backend/internal/payments"
	"github.com/amoria-app/backend/internal/repo"
	"github.com/amoria-app/backend/internal/services"
	"github.com/amoria-app/backend/internal/utils"
)

// Handlers groups the HTTP endpoints and their service dependencies.
type Handlers struct {
	authSvc    *services.AuthService
	chatSvc    *services.ChatService
	entrySvc   *services.EntryService
	giftSvc    *services.GiftService
	billingSvc *services.BillingService

	broker   *events.Broker
	provider payments.Provider
	db       *gorm.DB
	idemTTL  time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(
	authSvc *services.AuthService,
	chatSvc *services.ChatService,
	entrySvc *services.EntryService,
	giftSvc *services.GiftService,
	billingSvc *services.BillingService,
	broker *events.Broker,
	provider payments.Provider,
	db *gorm.DB,
	idemTTL time.Duration,
) *Handlers {
	return &Handlers{
		authSvc:    authSvc,
		chatSvc:    chatSvc,
		entrySvc:   entrySvc,
		giftSvc:    giftSvc,
		billingSvc: billingSvc,
		broker:     broker,
		provider:   provider,
		db:         db,
		idemTTL:    idemTTL,
	}
}

// userID extracts the authenticated account id from the Gin context (set by
// the auth middleware). The X-User-ID header is a fallback used by tests.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return ""
}

// roleOf extracts the authenticated role, empty when unknown.
func roleOf(c *gin.Context) string {
	if v, ok := c.Get("role"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

//
// DTOs
//

// CreateChatRequest names the peer the caller wants a direct chat with.
// Exactly one of the two ids must be set.
type CreateChatRequest struct {
	PeerUserID  string `json:"peer_user_id"`
	PeerModelID string `json:"peer_model_id"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListChatsResponse wraps the caller's chat summaries.
type ListChatsResponse struct {
	Chats []services.ChatSummary `json:"chats"`
}

// clampPagination parses and bounds the page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

//
// Handlers
//

// CreateChat opens a direct chat between the caller and the named peer.
// A second chat for the same pair answers 409.
func (h *Handlers) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	uid := userID(c)
	self := repo.ParticipantRef{UserID: &uid}

	var peer repo.ParticipantRef
	switch {
	case req.PeerModelID != "" && req.PeerUserID == "":
		peer = repo.ParticipantRef{ModelID: &req.PeerModelID}
	case req.PeerUserID != "" && req.PeerModelID == "":
		peer = repo.ParticipantRef{UserID: &req.PeerUserID}
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "exactly one of peer_user_id or peer_model_id required")
		return
	}

	chat, err := h.chatSvc.Create(c.Request.Context(), self, peer)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatExists):
			fail(c, http.StatusConflict, ErrCodeConflict, "chat already exists")
		case errors.Is(err, services.ErrProfileNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, "peer profile not found")
		case errors.Is(err, services.ErrValidation):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid participant reference")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeCreateFailed, err.Error())
		}
		return
	}
	ok(c, http.StatusCreated, chat)
}

// ListChats returns the caller's chats, newest first, each with the
// caller's unread count.
func (h *Handlers) ListChats(c *gin.Context) {
	items, err := h.chatSvc.ListForAccount(c.Request.Context(), userID(c))
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, ListChatsResponse{Chats: items})
}

// GetChat fetches one chat the caller participates in.
func (h *Handlers) GetChat(c *gin.Context) {
	chat, err := h.chatSvc.Get(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrChatNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "chat not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, chat)
}
