// Server-sent events handler.
//
// GET /events streams the caller's private event topic over SSE: new
// entries in their chats, chat creations, and similar post-commit
// notifications. Admin accounts can attach to the shared admin topic with
// ?topic=admin instead. Delivery is at-most-once; clients reconcile by
// re-fetching, the stream is a hint, not the source of truth.
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amoria-app/backend/internal/domain"
	"github.com/amoria-app/backend/internal/events"
)

// StreamEvents subscribes the caller to their event topic and streams
// until the client disconnects.
func (h *Handlers) StreamEvents(c *gin.Context) {
	uid := userID(c)

	topic := events.TopicUser(uid)
	if c.Query("topic") == "admin" {
		if roleOf(c) != string(domain.RoleAdmin) {
			fail(c, http.StatusForbidden, ErrCodeForbidden, "admin topic requires the admin role")
			return
		}
		topic = events.TopicAdmin
	}

	ch, cancel := h.broker.Subscribe(topic)
	defer cancel()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case ev, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true
		case <-ctx.Done():
			return false
		}
	})
}
