package handlers

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoochat/internal/models"
	"github.com/yoockh/yoochat/internal/pubsub"
	"github.com/yoockh/yoochat/internal/services"
	"github.com/yoockh/yoochat/internal/utils"
)

const sseKeepAlive = 25 * time.Second

type EventsHandler struct {
	sessions services.SessionService
	bus      pubsub.Bus
}

func NewEventsHandler(sessions services.SessionService, bus pubsub.Bus) *EventsHandler {
	return &EventsHandler{sessions: sessions, bus: bus}
}

// Stream forwards a session's turn events as Server-Sent Events until the
// client disconnects or the session is deleted. A lagging client may miss
// chunk events; it should replace the bubble text with complete.message.content.
func (h *EventsHandler) Stream(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, err := h.sessions.Get(sessionID); err != nil {
		writeError(c, err)
		return
	}

	sub, err := h.bus.Subscribe(c.Request.Context(), sessionID)
	if err != nil {
		writeError(c, utils.E(utils.CodeUnavailable, "EventsHandler.Stream", "event stream unavailable", err))
		return
	}
	defer sub.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Header("Content-Type", "text/event-stream")
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-sub.C:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Type), ev)
			return ev.Type != models.EventSessionDeleted
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
